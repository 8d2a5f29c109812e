// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package store provides the ordered byte-string tree the subscription index is
// built on, and the contract its storage engines implement.
package store

import (
	"errors"
	"log/slog"
)

var (
	// ErrNotFound indicates that a key does not exist in the tree.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidConfigType indicates a different Type of config value was expected to what was received.
	ErrInvalidConfigType = errors.New("invalid config type provided")

	// ErrEngineNotOpen indicates that the engine was not initialized or has been stopped.
	ErrEngineNotOpen = errors.New("engine not open")

	// ErrEmptyKey indicates that a zero-length key was used for a write.
	ErrEmptyKey = errors.New("empty key")
)

// VisitFn is called for each key-value pair during ordered iteration. Returning
// false stops the iteration. Key and value are only valid for the duration of
// the call.
type VisitFn func(key, value []byte) bool

// Engine is an ordered byte-string key-value engine. Keys are compared byte-wise.
type Engine interface {
	// ID returns the id of the engine.
	ID() string

	// SetOpts sets the logger for the engine.
	SetOpts(l *slog.Logger)

	// Init initializes the engine with its configuration; nil selects the defaults.
	Init(config any) error

	// Stop releases any resources held by the engine.
	Stop() error

	// Get returns the value stored for key and true, or false if the key does not exist.
	Get(key []byte) ([]byte, bool, error)

	// Set stores value under key, overwriting any existing value.
	Set(key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// DeletePrefix removes every key starting with prefix, including prefix itself.
	DeletePrefix(prefix []byte) error

	// Ascend visits keys >= from in ascending order. A nil from starts at the first key.
	Ascend(from []byte, fn VisitFn) error

	// Descend visits keys <= from in descending order. A nil from starts at the last key.
	Descend(from []byte, fn VisitFn) error
}

// EngineBase provides the logger and a default ID for each engine. It should be
// embedded in all engines.
type EngineBase struct {
	Log *slog.Logger
}

// ID returns the ID of the engine.
func (e *EngineBase) ID() string {
	return "base"
}

// SetOpts is called by the tree to set the logger for the engine.
func (e *EngineBase) SetOpts(l *slog.Logger) {
	e.Log = l
}

// KeyUpperBound returns the smallest key which is greater than every key
// starting with b. It returns nil if no such key exists (b is empty or all 0xFF).
func KeyUpperBound(b []byte) []byte {
	end := make([]byte, len(b))
	copy(end, b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i] = end[i] + 1
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// clone returns a copy of b, or nil if b is nil.
func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
