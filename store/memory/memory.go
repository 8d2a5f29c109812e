// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package memory provides an in-memory engine backed by an immutable radix tree.
// Iteration runs over a snapshot of the tree, so it is unaffected by writes made
// during a visit.
package memory

import (
	iradix "github.com/hashicorp/go-immutable-radix/v2"

	"github.com/mochi-mqtt/radix/store"
)

// Options contains configuration settings for the memory engine.
type Options struct{}

// Engine is an in-memory ordered engine.
type Engine struct {
	store.EngineBase
	config *Options
	db     *iradix.Tree[[]byte]
}

// New returns an initialized memory engine.
func New() *Engine {
	e := new(Engine)
	_ = e.Init(nil)
	return e
}

// ID returns the id of the engine.
func (e *Engine) ID() string {
	return "memory"
}

// Init initializes the radix tree.
func (e *Engine) Init(config any) error {
	if _, ok := config.(*Options); !ok && config != nil {
		return store.ErrInvalidConfigType
	}

	if config == nil {
		config = new(Options)
	}

	e.config = config.(*Options)
	e.db = iradix.New[[]byte]()
	return nil
}

// Stop releases the radix tree.
func (e *Engine) Stop() error {
	e.db = nil
	return nil
}

// Get returns the value stored for key.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	if e.db == nil {
		return nil, false, store.ErrEngineNotOpen
	}

	v, ok := e.db.Get(key)
	return v, ok, nil
}

// Set stores value under key.
func (e *Engine) Set(key, value []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	k := append(make([]byte, 0, len(key)), key...)
	v := append(make([]byte, 0, len(value)), value...)
	e.db, _, _ = e.db.Insert(k, v)
	return nil
}

// Delete removes key.
func (e *Engine) Delete(key []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	e.db, _, _ = e.db.Delete(key)
	return nil
}

// DeletePrefix removes prefix and all keys below it.
func (e *Engine) DeletePrefix(prefix []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	e.db, _ = e.db.DeletePrefix(prefix)
	return nil
}

// Ascend visits keys >= from in ascending order.
func (e *Engine) Ascend(from []byte, fn store.VisitFn) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	it := e.db.Root().Iterator()
	if len(from) > 0 {
		it.SeekLowerBound(from)
	}

	for k, v, ok := it.Next(); ok; k, v, ok = it.Next() {
		if !fn(k, v) {
			return nil
		}
	}

	return nil
}

// Descend visits keys <= from in descending order.
func (e *Engine) Descend(from []byte, fn store.VisitFn) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	it := e.db.Root().ReverseIterator()
	if from != nil {
		it.SeekReverseLowerBound(from)
	}

	for k, v, ok := it.Previous(); ok; k, v, ok = it.Previous() {
		if !fn(k, v) {
			return nil
		}
	}

	return nil
}
