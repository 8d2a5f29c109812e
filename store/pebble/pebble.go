// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: werbenhu

// Package pebble provides an engine backed by a pebble LSM store, on disk or on an
// in-memory filesystem.
package pebble

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"

	pebbledb "github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/mochi-mqtt/radix/store"
)

const (
	// defaultDbFile is the default file path for the pebble db file.
	defaultDbFile = ".pebble"
)

const (
	NoSync = "NoSync" // NoSync specifies the default write options for writes which do not synchronize to disk.
	Sync   = "Sync"   // Sync specifies the default write options for writes which synchronize to disk.
)

// Options contains configuration settings for the pebble DB instance.
type Options struct {
	Options  *pebbledb.Options
	Mode     string `yaml:"mode" json:"mode"`
	Path     string `yaml:"path" json:"path"`
	InMemory bool   `yaml:"in_memory" json:"in_memory"`
}

// Engine is an ordered engine using pebble DB as a backend.
type Engine struct {
	store.EngineBase
	config *Options               // options for configuring the pebble DB instance.
	db     *pebbledb.DB           // the pebble DB instance
	mode   *pebbledb.WriteOptions // mode holds the optional per-query parameters for Set and Delete operations
}

// ID returns the id of the engine.
func (e *Engine) ID() string {
	return "pebble-db"
}

// Init initializes and connects to the pebble instance.
func (e *Engine) Init(config any) error {
	if _, ok := config.(*Options); !ok && config != nil {
		return store.ErrInvalidConfigType
	}

	if config == nil {
		e.config = new(Options)
	} else {
		e.config = config.(*Options)
	}

	if e.Log == nil {
		e.Log = slog.Default()
	}

	if len(e.config.Path) == 0 {
		e.config.Path = defaultDbFile
	}

	if e.config.Options == nil {
		e.config.Options = &pebbledb.Options{}
	}

	if e.config.InMemory && e.config.Options.FS == nil {
		e.config.Options.FS = vfs.NewMem()
	}

	e.mode = pebbledb.NoSync
	if strings.EqualFold(e.config.Mode, Sync) {
		e.mode = pebbledb.Sync
	}

	var err error
	e.db, err = pebbledb.Open(e.config.Path, e.config.Options)
	if err != nil {
		return err
	}

	return nil
}

// Stop closes the pebble instance.
func (e *Engine) Stop() error {
	if e.db == nil {
		return nil
	}

	err := e.db.Close()
	e.db = nil
	return err
}

// Get returns the value stored for key.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	if e.db == nil {
		return nil, false, store.ErrEngineNotOpen
	}

	value, closer, err := e.db.Get(key)
	if errors.Is(err, pebbledb.ErrNotFound) {
		return nil, false, nil
	}

	if err != nil {
		e.Log.Error("failed to get data", "error", err, "key", key)
		return nil, false, err
	}

	defer closer.Close()
	return append([]byte{}, value...), true, nil
}

// Set stores value under key.
func (e *Engine) Set(key, value []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	err := e.db.Set(key, value, e.mode)
	if err != nil {
		e.Log.Error("failed to update data", "error", err, "key", key)
	}
	return err
}

// Delete removes key.
func (e *Engine) Delete(key []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	err := e.db.Delete(key, e.mode)
	if err != nil {
		e.Log.Error("failed to delete data", "error", err, "key", key)
	}
	return err
}

// DeletePrefix removes prefix and all keys below it with a single range tombstone.
// A prefix of only 0xFF bytes has no upper bound, so its keys are deleted one by one.
func (e *Engine) DeletePrefix(prefix []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	var err error
	if end := store.KeyUpperBound(prefix); end != nil {
		err = e.db.DeleteRange(prefix, end, e.mode)
	} else {
		err = e.deleteFrom(prefix)
	}

	if err != nil {
		e.Log.Error("failed to delete prefix", "error", err, "prefix", prefix)
	}
	return err
}

// deleteFrom deletes every key starting with prefix by iteration.
func (e *Engine) deleteFrom(prefix []byte) error {
	iter, err := e.db.NewIter(&pebbledb.IterOptions{
		LowerBound: prefix,
	})
	if err != nil {
		return err
	}

	var keys [][]byte
	for iter.First(); iter.Valid() && bytes.HasPrefix(iter.Key(), prefix); iter.Next() {
		keys = append(keys, append([]byte{}, iter.Key()...))
	}

	if err := iter.Close(); err != nil {
		return err
	}

	batch := e.db.NewBatch()
	for _, k := range keys {
		if err := batch.Delete(k, nil); err != nil {
			return err
		}
	}
	return batch.Commit(e.mode)
}

// Ascend visits keys >= from in ascending order.
func (e *Engine) Ascend(from []byte, fn store.VisitFn) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	iter, err := e.db.NewIter(&pebbledb.IterOptions{})
	if err != nil {
		e.Log.Error("failed to iter data", "error", err, "from", from)
		return err
	}
	defer iter.Close()

	valid := iter.First()
	if len(from) > 0 {
		valid = iter.SeekGE(from)
	}

	for ; valid; valid = iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}

	return iter.Error()
}

// Descend visits keys <= from in descending order.
func (e *Engine) Descend(from []byte, fn store.VisitFn) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	iter, err := e.db.NewIter(&pebbledb.IterOptions{})
	if err != nil {
		e.Log.Error("failed to iter data", "error", err, "from", from)
		return err
	}
	defer iter.Close()

	var valid bool
	switch {
	case from == nil:
		valid = iter.Last()
	default:
		// SeekLT excludes from itself, so step onto it when it is stored.
		valid = iter.SeekGE(from)
		if !valid || !bytes.Equal(iter.Key(), from) {
			valid = iter.SeekLT(from)
		}
	}

	for ; valid; valid = iter.Prev() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}

	return iter.Error()
}
