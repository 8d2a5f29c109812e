// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co, gsagula, werbenhu

// Package badger provides an engine backed by BadgerDB, either on disk or fully in memory.
package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/mochi-mqtt/radix/store"
)

const (
	// defaultDbFile is the default file path for the badger db file.
	defaultDbFile         = ".badger"
	defaultGcInterval     = 5 * 60 // gc interval in seconds
	defaultGcDiscardRatio = 0.5
)

// Options contains configuration settings for the BadgerDB instance.
type Options struct {
	Options  *badgerdb.Options
	Path     string `yaml:"path" json:"path"`
	InMemory bool   `yaml:"in_memory" json:"in_memory"`
	// GcDiscardRatio specifies the ratio of log discard compared to the maximum possible log discard.
	// discardRatio must be in the range (0.0, 1.0), both endpoints excluded, otherwise, it will be set to the default value of 0.5.
	GcDiscardRatio float64 `yaml:"gc_discard_ratio" json:"gc_discard_ratio"`
	GcInterval     int64   `yaml:"gc_interval" json:"gc_interval"`
}

// Engine is an ordered engine using BadgerDB as a backend.
type Engine struct {
	store.EngineBase
	config   *Options     // options for configuring the BadgerDB instance.
	gcTicker *time.Ticker // Ticker for BadgerDB garbage collection.
	db       *badgerdb.DB // the BadgerDB instance.
}

// ID returns the id of the engine.
func (e *Engine) ID() string {
	return "badger-db"
}

// gcLoop periodically runs the garbage collection process to reclaim space in the value log files.
// Refer to: https://dgraph.io/docs/badger/get-started/#garbage-collection
func (e *Engine) gcLoop() {
	for range e.gcTicker.C {
	again:
		err := e.db.RunValueLogGC(e.config.GcDiscardRatio)
		if err == nil {
			goto again
		}
	}
}

// Init initializes and connects to the badger instance.
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

	if len(e.config.Path) == 0 && !e.config.InMemory {
		e.config.Path = defaultDbFile
	}

	if e.config.GcInterval == 0 {
		e.config.GcInterval = defaultGcInterval
	}

	if e.config.GcDiscardRatio <= 0.0 || e.config.GcDiscardRatio >= 1.0 {
		e.config.GcDiscardRatio = defaultGcDiscardRatio
	}

	if e.config.Options == nil {
		defaultOpts := badgerdb.DefaultOptions(e.config.Path)
		if e.config.InMemory {
			defaultOpts = badgerdb.DefaultOptions("").WithInMemory(true)
		}
		e.config.Options = &defaultOpts
	}
	e.config.Options.Logger = e

	var err error
	e.db, err = badgerdb.Open(*e.config.Options)
	if err != nil {
		return err
	}

	// value log gc is not supported for in-memory instances.
	if !e.config.Options.InMemory {
		e.gcTicker = time.NewTicker(time.Duration(e.config.GcInterval) * time.Second)
		go e.gcLoop()
	}

	return nil
}

// Stop closes the badger instance.
func (e *Engine) Stop() error {
	if e.gcTicker != nil {
		e.gcTicker.Stop()
	}

	if e.db == nil {
		return nil
	}

	err := e.db.Close()
	e.db = nil
	return err
}

// Get returns the value stored for key.
func (e *Engine) Get(key []byte) (v []byte, ok bool, err error) {
	if e.db == nil {
		return nil, false, store.ErrEngineNotOpen
	}

	err = e.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		v, err = item.ValueCopy(nil)
		ok = err == nil
		return err
	})

	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		e.Log.Error("failed to get data", "error", err, "key", key)
	}
	return
}

// Set stores value under key.
func (e *Engine) Set(key, value []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	err := e.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, value)
	})

	if err != nil {
		e.Log.Error("failed to upsert data", "error", err, "key", key)
	}
	return err
}

// Delete removes key.
func (e *Engine) Delete(key []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	err := e.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(key)
	})

	if err != nil {
		e.Log.Error("failed to delete data", "error", err, "key", key)
	}
	return err
}

// DeletePrefix removes prefix and all keys below it.
func (e *Engine) DeletePrefix(prefix []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	err := e.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		iterator := txn.NewIterator(opts)

		var keys [][]byte
		for iterator.Seek(prefix); iterator.ValidForPrefix(prefix); iterator.Next() {
			keys = append(keys, iterator.Item().KeyCopy(nil))
		}
		iterator.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		e.Log.Error("failed to delete prefix", "error", err, "prefix", prefix)
	}
	return err
}

// Ascend visits keys >= from in ascending order.
func (e *Engine) Ascend(from []byte, fn store.VisitFn) error {
	return e.iterate(from, false, fn)
}

// Descend visits keys <= from in descending order.
func (e *Engine) Descend(from []byte, fn store.VisitFn) error {
	return e.iterate(from, true, fn)
}

// iterate walks the keys from a starting key in either direction.
func (e *Engine) iterate(from []byte, reverse bool, fn store.VisitFn) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	err := e.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Reverse = reverse
		iterator := txn.NewIterator(opts)
		defer iterator.Close()

		iterator.Rewind()
		if len(from) > 0 {
			iterator.Seek(from)
		}

		for ; iterator.Valid(); iterator.Next() {
			item := iterator.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if !fn(item.Key(), value) {
				return nil
			}
		}
		return nil
	})

	if err != nil {
		e.Log.Error("failed to iter data", "error", err, "from", from)
	}
	return err
}

// Errorf satisfies the badger interface for an error logger.
func (e *Engine) Errorf(m string, v ...any) {
	e.Log.Error(fmt.Sprintf(strings.ToLower(strings.Trim(m, "\n")), v...), "v", v)
}

// Warningf satisfies the badger interface for a warning logger.
func (e *Engine) Warningf(m string, v ...any) {
	e.Log.Warn(fmt.Sprintf(strings.ToLower(strings.Trim(m, "\n")), v...), "v", v)
}

// Infof satisfies the badger interface for an info logger.
func (e *Engine) Infof(m string, v ...any) {
	e.Log.Info(fmt.Sprintf(strings.ToLower(strings.Trim(m, "\n")), v...), "v", v)
}

// Debugf satisfies the badger interface for a debug logger.
func (e *Engine) Debugf(m string, v ...any) {
	e.Log.Debug(fmt.Sprintf(strings.ToLower(strings.Trim(m, "\n")), v...), "v", v)
}
