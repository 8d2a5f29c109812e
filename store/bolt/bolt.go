// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co, werbenhu

// Package bolt provides an engine backed by a single boltdb bucket, whose cursor
// keeps keys in byte-wise order.
package bolt

import (
	"bytes"
	"errors"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mochi-mqtt/radix/store"
)

var (
	ErrBucketNotFound = errors.New("bucket not found")
)

const (
	// defaultDbFile is the default file path for the boltdb file.
	defaultDbFile = ".bolt"

	// defaultTimeout is the default time to hold a connection to the file.
	defaultTimeout = 250 * time.Millisecond

	// defaultBucket is the default bucket name.
	defaultBucket = "radix"
)

// Options contains configuration settings for the bolt instance.
type Options struct {
	Options *bbolt.Options
	Bucket  string `yaml:"bucket" json:"bucket"`
	Path    string `yaml:"path" json:"path"`
}

// Engine is an ordered engine using a boltdb file store as a backend.
type Engine struct {
	store.EngineBase
	config *Options  // options for configuring the boltdb instance.
	db     *bbolt.DB // the boltdb instance.
}

// ID returns the id of the engine.
func (e *Engine) ID() string {
	return "bolt-db"
}

// Init initializes and connects to the boltdb instance.
func (e *Engine) Init(config any) error {
	if _, ok := config.(*Options); !ok && config != nil {
		return store.ErrInvalidConfigType
	}

	if config == nil {
		config = new(Options)
	}

	e.config = config.(*Options)
	if e.Log == nil {
		e.Log = slog.Default()
	}

	if e.config.Options == nil {
		e.config.Options = &bbolt.Options{
			Timeout: defaultTimeout,
		}
	}

	if len(e.config.Path) == 0 {
		e.config.Path = defaultDbFile
	}

	if len(e.config.Bucket) == 0 {
		e.config.Bucket = defaultBucket
	}

	var err error
	e.db, err = bbolt.Open(e.config.Path, 0600, e.config.Options)
	if err != nil {
		return err
	}

	return e.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(e.config.Bucket))
		return err
	})
}

// Stop closes the boltdb instance.
func (e *Engine) Stop() error {
	if e.db == nil {
		return nil
	}

	err := e.db.Close()
	e.db = nil
	return err
}

// bucket returns the configured bucket of a transaction.
func (e *Engine) bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(e.config.Bucket))
	if b == nil {
		return nil, ErrBucketNotFound
	}
	return b, nil
}

// Get returns the value stored for key.
func (e *Engine) Get(key []byte) (v []byte, ok bool, err error) {
	if e.db == nil {
		return nil, false, store.ErrEngineNotOpen
	}

	err = e.db.View(func(tx *bbolt.Tx) error {
		b, err := e.bucket(tx)
		if err != nil {
			return err
		}

		// zero-length values are indistinguishable from missing keys through Get.
		k, val := b.Cursor().Seek(key)
		if k != nil && bytes.Equal(k, key) {
			v, ok = append([]byte{}, val...), true
		}
		return nil
	})

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

	err := e.db.Update(func(tx *bbolt.Tx) error {
		b, err := e.bucket(tx)
		if err != nil {
			return err
		}
		return b.Put(key, value)
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

	err := e.db.Update(func(tx *bbolt.Tx) error {
		b, err := e.bucket(tx)
		if err != nil {
			return err
		}
		return b.Delete(key)
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

	err := e.db.Update(func(tx *bbolt.Tx) error {
		b, err := e.bucket(tx)
		if err != nil {
			return err
		}

		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
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
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	err := e.db.View(func(tx *bbolt.Tx) error {
		b, err := e.bucket(tx)
		if err != nil {
			return err
		}

		c := b.Cursor()
		k, v := c.First()
		if len(from) > 0 {
			k, v = c.Seek(from)
		}

		for ; k != nil; k, v = c.Next() {
			if !fn(k, v) {
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

// Descend visits keys <= from in descending order.
func (e *Engine) Descend(from []byte, fn store.VisitFn) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	err := e.db.View(func(tx *bbolt.Tx) error {
		b, err := e.bucket(tx)
		if err != nil {
			return err
		}

		c := b.Cursor()
		var k, v []byte
		if from == nil {
			k, v = c.Last()
		} else {
			k, v = c.Seek(from)
			switch {
			case k == nil:
				k, v = c.Last()
			case !bytes.Equal(k, from):
				k, v = c.Prev()
			}
		}

		for ; k != nil; k, v = c.Prev() {
			if !fn(k, v) {
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
