// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package store

import (
	"bytes"
	"log/slog"
)

// SeekOp is a relational operator used to position a seek.
type SeekOp byte

const (
	SeekEqual   SeekOp = iota // the key itself
	SeekLess                  // the greatest key strictly less than the key
	SeekGreater               // the smallest key strictly greater than the key
	SeekFirst                 // the first key in the tree
	SeekLast                  // the last key in the tree
)

// Tree is an ordered byte-string tree over a storage engine. A Tree is not safe
// for concurrent use; callers must serialize mutations and must not mutate a tree
// while iterating it.
type Tree struct {
	engine Engine
	Log    *slog.Logger
}

// NewTree returns a tree backed by an initialized engine, handing the engine the
// tree's logger.
func NewTree(engine Engine, log *slog.Logger) *Tree {
	if log == nil {
		log = slog.Default()
	}

	engine.SetOpts(log)
	return &Tree{
		engine: engine,
		Log:    log,
	}
}

// Engine returns the engine backing the tree.
func (t *Tree) Engine() Engine {
	return t.engine
}

// TryInsert stores value under key only if the key does not already exist. It
// returns true if the key was inserted, or false and the existing value.
func (t *Tree) TryInsert(key, value []byte) (bool, []byte, error) {
	if len(key) == 0 {
		return false, nil, ErrEmptyKey
	}

	existing, ok, err := t.engine.Get(key)
	if err != nil {
		return false, nil, err
	}

	if ok {
		return false, existing, nil
	}

	return true, nil, t.engine.Set(key, value)
}

// Insert stores value under key, returning the previous value and true if the
// key already existed.
func (t *Tree) Insert(key, value []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, ErrEmptyKey
	}

	previous, ok, err := t.engine.Get(key)
	if err != nil {
		return nil, false, err
	}

	return previous, ok, t.engine.Set(key, value)
}

// Remove deletes key, returning its value and true if it existed.
func (t *Tree) Remove(key []byte) ([]byte, bool, error) {
	value, ok, err := t.engine.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}

	return value, true, t.engine.Delete(key)
}

// Find returns the value stored under key, or ErrNotFound.
func (t *Tree) Find(key []byte) ([]byte, error) {
	value, ok, err := t.engine.Get(key)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrNotFound
	}

	return value, nil
}

// Exists returns true if key is stored in the tree.
func (t *Tree) Exists(key []byte) (bool, error) {
	_, ok, err := t.engine.Get(key)
	return ok, err
}

// HasPrefix returns true if any stored key starts with prefix, including prefix itself.
func (t *Tree) HasPrefix(prefix []byte) (bool, error) {
	var found bool
	err := t.engine.Ascend(prefix, func(k, _ []byte) bool {
		found = bytes.HasPrefix(k, prefix)
		return false
	})

	return found, err
}

// IsLeaf returns true if no stored key has key as a strict prefix.
func (t *Tree) IsLeaf(key []byte) (bool, error) {
	leaf := true
	err := t.engine.Ascend(key, func(k, _ []byte) bool {
		if bytes.Equal(k, key) {
			return true
		}

		leaf = !bytes.HasPrefix(k, key)
		return false
	})

	return leaf, err
}

// RemoveSubtree deletes prefix and every key below it.
func (t *Tree) RemoveSubtree(prefix []byte) error {
	return t.engine.DeletePrefix(prefix)
}

// Len returns the number of keys in the tree.
func (t *Tree) Len() (int, error) {
	var n int
	err := t.engine.Ascend(nil, func(_, _ []byte) bool {
		n++
		return true
	})

	return n, err
}

// Seek returns the key and value selected by op relative to key. ErrNotFound is
// returned if no key satisfies the operator. Key is ignored for SeekFirst and SeekLast.
func (t *Tree) Seek(op SeekOp, key []byte) ([]byte, []byte, error) {
	var k, v []byte
	var found bool
	visit := func(vk, vv []byte) bool {
		if (op == SeekLess || op == SeekGreater) && bytes.Equal(vk, key) {
			return true
		}
		k, v, found = clone(vk), clone(vv), true
		return false
	}

	var err error
	switch op {
	case SeekEqual:
		v, err = t.Find(key)
		if err != nil {
			return nil, nil, err
		}
		return clone(key), v, nil
	case SeekLess:
		err = t.engine.Descend(key, visit)
	case SeekGreater:
		err = t.engine.Ascend(key, visit)
	case SeekFirst:
		err = t.engine.Ascend(nil, visit)
	case SeekLast:
		err = t.engine.Descend(nil, visit)
	}

	if err != nil {
		return nil, nil, err
	}

	if !found {
		return nil, nil, ErrNotFound
	}

	return k, v, nil
}

// Children returns an iterator over the immediate children of prefix: the stored
// keys starting with prefix which have no other stored key between them and prefix.
func (t *Tree) Children(prefix []byte) *Iterator {
	return &Iterator{
		tree:     t,
		prefix:   clone(prefix),
		from:     clone(prefix),
		children: true,
	}
}

// Subtree returns an iterator over every stored key strictly below prefix, in
// lexicographic order.
func (t *Tree) Subtree(prefix []byte) *Iterator {
	return &Iterator{
		tree:   t,
		prefix: clone(prefix),
		from:   clone(prefix),
	}
}

// Iterator walks keys below a prefix. Each call to Next seeks afresh from the
// last returned key.
type Iterator struct {
	err      error
	tree     *Tree
	prefix   []byte
	from     []byte
	key      []byte
	value    []byte
	children bool
	done     bool
}

// Next advances the iterator, returning false when no keys remain or an error occurred.
func (it *Iterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	var found bool
	err := it.tree.engine.Ascend(it.from, func(k, v []byte) bool {
		if !bytes.HasPrefix(k, it.prefix) {
			return false
		}

		if len(k) == len(it.prefix) {
			return true
		}

		it.key, it.value, found = clone(k), clone(v), true
		return false
	})

	if err != nil {
		it.err = err
		return false
	}

	if !found {
		it.done = true
		it.key, it.value = nil, nil
		return false
	}

	if it.children {
		it.from = KeyUpperBound(it.key)
		it.done = it.from == nil
	} else {
		it.from = append(clone(it.key), 0)
	}

	return true
}

// Key returns the current key.
func (it *Iterator) Key() []byte {
	return it.key
}

// Value returns the value of the current key.
func (it *Iterator) Value() []byte {
	return it.value
}

// Err returns the first error encountered by the iterator.
func (it *Iterator) Err() error {
	return it.err
}
