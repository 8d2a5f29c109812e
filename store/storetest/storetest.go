// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package storetest contains the conformance tests every store.Engine must pass
// when wrapped in a store.Tree.
package storetest

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mochi-mqtt/radix/store"
)

// Logger discards all output.
var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// NewEngineFn returns a fresh, initialized and empty engine. The engine is stopped
// by the test when it completes.
type NewEngineFn func(t *testing.T) store.Engine

// fixture is stored by most tests, unsorted.
var fixture = []string{"b", "a\xff\xff", "ab", "a", "ac", "abc", "a\xff"}

// Run runs the conformance suite against engines made by fn.
func Run(t *testing.T, fn NewEngineFn) {
	tests := []struct {
		name string
		test func(t *testing.T, tree *store.Tree)
	}{
		{"TryInsert", testTryInsert},
		{"Insert", testInsert},
		{"Remove", testRemove},
		{"EmptyKey", testEmptyKey},
		{"EmptyValue", testEmptyValue},
		{"HasPrefix", testHasPrefix},
		{"IsLeaf", testIsLeaf},
		{"RemoveSubtree", testRemoveSubtree},
		{"RemoveSubtreeUnbounded", testRemoveSubtreeUnbounded},
		{"Seek", testSeek},
		{"Children", testChildren},
		{"Subtree", testSubtree},
		{"Len", testLen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := fn(t)
			defer func() {
				require.NoError(t, e.Stop())
			}()

			tt.test(t, store.NewTree(e, Logger))
		})
	}
}

func load(t *testing.T, tree *store.Tree, keys ...string) {
	for _, k := range keys {
		_, _, err := tree.Insert([]byte(k), []byte("v:"+k))
		require.NoError(t, err)
	}
}

func collect(t *testing.T, it *store.Iterator) []string {
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
		require.Equal(t, "v:"+string(it.Key()), string(it.Value()))
	}
	require.NoError(t, it.Err())
	return keys
}

func testTryInsert(t *testing.T, tree *store.Tree) {
	ok, existing, err := tree.TryInsert([]byte("a/b"), []byte("one"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, existing)

	ok, existing, err = tree.TryInsert([]byte("a/b"), []byte("two"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []byte("one"), existing)

	v, err := tree.Find([]byte("a/b"))
	require.NoError(t, err)
	require.Equal(t, []byte("one"), v)
}

func testInsert(t *testing.T, tree *store.Tree) {
	previous, replaced, err := tree.Insert([]byte("k"), []byte("one"))
	require.NoError(t, err)
	require.False(t, replaced)
	require.Nil(t, previous)

	previous, replaced, err = tree.Insert([]byte("k"), []byte("two"))
	require.NoError(t, err)
	require.True(t, replaced)
	require.Equal(t, []byte("one"), previous)

	v, err := tree.Find([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("two"), v)
}

func testRemove(t *testing.T, tree *store.Tree) {
	load(t, tree, "a", "ab")

	v, found, err := tree.Remove([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v:a"), v)

	_, found, err = tree.Remove([]byte("a"))
	require.NoError(t, err)
	require.False(t, found)

	_, err = tree.Find([]byte("a"))
	require.ErrorIs(t, err, store.ErrNotFound)

	ok, err := tree.Exists([]byte("ab"))
	require.NoError(t, err)
	require.True(t, ok)
}

func testEmptyKey(t *testing.T, tree *store.Tree) {
	_, _, err := tree.Insert(nil, []byte("v"))
	require.ErrorIs(t, err, store.ErrEmptyKey)

	_, _, err = tree.TryInsert([]byte{}, nil)
	require.ErrorIs(t, err, store.ErrEmptyKey)
}

func testEmptyValue(t *testing.T, tree *store.Tree) {
	ok, _, err := tree.TryInsert([]byte("marker"), nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tree.Exists([]byte("marker"))
	require.NoError(t, err)
	require.True(t, ok)

	v, err := tree.Find([]byte("marker"))
	require.NoError(t, err)
	require.Empty(t, v)

	ok, _, err = tree.TryInsert([]byte("marker"), nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func testHasPrefix(t *testing.T, tree *store.Tree) {
	load(t, tree, fixture...)

	for prefix, want := range map[string]bool{
		"a":      true,
		"ab":     true,
		"abc":    true,
		"a\xff":  true,
		"abcd":   false,
		"aa":     false,
		"c":      false,
		"\x00":   false,
		"b\x00":  false,
		"a\xfe":  false,
		"a\xff0": false,
	} {
		ok, err := tree.HasPrefix([]byte(prefix))
		require.NoError(t, err)
		require.Equal(t, want, ok, "prefix %q", prefix)
	}
}

func testIsLeaf(t *testing.T, tree *store.Tree) {
	load(t, tree, fixture...)

	for key, want := range map[string]bool{
		"a":         false,
		"ab":        false,
		"abc":       true,
		"ac":        true,
		"a\xff":     false,
		"a\xff\xff": true,
		"b":         true,
		"zz":        true,
	} {
		ok, err := tree.IsLeaf([]byte(key))
		require.NoError(t, err)
		require.Equal(t, want, ok, "key %q", key)
	}
}

func testRemoveSubtree(t *testing.T, tree *store.Tree) {
	load(t, tree, fixture...)

	require.NoError(t, tree.RemoveSubtree([]byte("ab")))
	require.Equal(t, []string{"ac", "a\xff", "a\xff\xff"}, collect(t, tree.Subtree([]byte("a"))))

	ok, err := tree.Exists([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, tree.RemoveSubtree([]byte("nothing")))
	n, err := tree.Len()
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func testRemoveSubtreeUnbounded(t *testing.T, tree *store.Tree) {
	load(t, tree, "\xff", "\xff\xff", "\xff\xff\x01", "\xfe")

	require.NoError(t, tree.RemoveSubtree([]byte("\xff\xff")))

	n, err := tree.Len()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	ok, err := tree.Exists([]byte("\xff"))
	require.NoError(t, err)
	require.True(t, ok)
}

func testSeek(t *testing.T, tree *store.Tree) {
	_, _, err := tree.Seek(store.SeekFirst, nil)
	require.ErrorIs(t, err, store.ErrNotFound)

	load(t, tree, fixture...)

	tests := []struct {
		op   store.SeekOp
		key  string
		want string
	}{
		{store.SeekEqual, "ab", "ab"},
		{store.SeekLess, "abc", "ab"},
		{store.SeekLess, "aa", "a"},
		{store.SeekLess, "c", "b"},
		{store.SeekGreater, "abc", "ac"},
		{store.SeekGreater, "aa", "ab"},
		{store.SeekGreater, "\x00", "a"},
		{store.SeekFirst, "", "a"},
		{store.SeekLast, "", "b"},
	}

	for _, tt := range tests {
		k, v, err := tree.Seek(tt.op, []byte(tt.key))
		require.NoError(t, err, "op %d key %q", tt.op, tt.key)
		require.Equal(t, tt.want, string(k), "op %d key %q", tt.op, tt.key)
		require.Equal(t, "v:"+tt.want, string(v))
	}

	for _, tt := range []struct {
		op  store.SeekOp
		key string
	}{
		{store.SeekEqual, "zz"},
		{store.SeekLess, "a"},
		{store.SeekGreater, "b"},
	} {
		_, _, err := tree.Seek(tt.op, []byte(tt.key))
		require.ErrorIs(t, err, store.ErrNotFound, "op %d key %q", tt.op, tt.key)
	}
}

func testChildren(t *testing.T, tree *store.Tree) {
	load(t, tree, fixture...)

	require.Equal(t, []string{"ab", "ac", "a\xff"}, collect(t, tree.Children([]byte("a"))))
	require.Equal(t, []string{"a", "b"}, collect(t, tree.Children(nil)))
	require.Equal(t, []string{"a\xff\xff"}, collect(t, tree.Children([]byte("a\xff"))))
	require.Empty(t, collect(t, tree.Children([]byte("abc"))))
	require.Empty(t, collect(t, tree.Children([]byte("q"))))
}

func testSubtree(t *testing.T, tree *store.Tree) {
	load(t, tree, fixture...)

	require.Equal(t, []string{"ab", "abc", "ac", "a\xff", "a\xff\xff"}, collect(t, tree.Subtree([]byte("a"))))
	require.Equal(t, []string{"abc"}, collect(t, tree.Subtree([]byte("ab"))))
	require.Len(t, collect(t, tree.Subtree(nil)), len(fixture))
	require.Empty(t, collect(t, tree.Subtree([]byte("b"))))
}

func testLen(t *testing.T, tree *store.Tree) {
	n, err := tree.Len()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	load(t, tree, fixture...)
	load(t, tree, fixture...)

	n, err = tree.Len()
	require.NoError(t, err)
	require.Equal(t, len(fixture), n)
}
