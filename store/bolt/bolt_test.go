// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co, werbenhu

package bolt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mochi-mqtt/radix/store"
	"github.com/mochi-mqtt/radix/store/storetest"
)

func newEngine(t *testing.T) *Engine {
	e := new(Engine)
	e.SetOpts(storetest.Logger)
	err := e.Init(&Options{
		Path: filepath.Join(t.TempDir(), "radix.db"),
	})
	require.NoError(t, err)
	return e
}

func TestID(t *testing.T) {
	require.Equal(t, "bolt-db", new(Engine).ID())
}

func TestInitBadConfig(t *testing.T) {
	e := new(Engine)
	e.SetOpts(storetest.Logger)
	err := e.Init(map[string]any{})
	require.ErrorIs(t, err, store.ErrInvalidConfigType)
}

func TestInitUseDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() {
		require.NoError(t, os.Chdir(wd))
	}()

	e := new(Engine)
	e.SetOpts(storetest.Logger)
	require.NoError(t, e.Init(nil))
	defer e.Stop()

	require.Equal(t, defaultDbFile, e.config.Path)
	require.Equal(t, defaultBucket, e.config.Bucket)
	require.Equal(t, defaultTimeout, e.config.Options.Timeout)
}

func TestStopped(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Stop())
	require.NoError(t, e.Stop())

	_, _, err := e.Get([]byte("a"))
	require.ErrorIs(t, err, store.ErrEngineNotOpen)
	require.ErrorIs(t, e.Set([]byte("a"), nil), store.ErrEngineNotOpen)
	require.ErrorIs(t, e.Delete([]byte("a")), store.ErrEngineNotOpen)
	require.ErrorIs(t, e.DeletePrefix([]byte("a")), store.ErrEngineNotOpen)
	require.ErrorIs(t, e.Ascend(nil, nil), store.ErrEngineNotOpen)
	require.ErrorIs(t, e.Descend(nil, nil), store.ErrEngineNotOpen)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radix.db")

	e := new(Engine)
	e.SetOpts(storetest.Logger)
	require.NoError(t, e.Init(&Options{Path: path}))
	require.NoError(t, e.Set([]byte("a"), []byte("1")))
	require.NoError(t, e.Stop())

	require.NoError(t, e.Init(&Options{Path: path}))
	defer e.Stop()

	v, ok, err := e.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Engine {
		return newEngine(t)
	})
}
