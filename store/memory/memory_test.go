// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mochi-mqtt/radix/store"
	"github.com/mochi-mqtt/radix/store/storetest"
)

func TestID(t *testing.T) {
	require.Equal(t, "memory", new(Engine).ID())
}

func TestInitBadConfig(t *testing.T) {
	e := new(Engine)
	err := e.Init(map[string]any{})
	require.ErrorIs(t, err, store.ErrInvalidConfigType)
}

func TestInitUseDefaults(t *testing.T) {
	e := new(Engine)
	require.NoError(t, e.Init(nil))
	require.NotNil(t, e.config)
	require.NotNil(t, e.db)
}

func TestSetCopiesInput(t *testing.T) {
	e := New()
	k, v := []byte("key"), []byte("value")
	require.NoError(t, e.Set(k, v))
	k[0], v[0] = 'x', 'x'

	got, ok, err := e.Get([]byte("key"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("value"), got)
}

func TestAscendSnapshot(t *testing.T) {
	e := New()
	require.NoError(t, e.Set([]byte("a"), nil))
	require.NoError(t, e.Set([]byte("b"), nil))

	var seen []string
	err := e.Ascend(nil, func(k, _ []byte) bool {
		seen = append(seen, string(k))
		require.NoError(t, e.Delete([]byte("b")))
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, seen)
}

func TestStopped(t *testing.T) {
	e := New()
	require.NoError(t, e.Stop())
	require.ErrorIs(t, e.Set([]byte("a"), nil), store.ErrEngineNotOpen)
	require.ErrorIs(t, e.Delete([]byte("a")), store.ErrEngineNotOpen)
	require.ErrorIs(t, e.DeletePrefix([]byte("a")), store.ErrEngineNotOpen)
	require.ErrorIs(t, e.Descend(nil, nil), store.ErrEngineNotOpen)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Engine {
		return New()
	})
}
