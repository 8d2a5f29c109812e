// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-co
// SPDX-FileContributor: mochi-co

package redis

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/mochi-mqtt/radix/store"
	"github.com/mochi-mqtt/radix/store/storetest"
)

func newEngine(t *testing.T, addr string, pageSize int64) *Engine {
	e := new(Engine)
	e.SetOpts(storetest.Logger)
	err := e.Init(&Options{
		PageSize: pageSize,
		Options: &redis.Options{
			Addr: addr,
		},
	})
	require.NoError(t, err)
	return e
}

func TestID(t *testing.T) {
	require.Equal(t, "redis-db", new(Engine).ID())
}

func TestInitBadConfig(t *testing.T) {
	e := new(Engine)
	e.SetOpts(storetest.Logger)
	err := e.Init(map[string]any{})
	require.ErrorIs(t, err, store.ErrInvalidConfigType)
}

func TestInitUseDefaults(t *testing.T) {
	s := miniredis.RunT(t)
	s.StartAddr(defaultAddr)
	defer s.Close()

	e := new(Engine)
	e.SetOpts(storetest.Logger)
	require.NoError(t, e.Init(nil))
	defer e.Stop()

	require.Equal(t, defaultHPrefix, e.config.HPrefix)
	require.Equal(t, defaultAddr, e.config.Options.Addr)
	require.Equal(t, int64(defaultPageSize), e.config.PageSize)
	require.Equal(t, defaultHPrefix+"keys", e.hKey(keysSuffix))
}

func TestInitBadAddr(t *testing.T) {
	e := new(Engine)
	e.SetOpts(storetest.Logger)
	err := e.Init(&Options{
		Options: &redis.Options{
			Addr: "127.0.0.1:1",
		},
	})
	require.Error(t, err)
}

func TestKeysAreSortedSetMembers(t *testing.T) {
	s := miniredis.RunT(t)
	e := newEngine(t, s.Addr(), 0)
	defer e.Stop()

	require.NoError(t, e.Set([]byte("b"), []byte("2")))
	require.NoError(t, e.Set([]byte("a"), []byte("1")))

	members, err := s.ZMembers(e.hKey(keysSuffix))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, members)
	require.Equal(t, "2", s.HGet(e.hKey(valuesSuffix), "b"))

	require.NoError(t, e.Delete([]byte("b")))
	members, err = s.ZMembers(e.hKey(keysSuffix))
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, members)
	require.Equal(t, "", s.HGet(e.hKey(valuesSuffix), "b"))
}

func TestPagedIteration(t *testing.T) {
	s := miniredis.RunT(t)
	e := newEngine(t, s.Addr(), 2)
	defer e.Stop()

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, e.Set([]byte(k), []byte(k)))
	}

	var asc []string
	require.NoError(t, e.Ascend([]byte("b"), func(k, v []byte) bool {
		require.Equal(t, k, v)
		asc = append(asc, string(k))
		return true
	}))
	require.Equal(t, []string{"b", "c", "d", "e"}, asc)

	var desc []string
	require.NoError(t, e.Descend(nil, func(k, _ []byte) bool {
		desc = append(desc, string(k))
		return len(desc) < 4
	}))
	require.Equal(t, []string{"e", "d", "c", "b"}, desc)
}

func TestStopped(t *testing.T) {
	s := miniredis.RunT(t)
	e := newEngine(t, s.Addr(), 0)
	require.NoError(t, e.Stop())
	require.NoError(t, e.Stop())

	_, _, err := e.Get([]byte("a"))
	require.ErrorIs(t, err, store.ErrEngineNotOpen)
	require.ErrorIs(t, e.Set([]byte("a"), nil), store.ErrEngineNotOpen)
	require.ErrorIs(t, e.Ascend(nil, nil), store.ErrEngineNotOpen)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Engine {
		s := miniredis.RunT(t)
		return newEngine(t, s.Addr(), 3)
	})
}
