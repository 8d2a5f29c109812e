// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-co
// SPDX-FileContributor: mochi-co

// Package redis provides an engine backed by a redis service. Keys are members of
// a sorted set with equal scores, so ZRANGEBYLEX yields them in byte-wise order;
// values are kept in a hash alongside.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	redis "github.com/go-redis/redis/v8"

	"github.com/mochi-mqtt/radix/store"
)

// defaultAddr is the default address to the redis service.
const defaultAddr = "localhost:6379"

// defaultHPrefix is a prefix to better identify keys created by the index.
const defaultHPrefix = "radix-"

// defaultPageSize is the number of keys fetched per round trip while iterating.
const defaultPageSize = 128

const (
	keysSuffix   = "keys"
	valuesSuffix = "values"
)

// Options contains configuration settings for the redis instance.
type Options struct {
	HPrefix  string `yaml:"h_prefix" json:"h_prefix"`
	PageSize int64  `yaml:"page_size" json:"page_size"`
	Options  *redis.Options
}

// Engine is an ordered engine using Redis as a backend.
type Engine struct {
	store.EngineBase
	config *Options        // options for connecting to the Redis instance.
	db     *redis.Client   // the Redis instance
	ctx    context.Context // a context for the connection
}

// ID returns the id of the engine.
func (e *Engine) ID() string {
	return "redis-db"
}

// hKey returns a key with the unique prefix.
func (e *Engine) hKey(s string) string {
	return e.config.HPrefix + s
}

// Init initializes and connects to the redis service.
func (e *Engine) Init(config any) error {
	if _, ok := config.(*Options); !ok && config != nil {
		return store.ErrInvalidConfigType
	}

	e.ctx = context.Background()

	if config == nil {
		config = new(Options)
	}

	e.config = config.(*Options)
	if e.config.Options == nil {
		e.config.Options = &redis.Options{
			Addr: defaultAddr,
		}
	}

	if e.config.HPrefix == "" {
		e.config.HPrefix = defaultHPrefix
	}

	if e.config.PageSize <= 0 {
		e.config.PageSize = defaultPageSize
	}

	if e.Log == nil {
		e.Log = slog.Default()
	}

	e.Log.Info("connecting to redis service",
		"address", e.config.Options.Addr,
		"username", e.config.Options.Username,
		"password-len", len(e.config.Options.Password),
		"db", e.config.Options.DB)

	e.db = redis.NewClient(e.config.Options)
	_, err := e.db.Ping(e.ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping service: %w", err)
	}

	e.Log.Info("connected to redis service")

	return nil
}

// Stop closes the redis connection.
func (e *Engine) Stop() error {
	if e.db == nil {
		return nil
	}

	e.Log.Info("disconnecting from redis service")
	err := e.db.Close()
	e.db = nil
	return err
}

// Get returns the value stored for key.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	if e.db == nil {
		return nil, false, store.ErrEngineNotOpen
	}

	v, err := e.db.HGet(e.ctx, e.hKey(valuesSuffix), string(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		e.Log.Error("failed to get data", "error", err, "key", key)
		return nil, false, err
	}

	return []byte(v), true, nil
}

// Set stores value under key.
func (e *Engine) Set(key, value []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	_, err := e.db.TxPipelined(e.ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(e.ctx, e.hKey(keysSuffix), &redis.Z{Score: 0, Member: string(key)})
		pipe.HSet(e.ctx, e.hKey(valuesSuffix), string(key), string(value))
		return nil
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

	err := e.del([]string{string(key)})
	if err != nil {
		e.Log.Error("failed to delete data", "error", err, "key", key)
	}
	return err
}

// del removes a set of keys from both the key set and the value hash.
func (e *Engine) del(keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	_, err := e.db.TxPipelined(e.ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(e.ctx, e.hKey(keysSuffix), members...)
		pipe.HDel(e.ctx, e.hKey(valuesSuffix), keys...)
		return nil
	})
	return err
}

// DeletePrefix removes prefix and all keys below it.
func (e *Engine) DeletePrefix(prefix []byte) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	hi := "+"
	if end := store.KeyUpperBound(prefix); end != nil {
		hi = "(" + string(end)
	}

	keys, err := e.db.ZRangeByLex(e.ctx, e.hKey(keysSuffix), &redis.ZRangeBy{
		Min: lexInclusive(prefix, "-"),
		Max: hi,
	}).Result()
	if err == nil {
		err = e.del(keys)
	}

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

	lo := lexInclusive(from, "-")
	for {
		keys, err := e.db.ZRangeByLex(e.ctx, e.hKey(keysSuffix), &redis.ZRangeBy{
			Min:   lo,
			Max:   "+",
			Count: e.config.PageSize,
		}).Result()
		if err != nil {
			e.Log.Error("failed to iter data", "error", err, "from", from)
			return err
		}

		more, err := e.visit(keys, fn)
		if err != nil || !more || int64(len(keys)) < e.config.PageSize {
			return err
		}

		lo = "(" + keys[len(keys)-1]
	}
}

// Descend visits keys <= from in descending order.
func (e *Engine) Descend(from []byte, fn store.VisitFn) error {
	if e.db == nil {
		return store.ErrEngineNotOpen
	}

	hi := lexInclusive(from, "+")
	for {
		keys, err := e.db.ZRevRangeByLex(e.ctx, e.hKey(keysSuffix), &redis.ZRangeBy{
			Min:   "-",
			Max:   hi,
			Count: e.config.PageSize,
		}).Result()
		if err != nil {
			e.Log.Error("failed to iter data", "error", err, "from", from)
			return err
		}

		more, err := e.visit(keys, fn)
		if err != nil || !more || int64(len(keys)) < e.config.PageSize {
			return err
		}

		hi = "(" + keys[len(keys)-1]
	}
}

// visit loads the values for a page of keys and hands each pair to fn. It returns
// false if fn stopped the iteration.
func (e *Engine) visit(keys []string, fn store.VisitFn) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}

	values, err := e.db.HMGet(e.ctx, e.hKey(valuesSuffix), keys...).Result()
	if err != nil {
		e.Log.Error("failed to load values", "error", err)
		return false, err
	}

	for i, k := range keys {
		var v []byte
		if s, ok := values[i].(string); ok {
			v = []byte(s)
		}

		if !fn([]byte(k), v) {
			return false, nil
		}
	}

	return true, nil
}

// lexInclusive returns an inclusive lex range bound for key, or open when key is nil.
func lexInclusive(key []byte, open string) string {
	if key == nil {
		return open
	}
	return "[" + string(key)
}
