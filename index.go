// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package radix indexes the subscriptions of an MQTT broker in two ordered
// byte-string trees. The topic tree maps topic filters to the clients subscribed
// to them and is walked to find the subscribers of a published topic. The client
// tree maps each client to its raw filters and topic aliases.
package radix

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mochi-mqtt/radix/store"
	"github.com/mochi-mqtt/radix/store/memory"
	"github.com/mochi-mqtt/radix/system"
)

const Version = "1.0.0" // the current index version.

var (
	// ErrNotFound indicates a lookup miss.
	ErrNotFound = store.ErrNotFound

	ErrInvalidFilter      = errors.New("invalid topic filter")                              // a filter is empty, malformed or not utf-8
	ErrInvalidTopic       = errors.New("invalid topic name")                                // a publish topic is empty, malformed or has wildcards
	ErrTopicTooLong       = errors.New("topic exceeds the maximum topic length")            // a topic is longer than Options.MaximumTopicLength
	ErrTooManyLevels      = errors.New("topic exceeds the maximum number of levels")        // a topic has more levels than Options.MaximumTopicLevels
	ErrMalformedShare     = errors.New("malformed shared subscription")                     // a $share filter has a bad or missing share name
	ErrInvalidAlias       = errors.New("invalid topic alias")                               // topic alias 0 is reserved
	ErrInvalidVBI         = errors.New("invalid variable width integer")                    // an encoded client id could not be decoded
	ErrInvalidClientWidth = errors.New("client id width must be between 1 and 7")           // a bad Options.ClientIDWidth
	ErrInvalidLimits      = errors.New("topic limits must not be negative")                 // a bad topic length or level limit
	ErrSharedEngine       = errors.New("topic and client trees need separate engines")      // one engine was given for both trees
	ErrAliasInvariant     = errors.New("topic alias pair is missing or mismatches inverse") // the two halves of an alias pair disagree
)

// Index is the subscription index of a broker. An Index is not safe for
// concurrent use; callers must serialize all calls.
type Index struct {
	Options *Options     // configurable index options
	Info    *system.Info // counters describing the contents of the index
	Log     *slog.Logger // the index logger
	topics  *store.Tree  // topic filters to subscribed clients
	clients *store.Tree  // clients to their raw filters and topic aliases
	rand    Rand         // picks the member of each share group
}

// New returns a new index using the given options, opening both tree engines.
func New(opts *Options) (*Index, error) {
	if opts == nil {
		opts = new(Options)
	}

	opts.ensureDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	x := &Index{
		Options: opts,
		Info: &system.Info{
			Version: Version,
			Started: time.Now().Unix(),
		},
		Log:  opts.Logger,
		rand: opts.Rand,
	}

	if x.rand == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		x.rand = rand.New(rand.NewSource(seed))
	}

	topics, err := x.openEngine(opts.TopicEngine, opts.TopicEngineConfig)
	if err != nil {
		return nil, fmt.Errorf("topic tree: %w", err)
	}

	clients, err := x.openEngine(opts.ClientEngine, opts.ClientEngineConfig)
	if err != nil {
		_ = topics.Stop()
		return nil, fmt.Errorf("client tree: %w", err)
	}

	x.topics = store.NewTree(topics, x.Log.With("tree", "topics"))
	x.clients = store.NewTree(clients, x.Log.With("tree", "clients"))

	return x, nil
}

// openEngine initializes an engine, or a new in-memory engine if e is nil.
func (x *Index) openEngine(e store.Engine, config any) (store.Engine, error) {
	if e == nil {
		e = new(memory.Engine)
	}

	e.SetOpts(x.Log)
	if err := e.Init(config); err != nil {
		return nil, err
	}

	x.Log.Debug("opened engine", "engine", e.ID())
	return e, nil
}

// Close stops both tree engines.
func (x *Index) Close() error {
	return errors.Join(
		x.topics.Engine().Stop(),
		x.clients.Engine().Stop(),
	)
}

// clientWidth returns the configured group width of client id encodings.
func (x *Index) clientWidth() int {
	return x.Options.ClientIDWidth
}
