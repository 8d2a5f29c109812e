// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package radix

import (
	"log/slog"
	"os"

	"github.com/mochi-mqtt/radix/store"
)

const (
	defaultMaximumTopicLength = 65535 // the longest topic a utf-8 string field can carry
	defaultMaximumTopicLevels = 32
	defaultClientIDWidth      = MaxClientIDWidth
)

// Rand is a source of uniformly distributed random integers, used to pick the
// member of a share group which receives a message.
type Rand interface {
	// Intn returns a number in [0, n).
	Intn(n int) int
}

// Options contains configurable options for the index.
type Options struct {
	// MaximumTopicLength is the longest topic or filter accepted, in bytes.
	MaximumTopicLength int `yaml:"maximum_topic_length" json:"maximum_topic_length"`

	// MaximumTopicLevels is the largest number of levels a topic or filter may have.
	MaximumTopicLevels int `yaml:"maximum_topic_levels" json:"maximum_topic_levels"`

	// ClientIDWidth is the number of bits of a client id carried by each byte of its
	// encoding, from 1 to 7. It must not change for the lifetime of stored data.
	ClientIDWidth int `yaml:"client_id_width" json:"client_id_width"`

	// Seed seeds the default random source. Zero seeds it from the clock.
	Seed int64 `yaml:"seed" json:"seed"`

	// Rand overrides the random source used for shared subscriptions.
	Rand Rand `yaml:"-" json:"-"`

	// Logger specifies a custom configured implementation of log/slog to override
	// the default logger.
	Logger *slog.Logger `yaml:"-" json:"-"`

	// TopicEngine stores the topic tree. It is initialized with TopicEngineConfig
	// by New. Defaults to an in-memory engine.
	TopicEngine       store.Engine `yaml:"-" json:"-"`
	TopicEngineConfig any          `yaml:"-" json:"-"`

	// ClientEngine stores the client tree. It is initialized with ClientEngineConfig
	// by New. Defaults to an in-memory engine.
	ClientEngine       store.Engine `yaml:"-" json:"-"`
	ClientEngineConfig any          `yaml:"-" json:"-"`
}

// DefaultOptions returns options holding the default limits.
func DefaultOptions() *Options {
	return &Options{
		MaximumTopicLength: defaultMaximumTopicLength,
		MaximumTopicLevels: defaultMaximumTopicLevels,
		ClientIDWidth:      defaultClientIDWidth,
	}
}

// ensureDefaults ensures that the options have default values where none are set.
func (o *Options) ensureDefaults() {
	if o.MaximumTopicLength == 0 {
		o.MaximumTopicLength = defaultMaximumTopicLength
	}

	if o.MaximumTopicLevels == 0 {
		o.MaximumTopicLevels = defaultMaximumTopicLevels
	}

	if o.ClientIDWidth == 0 {
		o.ClientIDWidth = defaultClientIDWidth
	}

	if o.Logger == nil {
		log := slog.New(slog.NewTextHandler(os.Stdout, nil))
		o.Logger = log
	}
}

// validate returns an error if the options cannot be used.
func (o *Options) validate() error {
	if o.ClientIDWidth < MinClientIDWidth || o.ClientIDWidth > MaxClientIDWidth {
		return ErrInvalidClientWidth
	}

	if o.MaximumTopicLength < 0 || o.MaximumTopicLevels < 0 {
		return ErrInvalidLimits
	}

	if o.TopicEngine != nil && o.TopicEngine == o.ClientEngine {
		return ErrSharedEngine
	}

	return nil
}

// orDefaults returns options with the topic limits set, filling any unset limit
// with its default. o is not modified.
func (o *Options) orDefaults() *Options {
	switch {
	case o == nil:
		o = new(Options)
	case o.MaximumTopicLength != 0 && o.MaximumTopicLevels != 0:
		return o
	default:
		c := *o
		o = &c
	}

	if o.MaximumTopicLength == 0 {
		o.MaximumTopicLength = defaultMaximumTopicLength
	}

	if o.MaximumTopicLevels == 0 {
		o.MaximumTopicLevels = defaultMaximumTopicLevels
	}

	return o
}
