// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package config decodes index options, including the engines backing each tree,
// from JSON or YAML.
package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"

	"github.com/mochi-mqtt/radix"
	"github.com/mochi-mqtt/radix/store"
	"github.com/mochi-mqtt/radix/store/badger"
	"github.com/mochi-mqtt/radix/store/bolt"
	"github.com/mochi-mqtt/radix/store/memory"
	"github.com/mochi-mqtt/radix/store/pebble"
	"github.com/mochi-mqtt/radix/store/redis"
)

var (
	// ErrMultipleEngines indicates that more than one engine was configured for a tree.
	ErrMultipleEngines = errors.New("only one engine may be configured per tree")
)

// config defines the structure of configuration data to be parsed from a config source.
type config struct {
	Options radix.Options `yaml:"options" json:"options"`
	Engines EngineConfigs `yaml:"engines" json:"engines"`
}

// EngineConfigs contains the engine configurations of the two trees.
type EngineConfigs struct {
	Topics  *EngineConfig `yaml:"topics" json:"topics"`
	Clients *EngineConfig `yaml:"clients" json:"clients"`
}

// EngineConfig selects the engine of a tree. At most one engine may be set.
type EngineConfig struct {
	Memory *memory.Options `yaml:"memory" json:"memory"`
	Badger *badger.Options `yaml:"badger" json:"badger"`
	Bolt   *bolt.Options   `yaml:"bolt" json:"bolt"`
	Pebble *pebble.Options `yaml:"pebble" json:"pebble"`
	Redis  *redis.Options  `yaml:"redis" json:"redis"`
}

// ToEngine returns a new engine and its configuration, or a nil engine if none
// is set.
func (ec *EngineConfig) ToEngine() (store.Engine, any, error) {
	if ec == nil {
		return nil, nil, nil
	}

	type choice struct {
		engine store.Engine
		config any
	}

	var set []choice
	if ec.Memory != nil {
		set = append(set, choice{new(memory.Engine), ec.Memory})
	}

	if ec.Badger != nil {
		set = append(set, choice{new(badger.Engine), ec.Badger})
	}

	if ec.Bolt != nil {
		set = append(set, choice{new(bolt.Engine), ec.Bolt})
	}

	if ec.Pebble != nil {
		set = append(set, choice{new(pebble.Engine), ec.Pebble})
	}

	if ec.Redis != nil {
		set = append(set, choice{new(redis.Engine), ec.Redis})
	}

	switch len(set) {
	case 0:
		return nil, nil, nil
	case 1:
		return set[0].engine, set[0].config, nil
	default:
		return nil, nil, ErrMultipleEngines
	}
}

// FromBytes unmarshals a byte slice of JSON or YAML config data into valid index
// options. Unset options keep their defaults, and any engine configurations are
// converted into engines for the index to initialize.
func FromBytes(b []byte) (*radix.Options, error) {
	c := new(config)

	if len(b) == 0 {
		return nil, nil
	}

	if b[0] == '{' {
		err := json.Unmarshal(b, c)
		if err != nil {
			return nil, err
		}
	} else {
		err := yaml.Unmarshal(b, c)
		if err != nil {
			return nil, err
		}
	}

	o := radix.DefaultOptions()
	if err := copier.CopyWithOption(o, &c.Options, copier.Option{IgnoreEmpty: true}); err != nil {
		return nil, err
	}

	var err error
	o.TopicEngine, o.TopicEngineConfig, err = c.Engines.Topics.ToEngine()
	if err != nil {
		return nil, err
	}

	o.ClientEngine, o.ClientEngineConfig, err = c.Engines.Clients.ToEngine()
	if err != nil {
		return nil, err
	}

	return o, nil
}

// FromFile reads and decodes a config file. An empty path returns nil options.
func FromFile(p string) (*radix.Options, error) {
	if p == "" {
		slog.Default().Debug("no file path provided")
		return nil, nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}

	return FromBytes(data)
}
