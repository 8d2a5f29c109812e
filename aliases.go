// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package radix

import (
	"bytes"
	"errors"
	"fmt"
)

// Direction is the direction of the messages a topic alias applies to.
type Direction byte

const (
	Inbound  Direction = iota // aliases set by the client on messages it publishes
	Outbound                  // aliases set by the broker on messages it sends
)

// String returns the name of the direction.
func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// tags returns the client tree tags of the alias to topic and topic to alias halves.
func (d Direction) tags() (topicByAlias, aliasByTopic string) {
	if d == Outbound {
		return outTopicByAlias, outAliasByTopic
	}
	return inTopicByAlias, inAliasByTopic
}

// aliasKeys builds the keys of the alias pairs of a client in one direction.
type aliasKeys struct {
	kb           *keyBuffer
	base         int
	topicByAlias string
	aliasByTopic string
}

func newAliasKeys(client uint64, w int, dir Direction) *aliasKeys {
	a := &aliasKeys{
		kb: newKeyBuffer(32).writeClient(client, w),
	}
	a.base = a.kb.mark()
	a.topicByAlias, a.aliasByTopic = dir.tags()
	return a
}

// client returns the key of the client root. It is valid until the next call.
func (a *aliasKeys) client() []byte {
	a.kb.reset(a.base)
	return a.kb.key()
}

// byAlias returns the key holding the topic of an alias.
func (a *aliasKeys) byAlias(alias uint8) []byte {
	a.kb.reset(a.base)
	return a.kb.writeString(a.topicByAlias).writeByte(alias).copy()
}

// byTopic returns the key holding the alias of a topic.
func (a *aliasKeys) byTopic(topic string) []byte {
	a.kb.reset(a.base)
	return a.kb.writeString(a.aliasByTopic).writeString(topic).copy()
}

// UpsertAlias maps a topic alias to a topic for a client in one direction. Any
// earlier pair using the alias or the topic is removed first, so each alias maps
// to one topic and each topic to one alias.
func (x *Index) UpsertAlias(client uint64, dir Direction, topic string, alias uint8) error {
	if alias == 0 {
		return ErrInvalidAlias
	}

	if _, err := NormalizeTopic(topic, true, x.Options); err != nil {
		return err
	}

	keys := newAliasKeys(client, x.clientWidth(), dir)

	oldTopic, hasTopic, err := x.aliasHalf(keys.byAlias(alias))
	if err != nil {
		return err
	}

	oldAlias, hasAlias, err := x.aliasHalf(keys.byTopic(topic))
	if err != nil {
		return err
	}

	// check the inverse of each existing half before changing anything.
	if hasTopic {
		if err := x.checkInverse(keys.byTopic(string(oldTopic)), []byte{alias}); err != nil {
			return err
		}
	}

	if hasAlias {
		if len(oldAlias) != 1 {
			return fmt.Errorf("alias value %x: %w", oldAlias, ErrAliasInvariant)
		}

		if err := x.checkInverse(keys.byAlias(oldAlias[0]), []byte(topic)); err != nil {
			return err
		}
	}

	if hasTopic && string(oldTopic) == topic {
		return nil
	}

	if hasTopic {
		if err := x.removeAliasPair(keys, alias, string(oldTopic)); err != nil {
			return err
		}
	}

	if hasAlias {
		if err := x.removeAliasPair(keys, oldAlias[0], topic); err != nil {
			return err
		}
	}

	if err := x.ensureClient(keys.client()); err != nil {
		return err
	}

	if _, _, err := x.clients.Insert(keys.byAlias(alias), []byte(topic)); err != nil {
		return err
	}

	if _, _, err := x.clients.Insert(keys.byTopic(topic), []byte{alias}); err != nil {
		return err
	}

	x.Info.AddTopicAliases(1)
	x.Log.Debug("topic alias set", "client", client, "direction", dir, "alias", alias, "topic", topic)
	return nil
}

// aliasHalf returns the value of one half of an alias pair, if it exists.
func (x *Index) aliasHalf(key []byte) ([]byte, bool, error) {
	v, err := x.clients.Find(key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}

	return v, err == nil, err
}

// checkInverse returns ErrAliasInvariant unless key holds want.
func (x *Index) checkInverse(key, want []byte) error {
	v, ok, err := x.aliasHalf(key)
	if err != nil {
		return err
	}

	if !ok || !bytes.Equal(v, want) {
		x.Log.Error("topic alias pair mismatch", "key", key, "want", want, "got", v)
		return fmt.Errorf("key %x: %w", key, ErrAliasInvariant)
	}

	return nil
}

// removeAliasPair removes both halves of an alias pair.
func (x *Index) removeAliasPair(keys *aliasKeys, alias uint8, topic string) error {
	if _, _, err := x.clients.Remove(keys.byAlias(alias)); err != nil {
		return err
	}

	_, found, err := x.clients.Remove(keys.byTopic(topic))
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("topic %q: %w", topic, ErrAliasInvariant)
	}

	x.Info.AddTopicAliases(-1)
	return nil
}

// AliasByTopic returns the alias of a topic, or 0 and ErrNotFound if the topic has
// no alias.
func (x *Index) AliasByTopic(client uint64, dir Direction, topic string) (uint8, error) {
	keys := newAliasKeys(client, x.clientWidth(), dir)
	v, err := x.clients.Find(keys.byTopic(topic))
	if err != nil {
		return 0, err
	}

	if len(v) != 1 || v[0] == 0 {
		return 0, fmt.Errorf("alias value %x: %w", v, ErrAliasInvariant)
	}

	return v[0], nil
}

// TopicByAlias returns the topic of an alias, or ErrNotFound if the alias is unset.
func (x *Index) TopicByAlias(client uint64, dir Direction, alias uint8) (string, error) {
	if alias == 0 {
		return "", ErrInvalidAlias
	}

	keys := newAliasKeys(client, x.clientWidth(), dir)
	v, err := x.clients.Find(keys.byAlias(alias))
	if err != nil {
		return "", err
	}

	return string(v), nil
}

// ClientTopicAliases returns the topic of every alias of a client in one direction.
func (x *Index) ClientTopicAliases(client uint64, dir Direction) (map[uint8]string, error) {
	keys := newAliasKeys(client, x.clientWidth(), dir)
	keys.kb.reset(keys.base)
	prefix := keys.kb.writeString(keys.topicByAlias).copy()

	aliases := make(map[uint8]string)
	it := x.clients.Subtree(prefix)
	for it.Next() {
		k := it.Key()
		if len(k) != len(prefix)+1 {
			continue
		}
		aliases[k[len(prefix)]] = string(it.Value())
	}

	return aliases, it.Err()
}

// RemoveClientTopicAliases removes every topic alias of a client, in both directions.
func (x *Index) RemoveClientTopicAliases(client uint64) error {
	var removed int64
	for _, dir := range []Direction{Inbound, Outbound} {
		aliases, err := x.ClientTopicAliases(client, dir)
		if err != nil {
			return err
		}
		removed += int64(len(aliases))

		keys := newAliasKeys(client, x.clientWidth(), dir)
		for _, tag := range []string{keys.topicByAlias, keys.aliasByTopic} {
			keys.kb.reset(keys.base)
			if err := x.clients.RemoveSubtree(keys.kb.writeString(tag).key()); err != nil {
				return err
			}
		}
	}

	x.Info.AddTopicAliases(-removed)
	return x.trimClient(client)
}
