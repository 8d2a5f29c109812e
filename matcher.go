// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package radix

import (
	"sort"
	"strings"
)

// Subscribers contains the clients subscribed to a published topic.
type Subscribers struct {
	// Clients are the clients with a regular subscription matching the topic.
	Clients map[uint64]struct{}

	// SharedSelected holds the client picked from each matching share group, keyed
	// on the shared filter, e.g. $share/group/a/+.
	SharedSelected map[string]uint64
}

// NewSubscribers returns an empty set of subscribers.
func NewSubscribers() *Subscribers {
	return &Subscribers{
		Clients:        make(map[uint64]struct{}),
		SharedSelected: make(map[string]uint64),
	}
}

// Contains returns true if the client receives the message through either a
// regular or a shared subscription.
func (s *Subscribers) Contains(client uint64) bool {
	if _, ok := s.Clients[client]; ok {
		return true
	}

	for _, id := range s.SharedSelected {
		if id == client {
			return true
		}
	}

	return false
}

// All returns every client receiving the message, once each, in ascending order.
func (s *Subscribers) All() []uint64 {
	seen := make(map[uint64]struct{}, len(s.Clients)+len(s.SharedSelected))
	for id := range s.Clients {
		seen[id] = struct{}{}
	}

	for _, id := range s.SharedSelected {
		seen[id] = struct{}{}
	}

	all := make([]uint64, 0, len(seen))
	for id := range seen {
		all = append(all, id)
	}

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	return all
}

// Subscribers returns the clients subscribed to a publish topic. One member of
// every matching share group is picked at random on each call.
func (x *Index) Subscribers(topic string) (*Subscribers, error) {
	t, err := NormalizeTopic(topic, true, x.Options)
	if err != nil {
		return nil, err
	}

	subs := NewSubscribers()
	kb := newKeyBuffer(len(t.Key) + 2).writeString(t.Tokens[0])

	ok, err := x.topics.Exists(kb.key())
	if err != nil || !ok {
		return subs, err
	}

	if err := x.probe(kb, t.Tokens, 1, subs); err != nil {
		return nil, err
	}

	x.Info.AddMatch(len(subs.SharedSelected))
	return subs, nil
}

// probe collects the subscribers of the topic node held by kb, which matched the
// first d tokens, and descends into the children matching the next token.
func (x *Index) probe(kb *keyBuffer, tokens []string, d int, subs *Subscribers) error {
	base := kb.mark()
	defer kb.reset(base)

	// a trailing # also matches its parent level.
	if ok, err := x.topics.Exists(kb.writeByte(LevelSeparator).writeString("#").key()); err != nil {
		return err
	} else if ok {
		if err := x.collect(kb, subs); err != nil {
			return err
		}
	}
	kb.reset(base)

	if d == len(tokens) {
		return x.collect(kb, subs)
	}

	for _, tok := range []string{"+", tokens[d]} {
		ok, err := x.topics.Exists(kb.writeByte(LevelSeparator).writeString(tok).key())
		if err != nil {
			return err
		}

		if ok {
			if err := x.probe(kb, tokens, d+1, subs); err != nil {
				return err
			}
		}
		kb.reset(base)
	}

	return nil
}

// collect adds the subscribers of the topic node held by kb: every regular
// subscriber, and one member of each share group.
func (x *Index) collect(kb *keyBuffer, subs *Subscribers) error {
	base := kb.mark()
	defer kb.reset(base)
	w := x.clientWidth()

	prefix := kb.writeByte(ClientMark).copy()
	it := x.topics.Subtree(prefix)
	for it.Next() {
		id, err := decodeClient(it.Key()[len(prefix):], w)
		if err != nil {
			x.Log.Warn("skipping malformed subscription", "error", err, "key", it.Key())
			continue
		}
		subs.Clients[id] = struct{}{}
	}

	if err := it.Err(); err != nil {
		return err
	}

	kb.reset(base)
	prefix = kb.writeByte(SharedMark).copy()

	type reservoir struct {
		n      int
		chosen uint64
	}

	groups := make(map[string]*reservoir)
	var order []string

	it = x.topics.Subtree(prefix)
	for it.Next() {
		share, field, ok := splitShared(it.Key()[len(prefix):])
		if !ok {
			continue // share marker nodes
		}

		id, err := decodeClient(field, w)
		if err != nil {
			x.Log.Warn("skipping malformed shared subscription", "error", err, "key", it.Key())
			continue
		}

		r, ok := groups[share]
		if !ok {
			r = new(reservoir)
			groups[share] = r
			order = append(order, share)
		}

		r.n++
		if x.rand.Intn(r.n) == 0 {
			r.chosen = id
		}
	}

	if err := it.Err(); err != nil {
		return err
	}

	if len(order) == 0 {
		return nil
	}

	filter := denormalize(strings.Split(string(kb.key()[:base]), string(LevelSeparator)))
	for _, share := range order {
		subs.SharedSelected[SharePrefix+"/"+share+"/"+filter] = groups[share].chosen
	}

	return nil
}
