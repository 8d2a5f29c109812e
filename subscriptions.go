// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package radix

import (
	"github.com/mochi-mqtt/radix/store"
)

// InsertSubscription subscribes a client to a topic filter, which may be a shared
// filter. It returns true if the subscription did not already exist.
func (x *Index) InsertSubscription(filter string, client uint64) (bool, error) {
	topic, share, err := ParseSubscribeTopic(filter, x.Options)
	if err != nil {
		return false, err
	}

	w := x.clientWidth()
	sk := newSubscriptionKeys(topic, share, client, w)

	for _, k := range sk.topics {
		if _, _, err := x.topics.TryInsert(k, nil); err != nil {
			return false, err
		}
	}

	for _, k := range sk.controls {
		if _, _, err := x.topics.TryInsert(k, nil); err != nil {
			return false, err
		}
	}

	added, _, err := x.topics.TryInsert(sk.leaf, nil)
	if err != nil {
		return false, err
	}

	if err := x.insertClientSubscription(client, filter); err != nil {
		return false, err
	}

	if added {
		x.Info.AddSubscription(share != "", 1)
		x.Log.Debug("subscription added", "filter", filter, "client", client)
	}

	return added, nil
}

// insertClientSubscription records a raw filter under the client in the client tree.
func (x *Index) insertClientSubscription(client uint64, filter string) error {
	kb := newKeyBuffer(len(filter) + 16).writeClient(client, x.clientWidth())
	if err := x.ensureClient(kb.key()); err != nil {
		return err
	}

	if _, _, err := x.clients.TryInsert(kb.writeString(subsTag).key(), nil); err != nil {
		return err
	}

	_, _, err := x.clients.TryInsert(kb.writeString(filter).key(), nil)
	return err
}

// ensureClient inserts the root node of a client in the client tree.
func (x *Index) ensureClient(key []byte) error {
	ok, _, err := x.clients.TryInsert(key, nil)
	if ok {
		x.Info.AddClients(1)
	}
	return err
}

// trimClient removes the root node of a client from the client tree once nothing
// is stored below it.
func (x *Index) trimClient(client uint64) error {
	key := clientKey(client, x.clientWidth())
	ok, err := x.trim(x.clients, key)
	if ok {
		x.Info.AddClients(-1)
	}
	return err
}

// RemoveSubscription unsubscribes a client from a topic filter. Any node left
// without children is removed, from the leaf towards the root, stopping at the
// first node still used by another subscription. It returns true if the
// subscription existed.
func (x *Index) RemoveSubscription(filter string, client uint64) (bool, error) {
	topic, share, err := ParseSubscribeTopic(filter, x.Options)
	if err != nil {
		return false, err
	}

	w := x.clientWidth()
	sk := newSubscriptionKeys(topic, share, client, w)

	_, found, err := x.topics.Remove(sk.leaf)
	if err != nil {
		return false, err
	}

	if found {
		if err := x.trimSubscription(sk); err != nil {
			return true, err
		}

		x.Info.AddSubscription(share != "", -1)
		x.Log.Debug("subscription removed", "filter", filter, "client", client)
	}

	return found, x.removeClientSubscription(client, filter)
}

// trimSubscription removes the childless ancestors of a removed subscription leaf.
func (x *Index) trimSubscription(sk subscriptionKeys) error {
	for i := len(sk.controls) - 1; i >= 0; i-- {
		var probes [][]byte
		if len(sk.controls) == 3 && i == 1 {
			// a share name is a prefix of any longer share name.
			probes = [][]byte{sk.controls[2]}
		}

		ok, err := x.trim(x.topics, sk.controls[i], probes...)
		if err != nil || !ok {
			return err
		}
	}

	for i := len(sk.topics) - 1; i >= 0; i-- {
		ok, err := x.trim(x.topics, sk.topics[i], topicHasChildren(sk.topics[i])...)
		if err != nil || !ok {
			return err
		}
	}

	return nil
}

// trim removes key from tree if it has no children, returning true if it was
// removed. A key has children if any probe prefix is stored, or, without probes,
// if it is not a leaf.
func (x *Index) trim(tree *store.Tree, key []byte, probes ...[]byte) (bool, error) {
	if len(probes) == 0 {
		leaf, err := tree.IsLeaf(key)
		if err != nil || !leaf {
			return false, err
		}
	}

	for _, p := range probes {
		busy, err := tree.HasPrefix(p)
		if err != nil || busy {
			return false, err
		}
	}

	_, found, err := tree.Remove(key)
	return found, err
}

// removeClientSubscription removes a raw filter from the client tree, trimming the
// client's nodes when it was the last.
func (x *Index) removeClientSubscription(client uint64, filter string) error {
	kb := newKeyBuffer(len(filter) + 16).writeClient(client, x.clientWidth()).writeString(subsTag)
	subs := kb.copy()

	_, found, err := x.clients.Remove(kb.writeString(filter).key())
	if err != nil || !found {
		return err
	}

	if ok, err := x.trim(x.clients, subs); err != nil || !ok {
		return err
	}

	return x.trimClient(client)
}

// ClientSubscriptions returns the raw filters a client is subscribed to, in
// byte-wise order.
func (x *Index) ClientSubscriptions(client uint64) ([]string, error) {
	prefix := newKeyBuffer(16).writeClient(client, x.clientWidth()).writeString(subsTag).key()

	var filters []string
	it := x.clients.Subtree(prefix)
	for it.Next() {
		filters = append(filters, string(it.Key()[len(prefix):]))
	}

	return filters, it.Err()
}

// RemoveClientSubscriptions removes every subscription of a client.
func (x *Index) RemoveClientSubscriptions(client uint64) error {
	filters, err := x.ClientSubscriptions(client)
	if err != nil {
		return err
	}

	for _, filter := range filters {
		if _, err := x.RemoveSubscription(filter, client); err != nil {
			x.Log.Warn("failed to remove client subscription", "error", err, "filter", filter, "client", client)
		}
	}

	subs := newKeyBuffer(16).writeClient(client, x.clientWidth()).writeString(subsTag).key()
	if err := x.clients.RemoveSubtree(subs); err != nil {
		return err
	}

	return x.trimClient(client)
}

// RemoveClientData removes every subscription and topic alias of a client, and
// anything else stored under the client.
func (x *Index) RemoveClientData(client uint64) error {
	if err := x.RemoveClientSubscriptions(client); err != nil {
		return err
	}

	if err := x.RemoveClientTopicAliases(client); err != nil {
		return err
	}

	key := clientKey(client, x.clientWidth())
	ok, err := x.clients.Exists(key)
	if err != nil {
		return err
	}

	if err := x.clients.RemoveSubtree(key); err != nil {
		return err
	}

	if ok {
		x.Info.AddClients(-1)
	}

	x.Log.Debug("client data removed", "client", client)
	return nil
}
