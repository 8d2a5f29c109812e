// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package radix

import (
	"bytes"
	"fmt"
)

// Reserved bytes of the topic tree. ClientMark and SharedMark never occur in
// valid UTF-8, and EmptyToken is rejected in topics, so none of them can collide
// with topic content.
const (
	ClientMark     byte = 0xFE // precedes the client id of a subscription
	SharedMark     byte = 0xFF // precedes the share name of a shared subscription
	EmptyToken     byte = 0x1F // stands in for an empty topic level
	LevelSeparator byte = '/'
)

// Domain markers lead every normalized topic. They are literal, so a filter whose
// first level is a wildcard never reaches a $ topic.
const (
	DomainSys = "$" // topics starting with $
	DomainAll = "@" // all other topics
)

// Tags of the client tree, following the client id.
const (
	subsTag         = "subs" // raw subscription filters
	inTopicByAlias  = "itba" // inbound alias to topic
	inAliasByTopic  = "iabt" // inbound topic to alias
	outTopicByAlias = "otba" // outbound alias to topic
	outAliasByTopic = "oabt" // outbound topic to alias
)

// keyBuffer is a growable buffer for building keys one field at a time. Marks
// let a caller return to the end of an earlier field.
type keyBuffer struct {
	buf []byte
}

// newKeyBuffer returns a buffer with room for n bytes.
func newKeyBuffer(n int) *keyBuffer {
	return &keyBuffer{buf: make([]byte, 0, n)}
}

// mark returns the current end of the key.
func (k *keyBuffer) mark() int {
	return len(k.buf)
}

// reset truncates the key to an earlier mark.
func (k *keyBuffer) reset(m int) {
	k.buf = k.buf[:m]
}

func (k *keyBuffer) writeByte(b byte) *keyBuffer {
	k.buf = append(k.buf, b)
	return k
}

func (k *keyBuffer) write(b []byte) *keyBuffer {
	k.buf = append(k.buf, b...)
	return k
}

func (k *keyBuffer) writeString(s string) *keyBuffer {
	k.buf = append(k.buf, s...)
	return k
}

// writeClient appends a client id field.
func (k *keyBuffer) writeClient(id uint64, w int) *keyBuffer {
	k.buf = appendClient(k.buf, id, w)
	return k
}

// key returns the key built so far. It is only valid until the buffer changes.
func (k *keyBuffer) key() []byte {
	return k.buf
}

// copy returns a copy of the key built so far.
func (k *keyBuffer) copy() []byte {
	return append(make([]byte, 0, len(k.buf)), k.buf...)
}

// appendClient appends a client id field to dst: a length byte followed by the
// variable-width encoding of the id. The length byte keeps the field prefix-free
// and orders ids numerically regardless of their encoded length.
func appendClient(dst []byte, id uint64, w int) []byte {
	n := 1
	if id > 0 {
		n = vbiLen(id, w)
	}

	dst = append(dst, byte(n))
	return AppendVBI(dst, id, w)
}

// decodeClient decodes a complete client id field.
func decodeClient(field []byte, w int) (uint64, error) {
	if len(field) < 2 || int(field[0]) != len(field)-1 {
		return 0, fmt.Errorf("client field %x: %w", field, ErrInvalidVBI)
	}

	return DecodeVBI(field[1:], w)
}

// subscriptionKeys holds every key of one subscription in the topic tree, from
// the shallowest node to the leaf.
type subscriptionKeys struct {
	topics   [][]byte // the token prefixes of the topic, ending with the topic
	controls [][]byte // control nodes between the topic and the leaf
	leaf     []byte   // the node whose existence is the subscription
}

// newSubscriptionKeys builds the keys of a subscription of client to topic, in
// share group share if not empty.
func newSubscriptionKeys(topic Topic, share string, client uint64, w int) subscriptionKeys {
	kb := newKeyBuffer(len(topic.Key) + len(share) + 3 + MaxClientIDWidth*10)
	sk := subscriptionKeys{
		topics: make([][]byte, 0, len(topic.Tokens)),
	}

	for i, tok := range topic.Tokens {
		if i > 0 {
			kb.writeByte(LevelSeparator)
		}
		kb.writeString(tok)
		sk.topics = append(sk.topics, kb.copy())
	}

	if share == "" {
		kb.writeByte(ClientMark)
		sk.controls = [][]byte{kb.copy()}
	} else {
		kb.writeByte(SharedMark)
		sk.controls = append(sk.controls, kb.copy())
		kb.writeString(share)
		sk.controls = append(sk.controls, kb.copy())
		kb.writeByte(ClientMark)
		sk.controls = append(sk.controls, kb.copy())
	}

	sk.leaf = kb.writeClient(client, w).copy()
	return sk
}

// topicHasChildren returns a probe for whether a topic node holds anything below it:
// a deeper level, regular subscribers, or share groups. A plain prefix test would
// also see sibling topics which extend the last level, such as a/bc for a/b.
func topicHasChildren(key []byte) [][]byte {
	n := len(key)
	return [][]byte{
		append(key[:n:n], LevelSeparator),
		append(key[:n:n], ClientMark),
		append(key[:n:n], SharedMark),
	}
}

// clientKey returns the root of a client in the client tree.
func clientKey(id uint64, w int) []byte {
	return appendClient(nil, id, w)
}

// clientSubscriptionKey returns the client tree key of a raw subscription filter.
func clientSubscriptionKey(id uint64, w int, filter string) []byte {
	return newKeyBuffer(len(filter)+16).writeClient(id, w).writeString(subsTag).writeString(filter).copy()
}

// splitShared splits the suffix of a key below a topic's shared mark into the
// share name and the client field, which is empty for share marker nodes.
func splitShared(suffix []byte) (share string, client []byte, ok bool) {
	i := bytes.IndexByte(suffix, ClientMark)
	if i < 0 {
		return string(suffix), nil, false
	}
	return string(suffix[:i]), suffix[i+1:], len(suffix) > i+1
}
