// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package radix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyBuffer(t *testing.T) {
	kb := newKeyBuffer(4)
	kb.writeString("@").writeByte(LevelSeparator).write([]byte("a"))
	m := kb.mark()
	require.Equal(t, []byte("@/a"), kb.key())

	c := kb.copy()
	kb.writeByte(ClientMark).writeClient(1, 7)
	require.Equal(t, []byte{'@', '/', 'a', 0xfe, 0x01, 0x81}, kb.key())
	require.Equal(t, []byte("@/a"), c)

	kb.reset(m)
	require.Equal(t, []byte("@/a"), kb.key())
}

func TestNewSubscriptionKeys(t *testing.T) {
	topic, err := NormalizeTopic("a/+", false, nil)
	require.NoError(t, err)

	sk := newSubscriptionKeys(topic, "", 1, 7)
	require.Equal(t, [][]byte{
		[]byte("@"),
		[]byte("@/a"),
		[]byte("@/a/+"),
	}, sk.topics)
	require.Equal(t, [][]byte{[]byte("@/a/+\xfe")}, sk.controls)
	require.Equal(t, []byte("@/a/+\xfe\x01\x81"), sk.leaf)
}

func TestNewSubscriptionKeysShared(t *testing.T) {
	topic, err := NormalizeTopic("a", false, nil)
	require.NoError(t, err)

	sk := newSubscriptionKeys(topic, "g", 128, 7)
	require.Equal(t, [][]byte{[]byte("@"), []byte("@/a")}, sk.topics)
	require.Equal(t, [][]byte{
		[]byte("@/a\xff"),
		[]byte("@/a\xffg"),
		[]byte("@/a\xffg\xfe"),
	}, sk.controls)
	require.Equal(t, []byte("@/a\xffg\xfe\x02\x81\x00"), sk.leaf)
}

func TestTopicHasChildren(t *testing.T) {
	key := make([]byte, 3, 16)
	copy(key, "@/a")

	probes := topicHasChildren(key)
	require.Equal(t, [][]byte{
		[]byte("@/a/"),
		[]byte("@/a\xfe"),
		[]byte("@/a\xff"),
	}, probes)
	require.Equal(t, []byte("@/a"), key)
}

func TestClientKeys(t *testing.T) {
	require.Equal(t, []byte{0x01, 0x00}, clientKey(0, 7))
	require.Equal(t, []byte{0x01, 0x85}, clientKey(5, 7))
	require.Equal(t, []byte("\x01\x85subsa/b"), clientSubscriptionKey(5, 7, "a/b"))
}

func TestSplitShared(t *testing.T) {
	share, client, ok := splitShared([]byte("g"))
	require.Equal(t, "g", share)
	require.Nil(t, client)
	require.False(t, ok)

	share, client, ok = splitShared([]byte("g\xfe"))
	require.Equal(t, "g", share)
	require.Empty(t, client)
	require.False(t, ok)

	share, client, ok = splitShared([]byte("g\xfe\x01\x81"))
	require.Equal(t, "g", share)
	require.Equal(t, []byte{0x01, 0x81}, client)
	require.True(t, ok)
}
