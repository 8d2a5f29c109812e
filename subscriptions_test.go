// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package radix

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mochi-mqtt/radix/store"
)

// treeKeys returns every key of a tree in order.
func treeKeys(t *testing.T, tree *store.Tree) []string {
	t.Helper()
	var keys []string
	it := tree.Subtree(nil)
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	return keys
}

func TestInsertSubscription(t *testing.T) {
	x := newTestIndex(t)

	ok, err := x.InsertSubscription("a/b/c", 1)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, []string{
		"@",
		"@/a",
		"@/a/b",
		"@/a/b/c",
		"@/a/b/c\xfe",
		"@/a/b/c\xfe\x01\x81",
	}, treeKeys(t, x.topics))

	require.Equal(t, []string{
		"\x01\x81",
		"\x01\x81subs",
		"\x01\x81subsa/b/c",
	}, treeKeys(t, x.clients))

	require.Equal(t, int64(1), x.Info.Subscriptions)
	require.Equal(t, int64(1), x.Info.Clients)
}

func TestInsertSubscriptionShared(t *testing.T) {
	x := newTestIndex(t)

	ok, err := x.InsertSubscription(SharePrefix+"/g/a", 2)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, []string{
		"@",
		"@/a",
		"@/a\xff",
		"@/a\xffg",
		"@/a\xffg\xfe",
		"@/a\xffg\xfe\x01\x82",
	}, treeKeys(t, x.topics))

	filters, err := x.ClientSubscriptions(2)
	require.NoError(t, err)
	require.Equal(t, []string{SharePrefix + "/g/a"}, filters)
	require.Equal(t, int64(0), x.Info.Subscriptions)
	require.Equal(t, int64(1), x.Info.SharedSubscriptions)
}

func TestInsertSubscriptionIdempotent(t *testing.T) {
	x := newTestIndex(t)

	for _, filter := range []string{"a/+/c", SharePrefix + "/g/a/#"} {
		ok, err := x.InsertSubscription(filter, 1)
		require.NoError(t, err)
		require.True(t, ok)
	}

	topics, clients := treeLen(t, x)
	before, err := x.Subscribers("a/b/c")
	require.NoError(t, err)

	for _, filter := range []string{"a/+/c", SharePrefix + "/g/a/#"} {
		ok, err := x.InsertSubscription(filter, 1)
		require.NoError(t, err)
		require.False(t, ok)
	}

	after, err := x.Subscribers("a/b/c")
	require.NoError(t, err)
	require.Equal(t, before, after)

	topics2, clients2 := treeLen(t, x)
	require.Equal(t, topics, topics2)
	require.Equal(t, clients, clients2)
	require.Equal(t, int64(1), x.Info.Subscriptions)
	require.Equal(t, int64(1), x.Info.SharedSubscriptions)
	require.Equal(t, int64(1), x.Info.Clients)
}

func TestInsertSubscriptionInvalid(t *testing.T) {
	x := newTestIndex(t)

	for _, filter := range []string{"", "a/#/b", SharePrefix + "/g", "a/\x00"} {
		_, err := x.InsertSubscription(filter, 1)
		require.Error(t, err)
	}

	x.Options.MaximumTopicLevels = 2
	_, err := x.InsertSubscription("a/b/c", 1)
	require.ErrorIs(t, err, ErrTooManyLevels)

	topics, clients := treeLen(t, x)
	require.Equal(t, 0, topics)
	require.Equal(t, 0, clients)
}

func TestRemoveSubscriptionSymmetric(t *testing.T) {
	x := newTestIndex(t)

	for _, filter := range []string{"x/y", "a/#", SharePrefix + "/g/a/b"} {
		_, err := x.InsertSubscription(filter, 9)
		require.NoError(t, err)
	}

	topics := treeKeys(t, x.topics)
	clients := treeKeys(t, x.clients)

	filters := []string{
		"a",
		"a/b/c",
		"a/b/c/d/e",
		"/",
		"a//b/",
		"#",
		"+/+/#",
		"$SYS/a/b",
		"a/b",
		SharePrefix + "/g/a/b",
		SharePrefix + "/h/a/b",
		SharePrefix + "/g/a/b/c",
	}

	for _, filter := range filters {
		for _, client := range []uint64{1, 9, 128, 1 << 40} {
			ok, err := x.InsertSubscription(filter, client)
			require.NoError(t, err)

			removed, err := x.RemoveSubscription(filter, client)
			require.NoError(t, err)

			if !ok {
				// the subscription existed before, so put it back.
				_, err = x.InsertSubscription(filter, client)
				require.NoError(t, err)
				continue
			}

			require.True(t, removed)
			require.Equal(t, topics, treeKeys(t, x.topics), "filter %s client %d", filter, client)
			require.Equal(t, clients, treeKeys(t, x.clients), "filter %s client %d", filter, client)
		}
	}

	require.Equal(t, int64(2), x.Info.Subscriptions)
	require.Equal(t, int64(1), x.Info.SharedSubscriptions)
	require.Equal(t, int64(1), x.Info.Clients)
}

func TestRemoveSubscriptionToEmpty(t *testing.T) {
	x := newTestIndex(t)

	_, err := x.InsertSubscription("a/b/c", 1)
	require.NoError(t, err)

	ok, err := x.RemoveSubscription("a/b/c", 1)
	require.NoError(t, err)
	require.True(t, ok)

	topics, clients := treeLen(t, x)
	require.Equal(t, 0, topics)
	require.Equal(t, 0, clients)
	require.Equal(t, int64(0), x.Info.Subscriptions)
	require.Equal(t, int64(0), x.Info.Clients)
}

func TestRemoveSubscriptionMissing(t *testing.T) {
	x := newTestIndex(t)

	ok, err := x.RemoveSubscription("a/b", 1)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = x.InsertSubscription("a/b", 1)
	require.NoError(t, err)

	ok, err = x.RemoveSubscription("a/b", 2)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = x.RemoveSubscription("a/#/b", 1)
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestRemoveSubscriptionCascade(t *testing.T) {
	x := newTestIndex(t)

	for _, filter := range []string{"a/b/c/d", "a/b/x", "a/bc"} {
		_, err := x.InsertSubscription(filter, 1)
		require.NoError(t, err)
	}

	_, err := x.RemoveSubscription("a/b/c/d", 1)
	require.NoError(t, err)

	for _, k := range []string{"@/a/b/c/d", "@/a/b/c"} {
		ok, err := x.topics.Exists([]byte(k))
		require.NoError(t, err)
		require.False(t, ok, k)
	}

	ok, err := x.topics.Exists([]byte("@/a/b"))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = x.RemoveSubscription("a/b/x", 1)
	require.NoError(t, err)

	// a/bc extends the level a/b but is not below it.
	require.Equal(t, []string{
		"@",
		"@/a",
		"@/a/bc",
		"@/a/bc\xfe",
		"@/a/bc\xfe\x01\x81",
	}, treeKeys(t, x.topics))
}

func TestRemoveSubscriptionSharedPrefixNames(t *testing.T) {
	x := newTestIndex(t)

	for _, filter := range []string{SharePrefix + "/a/x", SharePrefix + "/ab/x", "x"} {
		_, err := x.InsertSubscription(filter, 1)
		require.NoError(t, err)
	}

	_, err := x.RemoveSubscription(SharePrefix+"/a/x", 1)
	require.NoError(t, err)

	require.Equal(t, []string{
		"@",
		"@/x",
		"@/x\xfe",
		"@/x\xfe\x01\x81",
		"@/x\xff",
		"@/x\xffab",
		"@/x\xffab\xfe",
		"@/x\xffab\xfe\x01\x81",
	}, treeKeys(t, x.topics))

	_, err = x.RemoveSubscription(SharePrefix+"/ab/x", 1)
	require.NoError(t, err)

	require.Equal(t, []string{
		"@",
		"@/x",
		"@/x\xfe",
		"@/x\xfe\x01\x81",
	}, treeKeys(t, x.topics))
}

func TestClientSubscriptions(t *testing.T) {
	x := newTestIndex(t)

	for _, filter := range []string{"b", "a/#", SharePrefix + "/g/c"} {
		_, err := x.InsertSubscription(filter, 5)
		require.NoError(t, err)
	}

	_, err := x.InsertSubscription("z", 6)
	require.NoError(t, err)

	filters, err := x.ClientSubscriptions(5)
	require.NoError(t, err)
	require.Equal(t, []string{SharePrefix + "/g/c", "a/#", "b"}, filters)

	filters, err = x.ClientSubscriptions(7)
	require.NoError(t, err)
	require.Empty(t, filters)
}

func TestRemoveClientSubscriptions(t *testing.T) {
	x := newTestIndex(t)

	for _, filter := range []string{"a/b", "a/#", SharePrefix + "/g/a/b"} {
		for _, client := range []uint64{1, 2} {
			_, err := x.InsertSubscription(filter, client)
			require.NoError(t, err)
		}
	}

	require.NoError(t, x.RemoveClientSubscriptions(1))

	subs, err := x.Subscribers("a/b")
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, subs.All())

	filters, err := x.ClientSubscriptions(1)
	require.NoError(t, err)
	require.Empty(t, filters)

	require.Equal(t, int64(2), x.Info.Subscriptions)
	require.Equal(t, int64(1), x.Info.SharedSubscriptions)
	require.Equal(t, int64(1), x.Info.Clients)

	require.NoError(t, x.RemoveClientSubscriptions(2))
	topics, clients := treeLen(t, x)
	require.Equal(t, 0, topics)
	require.Equal(t, 0, clients)

	// removing a client without subscriptions is a no-op.
	require.NoError(t, x.RemoveClientSubscriptions(3))
}

func TestRemoveClientData(t *testing.T) {
	x := newTestIndex(t)

	_, err := x.InsertSubscription("a/b", 1)
	require.NoError(t, err)
	require.NoError(t, x.UpsertAlias(1, Inbound, "a/b", 1))
	require.NoError(t, x.UpsertAlias(1, Outbound, "c/d", 2))

	_, err = x.InsertSubscription("a/b", 2)
	require.NoError(t, err)
	require.NoError(t, x.UpsertAlias(2, Outbound, "c/d", 2))

	require.NoError(t, x.RemoveClientData(1))

	_, err = x.TopicByAlias(1, Outbound, 2)
	require.ErrorIs(t, err, ErrNotFound)

	topic, err := x.TopicByAlias(2, Outbound, 2)
	require.NoError(t, err)
	require.Equal(t, "c/d", topic)

	subs, err := x.Subscribers("a/b")
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, subs.All())

	require.Equal(t, int64(1), x.Info.Clients)
	require.Equal(t, int64(1), x.Info.TopicAliases)
	require.Equal(t, int64(1), x.Info.Subscriptions)

	require.NoError(t, x.RemoveClientData(2))
	topics, clients := treeLen(t, x)
	require.Equal(t, 0, topics)
	require.Equal(t, 0, clients)
	require.Equal(t, int64(0), x.Info.Clients)
}

func TestSubscriptionsNarrowClientWidth(t *testing.T) {
	x, err := New(&Options{Logger: logger, ClientIDWidth: 1, Seed: 1})
	require.NoError(t, err)
	defer x.Close()

	for _, id := range []uint64{0, 1, 2, 300, 1 << 20} {
		_, err := x.InsertSubscription("a/+", id)
		require.NoError(t, err)
	}

	subs, err := x.Subscribers("a/b")
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2, 300, 1 << 20}, subs.All())

	for _, id := range []uint64{0, 1, 2, 300, 1 << 20} {
		ok, err := x.RemoveSubscription("a/+", id)
		require.NoError(t, err)
		require.True(t, ok)
	}

	topics, clients := treeLen(t, x)
	require.Equal(t, 0, topics)
	require.Equal(t, 0, clients)
}

func BenchmarkInsertSubscription(b *testing.B) {
	x, err := New(&Options{Logger: logger, Seed: 1})
	require.NoError(b, err)

	for n := 0; n < b.N; n++ {
		_, _ = x.InsertSubscription("a/b/c/d", uint64(n))
	}
}
