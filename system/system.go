// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-co
// SPDX-FileContributor: mochi-co

// Package system contains the statistics of a subscription index.
package system

import (
	"runtime"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes the names of all registered metrics.
const Namespace = "radix"

// Info contains atomic counters and values describing the contents and use of
// the index.
type Info struct {
	Version             string `json:"version"`              // the current version of the index
	Started             int64  `json:"started"`              // the time the index was opened in unix seconds
	Subscriptions       int64  `json:"subscriptions"`        // number of regular subscriptions in the topic tree
	SharedSubscriptions int64  `json:"shared_subscriptions"` // number of shared subscriptions in the topic tree
	Clients             int64  `json:"clients"`              // number of clients with data in the client tree
	TopicAliases        int64  `json:"topic_aliases"`        // number of alias pairs in the client tree, in both directions
	Matches             int64  `json:"matches"`              // total number of topics matched against the topic tree
	SharedSelected      int64  `json:"shared_selected"`      // total number of share group members picked for a match
}

// Clone makes a copy of Info using atomic operation
func (i *Info) Clone() *Info {
	return &Info{
		Version:             i.Version,
		Started:             atomic.LoadInt64(&i.Started),
		Subscriptions:       atomic.LoadInt64(&i.Subscriptions),
		SharedSubscriptions: atomic.LoadInt64(&i.SharedSubscriptions),
		Clients:             atomic.LoadInt64(&i.Clients),
		TopicAliases:        atomic.LoadInt64(&i.TopicAliases),
		Matches:             atomic.LoadInt64(&i.Matches),
		SharedSelected:      atomic.LoadInt64(&i.SharedSelected),
	}
}

// AddSubscription adds n to the regular or shared subscription count.
func (i *Info) AddSubscription(shared bool, n int64) {
	if shared {
		atomic.AddInt64(&i.SharedSubscriptions, n)
		return
	}
	atomic.AddInt64(&i.Subscriptions, n)
}

// AddClients adds n to the client count.
func (i *Info) AddClients(n int64) {
	atomic.AddInt64(&i.Clients, n)
}

// AddTopicAliases adds n to the topic alias count.
func (i *Info) AddTopicAliases(n int64) {
	atomic.AddInt64(&i.TopicAliases, n)
}

// AddMatch counts a matched topic and the share group members picked for it.
func (i *Info) AddMatch(selected int) {
	atomic.AddInt64(&i.Matches, 1)
	atomic.AddInt64(&i.SharedSelected, int64(selected))
}

// RegisterPrometheusMetrics exposes the counters to a prometheus registry, or to
// the default registry if registry is nil.
func (i *Info) RegisterPrometheusMetrics(registry prometheus.Registerer) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	type metrics struct {
		metricType string
		name       string
		help       string
		value      *int64
	}

	metricsList := []metrics{
		{"g", "subscriptions", "A gauge of the number of regular subscriptions", &i.Subscriptions},
		{"g", "shared_subscriptions", "A gauge of the number of shared subscriptions", &i.SharedSubscriptions},
		{"g", "clients", "A gauge of the number of clients with subscriptions or topic aliases", &i.Clients},
		{"g", "topic_aliases", "A gauge of the number of topic alias pairs", &i.TopicAliases},
		{"c", "matches", "A counter of topics matched against the topic tree", &i.Matches},
		{"c", "shared_selected", "A counter of share group members picked for matched topics", &i.SharedSelected},
	}

	for _, m := range metricsList {
		m := m
		fn := func() float64 {
			return float64(atomic.LoadInt64(m.value))
		}

		switch m.metricType {
		case "c":
			registry.MustRegister(
				prometheus.NewCounterFunc(
					prometheus.CounterOpts{
						Namespace: Namespace,
						Name:      m.name,
						Help:      m.help,
					},
					fn,
				),
			)
		case "g":
			registry.MustRegister(
				prometheus.NewGaugeFunc(
					prometheus.GaugeOpts{
						Namespace: Namespace,
						Name:      m.name,
						Help:      m.help,
					},
					fn,
				),
			)
		}
	}

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "build_info",
			Help:      "Build Information",
		},
		[]string{"goversion", "version"},
	)
	registry.MustRegister(buildInfo)
	buildInfo.With(prometheus.Labels{"goversion": runtime.Version(), "version": i.Version}).Set(1)
}
