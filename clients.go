// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package radix

import (
	"sync"

	"github.com/rs/xid"
)

// Clients maps the string identifiers of MQTT clients to the numeric ids used by
// the index. Unlike the index, it is safe for concurrent use.
type Clients struct {
	sync.RWMutex
	internal map[string]uint64 // numeric ids keyed on client identifier
	reverse  map[uint64]string // client identifiers keyed on numeric id
	next     uint64            // the next numeric id to hand out
}

// NewClients returns an instance of Clients. Numeric ids start at 1.
func NewClients() *Clients {
	return &Clients{
		internal: make(map[string]uint64),
		reverse:  make(map[uint64]string),
		next:     1,
	}
}

// Register returns the numeric id of a client identifier, allocating one if the
// identifier is new. If no identifier is provided, a new one is generated, as the
// broker does for clients which connect without one.
func (cl *Clients) Register(identifier string) (string, uint64) {
	if identifier == "" {
		identifier = xid.New().String()
	}

	cl.Lock()
	defer cl.Unlock()
	if id, ok := cl.internal[identifier]; ok {
		return identifier, id
	}

	id := cl.next
	cl.next++
	cl.internal[identifier] = id
	cl.reverse[id] = identifier
	return identifier, id
}

// Get returns the numeric id of a client identifier if it exists.
func (cl *Clients) Get(identifier string) (uint64, bool) {
	cl.RLock()
	id, ok := cl.internal[identifier]
	cl.RUnlock()
	return id, ok
}

// Identifier returns the client identifier of a numeric id if it exists.
func (cl *Clients) Identifier(id uint64) (string, bool) {
	cl.RLock()
	identifier, ok := cl.reverse[id]
	cl.RUnlock()
	return identifier, ok
}

// Len returns the number of registered clients.
func (cl *Clients) Len() int {
	cl.RLock()
	val := len(cl.internal)
	cl.RUnlock()
	return val
}

// Delete removes a client identifier. Its numeric id is not reused.
func (cl *Clients) Delete(identifier string) {
	cl.Lock()
	if id, ok := cl.internal[identifier]; ok {
		delete(cl.reverse, id)
		delete(cl.internal, identifier)
	}
	cl.Unlock()
}
