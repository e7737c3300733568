// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019-2022 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// Package dht describes the consumed interface of spec §6's underlying
// Kademlia-style DHT overlay ("out of scope... specified only where the
// core consumes them") and provides an in-memory table good enough to
// drive the announce and group-chat modules in tests and single-process
// deployments, without attempting a real iterative lookup or bootstrap.
package dht

import (
	"sort"
	"sync"

	"github.com/halvard/meshchat/util"
)

// Lookup is the interface the announce and group-chat modules consume,
// grounded on spec §6's "DHT: get_close_nodes(key, n, want_good,
// want_announced) -> Node[] and id_closest(key, a, b) -> {a closer, b
// closer, tie}".
type Lookup interface {
	// GetCloseNodes returns up to n known peer addresses closest to key.
	// wantGood/wantAnnounced are accepted for interface fidelity with the
	// source but are not meaningfully distinguishable without a real
	// overlay, and are ignored by the in-memory Table.
	GetCloseNodes(key *util.PeerAddress, n int, wantGood, wantAnnounced bool) []*util.PeerAddress

	// IDClosest reports which of a, b lies closer to key ("a", "b", or
	// "tie" when equidistant).
	IDClosest(key, a, b *util.PeerAddress) Closest

	// ResolveAddr returns the transport address last known for a peer
	// address, if any. The wire "Node" of spec §6 bundles key and
	// address together; this overlay keeps them in separate lookups
	// since GetCloseNodes ranks by key alone.
	ResolveAddr(p *util.PeerAddress) (util.IPPort, bool)
}

// Closest is the three-way result of IDClosest.
type Closest int

const (
	ClosestA Closest = iota
	ClosestB
	ClosestTie
)

// Table is an in-memory stand-in for the underlying DHT overlay: a flat
// set of known peer addresses with XOR-distance ranking, adapted from
// RoutingTable/Bucket in the teacher's service/dht/routingtable.go but
// collapsed to a single bucket since bootstrapping and k-bucket capacity
// management belong to the overlay this package deliberately does not
// implement.
type Table struct {
	mu    sync.RWMutex
	self  *util.PeerAddress
	seen  map[util.PeerAddress]bool
	addrs map[util.PeerAddress]util.IPPort
}

// NewTable creates an empty table rooted at self.
func NewTable(self *util.PeerAddress) *Table {
	return &Table{
		self:  self,
		seen:  make(map[util.PeerAddress]bool),
		addrs: make(map[util.PeerAddress]util.IPPort),
	}
}

// Add records a peer address, and the transport address it was last seen
// at, as known to the overlay.
func (t *Table) Add(p *util.PeerAddress, ipPort util.IPPort) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[*p] = true
	t.addrs[*p] = ipPort
}

// Remove drops a peer address from the table.
func (t *Table) Remove(p *util.PeerAddress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, *p)
	delete(t.addrs, *p)
}

// ResolveAddr implements Lookup.
func (t *Table) ResolveAddr(p *util.PeerAddress) (util.IPPort, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ipPort, ok := t.addrs[*p]
	return ipPort, ok
}

// GetCloseNodes implements Lookup by sorting all known addresses by
// XOR distance to key and returning the closest n.
func (t *Table) GetCloseNodes(key *util.PeerAddress, n int, wantGood, wantAnnounced bool) []*util.PeerAddress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	all := make([]*util.PeerAddress, 0, len(t.seen))
	for addr := range t.seen {
		a := addr
		all = append(all, &a)
	}
	sort.Slice(all, func(i, j int) bool {
		return util.Closer(key, all[i], all[j])
	})
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// IDClosest implements Lookup.
func (t *Table) IDClosest(key, a, b *util.PeerAddress) Closest {
	da := key.Distance(a)
	db := key.Distance(b)
	switch da.Cmp(db) {
	case -1:
		return ClosestA
	case 1:
		return ClosestB
	default:
		return ClosestTie
	}
}
