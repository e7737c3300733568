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

// Package announce implements the group-announce service of §4.3: an
// announcement table (chat id -> hosting node), a self-request table for
// outstanding lookups, converging-forward dispatch over the DHT, and the
// liveness pinger that expires stale entries.
package announce

import (
	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/errs"
	"github.com/halvard/meshchat/util"
)

// Tunables named after the source's GCA_* constants (spec §4.3, §9).
const (
	// AnnouncementCapacity bounds the announcement table (§4.3.3).
	AnnouncementCapacity = 30

	// MaxGcaSentNodes bounds how many nodes a SEND_NODES reply carries
	// and how many the DHT is asked for per forwarding step (§4.3.2).
	MaxGcaSentNodes = 4

	// SelfRequestCapacity bounds the self-request table (§4.3.4).
	SelfRequestCapacity = 16
)

// PingInterval and NodesExpiration are GCA_PING_INTERVAL and
// GCA_NODES_EXPIRATION (§4.3.3). Vars rather than consts so a deployment
// can override them from AnnounceConfig at startup.
var (
	PingInterval    int64 = 60  // seconds
	NodesExpiration int64 = 190 // seconds
)

// Announcement is one entry of the announcement table: "peer EPK hosts
// chat_id at ip_port".
type Announcement struct {
	ChatID      *crypto.EPK
	NodeEPK     *crypto.EPK
	IPPort       util.IPPort
	TimeAdded    util.AbsoluteTime
	LastSentPing util.AbsoluteTime
	LastRcvdPing util.AbsoluteTime
	PingID       uint64 // outstanding PING_REQUEST id; 0 once answered
}

func (a *Announcement) matches(chatID, nodeEPK *crypto.EPK) bool {
	return a.ChatID.Equals(chatID) && a.NodeEPK.Equals(nodeEPK)
}

// Table is the fixed-capacity announcement table of §4.3.3.
type Table struct {
	slots []*Announcement // nil entries are free slots
	cache Cache           // optional mirrored backend (e.g. Redis)
}

// NewTable creates an empty table at full capacity.
func NewTable() *Table {
	return &Table{slots: make([]*Announcement, AnnouncementCapacity)}
}

// SetCache installs an optional mirrored backend; every successful insert
// and every eviction is replayed to it. Passing nil disables mirroring.
func (t *Table) SetCache(c Cache) {
	t.cache = c
}

// Insert records that nodeEPK hosts chatID at ipPort, following the
// insert policy of §4.3.3: refresh an existing (chat_id, node_epk) entry
// in place; otherwise fill a free slot; otherwise evict the slot with the
// greatest time_added — preserved exactly as the source does it, per the
// documented Open Question, even though the conventional reading would
// evict the *oldest* entry instead.
func (t *Table) Insert(chatID, nodeEPK *crypto.EPK, ipPort util.IPPort) {
	now := util.AbsoluteTimeNow()
	for _, a := range t.slots {
		if a != nil && a.matches(chatID, nodeEPK) {
			a.IPPort = ipPort
			a.TimeAdded = now
			a.LastSentPing = now
			a.LastRcvdPing = now
			t.mirror(a)
			return
		}
	}
	entry := &Announcement{
		ChatID:       chatID,
		NodeEPK:      nodeEPK,
		IPPort:       ipPort,
		TimeAdded:    now,
		LastSentPing: now,
		LastRcvdPing: now,
	}
	for i, a := range t.slots {
		if a == nil {
			t.slots[i] = entry
			t.mirror(entry)
			return
		}
	}
	// table full: evict the slot with the greatest time_added.
	evict := 0
	for i, a := range t.slots {
		if a.TimeAdded.Val > t.slots[evict].TimeAdded.Val {
			evict = i
		}
	}
	t.evict(evict)
	t.slots[evict] = entry
	t.mirror(entry)
}

// Lookup returns up to n announcements for chatID, closest-first by XOR
// distance to chatID's ENC key (mirrors the DHT's own closeness metric so
// SEND_NODES prefers the same ordering a fresh DHT query would).
func (t *Table) Lookup(chatID *crypto.EPK, n int) []*Announcement {
	key := util.NewPeerAddress(chatID.Enc.Bytes())
	var matches []*Announcement
	for _, a := range t.slots {
		if a != nil && a.ChatID.Equals(chatID) {
			matches = append(matches, a)
		}
	}
	for i := 1; i < len(matches); i++ {
		j := i
		for j > 0 {
			ai := util.NewPeerAddress(matches[j].NodeEPK.Enc.Bytes())
			aj := util.NewPeerAddress(matches[j-1].NodeEPK.Enc.Bytes())
			if util.Closer(key, ai, aj) {
				matches[j], matches[j-1] = matches[j-1], matches[j]
				j--
				continue
			}
			break
		}
	}
	if n < len(matches) {
		matches = matches[:n]
	}
	return matches
}

// HandlePingResponse matches an incoming PING_RESPONSE's ping_id against
// the announcement for the replying node's ENC key (a PING_RESPONSE only
// carries the sender's bare ENC key, not a full EPK), refreshes
// last_rcvd_ping on a match, and zeroes the outstanding ping_id so a late
// duplicate response cannot replay to refresh liveness a second time
// (original_source/toxcore group_announce.c's handle_gca_ping_response).
func (t *Table) HandlePingResponse(nodeEnc *crypto.EncPublicKey, pingID uint64) {
	for _, a := range t.slots {
		if a != nil && a.NodeEPK.Enc.Equals(nodeEnc) && a.PingID != 0 && a.PingID == pingID {
			a.LastRcvdPing = util.AbsoluteTimeNow()
			a.PingID = 0
			return
		}
	}
}

// Sweep runs the liveness sweep of §4.3.5: sending pings is the caller's
// job (it needs transport access this package keeps out of Table), but
// Sweep assigns a fresh ping_id and returns the entries due for a ping,
// and zeroes entries that have gone silent past NodesExpiration.
func (t *Table) Sweep(pingAge, expireAge int64) (duePing []*Announcement) {
	now := util.AbsoluteTimeNow()
	for i, a := range t.slots {
		if a == nil {
			continue
		}
		if int64(now.Val-a.LastRcvdPing.Val) > expireAge {
			t.evict(i)
			t.slots[i] = nil
			continue
		}
		if int64(now.Val-a.LastSentPing.Val) >= pingAge {
			a.LastSentPing = now
			a.PingID = util.RndUInt64()
			duePing = append(duePing, a)
		}
	}
	return
}

// Len reports the number of occupied slots.
func (t *Table) Len() int {
	n := 0
	for _, a := range t.slots {
		if a != nil {
			n++
		}
	}
	return n
}

// Snapshot returns every occupied slot, for the introspection endpoint.
// The returned slice is a fresh copy of the slot list, but its elements
// are the table's own entries: a later Insert that refreshes an entry in
// place is visible through the snapshot.
func (t *Table) Snapshot() []*Announcement {
	out := make([]*Announcement, 0, len(t.slots))
	for _, a := range t.slots {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (t *Table) evict(i int) {
	if t.cache != nil && t.slots[i] != nil {
		t.cache.Delete(t.slots[i].ChatID, t.slots[i].NodeEPK)
	}
}

func (t *Table) mirror(a *Announcement) {
	if t.cache != nil {
		t.cache.Put(a)
	}
}

//----------------------------------------------------------------------
// Self-request table (§4.3.4)
//----------------------------------------------------------------------

// SelfRequest is a pending GET_NODES lookup initiated locally.
type SelfRequest struct {
	ChatID  *crypto.EPK
	ReqID   uint64
	EphPub  *crypto.EncPublicKey
	EphPrv  *crypto.EncPrivateKey
	Nodes   []*crypto.EPK
	Addrs   []util.IPPort
	Ready   bool
	Created util.AbsoluteTime
}

// SelfRequestTable is the fixed-capacity table of §4.3.4.
type SelfRequestTable struct {
	entries []*SelfRequest
}

// NewSelfRequestTable creates an empty table at full capacity.
func NewSelfRequestTable() *SelfRequestTable {
	return &SelfRequestTable{entries: make([]*SelfRequest, SelfRequestCapacity)}
}

// Alloc reserves a self-request entry for chatID with a fresh random
// req_id and a fresh ephemeral ENC keypair, per §4.3.4.
func (s *SelfRequestTable) Alloc(chatID *crypto.EPK) (*SelfRequest, error) {
	pub, prv, err := crypto.NewEncKeypair()
	if err != nil {
		return nil, err
	}
	entry := &SelfRequest{
		ChatID:  chatID,
		ReqID:   util.RndUInt64(),
		EphPub:  pub,
		EphPrv:  prv,
		Created: util.AbsoluteTimeNow(),
	}
	for i, e := range s.entries {
		if e == nil {
			s.entries[i] = entry
			return entry, nil
		}
	}
	return nil, errs.ErrTableFull
}

// ByReqID finds the pending request matching a SEND_NODES reply.
func (s *SelfRequestTable) ByReqID(reqID uint64) *SelfRequest {
	for _, e := range s.entries {
		if e != nil && e.ReqID == reqID {
			return e
		}
	}
	return nil
}

// Resolve appends discovered nodes to the entry matching reqID and marks
// it ready.
func (s *SelfRequestTable) Resolve(reqID uint64, nodes []*crypto.EPK, addrs []util.IPPort) {
	e := s.ByReqID(reqID)
	if e == nil {
		return
	}
	e.Nodes = append(e.Nodes, nodes...)
	e.Addrs = append(e.Addrs, addrs...)
	if len(e.Nodes) > 0 {
		e.Ready = true
	}
}

// RequestedNodes implements gca_get_requested_nodes(chat_id): up to
// MaxGcaSentNodes currently known hosts for chatID.
func (s *SelfRequestTable) RequestedNodes(chatID *crypto.EPK) ([]*crypto.EPK, []util.IPPort) {
	for _, e := range s.entries {
		if e != nil && e.Ready && e.ChatID.Equals(chatID) {
			n := len(e.Nodes)
			if n > MaxGcaSentNodes {
				n = MaxGcaSentNodes
			}
			return e.Nodes[:n], e.Addrs[:n]
		}
	}
	return nil, nil
}

// Snapshot returns every pending self-request, for the introspection
// endpoint.
func (s *SelfRequestTable) Snapshot() []*SelfRequest {
	out := make([]*SelfRequest, 0, len(s.entries))
	for _, e := range s.entries {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Cleanup implements gca_cleanup(chat_id): zero every entry for chatID.
func (s *SelfRequestTable) Cleanup(chatID *crypto.EPK) {
	for i, e := range s.entries {
		if e != nil && e.ChatID.Equals(chatID) {
			s.entries[i] = nil
		}
	}
}
