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

package announce

import (
	"net"
	"testing"
	"time"

	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/util"
)

// fixedClock lets a test move the table's notion of "now" without sleeping.
func fixedClock(t *testing.T, start time.Time) (advance func(d time.Duration)) {
	t.Helper()
	now := start
	orig := util.Clock
	util.Clock = func() time.Time { return now }
	t.Cleanup(func() { util.Clock = orig })
	return func(d time.Duration) { now = now.Add(d) }
}

func hasNode(table *Table, id *crypto.Identity) bool {
	for _, a := range table.slots {
		if a != nil && a.NodeEPK.Equals(id.Public) {
			return true
		}
	}
	return false
}

func TestInsertFillsThenEvictsGreatestTimeAdded(t *testing.T) {
	advance := fixedClock(t, time.Unix(1_700_000_000, 0))
	table := NewTable()
	chat := mustIdentity(t)

	var nodes []*crypto.Identity
	for i := 0; i < AnnouncementCapacity; i++ {
		id := mustIdentity(t)
		nodes = append(nodes, id)
		table.Insert(chat.Public, id.Public, util.NewIPPort(net.ParseIP("10.0.0.1"), uint16(5000+i)))
		advance(time.Second)
	}
	if table.Len() != AnnouncementCapacity {
		t.Fatalf("Len() = %d, want %d", table.Len(), AnnouncementCapacity)
	}

	// The slot with the greatest time_added is the most recently inserted
	// one (nodes[len-1]); inserting one more node must evict exactly that
	// slot, per the preserved (if counter-intuitive) eviction policy.
	newcomer := mustIdentity(t)
	table.Insert(chat.Public, newcomer.Public, util.NewIPPort(net.ParseIP("10.0.0.2"), 6000))
	if table.Len() != AnnouncementCapacity {
		t.Fatalf("Len() after overflow insert = %d, want %d", table.Len(), AnnouncementCapacity)
	}

	if !hasNode(table, newcomer) {
		t.Fatal("newcomer was not inserted")
	}
	if hasNode(table, nodes[len(nodes)-1]) {
		t.Fatal("slot with the greatest time_added was not evicted")
	}
	if !hasNode(table, nodes[0]) {
		t.Fatal("oldest entry (smallest time_added) should have survived")
	}
}

func TestLookupOrdersByDistanceToChatID(t *testing.T) {
	fixedClock(t, time.Unix(1_700_000_000, 0))
	table := NewTable()
	chat := mustIdentity(t)

	for i := 0; i < 5; i++ {
		id := mustIdentity(t)
		table.Insert(chat.Public, id.Public, util.NewIPPort(net.ParseIP("10.0.1.1"), uint16(7000+i)))
	}

	got := table.Lookup(chat.Public, 3)
	if len(got) != 3 {
		t.Fatalf("Lookup returned %d entries, want 3", len(got))
	}
	key := util.NewPeerAddress(chat.Public.Enc.Bytes())
	for i := 1; i < len(got); i++ {
		prev := util.NewPeerAddress(got[i-1].NodeEPK.Enc.Bytes())
		cur := util.NewPeerAddress(got[i].NodeEPK.Enc.Bytes())
		if util.Closer(key, cur, prev) {
			t.Fatalf("entry %d is closer than entry %d: Lookup is not closest-first", i, i-1)
		}
	}
}

func TestSweepPingsDueEntriesAndExpiresStaleOnes(t *testing.T) {
	advance := fixedClock(t, time.Unix(1_700_000_000, 0))
	table := NewTable()
	chat := mustIdentity(t)
	alive := mustIdentity(t)
	stale := mustIdentity(t)

	table.Insert(chat.Public, alive.Public, util.NewIPPort(net.ParseIP("10.0.2.1"), 8000))
	table.Insert(chat.Public, stale.Public, util.NewIPPort(net.ParseIP("10.0.2.2"), 8001))

	// Not due yet: pingAge hasn't elapsed.
	due := table.Sweep(60, 190)
	if len(due) != 0 {
		t.Fatalf("Sweep before pingAge elapsed returned %d due entries, want 0", len(due))
	}

	advance(61 * time.Second)
	due = table.Sweep(60, 190)
	if len(due) != 2 {
		t.Fatalf("Sweep after pingAge elapsed returned %d due entries, want 2", len(due))
	}
	for _, a := range due {
		if a.PingID == 0 {
			t.Fatal("Sweep must assign a nonzero ping_id to each due entry")
		}
	}

	// alive answers its ping; stale never does and eventually expires.
	var aliveEntry *Announcement
	for _, a := range due {
		if a.NodeEPK.Equals(alive.Public) {
			aliveEntry = a
		}
	}
	if aliveEntry == nil {
		t.Fatal("alive entry missing from due list")
	}
	table.HandlePingResponse(alive.Public.Enc, aliveEntry.PingID)
	if aliveEntry.PingID != 0 {
		t.Fatal("HandlePingResponse must zero the outstanding ping_id")
	}

	// A duplicate/late response must not re-trigger (ping_id already zero).
	table.HandlePingResponse(alive.Public.Enc, aliveEntry.PingID)

	advance(190 * time.Second)
	table.Sweep(60, 190)
	if table.Len() != 1 {
		t.Fatalf("Len() = %d after expiry sweep, want 1 (only the alive entry left)", table.Len())
	}
	remaining := table.Lookup(chat.Public, 10)
	if len(remaining) != 1 || !remaining[0].NodeEPK.Equals(alive.Public) {
		t.Fatal("expected only the alive entry to survive the expiry sweep")
	}
}
