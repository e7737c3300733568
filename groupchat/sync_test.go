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

package groupchat

import (
	"testing"

	"github.com/halvard/meshchat/cert"
	"github.com/halvard/meshchat/util"
)

func TestSyncResponsePayloadRoundTrip(t *testing.T) {
	founder := mustIdentity(t)
	peerID := mustIdentity(t)
	half := cert.MakeInviteHalf(peerID.SigSK, peerID.Public)
	full, err := cert.CompleteInvite(half, founder.SigSK, founder.Public)
	if err != nil {
		t.Fatalf("CompleteInvite: %v", err)
	}

	want := &SyncResponsePayload{
		Topic: "general",
		Peers: []PeerRecord{{
			EPK:        peerID.Public,
			Addr:       someAddr(6000),
			Nick:       "bob",
			Role:       RoleOp,
			Status:     StatusAway,
			InviteCert: full,
		}},
		LastSyncedTime: util.AbsoluteTime{Val: 777},
	}

	got, err := DecodeSyncResponsePayload(want.Encode())
	if err != nil {
		t.Fatalf("DecodeSyncResponsePayload: %v", err)
	}
	if got.Topic != want.Topic {
		t.Fatalf("Topic = %q, want %q", got.Topic, want.Topic)
	}
	if got.LastSyncedTime != want.LastSyncedTime {
		t.Fatalf("LastSyncedTime = %v, want %v", got.LastSyncedTime, want.LastSyncedTime)
	}
	if len(got.Peers) != 1 {
		t.Fatalf("len(Peers) = %d, want 1", len(got.Peers))
	}
	rec := got.Peers[0]
	if !rec.EPK.Equals(peerID.Public) {
		t.Fatal("decoded peer EPK does not match")
	}
	if rec.Nick != "bob" || rec.Role != RoleOp || rec.Status != StatusAway {
		t.Fatalf("decoded record = %+v, want nick=bob role=Op status=Away", rec)
	}
	if !rec.InviteCert.IsComplete() {
		t.Fatal("decoded invite certificate must be complete")
	}
}

func TestDecodeSyncResponsePayloadTruncated(t *testing.T) {
	if _, err := DecodeSyncResponsePayload([]byte{0, 0}); err == nil {
		t.Fatal("decoding a truncated payload must fail")
	}
}

func TestMergeSyncResponseInsertsUnknownPeer(t *testing.T) {
	c := mustChat(t)
	c.HighWatermark = util.AbsoluteTime{Val: 100}

	founder := mustIdentity(t)
	peerID := mustIdentity(t)
	half := cert.MakeInviteHalf(peerID.SigSK, peerID.Public)
	full, err := cert.CompleteInvite(half, founder.SigSK, founder.Public)
	if err != nil {
		t.Fatalf("CompleteInvite: %v", err)
	}

	resp := &SyncResponsePayload{
		Topic: "welcome",
		Peers: []PeerRecord{{
			EPK:        peerID.Public,
			Addr:       someAddr(7000),
			Nick:       "carol",
			InviteCert: full,
		}},
		LastSyncedTime: util.AbsoluteTime{Val: 200},
	}
	if err := c.MergeSyncResponse(resp); err != nil {
		t.Fatalf("MergeSyncResponse: %v", err)
	}
	p := c.FindPeer(peerID.Public)
	if p == nil {
		t.Fatal("unknown peer from a sync response must be inserted")
	}
	if p.Nick != "carol" {
		t.Fatalf("p.Nick = %q, want %q", p.Nick, "carol")
	}
	if c.Topic != "welcome" {
		t.Fatalf("Topic = %q, want %q", c.Topic, "welcome")
	}
	if c.HighWatermark != resp.LastSyncedTime {
		t.Fatalf("HighWatermark = %v, want %v", c.HighWatermark, resp.LastSyncedTime)
	}
}
