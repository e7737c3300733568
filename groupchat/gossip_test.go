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
	"bytes"
	"testing"

	"github.com/halvard/meshchat/cert"
	"github.com/halvard/meshchat/errs"
	"github.com/halvard/meshchat/util"
	"github.com/halvard/meshchat/wire"
)

func TestGossipHeaderRoundTrip(t *testing.T) {
	want := GossipHeader{Type: wire.Status, Timestamp: util.AbsoluteTime{Val: 12345}}
	buf := new(bytes.Buffer)
	want.encode(buf)
	got, rest, err := decodeHeader(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("unexpected tail: %d bytes", len(rest))
	}
	if got != want {
		t.Fatalf("decodeHeader = %+v, want %+v", got, want)
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	if _, _, err := decodeHeader([]byte{1, 2, 3}); err != errs.ErrMalformedPacket {
		t.Fatalf("decodeHeader on truncated input = %v, want ErrMalformedPacket", err)
	}
}

func TestEncodeChangeNickRoundTrip(t *testing.T) {
	ts := util.AbsoluteTime{Val: 42}
	payload := EncodeChangeNick(ts, "alice")
	h, rest, err := decodeHeader(payload)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if h.Type != wire.ChangeNick || h.Timestamp != ts {
		t.Fatalf("header = %+v, want type ChangeNick, ts %v", h, ts)
	}
	nick, _, err := readString(rest)
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if nick != "alice" {
		t.Fatalf("nick = %q, want %q", nick, "alice")
	}
}

func TestDedupWindowRecordAndCapacity(t *testing.T) {
	d := NewDedupWindow()
	key := DedupEntry{Timestamp: 1}
	if d.SeenRecently(key) {
		t.Fatal("an unrecorded key must not be seen recently")
	}
	d.Record(key)
	if !d.SeenRecently(key) {
		t.Fatal("a recorded key must be seen recently")
	}

	for i := 0; i < DedupWindowCapacity; i++ {
		d.Record(DedupEntry{Timestamp: uint64(i + 2)})
	}
	if len(d.entries) > DedupWindowCapacity {
		t.Fatalf("len(entries) = %d, exceeds capacity %d", len(d.entries), DedupWindowCapacity)
	}
	if d.SeenRecently(key) {
		t.Fatal("the original key should have been evicted once capacity was exceeded")
	}
}

// TestHandleChangeNickOrdering is scenario S5: two CHANGE_NICK packets
// arrive out of order; the later timestamp must win regardless of
// arrival order.
func TestHandleChangeNickOrdering(t *testing.T) {
	c := mustChat(t)
	sender := mustIdentity(t)
	p := &Peer{EPK: sender.Public}
	if err := c.InsertPeer(p); err != nil {
		t.Fatalf("InsertPeer: %v", err)
	}

	t1 := util.AbsoluteTime{Val: 100}
	t2 := util.AbsoluteTime{Val: 200}
	if err := c.HandleChangeNick(sender.Public.Enc, EncodeChangeNick(t2, "later")); err != nil {
		t.Fatalf("HandleChangeNick(t2): %v", err)
	}
	if err := c.HandleChangeNick(sender.Public.Enc, EncodeChangeNick(t1, "earlier")); err != nil {
		t.Fatalf("HandleChangeNick(t1): %v", err)
	}
	if p.Nick != "later" {
		t.Fatalf("p.Nick = %q, want %q (later timestamp must win)", p.Nick, "later")
	}
}

func TestHandlePingDropsUnknownSender(t *testing.T) {
	c := mustChat(t)
	stranger := mustIdentity(t)
	if err := c.HandlePing(stranger.Public.Enc, EncodePing(util.AbsoluteTimeNow())); err != nil {
		t.Fatalf("HandlePing from unknown sender: %v", err)
	}
	for _, p := range c.Peers {
		if p != nil {
			t.Fatal("an unknown sender must never be installed as a side effect of HandlePing")
		}
	}
}

// TestModerationRankHierarchy is scenario S2: an OP may ban a USER, but
// a USER may never ban anyone, regardless of target.
func TestModerationRankHierarchy(t *testing.T) {
	founder := mustChat(t)
	if _, err := founder.CreateCredentials(); err != nil {
		t.Fatalf("CreateCredentials: %v", err)
	}
	op := mustIdentity(t)
	u1 := mustIdentity(t)
	u2 := mustIdentity(t)
	opPeer := &Peer{EPK: op.Public, Role: RoleOp}
	u1Peer := &Peer{EPK: u1.Public}
	u2Peer := &Peer{EPK: u2.Public}
	for _, p := range []*Peer{opPeer, u1Peer, u2Peer} {
		if err := founder.InsertPeer(p); err != nil {
			t.Fatalf("InsertPeer: %v", err)
		}
	}

	banU1 := cert.MakeCommonCert(op.SigSK, op.Public, u1.Public, cert.Ban)
	if err := founder.ProcessCommonCert(banU1); err != nil {
		t.Fatalf("OP banning USER: %v", err)
	}
	if !u1Peer.Banned {
		t.Fatal("u1 must be banned after a valid OP ban certificate")
	}

	banU2ByU1 := cert.MakeCommonCert(u1.SigSK, u1.Public, u2.Public, cert.Ban)
	if err := founder.ProcessCommonCert(banU2ByU1); err != errs.ErrUnauthorized {
		t.Fatalf("USER banning USER = %v, want ErrUnauthorized", err)
	}
	if u2Peer.Banned {
		t.Fatal("u2 must not be banned by an unauthorized certificate")
	}
}

// TestHandleActionDedupSuppressesRebroadcast exercises the ACTION
// dedup-and-forward path: the first delivery applies the certificate
// and rebroadcasts to the close set; a repeat delivery of the same
// certificate is suppressed.
func TestHandleActionDedupSuppressesRebroadcast(t *testing.T) {
	founder := mustChat(t)
	if _, err := founder.CreateCredentials(); err != nil {
		t.Fatalf("CreateCredentials: %v", err)
	}
	op := mustIdentity(t)
	target := mustIdentity(t)
	opPeer := &Peer{EPK: op.Public, Role: RoleOp}
	targetPeer := &Peer{EPK: target.Public}
	if err := founder.InsertPeer(opPeer); err != nil {
		t.Fatalf("InsertPeer(op): %v", err)
	}
	if err := founder.InsertPeer(targetPeer); err != nil {
		t.Fatalf("InsertPeer(target): %v", err)
	}
	founder.RecomputeCloseSet()

	cc := cert.MakeCommonCert(op.SigSK, op.Public, target.Public, cert.Ban)
	payload := EncodeOpAction(util.AbsoluteTimeNow(), cc)

	sent := 0
	send := func(p *Peer, b []byte) { sent++ }

	if err := founder.HandleAction(op.Public.Enc, payload, send); err != nil {
		t.Fatalf("HandleAction (first delivery): %v", err)
	}
	if !targetPeer.Banned {
		t.Fatal("target must be banned after the first ACTION delivery")
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1 (rebroadcast to every close-set member but the sender)", sent)
	}

	if err := founder.HandleAction(op.Public.Enc, payload, send); err != nil {
		t.Fatalf("HandleAction (repeat delivery): %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d after repeat delivery, want 1 (dedup must suppress the rebroadcast)", sent)
	}
}
