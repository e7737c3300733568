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

	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/util"
	"github.com/halvard/meshchat/wire"
)

func mustIdentity(t *testing.T) *crypto.Identity {
	t.Helper()
	id, err := crypto.NewIdentity()
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	return id
}

func TestAnnouncePayloadRoundTrip(t *testing.T) {
	founder := mustIdentity(t)
	self := mustIdentity(t)
	node := wire.Node{Addr: util.NewIPPort(net.ParseIP("10.0.0.1"), 4000), EPK: self.Public}

	p := &AnnouncePayload{ChatID: founder.Public, SelfNode: node, Timestamp: util.AbsoluteTimeNow()}
	enc := p.Encode(self.SigSK)

	got, err := DecodeAnnouncePayload(enc, false)
	if err != nil {
		t.Fatalf("DecodeAnnouncePayload: %v", err)
	}
	if !got.ChatID.Equals(founder.Public) {
		t.Fatal("chat_id mismatch")
	}
	if !got.SelfNode.EPK.Equals(self.Public) {
		t.Fatal("self_node epk mismatch")
	}

	enc[20] ^= 0xff
	if _, err := DecodeAnnouncePayload(enc, false); err == nil {
		t.Fatal("expected tamper detection")
	}
}

func TestGetNodesPayloadRoundTrip(t *testing.T) {
	chat := mustIdentity(t)
	self := mustIdentity(t)
	node := wire.Node{Addr: util.NewIPPort(net.ParseIP("10.0.0.2"), 4001), EPK: self.Public}

	p := &GetNodesPayload{ChatID: chat.Public, ReqID: 0xdeadbeef, SelfNode: node, Timestamp: util.AbsoluteTimeNow()}
	enc := p.Encode(self.SigSK)

	got, err := DecodeGetNodesPayload(enc, false)
	if err != nil {
		t.Fatalf("DecodeGetNodesPayload: %v", err)
	}
	if got.ReqID != 0xdeadbeef {
		t.Fatalf("req_id = %x, want deadbeef", got.ReqID)
	}
	if !got.ChatID.Equals(chat.Public) {
		t.Fatal("chat_id mismatch")
	}

	enc[len(enc)-1] ^= 0xff
	if _, err := DecodeGetNodesPayload(enc, false); err == nil {
		t.Fatal("expected signature tamper detection")
	}
}

func TestSendNodesPayloadRoundTrip(t *testing.T) {
	a := mustIdentity(t)
	b := mustIdentity(t)
	nodes := []wire.Node{
		{Addr: util.NewIPPort(net.ParseIP("10.0.0.3"), 4002), EPK: a.Public},
		{Addr: util.NewIPPort(net.ParseIP("10.0.0.4"), 4003), EPK: b.Public},
	}
	p := &SendNodesPayload{Nodes: nodes, ReqID: 42}
	enc := p.Encode()

	got, err := DecodeSendNodesPayload(enc, false)
	if err != nil {
		t.Fatalf("DecodeSendNodesPayload: %v", err)
	}
	if got.ReqID != 42 || len(got.Nodes) != 2 {
		t.Fatalf("got %+v", got)
	}
	if !got.Nodes[0].EPK.Equals(a.Public) || !got.Nodes[1].EPK.Equals(b.Public) {
		t.Fatal("node order/content mismatch")
	}
}

func TestPingPayloadRoundTrip(t *testing.T) {
	p := &PingPayload{PingID: 0x0102030405060708}
	enc := p.Encode()
	if len(enc) != 8 {
		t.Fatalf("ping payload length = %d, want 8 (no timestamp)", len(enc))
	}
	got, err := DecodePingPayload(enc)
	if err != nil {
		t.Fatalf("DecodePingPayload: %v", err)
	}
	if got.PingID != p.PingID {
		t.Fatalf("ping_id = %x, want %x", got.PingID, p.PingID)
	}
	if _, err := DecodePingPayload(enc[:4]); err == nil {
		t.Fatal("expected error on truncated ping payload")
	}
}
