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
	"context"
	"net"
	"testing"

	"github.com/halvard/meshchat/core"
	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/dht"
	"github.com/halvard/meshchat/transport"
	"github.com/halvard/meshchat/util"
	"github.com/halvard/meshchat/wire"
)

// capturingTransport records every packet handed to Send instead of
// putting it on a wire, so a test can feed it straight to the peer
// service's handle() without a real socket or scheduler.
type capturingTransport struct {
	sent []capturedPacket
	addr *net.UDPAddr
}

type capturedPacket struct {
	to   *net.UDPAddr
	data []byte
}

func newCapturingTransport(ip string, port int) *capturingTransport {
	return &capturingTransport{addr: &net.UDPAddr{IP: net.ParseIP(ip), Port: port}}
}

func (c *capturingTransport) Recv() <-chan transport.Datagram { return nil }

func (c *capturingTransport) Send(_ context.Context, to *net.UDPAddr, payload []byte) error {
	c.sent = append(c.sent, capturedPacket{to: to, data: append([]byte(nil), payload...)})
	return nil
}

func (c *capturingTransport) LocalAddr() net.Addr { return c.addr }

func (c *capturingTransport) last() capturedPacket {
	return c.sent[len(c.sent)-1]
}

func newEvent(typ wire.PacketType, from *net.UDPAddr, payload []byte) *core.Event {
	return &core.Event{ID: core.EvMessage, From: from, Type: typ, Payload: payload}
}

// TestAnnounceLookupRoundTrip is scenario S3: a host announces a chat to a
// terminal node (no further DHT candidates to forward to), then a
// requester's GET_NODES reaches the same terminal node and its SEND_NODES
// reply resolves the requester's pending lookup with the host's address.
func TestAnnounceLookupRoundTrip(t *testing.T) {
	chat := mustIdentity(t)
	host := mustIdentity(t)
	hostAddr := util.NewIPPort(net.ParseIP("10.1.1.1"), 9001)

	terminal := mustIdentity(t)
	terminalAddr := &net.UDPAddr{IP: net.ParseIP("10.1.1.2"), Port: 9002}
	terminalTrans := newCapturingTransport("10.1.1.2", 9002)
	terminalLookup := dht.NewTable(util.NewPeerAddress(terminal.Public.Enc.Bytes()))
	terminalSvc := NewService(terminal, util.NewIPPort(terminalAddr.IP, uint16(terminalAddr.Port)), terminalLookup, terminalTrans)

	// Host seals and sends an ANNOUNCE directly to the terminal node's
	// ENC key (as if the DHT had already converged there), and we deliver
	// it straight into the terminal service's handler.
	announcePayload := (&AnnouncePayload{
		ChatID:    chat.Public,
		SelfNode:  wire.Node{Addr: hostAddr, EPK: host.Public},
		Timestamp: util.AbsoluteTimeNow(),
	}).Encode(host.SigSK)
	env := sealFor(t, wire.GcaAnnounce, nil, announcePayload, host, terminal.Public.Enc)
	buf, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode announce envelope: %v", err)
	}
	terminalSvc.handle(newEvent(wire.GcaAnnounce, terminalAddr, buf))

	stored := terminalSvc.Table().Lookup(chat.Public, 4)
	if len(stored) != 1 || !stored[0].NodeEPK.Equals(host.Public) {
		t.Fatalf("terminal node did not store the announcement: %+v", stored)
	}

	// A requester now asks the terminal node for hosts of the chat, using
	// a fresh ephemeral identity per §4.3.4.
	requester := mustIdentity(t)
	requesterTrans := newCapturingTransport("10.1.1.3", 9003)
	requesterLookup := dht.NewTable(util.NewPeerAddress(requester.Public.Enc.Bytes()))
	requesterLookup.Add(util.NewPeerAddress(terminal.Public.Enc.Bytes()), util.NewIPPort(terminalAddr.IP, uint16(terminalAddr.Port)))
	requesterSvc := NewService(requester, util.NewIPPort(net.ParseIP("10.1.1.3"), 9003), requesterLookup, requesterTrans)

	req, err := requesterSvc.SendGetNodesRequest(chat.Public)
	if err != nil {
		t.Fatalf("SendGetNodesRequest: %v", err)
	}
	if len(requesterTrans.sent) != 1 {
		t.Fatalf("expected exactly one GET_NODES packet sent, got %d", len(requesterTrans.sent))
	}
	getNodesPkt := requesterTrans.last()

	// Deliver the GET_NODES packet to the terminal node.
	terminalSvc.handle(newEvent(wire.GcaGetNodes, &net.UDPAddr{IP: net.ParseIP("10.1.1.3"), Port: 9003}, getNodesPkt.data))
	if len(terminalTrans.sent) != 1 {
		t.Fatalf("expected terminal node to reply with exactly one SEND_NODES packet, got %d", len(terminalTrans.sent))
	}
	sendNodesPkt := terminalTrans.last()

	// Deliver the SEND_NODES reply back to the requester.
	requesterSvc.handle(newEvent(wire.GcaSendNodes, terminalAddr, sendNodesPkt.data))

	epks, addrs := requesterSvc.RequestedNodes(chat.Public)
	if len(epks) != 1 || !epks[0].Equals(host.Public) {
		t.Fatalf("requester did not learn the host's identity: %+v", epks)
	}
	if len(addrs) != 1 || addrs[0].Port != hostAddr.Port {
		t.Fatalf("requester did not learn the host's address: %+v", addrs)
	}
	if !req.ChatID.Equals(chat.Public) {
		t.Fatal("self-request entry chat id mismatch")
	}
}

// TestPingRequestResponseRoundTrip covers the liveness half of scenario S4
// (expiry is covered by TestSweepPingsDueEntriesAndExpiresStaleOnes):
// a pinger sends a PING_REQUEST to a live node, which answers with
// PING_RESPONSE, and the pinger's table clears the outstanding ping_id.
func TestPingRequestResponseRoundTrip(t *testing.T) {
	chat := mustIdentity(t)
	pinger := mustIdentity(t)
	pingerAddr := &net.UDPAddr{IP: net.ParseIP("10.2.1.1"), Port: 9101}
	pingerTrans := newCapturingTransport("10.2.1.1", 9101)
	pingerSvc := NewService(pinger, util.NewIPPort(pingerAddr.IP, uint16(pingerAddr.Port)), dht.NewTable(util.NewPeerAddress(pinger.Public.Enc.Bytes())), pingerTrans)

	node := mustIdentity(t)
	nodeAddr := &net.UDPAddr{IP: net.ParseIP("10.2.1.2"), Port: 9102}
	nodeTrans := newCapturingTransport("10.2.1.2", 9102)
	nodeSvc := NewService(node, util.NewIPPort(nodeAddr.IP, uint16(nodeAddr.Port)), dht.NewTable(util.NewPeerAddress(node.Public.Enc.Bytes())), nodeTrans)

	pingerSvc.Table().Insert(chat.Public, node.Public, util.NewIPPort(nodeAddr.IP, uint16(nodeAddr.Port)))
	due := pingerSvc.Table().Sweep(0, 190)
	if len(due) != 1 {
		t.Fatalf("expected the freshly-inserted node to be immediately due, got %d", len(due))
	}
	pingerSvc.sendPingRequest(due[0])
	if len(pingerTrans.sent) != 1 {
		t.Fatalf("expected one PING_REQUEST sent, got %d", len(pingerTrans.sent))
	}

	nodeSvc.handle(newEvent(wire.GcaPingRequest, pingerAddr, pingerTrans.last().data))
	if len(nodeTrans.sent) != 1 {
		t.Fatalf("expected the pinged node to answer with PING_RESPONSE, got %d packets", len(nodeTrans.sent))
	}

	pingerSvc.handle(newEvent(wire.GcaPingResponse, nodeAddr, nodeTrans.last().data))
	remaining := pingerSvc.Table().Lookup(chat.Public, 1)
	if len(remaining) != 1 || remaining[0].PingID != 0 {
		t.Fatal("PING_RESPONSE did not clear the outstanding ping_id")
	}
}

func sealFor(t *testing.T, typ wire.PacketType, extra, payload []byte, sender *crypto.Identity, recipientEnc *crypto.EncPublicKey) *wire.Envelope {
	t.Helper()
	nonce, err := crypto.NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	ct := crypto.Seal(payload, nonce, recipientEnc, sender.EncSK)
	return &wire.Envelope{Type: typ, SenderPK: sender.Public.Enc, Extra: extra, Nonce: nonce, Body: ct}
}
