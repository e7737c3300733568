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
	"context"
	"net"

	"github.com/bfix/gospel/logger"

	"github.com/halvard/meshchat/announce"
	"github.com/halvard/meshchat/cert"
	"github.com/halvard/meshchat/core"
	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/dht"
	"github.com/halvard/meshchat/diagnostics"
	"github.com/halvard/meshchat/errs"
	"github.com/halvard/meshchat/transport"
	"github.com/halvard/meshchat/util"
	"github.com/halvard/meshchat/wire"
)

// chatExtraLen is the width of the envelope's cleartext Extra field for
// every group-chat packet kind: the recipient's own ENC key for the target
// chat (its per-chat self key, which chatByEPK matches). Sealed
// envelopes are pairwise (sender ENC <-> recipient ENC), but a process
// may belong to several chats at once, so the chat has to be picked
// before the sealed payload can even be opened (mirrors
// announce/service.go's GCA_SEND_NODES req_id / GCA_PING_REQUEST
// recipient-key cleartext routing fields).
const chatExtraLen = crypto.EncKeySize

// Module owns the set of chats a process participates in, dispatches
// incoming group-chat packets to the right Chat, and runs the
// group-chat half of the periodic "do" function (spec §5, §4.2.6).
type Module struct {
	selfAddr util.IPPort
	lookup   dht.Lookup
	trans    transport.Transport
	gca      *announce.Service

	chats []*Chat
	meter diagnostics.Meter // optional; nil disables error accounting

	// errorThreshold is GroupChatConfig.ErrorThreshold: the cumulative
	// decrypt/malformed/cert-corrupt count (per sender, across every
	// chat) past which that sender is banned in every chat it is a peer
	// of. Zero disables auto-ban.
	errorThreshold int

	events chan *core.Event
}

// SetMeter attaches an error meter so every silently-dropped failure
// (spec §4.2.7) still leaves an operator-visible trace.
func (m *Module) SetMeter(meter diagnostics.Meter) {
	m.meter = meter
}

// SetErrorThreshold enables auto-ban once a sender's combined decrypt
// failure / malformed packet / cert corruption count reaches n. Requires
// a meter (SetMeter) to have any effect.
func (m *Module) SetErrorThreshold(n int) {
	m.errorThreshold = n
}

func (m *Module) record(sender *crypto.EncPublicKey, kind diagnostics.Kind) {
	if m.meter == nil {
		return
	}
	_ = m.meter.Record(sender, kind)
	m.maybeAutoBan(sender)
}

// maybeAutoBan bans sender in every chat it holds a peer record in, once
// its recorded failure count crosses errorThreshold (spec §4.2.7's
// "silently dropped" failures still cost a misbehaving peer its seat).
func (m *Module) maybeAutoBan(sender *crypto.EncPublicKey) {
	if m.errorThreshold <= 0 || sender == nil {
		return
	}
	counts, err := m.meter.Counts(sender)
	if err != nil {
		return
	}
	total := counts[diagnostics.KindDecryptFailed] + counts[diagnostics.KindMalformedPacket] + counts[diagnostics.KindCertCorrupt]
	if total < int64(m.errorThreshold) {
		return
	}
	for _, c := range m.chats {
		if p := c.FindPeerByEnc(sender); p != nil {
			p.Banned = true
		}
	}
}

// NewModule creates an empty group-chat module bound to the given DHT
// lookup, transport, and announce service collaborators.
func NewModule(selfAddr util.IPPort, lookup dht.Lookup, trans transport.Transport, gca *announce.Service) *Module {
	return &Module{
		selfAddr: selfAddr,
		lookup:   lookup,
		trans:    trans,
		gca:      gca,
		events:   make(chan *core.Event, 64),
	}
}

// Register subscribes the module to every group-chat packet kind on
// sched and installs the periodic housekeeping tick.
func (m *Module) Register(sched *core.Scheduler) {
	filter := core.NewEventFilter()
	filter.AddPacketType(wire.InviteRequest)
	filter.AddPacketType(wire.InviteResponse)
	filter.AddPacketType(wire.SyncRequest)
	filter.AddPacketType(wire.SyncResponse)
	filter.AddPacketType(wire.Ping)
	filter.AddPacketType(wire.Status)
	filter.AddPacketType(wire.NewPeer)
	filter.AddPacketType(wire.ChangeNick)
	filter.AddPacketType(wire.ChangeTopic)
	filter.AddPacketType(wire.Message)
	filter.AddPacketType(wire.Action)
	sched.Register("groupchat", core.NewListener(m.events, filter))
	sched.AddTick(m.doGroupchats)
	go m.pump()
}

func (m *Module) pump() {
	for ev := range m.events {
		m.handle(ev)
	}
}

// AddChat registers a freshly created or joined chat with the module so
// incoming packets addressed to its EPK are routed to it.
func (m *Module) AddChat(c *Chat) {
	m.chats = append(m.chats, c)
}

// RemoveChat drops a chat from the module, e.g. on leaving.
func (m *Module) RemoveChat(c *Chat) {
	for i, x := range m.chats {
		if x == c {
			m.chats = append(m.chats[:i], m.chats[i+1:]...)
			return
		}
	}
}

// chatByEPK finds the locally tracked chat whose self EPK matches enc,
// the cleartext routing key every group-chat envelope carries in Extra.
func (m *Module) chatByEPK(enc *crypto.EncPublicKey) *Chat {
	for _, c := range m.chats {
		if c.Self.Public.Enc.Equals(enc) {
			return c
		}
	}
	return nil
}

// JoinChat implements the joiner's side of "user asks to join chat C"
// (spec §4.2, Design Notes): ask the announce service for a known host
// of chatID, and if one is already on hand send it an INVITE_REQUEST to
// begin the state machine of §4.2.2. If no host is known yet, a lookup
// is kicked off and the caller is expected to retry once RequestedNodes
// on the announce service reports a result.
func (m *Module) JoinChat(chatID *crypto.EPK) (*Chat, error) {
	hosts, addrs := m.gca.RequestedNodes(chatID)
	if len(hosts) == 0 {
		if _, err := m.gca.SendGetNodesRequest(chatID); err != nil {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	c, err := NewChat(nil)
	if err != nil {
		return nil, err
	}
	c.ChatID = chatID
	c.FounderEPK = chatID
	half := c.BeginInvite(hosts[0], addrs[0])
	m.AddChat(c)
	m.sendToEnc(c, hosts[0].Enc, addrs[0], wire.InviteRequest, half.Bytes())
	return c, nil
}

func (m *Module) handle(ev *core.Event) {
	env, err := wire.DecodeEnvelope(ev.Payload, chatExtraLen)
	if err != nil {
		m.record(nil, diagnostics.KindMalformedPacket)
		return
	}
	target, err := crypto.NewEncPublicKey(env.Extra)
	if err != nil {
		m.record(env.SenderPK, diagnostics.KindMalformedPacket)
		return
	}
	c := m.chatByEPK(target)
	if c == nil {
		// sender-unknown-chat gossip is dropped silently (spec §4.2.7).
		m.record(env.SenderPK, diagnostics.KindUnknownSender)
		return
	}
	pt, err := crypto.Open(env.Body, env.Nonce, env.SenderPK, c.Self.EncSK)
	if err != nil {
		logger.Printf(logger.DBG, "[groupchat] decrypt failed from %s: %s", ev.From, err)
		m.record(env.SenderPK, diagnostics.KindDecryptFailed)
		return
	}
	fromEnc := env.SenderPK

	switch ev.Type {
	case wire.InviteRequest:
		m.handleInviteRequest(c, pt, fromEnc, ev.From)
	case wire.InviteResponse:
		m.handleInviteResponse(c, pt)
	case wire.SyncRequest:
		m.handleSyncRequest(c, fromEnc, ev.From)
	case wire.SyncResponse:
		m.handleSyncResponse(c, pt)
	case wire.Ping:
		_ = c.HandlePing(fromEnc, pt)
	case wire.Status:
		_ = c.HandleStatus(fromEnc, pt)
	case wire.NewPeer:
		_ = c.HandleNewPeer(fromEnc, pt)
	case wire.ChangeNick:
		_ = c.HandleChangeNick(fromEnc, pt)
	case wire.ChangeTopic:
		_ = c.HandleChangeTopic(fromEnc, pt)
	case wire.Message:
		_ = c.HandleMessage(fromEnc, false, pt)
	case wire.Action:
		_ = c.HandleAction(fromEnc, pt, func(p *Peer, payload []byte) { m.sendTo(c, p, wire.Action, payload) })
	}
}

func (m *Module) handleInviteRequest(c *Chat, pt []byte, fromEnc *crypto.EncPublicKey, from *net.UDPAddr) {
	half, err := cert.InviteCertFromBytes(pt)
	if err != nil {
		return
	}
	addr := util.NewIPPort(from.IP, uint16(from.Port))
	full, peer, err := c.HandleInviteRequest(half, addr)
	if err != nil {
		return
	}
	m.sendToEnc(c, peer.EPK.Enc, addr, wire.InviteResponse, full.Bytes())
}

func (m *Module) handleInviteResponse(c *Chat, pt []byte) {
	full, err := cert.InviteCertFromBytes(pt)
	if err != nil {
		return
	}
	_ = c.HandleInviteResponse(full)
}

func (m *Module) handleSyncRequest(c *Chat, fromEnc *crypto.EncPublicKey, from *net.UDPAddr) {
	if p := c.FindPeerByEnc(fromEnc); p == nil || !p.Verified {
		return
	}
	resp := c.BuildSyncResponse()
	addr := util.NewIPPort(from.IP, uint16(from.Port))
	m.sendToEnc(c, fromEnc, addr, wire.SyncResponse, resp.Encode())
}

func (m *Module) handleSyncResponse(c *Chat, pt []byte) {
	resp, err := DecodeSyncResponsePayload(pt)
	if err != nil {
		return
	}
	_ = c.MergeSyncResponse(resp)
}

// sendTo seals payload to p's ENC key and transmits it as a packet of
// kind typ, carrying p's ENC key in Extra so the recipient routes it to
// the chat that owns that key.
func (m *Module) sendTo(c *Chat, p *Peer, typ wire.PacketType, payload []byte) {
	if p == nil || p.EPK == nil {
		return
	}
	m.sendToEnc(c, p.EPK.Enc, p.Addr, typ, payload)
}

// sendToEnc is sendTo's primitive: it does not require a known Peer
// record, only a recipient ENC key and transport address, since an
// invite/sync response is addressed back to a sender this chat may not
// yet have a peer record for.
func (m *Module) sendToEnc(c *Chat, targetEnc *crypto.EncPublicKey, addr util.IPPort, typ wire.PacketType, payload []byte) {
	nonce, err := crypto.NewNonce()
	if err != nil {
		return
	}
	ct := crypto.Seal(payload, nonce, targetEnc, c.Self.EncSK)
	env := &wire.Envelope{
		Type:     typ,
		SenderPK: c.Self.Public.Enc,
		Extra:    targetEnc.Bytes(),
		Nonce:    nonce,
		Body:     ct,
	}
	buf, err := env.Encode()
	if err != nil {
		return
	}
	udpAddr := &net.UDPAddr{IP: addr.IP, Port: int(addr.Port)}
	_ = m.trans.Send(context.Background(), udpAddr, buf)
}

// doGroupchats is the group-chat half of the periodic "do" function
// (spec §5): ping the close set of every chat, evict peers that have
// gone silent past BAD_GROUPNODE_TIMEOUT, and recompute close sets
// (spec §4.2.6).
func (m *Module) doGroupchats() {
	now := util.AbsoluteTimeNow()
	for _, c := range m.chats {
		m.pingCloseSet(c, now)
		m.expirePeers(c)
	}
}

func (m *Module) pingCloseSet(c *Chat, now util.AbsoluteTime) {
	if now.Sub(c.LastSentPing) < GroupPingInterval {
		return
	}
	c.LastSentPing = now
	payload := EncodePing(now)
	for _, p := range c.CloseSet {
		m.sendTo(c, p, wire.Ping, payload)
	}
}

func (m *Module) expirePeers(c *Chat) {
	var survivorToResync *Peer
	removedFromCloseSet := false
	for _, p := range c.Peers {
		if p == nil {
			continue
		}
		if !p.LastRcvdPing.Expired(BadGroupNodeTimeout) {
			continue
		}
		wasClose := c.inCloseSet(p)
		c.RemovePeer(p.EPK)
		if wasClose {
			removedFromCloseSet = true
		}
	}
	if removedFromCloseSet {
		c.RecomputeCloseSet()
		for _, p := range c.CloseSet {
			survivorToResync = p
			break
		}
		if survivorToResync != nil {
			m.sendTo(c, survivorToResync, wire.SyncRequest, nil)
		}
	}
}
