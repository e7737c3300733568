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

	"github.com/bfix/gospel/logger"

	"github.com/halvard/meshchat/core"
	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/dht"
	"github.com/halvard/meshchat/transport"
	"github.com/halvard/meshchat/util"
	"github.com/halvard/meshchat/wire"
)

// Service owns the announcement and self-request tables and runs the
// converging-forward dispatch of §4.3.2, wired to a DHT lookup
// collaborator and a transport (spec §6's consumed-interface list).
type Service struct {
	self      *crypto.Identity
	selfAddr  util.IPPort
	table     *Table
	requests  *SelfRequestTable
	lookup    dht.Lookup
	trans     transport.Transport
	tcpEnable bool

	events chan *core.Event
}

// NewService creates an announce service bound to self's identity/address
// and the given DHT and transport collaborators.
func NewService(self *crypto.Identity, selfAddr util.IPPort, lookup dht.Lookup, trans transport.Transport) *Service {
	return &Service{
		self:     self,
		selfAddr: selfAddr,
		table:    NewTable(),
		requests: NewSelfRequestTable(),
		lookup:   lookup,
		trans:    trans,
		events:   make(chan *core.Event, 64),
	}
}

// Table exposes the announcement table for the introspection endpoint.
func (s *Service) Table() *Table { return s.table }

// Requests exposes the self-request table for the introspection endpoint.
func (s *Service) Requests() *SelfRequestTable { return s.requests }

// Register subscribes the service to its five packet kinds on sched.
func (s *Service) Register(sched *core.Scheduler) {
	filter := core.NewEventFilter()
	filter.AddPacketType(wire.GcaAnnounce)
	filter.AddPacketType(wire.GcaGetNodes)
	filter.AddPacketType(wire.GcaSendNodes)
	filter.AddPacketType(wire.GcaPingRequest)
	filter.AddPacketType(wire.GcaPingResponse)
	sched.Register("announce", core.NewListener(s.events, filter))
	sched.AddTick(s.doGCA)
	go s.pump()
}

func (s *Service) pump() {
	for ev := range s.events {
		s.handle(ev)
	}
}

func (s *Service) handle(ev *core.Event) {
	switch ev.Type {
	case wire.GcaAnnounce:
		s.handleAnnounceOrGetNodes(ev, true)
	case wire.GcaGetNodes:
		s.handleAnnounceOrGetNodes(ev, false)
	case wire.GcaSendNodes:
		s.handleSendNodes(ev)
	case wire.GcaPingRequest:
		s.handlePingRequest(ev)
	case wire.GcaPingResponse:
		s.handlePingResponse(ev)
	}
}

// handleAnnounceOrGetNodes implements dispatch_packet (§4.3.2) for the
// two packet kinds that carry a chat_id to route on.
func (s *Service) handleAnnounceOrGetNodes(ev *core.Event, isAnnounce bool) {
	env, err := wire.DecodeEnvelope(ev.Payload, 0)
	if err != nil {
		return
	}
	nonce := env.Nonce
	pt, err := crypto.Open(env.Body, nonce, env.SenderPK, s.self.EncSK)
	if err != nil {
		logger.Printf(logger.DBG, "[gca] decrypt failed from %s: %s", ev.From, err)
		return
	}

	var chatID *crypto.EPK
	var originNode wire.Node
	var reqID uint64
	if isAnnounce {
		p, err := DecodeAnnouncePayload(pt, s.tcpEnable)
		if err != nil {
			return
		}
		chatID, originNode = p.ChatID, p.SelfNode
	} else {
		p, err := DecodeGetNodesPayload(pt, s.tcpEnable)
		if err != nil {
			return
		}
		chatID, originNode, reqID = p.ChatID, p.SelfNode, p.ReqID
	}

	selfOriginated := originNode.EPK.Equals(s.self.Public)
	key := util.NewPeerAddress(chatID.Enc.Bytes())
	senderAddr := util.NewPeerAddress(originNode.EPK.Enc.Bytes())

	candidates := s.lookup.GetCloseNodes(key, MaxGcaSentNodes, true, true)
	forwarded := false
	for _, c := range candidates {
		if !selfOriginated && !util.Closer(key, c, senderAddr) {
			continue
		}
		forwarded = true
		// The packet is not re-sealed or sent to the candidate; a closer
		// candidate only stops this node from storing or answering below.
	}

	if forwarded || selfOriginated {
		return
	}
	// terminal hop: store the announcement, or answer GET_NODES.
	if isAnnounce {
		s.table.Insert(chatID, originNode.EPK, originNode.Addr)
		return
	}
	s.replySendNodes(chatID, reqID, ev.From, originNode.EPK.Enc)
}

func (s *Service) replySendNodes(chatID *crypto.EPK, reqID uint64, to *net.UDPAddr, reqEncPub *crypto.EncPublicKey) {
	entries := s.table.Lookup(chatID, MaxGcaSentNodes)
	nodes := make([]wire.Node, 0, len(entries))
	for _, a := range entries {
		nodes = append(nodes, wire.Node{Addr: a.IPPort, EPK: a.NodeEPK})
	}
	payload := (&SendNodesPayload{Nodes: nodes, ReqID: reqID}).Encode()
	nonce, err := crypto.NewNonce()
	if err != nil {
		return
	}
	ct := crypto.Seal(payload, nonce, reqEncPub, s.self.EncSK)
	env := &wire.Envelope{
		Type:     wire.GcaSendNodes,
		SenderPK: s.self.Public.Enc,
		Extra:    wire.PutUint64(reqID),
		Nonce:    nonce,
		Body:     ct,
	}
	buf, err := env.Encode()
	if err != nil {
		return
	}
	_ = s.trans.Send(context.Background(), to, buf)
}

func (s *Service) handleSendNodes(ev *core.Event) {
	env, err := wire.DecodeEnvelope(ev.Payload, 8)
	if err != nil {
		return
	}
	reqID := wire.GetUint64(env.Extra)
	reqEntry := s.requests.ByReqID(reqID)
	if reqEntry == nil {
		return
	}
	pt, err := crypto.Open(env.Body, env.Nonce, env.SenderPK, reqEntry.EphPrv)
	if err != nil {
		return
	}
	p, err := DecodeSendNodesPayload(pt, s.tcpEnable)
	if err != nil || p.ReqID != reqID {
		return
	}
	epks := make([]*crypto.EPK, 0, len(p.Nodes))
	addrs := make([]util.IPPort, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		epks = append(epks, n.EPK)
		addrs = append(addrs, n.Addr)
	}
	s.requests.Resolve(reqID, epks, addrs)
}

func (s *Service) handlePingRequest(ev *core.Event) {
	env, err := wire.DecodeEnvelope(ev.Payload, crypto.EncKeySize)
	if err != nil {
		return
	}
	recipient, err := crypto.NewEncPublicKey(env.Extra)
	if err != nil || !recipient.Equals(s.self.Public.Enc) {
		return
	}
	pt, err := crypto.Open(env.Body, env.Nonce, env.SenderPK, s.self.EncSK)
	if err != nil {
		return
	}
	p, err := DecodePingPayload(pt)
	if err != nil {
		return
	}
	s.sendPingResponse(ev.From, env.SenderPK, p.PingID)
}

func (s *Service) sendPingResponse(to *net.UDPAddr, recipientEph *crypto.EncPublicKey, pingID uint64) {
	resp := (&PingPayload{PingID: pingID}).Encode()
	nonce, err := crypto.NewNonce()
	if err != nil {
		return
	}
	ct := crypto.Seal(resp, nonce, recipientEph, s.self.EncSK)
	env := &wire.Envelope{
		Type:     wire.GcaPingResponse,
		SenderPK: s.self.Public.Enc,
		Nonce:    nonce,
		Body:     ct,
	}
	buf, err := env.Encode()
	if err != nil {
		return
	}
	_ = s.trans.Send(context.Background(), to, buf)
}

func (s *Service) handlePingResponse(ev *core.Event) {
	env, err := wire.DecodeEnvelope(ev.Payload, 0)
	if err != nil {
		return
	}
	pt, err := crypto.Open(env.Body, env.Nonce, env.SenderPK, s.self.EncSK)
	if err != nil {
		return
	}
	p, err := DecodePingPayload(pt)
	if err != nil {
		return
	}
	s.table.HandlePingResponse(env.SenderPK, p.PingID)
}

// doGCA is the announce half of the periodic "do" function (spec §5):
// ping every due announcement and expire dead ones.
func (s *Service) doGCA() {
	due := s.table.Sweep(PingInterval, NodesExpiration)
	for _, a := range due {
		s.sendPingRequest(a)
	}
}

// SendAnnounce publishes self as a host for chatID to the closest known
// nodes, per the initiator side of §4.3.1/§4.3.2.
func (s *Service) SendAnnounce(chatID *crypto.EPK) {
	selfNode := wire.Node{Addr: s.selfAddr, EPK: s.self.Public}
	payload := (&AnnouncePayload{
		ChatID:    chatID,
		SelfNode:  selfNode,
		Timestamp: util.AbsoluteTimeNow(),
	}).Encode(s.self.SigSK)

	key := util.NewPeerAddress(chatID.Enc.Bytes())
	for _, target := range s.lookup.GetCloseNodes(key, MaxGcaSentNodes, true, true) {
		s.sealAndSendTo(target, wire.GcaAnnounce, nil, payload)
	}
}

// SendGetNodesRequest looks up hosts for chatID, allocating a fresh req_id
// and ephemeral ENC keypair per §4.3.4; the SEND_NODES reply is sealed to
// that ephemeral key. The request still names this node's long-term SIG
// key, is signed with it, and is sealed from the long-term ENC key, so the
// queried nodes can tell who is asking.
func (s *Service) SendGetNodesRequest(chatID *crypto.EPK) (*SelfRequest, error) {
	req, err := s.requests.Alloc(chatID)
	if err != nil {
		return nil, err
	}
	ephNode := wire.Node{Addr: s.selfAddr, EPK: crypto.NewEPK(req.EphPub, s.self.Public.Sig)}
	payload := (&GetNodesPayload{
		ChatID:    chatID,
		ReqID:     req.ReqID,
		SelfNode:  ephNode,
		Timestamp: util.AbsoluteTimeNow(),
	}).Encode(s.self.SigSK)

	key := util.NewPeerAddress(chatID.Enc.Bytes())
	for _, target := range s.lookup.GetCloseNodes(key, MaxGcaSentNodes, true, true) {
		s.sealAndSendTo(target, wire.GcaGetNodes, nil, payload)
	}
	return req, nil
}

// RequestedNodes reports the hosts discovered so far for a pending
// lookup started with SendGetNodesRequest.
func (s *Service) RequestedNodes(chatID *crypto.EPK) ([]*crypto.EPK, []util.IPPort) {
	return s.requests.RequestedNodes(chatID)
}

// sealAndSendTo resolves target's transport address via the DHT, box-seals
// the already-signed payload to target's ENC key (recoverable directly
// from the PeerAddress, which is the raw ENC key per util.NewPeerAddress),
// and sends it as a packet of type typ.
func (s *Service) sealAndSendTo(target *util.PeerAddress, typ wire.PacketType, extra, payload []byte) {
	ipPort, ok := s.lookup.ResolveAddr(target)
	if !ok {
		return
	}
	targetEnc, err := crypto.NewEncPublicKey(target.Bytes())
	if err != nil {
		return
	}
	nonce, err := crypto.NewNonce()
	if err != nil {
		return
	}
	ct := crypto.Seal(payload, nonce, targetEnc, s.self.EncSK)
	env := &wire.Envelope{
		Type:     typ,
		SenderPK: s.self.Public.Enc,
		Extra:    extra,
		Nonce:    nonce,
		Body:     ct,
	}
	buf, err := env.Encode()
	if err != nil {
		return
	}
	addr := &net.UDPAddr{IP: ipPort.IP, Port: int(ipPort.Port)}
	_ = s.trans.Send(context.Background(), addr, buf)
}

func (s *Service) sendPingRequest(a *Announcement) {
	payload := (&PingPayload{PingID: a.PingID}).Encode()
	nonce, err := crypto.NewNonce()
	if err != nil {
		return
	}
	ct := crypto.Seal(payload, nonce, a.NodeEPK.Enc, s.self.EncSK)
	env := &wire.Envelope{
		Type:     wire.GcaPingRequest,
		SenderPK: s.self.Public.Enc,
		Extra:    a.NodeEPK.Enc.Bytes(),
		Nonce:    nonce,
		Body:     ct,
	}
	buf, err := env.Encode()
	if err != nil {
		return
	}
	addr := &net.UDPAddr{IP: a.IPPort.IP, Port: int(a.IPPort.Port)}
	_ = s.trans.Send(context.Background(), addr, buf)
}
