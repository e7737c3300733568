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
	"bytes"
	"encoding/binary"

	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/errs"
	"github.com/halvard/meshchat/util"
	"github.com/halvard/meshchat/wire"
)

// AnnouncePayload is the sealed content of a GCA_ANNOUNCE packet (§4.3.1):
// {chat_id, self_node, timestamp, sig} where sig is over the preceding
// bytes with the announcer's SIG key.
type AnnouncePayload struct {
	ChatID    *crypto.EPK
	SelfNode  wire.Node
	Timestamp util.AbsoluteTime
	Sig       *crypto.Signature
}

// Encode renders the payload (unsealed) and signs it with signerSK, which
// must be the SIG key matching SelfNode.EPK.
func (p *AnnouncePayload) Encode(signerSK *crypto.SigPrivateKey) []byte {
	buf := new(bytes.Buffer)
	buf.Write(p.ChatID.Bytes())
	buf.Write(wire.PackNodes([]wire.Node{p.SelfNode}))
	putTime(buf, p.Timestamp)
	sig := signerSK.Sign(buf.Bytes())
	buf.Write(sig.Data)
	return buf.Bytes()
}

// DecodeAnnouncePayload parses and verifies an AnnouncePayload.
func DecodeAnnouncePayload(b []byte, tcpEnabled bool) (*AnnouncePayload, error) {
	if len(b) < crypto.EPKSize {
		return nil, errs.ErrMalformedPacket
	}
	chatID, err := crypto.EPKFromBytes(b[:crypto.EPKSize])
	if err != nil {
		return nil, errs.ErrMalformedPacket
	}
	rest := b[crypto.EPKSize:]
	if len(rest) < crypto.SignatureLen {
		return nil, errs.ErrMalformedPacket
	}
	signedLen := len(b) - crypto.SignatureLen
	nodeAndTime := rest[:len(rest)-crypto.SignatureLen]
	nodes, err := wire.UnpackNodes(nodeAndTime[:len(nodeAndTime)-8], tcpEnabled)
	if err != nil || len(nodes) != 1 {
		return nil, errs.ErrMalformedPacket
	}
	ts := getTime(nodeAndTime[len(nodeAndTime)-8:])
	sig := crypto.NewSignatureFromBytes(b[signedLen:])
	if !nodes[0].EPK.Sig.Verify(b[:signedLen], sig) {
		return nil, errs.ErrCertCorrupt
	}
	return &AnnouncePayload{ChatID: chatID, SelfNode: nodes[0], Timestamp: ts, Sig: sig}, nil
}

// GetNodesPayload is the sealed content of a GCA_GET_NODES packet.
type GetNodesPayload struct {
	ChatID    *crypto.EPK
	ReqID     uint64
	SelfNode  wire.Node
	Timestamp util.AbsoluteTime
	Sig       *crypto.Signature
}

// Encode renders and signs the payload.
func (p *GetNodesPayload) Encode(signerSK *crypto.SigPrivateKey) []byte {
	buf := new(bytes.Buffer)
	buf.Write(p.ChatID.Bytes())
	buf.Write(wire.PutUint64(p.ReqID))
	buf.Write(wire.PackNodes([]wire.Node{p.SelfNode}))
	putTime(buf, p.Timestamp)
	sig := signerSK.Sign(buf.Bytes())
	buf.Write(sig.Data)
	return buf.Bytes()
}

// DecodeGetNodesPayload parses and verifies a GetNodesPayload.
func DecodeGetNodesPayload(b []byte, tcpEnabled bool) (*GetNodesPayload, error) {
	if len(b) < crypto.EPKSize+8+crypto.SignatureLen {
		return nil, errs.ErrMalformedPacket
	}
	chatID, err := crypto.EPKFromBytes(b[:crypto.EPKSize])
	if err != nil {
		return nil, errs.ErrMalformedPacket
	}
	off := crypto.EPKSize
	reqID := wire.GetUint64(b[off : off+8])
	off += 8
	signedLen := len(b) - crypto.SignatureLen
	nodeAndTime := b[off:signedLen]
	if len(nodeAndTime) < 8 {
		return nil, errs.ErrMalformedPacket
	}
	nodes, err := wire.UnpackNodes(nodeAndTime[:len(nodeAndTime)-8], tcpEnabled)
	if err != nil || len(nodes) != 1 {
		return nil, errs.ErrMalformedPacket
	}
	ts := getTime(nodeAndTime[len(nodeAndTime)-8:])
	sig := crypto.NewSignatureFromBytes(b[signedLen:])
	if !nodes[0].EPK.Sig.Verify(b[:signedLen], sig) {
		return nil, errs.ErrCertCorrupt
	}
	return &GetNodesPayload{ChatID: chatID, ReqID: reqID, SelfNode: nodes[0], Timestamp: ts, Sig: sig}, nil
}

// SendNodesPayload is the sealed content of a GCA_SEND_NODES packet:
// {num_nodes, packed_nodes, req_id}. req_id also rides in cleartext in
// the envelope's Extra field so the recipient can pick the right
// ephemeral secret key before this payload can be decrypted at all; it
// is repeated here, sealed, so the selection can be corroborated rather
// than trusted on the strength of the cleartext copy alone.
type SendNodesPayload struct {
	Nodes []wire.Node
	ReqID uint64
}

// Encode renders the payload (no signature; the reply is only sealed from
// the answering node's ENC key to the requester's ephemeral key).
func (p *SendNodesPayload) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(len(p.Nodes)))
	buf.Write(wire.PackNodes(p.Nodes))
	buf.Write(wire.PutUint64(p.ReqID))
	return buf.Bytes()
}

// DecodeSendNodesPayload parses a SendNodesPayload.
func DecodeSendNodesPayload(b []byte, tcpEnabled bool) (*SendNodesPayload, error) {
	if len(b) < 1+8 {
		return nil, errs.ErrMalformedPacket
	}
	num := int(b[0])
	rest := b[1:]
	if len(rest) < 8 {
		return nil, errs.ErrMalformedPacket
	}
	packed := rest[:len(rest)-8]
	reqID := wire.GetUint64(rest[len(rest)-8:])
	nodes, err := wire.UnpackNodes(packed, tcpEnabled)
	if err != nil || len(nodes) != num {
		return nil, errs.ErrMalformedPacket
	}
	return &SendNodesPayload{Nodes: nodes, ReqID: reqID}, nil
}

// PingPayload is the sealed content of both GCA_PING_REQUEST and
// GCA_PING_RESPONSE: just {ping_id}, no timestamp, unlike the gossip
// packets of §4.2.4.
type PingPayload struct {
	PingID uint64
}

// Encode renders the payload.
func (p *PingPayload) Encode() []byte {
	return wire.PutUint64(p.PingID)
}

// DecodePingPayload parses a PingPayload.
func DecodePingPayload(b []byte) (*PingPayload, error) {
	if len(b) != 8 {
		return nil, errs.ErrMalformedPacket
	}
	return &PingPayload{PingID: wire.GetUint64(b)}, nil
}

func putTime(buf *bytes.Buffer, t util.AbsoluteTime) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], t.Val)
	buf.Write(b[:])
}

func getTime(b []byte) util.AbsoluteTime {
	return util.AbsoluteTime{Val: binary.BigEndian.Uint64(b)}
}
