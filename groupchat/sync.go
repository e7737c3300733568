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
	"encoding/binary"

	"github.com/halvard/meshchat/cert"
	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/errs"
	"github.com/halvard/meshchat/util"
	"github.com/halvard/meshchat/wire"
)

// PeerRecord is the wire shape of one peer entry in a SYNC_RESPONSE
// (spec §4.2.3): {epk, ip_port, nick, role, status, invite_cert,
// common_certs}.
type PeerRecord struct {
	EPK         *crypto.EPK
	Addr        util.IPPort
	Nick        string
	Role        Role
	Status      Status
	InviteCert  *cert.InviteCert
	CommonCerts []*cert.CommonCert
}

func (r PeerRecord) toPeer(ts util.AbsoluteTime) *Peer {
	return &Peer{
		EPK:         r.EPK,
		Addr:        r.Addr,
		Nick:        r.Nick,
		Role:        r.Role,
		Status:      r.Status,
		InviteCert:  r.InviteCert,
		CommonCerts: r.CommonCerts,
		LastUpdate:  ts,
	}
}

func peerToRecord(p *Peer) PeerRecord {
	return PeerRecord{
		EPK: p.EPK, Addr: p.Addr, Nick: p.Nick, Role: p.Role,
		Status: p.Status, InviteCert: p.InviteCert, CommonCerts: p.CommonCerts,
	}
}

// SyncResponsePayload is the sealed content of a SYNC_RESPONSE packet.
type SyncResponsePayload struct {
	Topic          string
	Peers          []PeerRecord
	LastSyncedTime util.AbsoluteTime
}

func writeString(buf *bytes.Buffer, s string) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	buf.Write(l[:])
	buf.WriteString(s)
}

func readString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errs.ErrMalformedPacket
	}
	l := int(binary.BigEndian.Uint16(b))
	b = b[2:]
	if len(b) < l {
		return "", nil, errs.ErrMalformedPacket
	}
	return string(b[:l]), b[l:], nil
}

func writeCertBlob(buf *bytes.Buffer, b []byte) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

func readCertBlob(b []byte) ([]byte, []byte, error) {
	if len(b) < 2 {
		return nil, nil, errs.ErrMalformedPacket
	}
	l := int(binary.BigEndian.Uint16(b))
	b = b[2:]
	if len(b) < l {
		return nil, nil, errs.ErrMalformedPacket
	}
	return b[:l], b[l:], nil
}

// encodePeerRecord renders one peer record: packed node, nick, role,
// status, invite cert (length-prefixed), and common certs.
func encodePeerRecord(buf *bytes.Buffer, rec PeerRecord) {
	buf.Write(wire.PackNodes([]wire.Node{{Addr: rec.Addr, EPK: rec.EPK}}))
	writeString(buf, rec.Nick)
	buf.WriteByte(byte(rec.Role))
	buf.WriteByte(byte(rec.Status))
	writeCertBlob(buf, rec.InviteCert.Bytes())
	buf.WriteByte(byte(len(rec.CommonCerts)))
	for _, cc := range rec.CommonCerts {
		buf.Write(cc.Bytes())
	}
}

// decodePeerRecord parses one peer record, returning the unconsumed tail.
func decodePeerRecord(b []byte) (PeerRecord, []byte, error) {
	if len(b) < 1 {
		return PeerRecord{}, nil, errs.ErrMalformedPacket
	}
	fam := util.Family(b[0])
	sz := fam.Size()
	if sz == 0 || len(b) < 1+sz+2+crypto.EPKSize {
		return PeerRecord{}, nil, errs.ErrMalformedPacket
	}
	nodeLen := 1 + sz + 2 + crypto.EPKSize
	nodes, err := wire.UnpackNodes(b[:nodeLen], true)
	if err != nil || len(nodes) != 1 {
		return PeerRecord{}, nil, errs.ErrMalformedPacket
	}
	b = b[nodeLen:]

	nick, b, err := readString(b)
	if err != nil {
		return PeerRecord{}, nil, err
	}
	if len(b) < 2 {
		return PeerRecord{}, nil, errs.ErrMalformedPacket
	}
	role := Role(b[0])
	status := Status(b[1])
	b = b[2:]

	blob, b, err := readCertBlob(b)
	if err != nil {
		return PeerRecord{}, nil, err
	}
	ic, err := cert.InviteCertFromBytes(blob)
	if err != nil {
		return PeerRecord{}, nil, err
	}

	if len(b) < 1 {
		return PeerRecord{}, nil, errs.ErrMalformedPacket
	}
	numCerts := int(b[0])
	b = b[1:]
	certs := make([]*cert.CommonCert, 0, numCerts)
	for j := 0; j < numCerts; j++ {
		if len(b) < cert.CommonSize {
			return PeerRecord{}, nil, errs.ErrMalformedPacket
		}
		cc, err := cert.CommonCertFromBytes(b[:cert.CommonSize])
		if err != nil {
			return PeerRecord{}, nil, err
		}
		certs = append(certs, cc)
		b = b[cert.CommonSize:]
	}

	return PeerRecord{
		EPK: nodes[0].EPK, Addr: nodes[0].Addr, Nick: nick,
		Role: role, Status: status, InviteCert: ic, CommonCerts: certs,
	}, b, nil
}

// Encode renders the sync response to its wire form.
func (p *SyncResponsePayload) Encode() []byte {
	buf := new(bytes.Buffer)
	writeString(buf, p.Topic)
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], p.LastSyncedTime.Val)
	buf.Write(l[:])
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(p.Peers)))
	buf.Write(n[:])
	for _, rec := range p.Peers {
		encodePeerRecord(buf, rec)
	}
	return buf.Bytes()
}

// DecodeSyncResponsePayload parses a SyncResponsePayload.
func DecodeSyncResponsePayload(b []byte) (*SyncResponsePayload, error) {
	topic, b, err := readString(b)
	if err != nil {
		return nil, err
	}
	if len(b) < 8+2 {
		return nil, errs.ErrMalformedPacket
	}
	lastSynced := util.AbsoluteTime{Val: binary.BigEndian.Uint64(b)}
	b = b[8:]
	n := int(binary.BigEndian.Uint16(b))
	b = b[2:]
	recs := make([]PeerRecord, 0, n)
	for i := 0; i < n; i++ {
		rec, rest, err := decodePeerRecord(b)
		if err != nil {
			return nil, err
		}
		b = rest
		recs = append(recs, rec)
	}
	return &SyncResponsePayload{Topic: topic, Peers: recs, LastSyncedTime: lastSynced}, nil
}

// BuildSyncResponse implements the responder side of §4.2.3: the
// current topic, every known peer record, and the responder's
// high-watermark. The caller is responsible for checking the requester
// is a verified peer before sending this.
func (c *Chat) BuildSyncResponse() *SyncResponsePayload {
	recs := make([]PeerRecord, 0, len(c.Peers))
	for _, p := range c.Peers {
		if p != nil {
			recs = append(recs, peerToRecord(p))
		}
	}
	return &SyncResponsePayload{Topic: c.Topic, Peers: recs, LastSyncedTime: c.HighWatermark}
}

// MergeSyncResponse implements the requester side of §4.2.3: reject a
// response whose high-watermark is older than the requester's own minus
// the skew tolerance, otherwise merge peer entries by EPK (unknown →
// insert, known with an older LastUpdate → update), then re-evaluate
// the joiner's own verification and, once verified, transition the join
// state machine to JOINED.
func (c *Chat) MergeSyncResponse(resp *SyncResponsePayload) error {
	skew := uint64(SyncSkewTolerance.Seconds())
	threshold := util.AbsoluteTime{}
	if c.HighWatermark.Val > skew {
		threshold.Val = c.HighWatermark.Val - skew
	}
	if resp.LastSyncedTime.Before(threshold) {
		return errs.ErrStaleTimestamp
	}
	for _, rec := range resp.Peers {
		if rec.EPK.Equals(c.Self.Public) {
			continue
		}
		existing := c.FindPeer(rec.EPK)
		if existing == nil {
			if err := c.InsertPeer(rec.toPeer(resp.LastSyncedTime)); err != nil {
				return err
			}
			continue
		}
		if existing.LastUpdate.Before(resp.LastSyncedTime) {
			*existing = *rec.toPeer(resp.LastSyncedTime)
		}
	}
	if resp.LastSyncedTime.Val > c.HighWatermark.Val {
		c.HighWatermark = resp.LastSyncedTime
	}
	c.Topic = resp.Topic
	c.RecomputeCloseSet()

	c.tryVerifySelf()
	if c.join != nil && c.join.State >= StateVerified {
		c.join.State = StateJoined
	}
	c.LastSyncedTime = util.AbsoluteTimeNow()
	return nil
}
