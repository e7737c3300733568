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
	"time"

	"github.com/halvard/meshchat/cert"
	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/errs"
	"github.com/halvard/meshchat/util"
	"github.com/halvard/meshchat/wire"
)

// GossipHeader is the common prefix of every gossip payload (spec
// §4.2.4): "all start with {type, timestamp} inside the encrypted
// payload."
type GossipHeader struct {
	Type      wire.PacketType
	Timestamp util.AbsoluteTime
}

func (h GossipHeader) encode(buf *bytes.Buffer) {
	buf.WriteByte(byte(h.Type))
	var t [8]byte
	binary.BigEndian.PutUint64(t[:], h.Timestamp.Val)
	buf.Write(t[:])
}

func decodeHeader(b []byte) (GossipHeader, []byte, error) {
	if len(b) < 9 {
		return GossipHeader{}, nil, errs.ErrMalformedPacket
	}
	h := GossipHeader{
		Type:      wire.PacketType(b[0]),
		Timestamp: util.AbsoluteTime{Val: binary.BigEndian.Uint64(b[1:9])},
	}
	return h, b[9:], nil
}

// EncodeStatus renders a STATUS gossip payload.
func EncodeStatus(ts util.AbsoluteTime, s Status) []byte {
	buf := new(bytes.Buffer)
	GossipHeader{Type: wire.Status, Timestamp: ts}.encode(buf)
	buf.WriteByte(byte(s))
	return buf.Bytes()
}

// EncodePing renders a PING gossip payload (header only).
func EncodePing(ts util.AbsoluteTime) []byte {
	buf := new(bytes.Buffer)
	GossipHeader{Type: wire.Ping, Timestamp: ts}.encode(buf)
	return buf.Bytes()
}

// EncodeChangeNick renders a CHANGE_NICK gossip payload.
func EncodeChangeNick(ts util.AbsoluteTime, nick string) []byte {
	buf := new(bytes.Buffer)
	GossipHeader{Type: wire.ChangeNick, Timestamp: ts}.encode(buf)
	writeString(buf, nick)
	return buf.Bytes()
}

// EncodeChangeTopic renders a CHANGE_TOPIC gossip payload.
func EncodeChangeTopic(ts util.AbsoluteTime, topic string) []byte {
	buf := new(bytes.Buffer)
	GossipHeader{Type: wire.ChangeTopic, Timestamp: ts}.encode(buf)
	writeString(buf, topic)
	return buf.Bytes()
}

// EncodeNewPeer renders a NEW_PEER gossip payload carrying a full peer
// record (spec §4.2.4).
func EncodeNewPeer(ts util.AbsoluteTime, rec PeerRecord) []byte {
	buf := new(bytes.Buffer)
	GossipHeader{Type: wire.NewPeer, Timestamp: ts}.encode(buf)
	encodePeerRecord(buf, rec)
	return buf.Bytes()
}

// EncodeMessage renders a MESSAGE or ACTION text payload (spec §4.2.4);
// action selects between MESSAGE (plain text) and ACTION's text form.
func EncodeMessage(ts util.AbsoluteTime, action bool, payload []byte) []byte {
	buf := new(bytes.Buffer)
	t := wire.Message
	if action {
		t = wire.Action
	}
	GossipHeader{Type: t, Timestamp: ts}.encode(buf)
	buf.Write(payload)
	return buf.Bytes()
}

// EncodeOpAction renders an ACTION payload carrying a moderation
// certificate for rebroadcast (spec §4.2.4).
func EncodeOpAction(ts util.AbsoluteTime, cc *cert.CommonCert) []byte {
	buf := new(bytes.Buffer)
	GossipHeader{Type: wire.Action, Timestamp: ts}.encode(buf)
	buf.Write(cc.Bytes())
	return buf.Bytes()
}

// DedupEntry is the key that identifies one ACTION rebroadcast (spec
// §4.2.4): {source, target, type, timestamp}. Source/Target are raw EPK
// bytes rather than *crypto.EPK so two independently decoded
// certificates with identical key material compare equal.
type DedupEntry struct {
	Source    [crypto.EPKSize]byte
	Target    [crypto.EPKSize]byte
	Type      wire.PacketType
	Timestamp uint64
}

func epkKey(e *crypto.EPK) (k [crypto.EPKSize]byte) {
	copy(k[:], e.Bytes())
	return
}

// dedupRecord pairs a seen key with its insertion time for TTL eviction.
type dedupRecord struct {
	key  DedupEntry
	seen time.Time
}

// DedupWindowCapacity and DedupWindowTTL bound the ACTION rebroadcast
// dedup window; entries older than the TTL or beyond capacity are
// dropped rather than retained indefinitely.
const (
	DedupWindowCapacity = 256
	DedupWindowTTL      = 2 * time.Minute
)

// DedupWindow is a bounded, TTL-pruned set of recently rebroadcast
// ACTION keys, preventing the same certificate from looping around the
// close-set mesh (spec §4.2.4).
type DedupWindow struct {
	entries []dedupRecord
}

// NewDedupWindow creates an empty dedup window.
func NewDedupWindow() *DedupWindow {
	return &DedupWindow{}
}

// SeenRecently reports whether key was recorded within the TTL, pruning
// expired entries as a side effect.
func (d *DedupWindow) SeenRecently(key DedupEntry) bool {
	d.prune()
	for _, r := range d.entries {
		if r.key == key {
			return true
		}
	}
	return false
}

// Record marks key as seen, evicting the oldest entry if at capacity.
func (d *DedupWindow) Record(key DedupEntry) {
	d.prune()
	if len(d.entries) >= DedupWindowCapacity {
		d.entries = d.entries[1:]
	}
	d.entries = append(d.entries, dedupRecord{key: key, seen: time.Now()})
}

func (d *DedupWindow) prune() {
	cutoff := time.Now().Add(-DedupWindowTTL)
	live := d.entries[:0]
	for _, r := range d.entries {
		if r.seen.After(cutoff) {
			live = append(live, r)
		}
	}
	d.entries = live
}

//----------------------------------------------------------------------
// Receive-side handling (spec §4.2.4)
//----------------------------------------------------------------------

// HandlePing applies a PING from a known peer: refresh LastRcvdPing. An
// unknown sender is dropped silently, per §4.2.7. The envelope only ever
// carries the sender's ENC key, never its SIG half, so lookups here are
// always by ENC key alone.
func (c *Chat) HandlePing(fromEnc *crypto.EncPublicKey, b []byte) error {
	h, _, err := decodeHeader(b)
	if err != nil {
		return err
	}
	p := c.FindPeerByEnc(fromEnc)
	if p == nil {
		return nil
	}
	p.LastRcvdPing = h.Timestamp
	return nil
}

// HandleStatus applies a STATUS update, ignoring a stale timestamp.
func (c *Chat) HandleStatus(fromEnc *crypto.EncPublicKey, b []byte) error {
	h, rest, err := decodeHeader(b)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return errs.ErrMalformedPacket
	}
	p := c.FindPeerByEnc(fromEnc)
	if p == nil {
		return nil
	}
	if h.Timestamp.Before(p.LastUpdate) {
		return nil
	}
	p.Status = Status(rest[0])
	p.LastUpdate = h.Timestamp
	return nil
}

// HandleChangeNick applies a CHANGE_NICK update, ignoring a stale
// timestamp and an over-length nick (spec §4.2.4, §3).
func (c *Chat) HandleChangeNick(fromEnc *crypto.EncPublicKey, b []byte) error {
	h, rest, err := decodeHeader(b)
	if err != nil {
		return err
	}
	nick, _, err := readString(rest)
	if err != nil {
		return err
	}
	p := c.FindPeerByEnc(fromEnc)
	if p == nil {
		return nil
	}
	if h.Timestamp.Before(p.LastUpdate) {
		return nil
	}
	return p.SetNick(nick, h.Timestamp)
}

// HandleChangeTopic applies a CHANGE_TOPIC update from an OP or founder,
// ignoring a stale timestamp.
func (c *Chat) HandleChangeTopic(fromEnc *crypto.EncPublicKey, b []byte) error {
	h, rest, err := decodeHeader(b)
	if err != nil {
		return err
	}
	topic, _, err := readString(rest)
	if err != nil {
		return err
	}
	if len(topic) > MaxTopicLen {
		return errs.ErrLengthOverflow
	}
	var role Role
	if c.isFounderEnc(fromEnc) {
		role = RoleFounder
	} else if p := c.FindPeerByEnc(fromEnc); p != nil {
		role = p.Role
	}
	if !role.Has(RoleOp) && !role.Has(RoleFounder) {
		return errs.ErrUnauthorized
	}
	if h.Timestamp.Before(c.TopicUpdate) {
		return nil
	}
	c.Topic = topic
	c.TopicUpdate = h.Timestamp
	return nil
}

// HandleNewPeer installs a peer record gossiped by a close-set member
// and recomputes the close set.
func (c *Chat) HandleNewPeer(fromEnc *crypto.EncPublicKey, b []byte) error {
	if p := c.FindPeerByEnc(fromEnc); p == nil && !c.isFounderEnc(fromEnc) {
		return nil
	}
	_, rest, err := decodeHeader(b)
	if err != nil {
		return err
	}
	rec, _, err := decodePeerRecord(rest)
	if err != nil {
		return err
	}
	if rec.EPK.Equals(c.Self.Public) {
		return nil
	}
	if err := c.InsertPeer(rec.toPeer(util.AbsoluteTimeNow())); err != nil {
		return err
	}
	c.RecomputeCloseSet()
	return nil
}

// HandleMessage delivers a PLAIN-carried payload to Callbacks, dropping
// it if the sender is unknown (spec §4.2.7).
func (c *Chat) HandleMessage(fromEnc *crypto.EncPublicKey, action bool, b []byte) error {
	_, rest, err := decodeHeader(b)
	if err != nil {
		return err
	}
	p := c.FindPeerByEnc(fromEnc)
	if p == nil {
		return nil
	}
	if c.Callbacks != nil {
		c.Callbacks.OnMessage(p, action, rest)
	}
	return nil
}

// HandleAction applies a gossiped moderation certificate and, unless it
// has already been seen within the dedup window, rebroadcasts it to the
// close set (spec §4.2.4's ACTION dedup-and-forward). send is the
// caller-supplied sealed-send primitive; it is invoked once per
// surviving close-set member.
func (c *Chat) HandleAction(fromEnc *crypto.EncPublicKey, b []byte, send func(target *Peer, payload []byte)) error {
	h, rest, err := decodeHeader(b)
	if err != nil {
		return err
	}
	cc, err := cert.CommonCertFromBytes(rest)
	if err != nil {
		return errs.ErrMalformedPacket
	}
	sourceEPK, err := cc.SourceEPK()
	if err != nil {
		return errs.ErrCertCorrupt
	}
	targetEPK, err := cc.TargetEPK()
	if err != nil {
		return errs.ErrCertCorrupt
	}
	key := DedupEntry{Source: epkKey(sourceEPK), Target: epkKey(targetEPK), Type: wire.Action, Timestamp: h.Timestamp.Val}
	if c.seen.SeenRecently(key) {
		return nil
	}
	c.seen.Record(key)

	if err := c.ProcessCommonCert(cc); err != nil {
		return err
	}
	if c.Callbacks != nil {
		_, p := c.roleOf(targetEPK)
		c.Callbacks.OnOpAction(p, cc)
	}
	if send != nil {
		for _, member := range c.CloseSet {
			if member.EPK.Enc.Equals(fromEnc) {
				continue
			}
			send(member, b)
		}
	}
	return nil
}
