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
	"time"

	"github.com/halvard/meshchat/cert"
	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/errs"
	"github.com/halvard/meshchat/util"
)

// MaxPeers bounds a chat's peer list; the source leaves this
// implementation-defined ("massive text chats"), so a generous but
// finite arena is chosen here rather than an unbounded list, per the
// Design Notes' "arenas indexed by small integers" guidance.
const MaxPeers = 4096

// Tunables named after the source's constants (spec §4.2, §9). Vars
// rather than consts so a deployment can override them from
// GroupChatConfig at startup.
var (
	// BadGroupNodeTimeout is BAD_GROUPNODE_TIMEOUT (§3, §4.2.6).
	BadGroupNodeTimeout = 60 * time.Second

	// GroupPingInterval is GROUP_PING_INTERVAL (§4.2.4).
	GroupPingInterval = 5 * time.Second

	// SyncSkewTolerance is the default high-watermark skew tolerance
	// of §4.2.3.
	SyncSkewTolerance = time.Minute
)

// Credentials are the founder-only chat secret key material (spec §3).
type Credentials struct {
	Chat    *crypto.Identity // chat EPK pair, including the chat secret keys
	Created util.AbsoluteTime
	Ops     []*crypto.EPK
}

// Callbacks are the chat's two dynamic-dispatch variation points (Design
// Notes: "model as a small capability interface ... rather than
// per-instance function pointers with opaque userdata").
type Callbacks interface {
	// OnMessage is invoked for a delivered PLAIN/ACTION-carried text
	// payload from a known peer.
	OnMessage(peer *Peer, action bool, payload []byte)
	// OnOpAction is invoked when a moderation certificate broadcast by
	// ACTION is accepted and applied.
	OnOpAction(peer *Peer, c *cert.CommonCert)
}

// Chat is one joined or founded group chat (spec §3).
type Chat struct {
	Self           *crypto.Identity // self EPK pair
	SelfInviteCert *cert.InviteCert
	SelfCommonCerts []*cert.CommonCert
	ChatID         *crypto.EPK // chat EPK; nil until founded or joined
	FounderEPK     *crypto.EPK
	Peers          []*Peer // nil entries are free slots, arena-style
	CloseSet       []*Peer // size CloseSetSize, recomputed on mutation
	Topic          string
	TopicUpdate    util.AbsoluteTime
	SelfNick       string
	SelfStatus     Status
	SelfRole       Role
	LastSyncedTime util.AbsoluteTime
	HighWatermark  util.AbsoluteTime
	LastSentPing   util.AbsoluteTime
	Credentials    *Credentials // non-nil only for a founder
	MsgCounter     uint64
	Callbacks      Callbacks

	join *PendingInvite // non-nil while this chat is being joined
	seen *DedupWindow   // ACTION rebroadcast dedup window (§4.2.4)
}

// NewChat creates an empty chat with a fresh self EPK pair, ready to
// either found a new chat (CreateCredentials) or join one (BeginInvite).
func NewChat(cb Callbacks) (*Chat, error) {
	self, err := crypto.NewIdentity()
	if err != nil {
		return nil, err
	}
	return &Chat{
		Self:      self,
		Peers:     make([]*Peer, MaxPeers),
		Callbacks: cb,
		seen:      NewDedupWindow(),
	}, nil
}

// CreateCredentials mints a fresh chat identity and installs self as its
// founder, bootstrapping the self-invite by completing it with the chat
// secret key itself (spec §4.1's "founder bootstraps ... by passing the
// chat secret key and chat EPK as inviter").
func (c *Chat) CreateCredentials() (*crypto.EPK, error) {
	if c.Credentials != nil {
		return nil, errs.ErrAlreadyFounder
	}
	chatID, err := crypto.NewIdentity()
	if err != nil {
		return nil, err
	}
	half := cert.MakeInviteHalf(c.Self.SigSK, c.Self.Public)
	full, err := cert.CompleteInvite(half, chatID.SigSK, chatID.Public)
	if err != nil {
		return nil, err
	}
	c.ChatID = chatID.Public
	c.FounderEPK = chatID.Public
	c.Credentials = &Credentials{Chat: chatID, Created: util.AbsoluteTimeNow()}
	c.SelfInviteCert = full
	c.SelfRole = RoleFounder
	c.HighWatermark = util.AbsoluteTimeNow()
	return chatID.Public, nil
}

// FindPeer returns the peer matching epk, or nil.
func (c *Chat) FindPeer(epk *crypto.EPK) *Peer {
	for _, p := range c.Peers {
		if p != nil && p.EPK.Equals(epk) {
			return p
		}
	}
	return nil
}

// InsertPeer installs p, following the resource-exhaustion policy of
// §4.2.7: fill a free slot, or evict the oldest entry (by LastUpdate)
// that is not currently in the close set. The peer list never contains
// the self EPK (spec §3 invariant).
func (c *Chat) InsertPeer(p *Peer) error {
	if p.EPK.Equals(c.Self.Public) {
		return nil
	}
	if existing := c.FindPeer(p.EPK); existing != nil {
		*existing = *p
		return nil
	}
	for i, slot := range c.Peers {
		if slot == nil {
			c.Peers[i] = p
			return nil
		}
	}
	evict := -1
	for i, slot := range c.Peers {
		if c.inCloseSet(slot) {
			continue
		}
		if evict == -1 || slot.LastUpdate.Before(c.Peers[evict].LastUpdate) {
			evict = i
		}
	}
	if evict == -1 {
		return errs.ErrTableFull
	}
	c.Peers[evict] = p
	return nil
}

// RemovePeer clears the slot holding epk, if any.
func (c *Chat) RemovePeer(epk *crypto.EPK) {
	for i, p := range c.Peers {
		if p != nil && p.EPK.Equals(epk) {
			c.Peers[i] = nil
			return
		}
	}
}

func (c *Chat) inCloseSet(p *Peer) bool {
	for _, m := range c.CloseSet {
		if m == p {
			return true
		}
	}
	return false
}

// isFounder reports whether epk is the chat's founder (the chat id itself).
func (c *Chat) isFounder(epk *crypto.EPK) bool {
	return c.ChatID != nil && epk.Equals(c.ChatID)
}

// FindPeerByEnc finds the peer matching an ENC key alone, used wherever
// only a sealed envelope's sender key is available: the envelope carries
// the sender's ENC key only, never its SIG half (spec §6).
func (c *Chat) FindPeerByEnc(enc *crypto.EncPublicKey) *Peer {
	for _, p := range c.Peers {
		if p != nil && p.EPK.Enc.Equals(enc) {
			return p
		}
	}
	return nil
}

// isFounderEnc is isFounder's ENC-only counterpart.
func (c *Chat) isFounderEnc(enc *crypto.EncPublicKey) bool {
	return c.ChatID != nil && c.ChatID.Enc.Equals(enc)
}

// ProcessInviteCert implements process_invite_cert (spec §4.1): it
// reports whether the inviter is the chat's founder (always accepted),
// looks up the inviter among known peers otherwise, and — if the
// inviter is verified (or is the founder) — marks the invitee peer
// verified. Verification is thus monotone, propagating along the invite
// graph rooted at the founder.
func (c *Chat) ProcessInviteCert(ic *cert.InviteCert) (peerIdx int, founderInvite bool, err error) {
	inviterEPK, err := ic.InviterEPK()
	if err != nil {
		return 0, false, errs.ErrCertCorrupt
	}
	inviteeEPK, err := ic.InviteeEPK()
	if err != nil {
		return 0, false, errs.ErrCertCorrupt
	}

	inviterVerified := false
	idx := -1
	if c.isFounder(inviterEPK) {
		founderInvite = true
		inviterVerified = true
	} else {
		for i, p := range c.Peers {
			if p != nil && p.EPK.Equals(inviterEPK) {
				idx = i
				inviterVerified = p.Verified
				break
			}
		}
		if idx == -1 {
			return 0, false, errs.ErrUnknownInviter
		}
	}

	if inviterVerified {
		if inviteeEPK.Equals(c.Self.Public) {
			c.markSelfVerified()
		} else if target := c.FindPeer(inviteeEPK); target != nil {
			target.Verified = true
		}
	}
	return idx, founderInvite, nil
}

// ProcessCommonCert implements process_common_cert (spec §4.1): the
// source peer must hold OP or FOUNDER, a peer may not ban a
// higher-ranked peer, and the certificate is appended to both the
// source's and target's bounded cert history.
func (c *Chat) ProcessCommonCert(cc *cert.CommonCert) error {
	if err := cert.VerifyCommonIntegrity(cc); err != nil {
		return err
	}
	sourceEPK, err := cc.SourceEPK()
	if err != nil {
		return errs.ErrCertCorrupt
	}
	targetEPK, err := cc.TargetEPK()
	if err != nil {
		return errs.ErrCertCorrupt
	}
	sourceRole, source := c.roleOf(sourceEPK)
	if !sourceRole.Has(RoleOp) && !sourceRole.Has(RoleFounder) {
		return errs.ErrUnauthorized
	}
	targetRole, target := c.roleOf(targetEPK)
	if target == nil && !targetEPK.Equals(c.Self.Public) {
		return errs.ErrNotFound
	}

	switch cc.Type() {
	case cert.Ban:
		if sourceRole.Rank() <= targetRole.Rank() {
			return errs.ErrUnauthorized
		}
		if target != nil {
			target.Banned = true
			target.BannedTime = util.AbsoluteTimeNow()
		}
	case cert.OpCredentials:
		if target != nil {
			target.Role |= RoleOp
		} else {
			c.SelfRole |= RoleOp
		}
	}

	if source != nil {
		source.AddCommonCert(cc)
	} else {
		c.SelfCommonCerts = appendBounded(c.SelfCommonCerts, cc)
	}
	if target != nil {
		target.AddCommonCert(cc)
	} else {
		c.SelfCommonCerts = appendBounded(c.SelfCommonCerts, cc)
	}
	return nil
}

func appendBounded(certs []*cert.CommonCert, cc *cert.CommonCert) []*cert.CommonCert {
	certs = append(certs, cc)
	if len(certs) > cert.MaxCertificatesNum {
		certs = certs[len(certs)-cert.MaxCertificatesNum:]
	}
	return certs
}

// roleOf resolves epk's role and peer record, treating self and the
// founder specially since neither appears in the peer list.
func (c *Chat) roleOf(epk *crypto.EPK) (Role, *Peer) {
	if epk.Equals(c.Self.Public) {
		return c.SelfRole, nil
	}
	if c.isFounder(epk) {
		return RoleFounder, nil
	}
	if p := c.FindPeer(epk); p != nil {
		return p.Role, p
	}
	return RoleUser, nil
}

// markSelfVerified advances the join state machine; self-verification
// has no role bit of its own, it is the join state reaching VERIFIED.
func (c *Chat) markSelfVerified() {
	if c.join != nil && c.join.State < StateVerified {
		c.join.State = StateVerified
	}
}

// ProcessChainTrust is left as a documented stub: the source's semantics
// are undefined (a FIXME in the original), and the Design Notes direct
// implementers to treat chain-trust verification as the invite-cert
// propagation ProcessInviteCert already performs, leaving this entry
// point unimplemented pending clarification.
func (c *Chat) ProcessChainTrust(epk *crypto.EPK) error {
	return errs.ErrNotImplemented
}
