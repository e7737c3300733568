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
	"github.com/halvard/meshchat/cert"
	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/errs"
	"github.com/halvard/meshchat/util"
)

// InviteState is the per-(chat, remote peer) state of §4.2.2.
type InviteState int

const (
	StateIdle InviteState = iota
	StateRequested
	StateHalfSigned
	StateVerified
	StateJoined
)

// PendingInvite tracks a join in progress from the joiner's side.
type PendingInvite struct {
	RemoteEPK  *crypto.EPK
	RemoteAddr util.IPPort
	State      InviteState
	Started    util.AbsoluteTime
}

// State reports the current join state, StateIdle if no join is pending.
func (c *Chat) State() InviteState {
	if c.join == nil {
		return StateIdle
	}
	return c.join.State
}

// BeginInvite implements send_invite_request's local half: the joiner
// builds its own half-certificate and transitions IDLE → REQUESTED
// (spec §4.2.2). The half-cert is returned for the caller to encrypt
// and send to remoteAddr.
func (c *Chat) BeginInvite(remoteEPK *crypto.EPK, remoteAddr util.IPPort) *cert.InviteCert {
	c.join = &PendingInvite{
		RemoteEPK:  remoteEPK,
		RemoteAddr: remoteAddr,
		State:      StateRequested,
		Started:    util.AbsoluteTimeNow(),
	}
	return cert.MakeInviteHalf(c.Self.SigSK, c.Self.Public)
}

// HandleInviteRequest implements the inviter side of §4.2.2: verify the
// half-cert's integrity, reject a banned sender, complete the invite
// (a founder signs with the chat key, anyone else with self's own key),
// and install the new peer as verified (the inviter is verified by
// induction, or is the founder).
func (c *Chat) HandleInviteRequest(half *cert.InviteCert, fromAddr util.IPPort) (*cert.InviteCert, *Peer, error) {
	if err := cert.VerifyInviteIntegrity(half); err != nil {
		return nil, nil, errs.ErrCertCorrupt
	}
	inviteeEPK, err := half.InviteeEPK()
	if err != nil {
		return nil, nil, errs.ErrCertCorrupt
	}
	if existing := c.FindPeer(inviteeEPK); existing != nil && existing.Banned {
		return nil, nil, errs.ErrBanned
	}

	signerSK, signerPK := c.Self.SigSK, c.Self.Public
	if c.Credentials != nil {
		signerSK, signerPK = c.Credentials.Chat.SigSK, c.Credentials.Chat.Public
	}
	full, err := cert.CompleteInvite(half, signerSK, signerPK)
	if err != nil {
		return nil, nil, err
	}

	selfVerified := c.SelfRole.Has(RoleFounder) || (c.join != nil && c.join.State >= StateVerified)
	peer := &Peer{
		EPK:        inviteeEPK,
		Addr:       fromAddr,
		InviteCert: full,
		Verified:   selfVerified,
		LastUpdate: util.AbsoluteTimeNow(),
	}
	if err := c.InsertPeer(peer); err != nil {
		return nil, nil, err
	}
	c.RecomputeCloseSet()
	return full, peer, nil
}

// HandleInviteResponse implements REQUESTED → HALF_SIGNED on receipt of
// an INVITE_RESPONSE, and opportunistically advances to VERIFIED when
// the inviter turns out to be the chat's founder (spec §4.2.2).
func (c *Chat) HandleInviteResponse(full *cert.InviteCert) error {
	if c.join == nil || c.join.State != StateRequested {
		return errs.ErrInvalidState
	}
	if err := cert.VerifyInviteIntegrity(full); err != nil {
		return errs.ErrCertCorrupt
	}
	if !full.IsComplete() {
		return errs.ErrCertCorrupt
	}
	c.SelfInviteCert = full
	c.join.State = StateHalfSigned
	c.tryVerifySelf()
	return nil
}

// tryVerifySelf re-evaluates the joiner's own invite certificate against
// the currently known peer set, advancing HALF_SIGNED → VERIFIED once
// ProcessInviteCert accepts it (spec §4.2.2's second VERIFIED trigger:
// "once process_invite_cert against the known peer set succeeds").
func (c *Chat) tryVerifySelf() {
	if c.SelfInviteCert == nil || c.join == nil || c.join.State < StateHalfSigned {
		return
	}
	if c.join.State >= StateVerified {
		return
	}
	_, _, _ = c.ProcessInviteCert(c.SelfInviteCert)
}
