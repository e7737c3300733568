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

// Package groupchat implements the group-chat state machine of §4.2: the
// per-chat peer list, the invite and sync request/response dances that
// keep peers eventually consistent, gossip message handling, the
// close-neighbor set, and liveness eviction.
package groupchat

import (
	"github.com/halvard/meshchat/cert"
	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/errs"
	"github.com/halvard/meshchat/util"
)

// Role is a bitset over the moderation roles of §3.
type Role uint8

const (
	RoleUser    Role = 0
	RoleOp      Role = 1 << 0
	RoleFounder Role = 1 << 1
)

// Has reports whether r includes bit.
func (r Role) Has(bit Role) bool { return r&bit != 0 }

// Rank totally orders roles for the moderation hierarchy checks of §4.1
// ("a peer may not ban a higher-role peer"): FOUNDER outranks OP outranks
// USER, matching the supplemented total-rank reading of the source's
// role comparisons rather than a raw bitset superset test.
func (r Role) Rank() int {
	switch {
	case r.Has(RoleFounder):
		return 2
	case r.Has(RoleOp):
		return 1
	default:
		return 0
	}
}

// Status is a peer's presence indicator, gossiped via STATUS packets.
type Status uint8

const (
	StatusOnline Status = iota
	StatusAway
	StatusBusy
)

// Length bounds from spec §3/§4.2.4.
const (
	MaxNickLen  = 128
	MaxTopicLen = 512
)

// Peer is one chat member's record (spec §3).
type Peer struct {
	EPK          *crypto.EPK
	Addr         util.IPPort
	InviteCert   *cert.InviteCert
	CommonCerts  []*cert.CommonCert
	Nick         string
	Status       Status
	Role         Role
	Banned       bool
	BannedTime   util.AbsoluteTime
	Verified     bool
	LastUpdate   util.AbsoluteTime
	LastRcvdPing util.AbsoluteTime
}

// AddCommonCert appends a certificate to the peer's bounded history,
// evicting the oldest entry once cert.MaxCertificatesNum is reached
// (spec §4.1).
func (p *Peer) AddCommonCert(c *cert.CommonCert) {
	p.CommonCerts = append(p.CommonCerts, c)
	if len(p.CommonCerts) > cert.MaxCertificatesNum {
		p.CommonCerts = p.CommonCerts[len(p.CommonCerts)-cert.MaxCertificatesNum:]
	}
}

// SetNick validates and applies a nickname change.
func (p *Peer) SetNick(nick string, ts util.AbsoluteTime) error {
	if len(nick) > MaxNickLen {
		return errs.ErrLengthOverflow
	}
	p.Nick = nick
	p.LastUpdate = ts
	return nil
}
