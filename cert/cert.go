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

// Package cert implements the certificate algebra of §4.1: invite
// certificates (built in two halves, one signature each) and common
// (moderation) certificates, plus their signature integrity checks. The
// authorization checks live in the group-chat module.
package cert

import (
	"bytes"
	"encoding/binary"

	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/errs"
	"github.com/halvard/meshchat/util"
)

// CommonType distinguishes the two moderation certificate kinds.
type CommonType uint8

const (
	Invite CommonType = iota // type byte written at the head of invite records
	Ban
	OpCredentials
)

// Field widths, named after the original's INVITE_CERTIFICATE_SIGNED_SIZE
// family so the arithmetic below reads the same way.
const (
	timeStampSize = 8
	typeSize      = 1

	// SemiInviteSize is the size of a half-signed invite certificate:
	// type(1) || invitee_epk(64) || timestamp(8) || invitee_sig(64).
	SemiInviteSize = typeSize + crypto.EPKSize + timeStampSize + crypto.SignatureLen

	// InviteSize is the size of a fully-completed invite certificate:
	// the semi-invite followed by inviter_epk(64) || timestamp(8) || inviter_sig(64).
	InviteSize = SemiInviteSize + crypto.EPKSize + timeStampSize + crypto.SignatureLen

	// CommonSize is the size of a moderation certificate:
	// type(1) || target_epk(64) || source_epk(64) || timestamp(8) || source_sig(64).
	CommonSize = typeSize + crypto.EPKSize + crypto.EPKSize + timeStampSize + crypto.SignatureLen

	// MaxCertificatesNum bounds the per-peer common-cert history (§4.1).
	MaxCertificatesNum = 5
)

// InviteCert is the fixed-width record produced by make_invite_half and
// completed by complete_invite.
type InviteCert struct {
	raw []byte // exactly SemiInviteSize or InviteSize bytes, the wire form
}

// Bytes returns the record's wire representation.
func (c *InviteCert) Bytes() []byte { return append([]byte(nil), c.raw...) }

// IsComplete reports whether the certificate has an inviter half.
func (c *InviteCert) IsComplete() bool { return len(c.raw) == InviteSize }

// InviteeEPK extracts the invitee's extended public key from the record.
func (c *InviteCert) InviteeEPK() (*crypto.EPK, error) {
	return crypto.EPKFromBytes(c.raw[typeSize : typeSize+crypto.EPKSize])
}

// InviterEPK extracts the inviter's extended public key, valid only once
// IsComplete() is true.
func (c *InviteCert) InviterEPK() (*crypto.EPK, error) {
	if !c.IsComplete() {
		return nil, errs.ErrCertCorrupt
	}
	off := SemiInviteSize
	return crypto.EPKFromBytes(c.raw[off : off+crypto.EPKSize])
}

// InviteCertFromBytes wraps a record read off the wire without parsing
// it further; verify_integrity still has to be run before it is trusted.
func InviteCertFromBytes(b []byte) (*InviteCert, error) {
	if len(b) != SemiInviteSize && len(b) != InviteSize {
		return nil, errs.ErrCertCorrupt
	}
	return &InviteCert{raw: append([]byte(nil), b...)}, nil
}

// MakeInviteHalf builds the invitee's half of an invite certificate:
// {INVITE, self_pk, now(), sign(self_sk, preceding bytes)}.
func MakeInviteHalf(selfSK *crypto.SigPrivateKey, selfPK *crypto.EPK) *InviteCert {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(Invite))
	buf.Write(selfPK.Bytes())
	writeTimestamp(buf, util.AbsoluteTimeNow())
	sig := selfSK.Sign(buf.Bytes())
	buf.Write(sig.Data)
	return &InviteCert{raw: buf.Bytes()}
}

// CompleteInvite appends the inviter's half to a half-signed invite
// certificate, producing the fully-signed InviteSize record. The same
// call builds a founder's self-invite when the chat secret key and chat
// EPK are passed as inviter.
func CompleteInvite(half *InviteCert, inviterSK *crypto.SigPrivateKey, inviterPK *crypto.EPK) (*InviteCert, error) {
	if len(half.raw) != SemiInviteSize {
		return nil, errs.ErrCertCorrupt
	}
	buf := new(bytes.Buffer)
	buf.Write(half.raw)
	buf.Write(inviterPK.Bytes())
	writeTimestamp(buf, util.AbsoluteTimeNow())
	sig := inviterSK.Sign(buf.Bytes())
	buf.Write(sig.Data)
	return &InviteCert{raw: buf.Bytes()}, nil
}

// CommonCert is the fixed-width moderation record produced by MakeCommonCert.
type CommonCert struct {
	raw []byte // exactly CommonSize bytes
}

// Bytes returns the record's wire representation.
func (c *CommonCert) Bytes() []byte { return append([]byte(nil), c.raw...) }

// Type reports the certificate kind.
func (c *CommonCert) Type() CommonType { return CommonType(c.raw[0]) }

// TargetEPK extracts the moderated peer's extended public key.
func (c *CommonCert) TargetEPK() (*crypto.EPK, error) {
	off := typeSize
	return crypto.EPKFromBytes(c.raw[off : off+crypto.EPKSize])
}

// SourceEPK extracts the issuing peer's extended public key.
func (c *CommonCert) SourceEPK() (*crypto.EPK, error) {
	off := typeSize + crypto.EPKSize
	return crypto.EPKFromBytes(c.raw[off : off+crypto.EPKSize])
}

// CommonCertFromBytes wraps a record read off the wire.
func CommonCertFromBytes(b []byte) (*CommonCert, error) {
	if len(b) != CommonSize {
		return nil, errs.ErrCertCorrupt
	}
	return &CommonCert{raw: append([]byte(nil), b...)}, nil
}

// MakeCommonCert builds a moderation certificate:
// {type, target_pk, source_pk, now(), sign(source_sk, preceding)}.
func MakeCommonCert(sourceSK *crypto.SigPrivateKey, sourcePK, targetPK *crypto.EPK, typ CommonType) *CommonCert {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(typ))
	buf.Write(targetPK.Bytes())
	buf.Write(sourcePK.Bytes())
	writeTimestamp(buf, util.AbsoluteTimeNow())
	sig := sourceSK.Sign(buf.Bytes())
	buf.Write(sig.Data)
	return &CommonCert{raw: buf.Bytes()}
}

// VerifyInviteIntegrity checks both signatures on an invite certificate:
// the invitee's over [0, SemiInviteSize-SignatureLen), then — if complete — the
// inviter's over [0, InviteSize-SignatureLen).
func VerifyInviteIntegrity(c *InviteCert) error {
	if len(c.raw) != SemiInviteSize && len(c.raw) != InviteSize {
		return errs.ErrCertCorrupt
	}
	inviteeEPK, err := c.InviteeEPK()
	if err != nil {
		return errs.ErrCertCorrupt
	}
	inviteeMsg := c.raw[:SemiInviteSize-crypto.SignatureLen]
	inviteeSig := crypto.NewSignatureFromBytes(c.raw[SemiInviteSize-crypto.SignatureLen : SemiInviteSize])
	if !inviteeEPK.Sig.Verify(inviteeMsg, inviteeSig) {
		return errs.ErrCertCorrupt
	}
	if !c.IsComplete() {
		return nil
	}
	inviterEPK, err := c.InviterEPK()
	if err != nil {
		return errs.ErrCertCorrupt
	}
	inviterMsg := c.raw[:InviteSize-crypto.SignatureLen]
	inviterSig := crypto.NewSignatureFromBytes(c.raw[InviteSize-crypto.SignatureLen:])
	if !inviterEPK.Sig.Verify(inviterMsg, inviterSig) {
		return errs.ErrCertCorrupt
	}
	return nil
}

// VerifyCommonIntegrity checks the source signature on a moderation
// certificate over the preceding bytes.
func VerifyCommonIntegrity(c *CommonCert) error {
	if len(c.raw) != CommonSize {
		return errs.ErrCertCorrupt
	}
	sourceEPK, err := c.SourceEPK()
	if err != nil {
		return errs.ErrCertCorrupt
	}
	msg := c.raw[:CommonSize-crypto.SignatureLen]
	sig := crypto.NewSignatureFromBytes(c.raw[CommonSize-crypto.SignatureLen:])
	if !sourceEPK.Sig.Verify(msg, sig) {
		return errs.ErrCertCorrupt
	}
	return nil
}

func writeTimestamp(buf *bytes.Buffer, t util.AbsoluteTime) {
	var b [timeStampSize]byte
	binary.BigEndian.PutUint64(b[:], t.Val)
	buf.Write(b[:])
}
