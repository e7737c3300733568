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

// Package crypto wraps the two key pairs that make up an extended public
// key (EPK, spec §3): a curve25519 encryption key (ENC) and an ed25519
// signature key (SIG). It is the sole place primitives are named; every
// other package signs and encrypts through the types defined here.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/halvard/meshchat/util"
)

// Sizes, per spec §3.
const (
	EncKeySize   = 32
	SigKeySize   = 32
	EPKSize      = EncKeySize + SigKeySize
	SignatureLen = ed25519.SignatureSize
)

// ErrInvalidKeySize is returned when raw key material has the wrong length.
var ErrInvalidKeySize = fmt.Errorf("invalid key size")

//----------------------------------------------------------------------
// Signature
//----------------------------------------------------------------------

// Signature is a fixed-width ed25519 signature.
type Signature struct {
	Data []byte `size:"64"`
}

// NewSignatureFromBytes wraps raw signature bytes.
func NewSignatureFromBytes(b []byte) *Signature {
	return &Signature{Data: util.Clone(b)}
}

//----------------------------------------------------------------------
// Signature key pair (SIG half of an EPK)
//----------------------------------------------------------------------

// SigPublicKey is an Ed25519 public (verification) key.
type SigPublicKey struct {
	key ed25519.PublicKey
}

// NewSigPublicKey wraps a 32-byte Ed25519 public key.
func NewSigPublicKey(data []byte) (*SigPublicKey, error) {
	if len(data) != SigKeySize {
		return nil, ErrInvalidKeySize
	}
	return &SigPublicKey{key: ed25519.PublicKey(util.Clone(data))}, nil
}

// Bytes returns the raw key.
func (pub *SigPublicKey) Bytes() []byte {
	return []byte(pub.key)
}

// Verify checks a signature over msg with this public key.
func (pub *SigPublicKey) Verify(msg []byte, sig *Signature) bool {
	if sig == nil || len(sig.Data) != SignatureLen {
		return false
	}
	return ed25519.Verify(pub.key, msg, sig.Data)
}

// SigPrivateKey is an Ed25519 signing key.
type SigPrivateKey struct {
	key ed25519.PrivateKey
}

// NewSigKeypair creates a fresh Ed25519 signature key pair.
func NewSigKeypair() (*SigPublicKey, *SigPrivateKey, error) {
	pub, prv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return &SigPublicKey{key: pub}, &SigPrivateKey{key: prv}, nil
}

// Public returns the public half of a signing key.
func (prv *SigPrivateKey) Public() *SigPublicKey {
	return &SigPublicKey{key: prv.key.Public().(ed25519.PublicKey)}
}

// Sign produces a signature over msg.
func (prv *SigPrivateKey) Sign(msg []byte) *Signature {
	return NewSignatureFromBytes(ed25519.Sign(prv.key, msg))
}

//----------------------------------------------------------------------
// Encryption key pair (ENC half of an EPK)
//----------------------------------------------------------------------

// EncPublicKey is a curve25519 public (encryption) key.
type EncPublicKey struct {
	Data [EncKeySize]byte
}

// NewEncPublicKey wraps a 32-byte curve25519 public key.
func NewEncPublicKey(data []byte) (*EncPublicKey, error) {
	if len(data) != EncKeySize {
		return nil, ErrInvalidKeySize
	}
	k := new(EncPublicKey)
	copy(k.Data[:], data)
	return k, nil
}

// Bytes returns the raw key.
func (pub *EncPublicKey) Bytes() []byte {
	return pub.Data[:]
}

// Equals compares two encryption keys.
func (pub *EncPublicKey) Equals(o *EncPublicKey) bool {
	return pub.Data == o.Data
}

// EncPrivateKey is a curve25519 private key.
type EncPrivateKey struct {
	Data [EncKeySize]byte
}

//----------------------------------------------------------------------
// Extended public key
//----------------------------------------------------------------------

// EPK is the extended public key of spec §3: {ENC 32 || SIG 32}. Every
// chat and peer identity is an EPK.
type EPK struct {
	Enc *EncPublicKey
	Sig *SigPublicKey
}

// NewEPK combines an ENC and a SIG public key into an extended public key.
func NewEPK(enc *EncPublicKey, sig *SigPublicKey) *EPK {
	return &EPK{Enc: enc, Sig: sig}
}

// EPKFromBytes parses a 64-byte buffer into an EPK.
func EPKFromBytes(b []byte) (*EPK, error) {
	if len(b) != EPKSize {
		return nil, ErrInvalidKeySize
	}
	enc, err := NewEncPublicKey(b[:EncKeySize])
	if err != nil {
		return nil, err
	}
	sig, err := NewSigPublicKey(b[EncKeySize:])
	if err != nil {
		return nil, err
	}
	return &EPK{Enc: enc, Sig: sig}, nil
}

// Bytes renders the EPK back to its 64-byte wire form.
func (e *EPK) Bytes() []byte {
	out := make([]byte, 0, EPKSize)
	out = append(out, e.Enc.Bytes()...)
	out = append(out, e.Sig.Bytes()...)
	return out
}

// Equals compares two EPKs for byte-wise equality (spec §3: "equality and
// lookup use the full 64-byte value unless otherwise noted").
func (e *EPK) Equals(o *EPK) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.Enc.Equals(o.Enc) && string(e.Sig.Bytes()) == string(o.Sig.Bytes())
}

func (e *EPK) String() string {
	return fmt.Sprintf("%x", e.Bytes())
}

//----------------------------------------------------------------------
// Identity: a matching (EPK, private ENC, private SIG) tuple
//----------------------------------------------------------------------

// Identity is a full chat/peer identity: the public EPK plus both private
// halves, used by the owner to sign certificates and decrypt envelopes.
type Identity struct {
	Public *EPK
	EncSK  *EncPrivateKey
	SigSK  *SigPrivateKey
}

// NewIdentity generates a fresh random identity (a new chat or peer EPK).
func NewIdentity() (*Identity, error) {
	encPub, encPrv, err := NewEncKeypair()
	if err != nil {
		return nil, err
	}
	sigPub, sigPrv, err := NewSigKeypair()
	if err != nil {
		return nil, err
	}
	return &Identity{
		Public: NewEPK(encPub, sigPub),
		EncSK:  encPrv,
		SigSK:  sigPrv,
	}, nil
}

// IdentitySize is the width of an Identity's persisted form: the 32-byte
// curve25519 scalar plus the 64-byte ed25519 private key.
const IdentitySize = EncKeySize + ed25519.PrivateKeySize

// Bytes renders an identity's private halves for storage between process
// restarts (the public EPK is always re-derivable from them). Callers are
// responsible for keeping the result out of a world-readable file.
func (id *Identity) Bytes() []byte {
	out := make([]byte, 0, IdentitySize)
	out = append(out, id.EncSK.Data[:]...)
	out = append(out, id.SigSK.key...)
	return out
}

// IdentityFromBytes restores an identity previously rendered by Bytes.
func IdentityFromBytes(b []byte) (*Identity, error) {
	if len(b) != IdentitySize {
		return nil, ErrInvalidKeySize
	}
	encPrv := new(EncPrivateKey)
	copy(encPrv.Data[:], b[:EncKeySize])
	sigPrv := &SigPrivateKey{key: ed25519.PrivateKey(append([]byte(nil), b[EncKeySize:]...))}
	return &Identity{
		Public: NewEPK(encPrv.Public(), sigPrv.Public()),
		EncSK:  encPrv,
		SigSK:  sigPrv,
	}, nil
}
