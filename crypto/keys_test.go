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

package crypto

import (
	"bytes"
	"testing"
)

func TestSignVerify(t *testing.T) {
	pub, prv, err := NewSigKeypair()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("hello, chat")
	sig := prv.Sign(msg)
	if !pub.Verify(msg, sig) {
		t.Fatal("signature should verify")
	}
	sig.Data[0] ^= 0xff
	if pub.Verify(msg, sig) {
		t.Fatal("tampered signature should not verify")
	}
}

func TestEPKRoundTrip(t *testing.T) {
	id, err := NewIdentity()
	if err != nil {
		t.Fatal(err)
	}
	raw := id.Public.Bytes()
	if len(raw) != EPKSize {
		t.Fatalf("expected %d bytes, got %d", EPKSize, len(raw))
	}
	epk, err := EPKFromBytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !epk.Equals(id.Public) {
		t.Fatal("EPK round-trip mismatch")
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	id, err := NewIdentity()
	if err != nil {
		t.Fatal(err)
	}
	raw := id.Bytes()
	if len(raw) != IdentitySize {
		t.Fatalf("expected %d bytes, got %d", IdentitySize, len(raw))
	}
	got, err := IdentityFromBytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Public.Equals(id.Public) {
		t.Fatal("restored identity's public EPK does not match original")
	}
	msg := []byte("restored identity can still sign")
	if !got.Public.Sig.Verify(msg, got.SigSK.Sign(msg)) {
		t.Fatal("restored signing key does not produce verifiable signatures")
	}
}

func TestIdentityFromBytesRejectsWrongSize(t *testing.T) {
	if _, err := IdentityFromBytes([]byte{1, 2, 3}); err != ErrInvalidKeySize {
		t.Fatalf("err = %v, want ErrInvalidKeySize", err)
	}
}

func TestSealOpen(t *testing.T) {
	aPub, aPrv, _ := NewEncKeypair()
	bPub, bPrv, _ := NewEncKeypair()
	nonce, err := NewNonce()
	if err != nil {
		t.Fatal(err)
	}
	pt := []byte("secret payload")
	ct := Seal(pt, nonce, bPub, aPrv)
	out, err := Open(ct, nonce, aPub, bPrv)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, out) {
		t.Fatal("plaintext mismatch after seal/open round-trip")
	}
	ct[len(ct)-1] ^= 0xff
	if _, err := Open(ct, nonce, aPub, bPrv); err == nil {
		t.Fatal("tampered ciphertext should not decrypt")
	}
}
