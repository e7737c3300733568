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
	"crypto/rand"

	"golang.org/x/crypto/curve25519"
)

// NewEncKeypair creates a new curve25519 key exchange key pair, adapted
// from the teacher's crypto.NewKeypair shape (crypto/keys.go).
func NewEncKeypair() (*EncPublicKey, *EncPrivateKey, error) {
	prv := new(EncPrivateKey)
	if _, err := rand.Read(prv.Data[:]); err != nil {
		return nil, nil, err
	}
	// clamp, per the curve25519/x25519 convention
	prv.Data[0] &= 248
	prv.Data[31] &= 127
	prv.Data[31] |= 64

	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, (*[32]byte)(&prv.Data))
	p, err := NewEncPublicKey(pub[:])
	if err != nil {
		return nil, nil, err
	}
	return p, prv, nil
}

// Public derives the public key for a curve25519 private key.
func (prv *EncPrivateKey) Public() *EncPublicKey {
	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, (*[32]byte)(&prv.Data))
	p, _ := NewEncPublicKey(pub[:])
	return p
}
