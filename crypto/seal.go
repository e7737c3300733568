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
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// NonceSize is the width of the nonce carried in every sealed envelope
// (spec §6 wire framing).
const NonceSize = 24

// Nonce is a fresh value used once per sealed envelope.
type Nonce [NonceSize]byte

// NewNonce draws a fresh random nonce.
func NewNonce() (n Nonce, err error) {
	_, err = rand.Read(n[:])
	return
}

// ErrDecrypt is returned when a sealed envelope fails to authenticate.
var ErrDecrypt = fmt.Errorf("decryption failed")

// Seal encrypts and authenticates pt for recvPub, signable and readable
// only by the holder of recvPub's matching private key, using sendPrv as
// the sender's ephemeral or long-term ENC key. This is spec §6's
// "authenticated symmetric encryption with MAC and nonce" over curve25519
// keys (the teacher's AES+Twofish CFB scheme in crypto/symmetric.go has no
// MAC and does not fit; nacl/box implements exactly the primitive the
// spec names).
func Seal(pt []byte, nonce Nonce, recvPub *EncPublicKey, sendPrv *EncPrivateKey) []byte {
	var rpk, spk [32]byte
	copy(rpk[:], recvPub.Bytes())
	copy(spk[:], sendPrv.Data[:])
	return box.Seal(nil, pt, (*[24]byte)(&nonce), &rpk, &spk)
}

// Open decrypts and verifies a box sealed with Seal.
func Open(ct []byte, nonce Nonce, sendPub *EncPublicKey, recvPrv *EncPrivateKey) ([]byte, error) {
	var spk, rpk [32]byte
	copy(spk[:], sendPub.Bytes())
	copy(rpk[:], recvPrv.Data[:])
	pt, ok := box.Open(nil, ct, (*[24]byte)(&nonce), &spk, &rpk)
	if !ok {
		return nil, ErrDecrypt
	}
	return pt, nil
}
