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

package util

import (
	"bytes"
	"encoding/hex"

	"github.com/bfix/gospel/math"
)

// addrSize is the width (in bytes) of the key space closeness is measured
// over: the 32-byte ENC half of an extended public key (spec §3).
const addrSize = 32

// PeerAddress is a closeness key derived from the ENC half of an extended
// public key. Both the DHT's "closest nodes to a chat id" query and a
// chat's close-neighbor set (spec §4.2.5) measure distance the same way,
// so this type is shared between the dht and groupchat packages, adapted
// from service/dht/routingtable.go's PeerAddress/Distance.
type PeerAddress struct {
	addr [addrSize]byte
}

// NewPeerAddress builds a closeness key from a 32-byte ENC key.
func NewPeerAddress(encKey []byte) *PeerAddress {
	r := new(PeerAddress)
	copy(r.addr[:], encKey)
	return r
}

// Bytes returns the raw key bytes.
func (a *PeerAddress) Bytes() []byte {
	return a.addr[:]
}

func (a *PeerAddress) String() string {
	return hex.EncodeToString(a.addr[:])
}

// Equals reports whether two addresses are identical.
func (a *PeerAddress) Equals(b *PeerAddress) bool {
	return bytes.Equal(a.addr[:], b.addr[:])
}

// Distance returns the XOR distance between two addresses as an arbitrary
// precision integer; smaller means closer.
func (a *PeerAddress) Distance(b *PeerAddress) *math.Int {
	var d [addrSize]byte
	for i := range d {
		d[i] = a.addr[i] ^ b.addr[i]
	}
	return math.NewIntFromBytes(d[:])
}

// Closer reports whether 'a' is strictly closer to 'ref' than 'b' is,
// used by the announce service's converging-forward check (spec §4.3.2).
func Closer(ref, a, b *PeerAddress) bool {
	return a.Distance(ref).Cmp(b.Distance(ref)) < 0
}
