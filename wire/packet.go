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

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/halvard/meshchat/crypto"
)

// Envelope is the on-wire framing of spec §6:
//
//	[ type:1 | sender_ENC_pk:32 | extra | nonce:24 | ciphertext+MAC ]
//
// 'extra' is empty for the other announce packet kinds, the cleartext
// 8-byte req_id for GCA_SEND_NODES, or the cleartext 32-byte recipient ENC
// key for GCA_PING_REQUEST and for every group-chat packet kind — inserted
// so the receiver can pick the right secret key before the sealed payload
// can be interpreted.
type Envelope struct {
	Type     PacketType
	SenderPK *crypto.EncPublicKey
	Extra    []byte
	Nonce    crypto.Nonce
	Body     []byte // ciphertext || MAC
}

// ErrShortPacket is returned when a buffer is too small to hold a header.
var ErrShortPacket = fmt.Errorf("packet too short")

// Encode renders the envelope to its wire bytes.
func (e *Envelope) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(e.Type))
	buf.Write(e.SenderPK.Bytes())
	buf.Write(e.Extra)
	buf.Write(e.Nonce[:])
	buf.Write(e.Body)
	if buf.Len() > MaxPacketSize {
		return nil, fmt.Errorf("packet exceeds UDP payload limit (%d > %d)", buf.Len(), MaxPacketSize)
	}
	return buf.Bytes(), nil
}

// DecodeEnvelope parses the fixed header, extracting 'extraLen' cleartext
// bytes between the sender key and the nonce (0, 8 for SEND_NODES req_id,
// or 32 for the recipient key of PING_REQUEST and group-chat packets).
func DecodeEnvelope(b []byte, extraLen int) (*Envelope, error) {
	hdr := 1 + crypto.EncKeySize + extraLen + crypto.NonceSize
	if len(b) < hdr {
		return nil, ErrShortPacket
	}
	typ := PacketType(b[0])
	off := 1
	senderPK, err := crypto.NewEncPublicKey(b[off : off+crypto.EncKeySize])
	if err != nil {
		return nil, err
	}
	off += crypto.EncKeySize
	extra := b[off : off+extraLen]
	off += extraLen
	var nonce crypto.Nonce
	copy(nonce[:], b[off:off+crypto.NonceSize])
	off += crypto.NonceSize
	return &Envelope{
		Type:     typ,
		SenderPK: senderPK,
		Extra:    append([]byte(nil), extra...),
		Nonce:    nonce,
		Body:     append([]byte(nil), b[off:]...),
	}, nil
}

// PeekType reads just the leading type byte, used by the transport
// demultiplexer to route before the rest of the header is validated.
func PeekType(b []byte) (PacketType, error) {
	if len(b) < 1 {
		return 0, ErrShortPacket
	}
	return PacketType(b[0]), nil
}

// PutUint64 / GetUint64 are little helpers for the cleartext req_id/ping_id
// fields that ride outside the sealed payload (spec §4.3.1).
func PutUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func GetUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
