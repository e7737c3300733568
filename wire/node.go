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
	"github.com/halvard/meshchat/util"
)

// ErrTCPDisabled is returned by UnpackNode when a TCP family node is seen
// but the caller does not support TCP-carried addresses (spec §6).
var ErrTCPDisabled = fmt.Errorf("TCP family node rejected: tcp not enabled")

// ErrMalformedNode is returned for a truncated or unrecognized node record.
var ErrMalformedNode = fmt.Errorf("malformed packed node")

// Node is one entry of the packed-node format of spec §6:
// family:1 | ip:(4 or 16) | port:2 | epk:64.
type Node struct {
	Addr util.IPPort
	EPK  *crypto.EPK
}

// PackNodes serializes a list of nodes back-to-back.
func PackNodes(nodes []Node) []byte {
	buf := new(bytes.Buffer)
	for _, n := range nodes {
		buf.WriteByte(byte(n.Addr.Family))
		buf.Write(n.Addr.IP)
		var portBuf [2]byte
		binary.BigEndian.PutUint16(portBuf[:], n.Addr.Port)
		buf.Write(portBuf[:])
		buf.Write(n.EPK.Bytes())
	}
	return buf.Bytes()
}

// UnpackNodes parses a packed-node buffer. If tcpEnabled is false, any
// TCP-family entry in the buffer aborts parsing with ErrTCPDisabled,
// matching spec §6's "tcp_enabled=false on unpack rejects TCP families
// with distinct error codes".
func UnpackNodes(b []byte, tcpEnabled bool) ([]Node, error) {
	var nodes []Node
	for len(b) > 0 {
		fam := util.Family(b[0])
		b = b[1:]
		if fam.TCP() && !tcpEnabled {
			return nodes, ErrTCPDisabled
		}
		sz := fam.Size()
		if sz == 0 || len(b) < sz+2+crypto.EPKSize {
			return nodes, ErrMalformedNode
		}
		ip := make([]byte, sz)
		copy(ip, b[:sz])
		b = b[sz:]
		port := binary.BigEndian.Uint16(b[:2])
		b = b[2:]
		epk, err := crypto.EPKFromBytes(b[:crypto.EPKSize])
		if err != nil {
			return nodes, err
		}
		b = b[crypto.EPKSize:]
		nodes = append(nodes, Node{
			Addr: util.IPPort{Family: fam, IP: ip, Port: port},
			EPK:  epk,
		})
	}
	return nodes, nil
}
