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

import "github.com/halvard/meshchat/util"

// CloseSetSize is the size of the close-neighbor set (spec §4.2.5).
const CloseSetSize = 6

// RecomputeCloseSet rebuilds the close-neighbor set: the up-to-6 peers
// whose EPKs are closest (XOR distance over the ENC key) to self,
// excluding banned peers. Recomputed on every peer-list mutation per
// §4.2.5, adapted from the announce table's own closeness ordering
// (announce/table.go's Lookup).
func (c *Chat) RecomputeCloseSet() {
	self := util.NewPeerAddress(c.Self.Public.Enc.Bytes())
	var candidates []*Peer
	for _, p := range c.Peers {
		if p != nil && !p.Banned {
			candidates = append(candidates, p)
		}
	}
	for i := 1; i < len(candidates); i++ {
		j := i
		for j > 0 {
			a := util.NewPeerAddress(candidates[j].EPK.Enc.Bytes())
			b := util.NewPeerAddress(candidates[j-1].EPK.Enc.Bytes())
			if util.Closer(self, a, b) {
				candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
				j--
				continue
			}
			break
		}
	}
	if len(candidates) > CloseSetSize {
		candidates = candidates[:CloseSetSize]
	}
	c.CloseSet = candidates
}
