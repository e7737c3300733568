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

import (
	"net/http"

	"github.com/halvard/meshchat/introspect"
)

var inviteStateNames = map[InviteState]string{
	StateIdle:       "idle",
	StateRequested:  "requested",
	StateHalfSigned: "half_signed",
	StateVerified:   "verified",
	StateJoined:     "joined",
}

// peerView is the JSON-friendly rendering of a Peer.
type peerView struct {
	EPK      string `json:"epk"`
	Nick     string `json:"nick"`
	Role     Role   `json:"role"`
	Banned   bool   `json:"banned"`
	Verified bool   `json:"verified"`
}

// chatView is the JSON-friendly rendering of a Chat.
type chatView struct {
	ChatID     string     `json:"chat_id"`
	SelfEPK    string     `json:"self_epk"`
	Topic      string     `json:"topic"`
	JoinState  string     `json:"join_state"`
	IsFounder  bool       `json:"is_founder"`
	PeerCount  int        `json:"peer_count"`
	CloseSize  int        `json:"close_set_size"`
	Peers      []peerView `json:"peers"`
}

// RPC implements introspect.Endpoint: a read-only JSON snapshot of every
// chat this module participates in (spec §4.2), the same admin-visibility
// role the teacher's service modules serve via service/rpc.go's
// RegisterRPC.
func (m *Module) RPC() (string, http.HandlerFunc) {
	return "/rpc/groupchat", func(w http.ResponseWriter, r *http.Request) {
		out := make([]chatView, 0, len(m.chats))
		for _, c := range m.chats {
			cv := chatView{
				SelfEPK:   c.Self.Public.String(),
				Topic:     c.Topic,
				JoinState: inviteStateNames[c.State()],
				IsFounder: c.SelfRole.Has(RoleFounder),
				CloseSize: len(c.CloseSet),
			}
			if c.ChatID != nil {
				cv.ChatID = c.ChatID.String()
			}
			for _, p := range c.Peers {
				if p == nil {
					continue
				}
				cv.PeerCount++
				cv.Peers = append(cv.Peers, peerView{
					EPK:      p.EPK.String(),
					Nick:     p.Nick,
					Role:     p.Role,
					Banned:   p.Banned,
					Verified: p.Verified,
				})
			}
			out = append(out, cv)
		}
		introspect.WriteJSON(w, out)
	}
}
