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

package announce

import (
	"fmt"
	"net/http"

	"github.com/halvard/meshchat/introspect"
)

// announcementView is the JSON-friendly rendering of an Announcement.
type announcementView struct {
	ChatID       string `json:"chat_id"`
	NodeEPK      string `json:"node_epk"`
	Addr         string `json:"addr"`
	LastRcvdPing uint64 `json:"last_rcvd_ping"`
	PingOut      bool   `json:"ping_outstanding"`
}

// selfRequestView is the JSON-friendly rendering of a SelfRequest.
type selfRequestView struct {
	ChatID    string `json:"chat_id"`
	ReqID     uint64 `json:"req_id"`
	NodeCount int    `json:"node_count"`
	Ready     bool   `json:"ready"`
}

// summary is the full body served at RPC's route.
type summary struct {
	TableLen     int                 `json:"table_len"`
	Announcements []announcementView `json:"announcements"`
	Requests     []selfRequestView   `json:"requests"`
}

// RPC implements introspect.Endpoint: a read-only JSON snapshot of the
// announcement table and the pending self-request table (spec §4.3.3,
// §4.3.4), the same admin-visibility role the teacher's service modules
// serve via service/rpc.go's RegisterRPC.
func (s *Service) RPC() (string, http.HandlerFunc) {
	return "/rpc/announce", func(w http.ResponseWriter, r *http.Request) {
		snap := s.table.Snapshot()
		out := summary{
			TableLen:      len(snap),
			Announcements: make([]announcementView, 0, len(snap)),
		}
		for _, a := range snap {
			out.Announcements = append(out.Announcements, announcementView{
				ChatID:       a.ChatID.String(),
				NodeEPK:      a.NodeEPK.String(),
				Addr:         fmt.Sprintf("%s:%d", a.IPPort.IP, a.IPPort.Port),
				LastRcvdPing: a.LastRcvdPing.Val,
				PingOut:      a.PingID != 0,
			})
		}
		for _, req := range s.requests.Snapshot() {
			out.Requests = append(out.Requests, selfRequestView{
				ChatID:    req.ChatID.String(),
				ReqID:     req.ReqID,
				NodeCount: len(req.Nodes),
				Ready:     req.Ready,
			})
		}
		introspect.WriteJSON(w, out)
	}
}
