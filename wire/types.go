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

// PacketType is the single leading byte every packet dispatches on
// (spec §5, §6). Numeric assignment only has to be stable for interop
// between our own processes, matching message/const.go's convention of
// naming every wire type symbolically.
type PacketType uint8

// Announce service packet kinds (spec §4.3.1).
const (
	GcaAnnounce PacketType = iota + 1
	GcaGetNodes
	GcaSendNodes
	GcaPingRequest
	GcaPingResponse
)

// Group-chat packet kinds (spec §6).
const (
	InviteRequest PacketType = iota + 16
	InviteResponse
	SyncRequest
	SyncResponse
	Ping
	Status
	NewPeer
	ChangeNick
	ChangeTopic
	Message
	Action
)

func (t PacketType) String() string {
	switch t {
	case GcaAnnounce:
		return "GCA_ANNOUNCE"
	case GcaGetNodes:
		return "GCA_GET_NODES"
	case GcaSendNodes:
		return "GCA_SEND_NODES"
	case GcaPingRequest:
		return "GCA_PING_REQUEST"
	case GcaPingResponse:
		return "GCA_PING_RESPONSE"
	case InviteRequest:
		return "INVITE_REQUEST"
	case InviteResponse:
		return "INVITE_RESPONSE"
	case SyncRequest:
		return "SYNC_REQUEST"
	case SyncResponse:
		return "SYNC_RESPONSE"
	case Ping:
		return "PING"
	case Status:
		return "STATUS"
	case NewPeer:
		return "NEW_PEER"
	case ChangeNick:
		return "CHANGE_NICK"
	case ChangeTopic:
		return "CHANGE_TOPIC"
	case Message:
		return "MESSAGE"
	case Action:
		return "ACTION"
	default:
		return "UNKNOWN"
	}
}

// MaxPacketSize is the UDP payload limit (spec §6).
const MaxPacketSize = 65507
