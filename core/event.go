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

package core

import (
	"net"

	"github.com/halvard/meshchat/wire"
)

// Event types.
const (
	EvMessage = iota // a datagram arrived
	EvTick           // a scheduling tick fired
)

// EventFilter restricts a Listener to the event and packet types it
// cares about; an empty filter matches everything.
type EventFilter struct {
	evTypes  map[int]bool
	pktTypes map[wire.PacketType]bool
}

// NewEventFilter creates an empty filter.
func NewEventFilter() *EventFilter {
	return &EventFilter{
		evTypes:  make(map[int]bool),
		pktTypes: make(map[wire.PacketType]bool),
	}
}

// AddEvent restricts the filter to an event id.
func (f *EventFilter) AddEvent(ev int) {
	f.evTypes[ev] = true
}

// AddPacketType restricts an EvMessage filter to a packet type.
func (f *EventFilter) AddPacketType(t wire.PacketType) {
	f.evTypes[EvMessage] = true
	f.pktTypes[t] = true
}

// CheckEvent reports whether ev matches the filter.
func (f *EventFilter) CheckEvent(ev int) bool {
	if len(f.evTypes) == 0 {
		return true
	}
	return f.evTypes[ev]
}

// CheckPacketType reports whether t matches the filter.
func (f *EventFilter) CheckPacketType(t wire.PacketType) bool {
	if len(f.pktTypes) == 0 {
		return true
	}
	return f.pktTypes[t]
}

// Event is delivered to a Listener by the scheduler's dispatch loop.
type Event struct {
	ID      int
	From    *net.UDPAddr
	Type    wire.PacketType // valid when ID == EvMessage
	Payload []byte          // valid when ID == EvMessage
}

// Listener receives filtered events on its channel.
type Listener struct {
	ch     chan *Event
	filter *EventFilter
}

// NewListener wraps ch with an optional filter (nil matches everything).
func NewListener(ch chan *Event, f *EventFilter) *Listener {
	if f == nil {
		f = NewEventFilter()
	}
	return &Listener{ch: ch, filter: f}
}
