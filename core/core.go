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

// Package core drives the single cooperative event loop of spec §5: one
// goroutine that reads datagrams off the transport, dispatches them to
// registered listeners by packet type, and on every tick runs the
// housekeeping sweeps registered with AddTick, in registration order
// (announce pings/expirations, group-chat pings/expirations/close-set
// recomputation; no DHT sweep is registered). Adapted from the
// teacher's core.go pump()/dispatch() pair, but collapsed from an
// always-concurrent message pump (one goroutine per dispatched event) to a
// single synchronous loop, since spec §5 is explicit that "there is no
// shared mutable state across threads."
package core

import (
	"context"
	"time"

	"github.com/bfix/gospel/logger"

	"github.com/halvard/meshchat/transport"
	"github.com/halvard/meshchat/wire"
)

// Scheduler owns the one goroutine permitted to touch chat and announce
// state: it reads from the transport and fires ticks at tickInterval.
type Scheduler struct {
	trans        transport.Transport
	listeners    map[string]*Listener
	tickHandlers []func()
	tickInterval time.Duration
}

// NewScheduler creates a scheduler bound to trans, running tick handlers
// every tickInterval.
func NewScheduler(trans transport.Transport, tickInterval time.Duration) *Scheduler {
	return &Scheduler{
		trans:        trans,
		listeners:    make(map[string]*Listener),
		tickInterval: tickInterval,
	}
}

// Register a named event listener. Replaces any listener of the same name.
func (s *Scheduler) Register(name string, l *Listener) {
	s.listeners[name] = l
}

// Unregister a named event listener.
func (s *Scheduler) Unregister(name string) *Listener {
	if l, ok := s.listeners[name]; ok {
		delete(s.listeners, name)
		return l
	}
	return nil
}

// AddTick appends a housekeeping sweep run on every tick, in the order
// added (spec §5: "poll transport, run DHT housekeeping, then do_gca ...
// and do_groupchats").
func (s *Scheduler) AddTick(fn func()) {
	s.tickHandlers = append(s.tickHandlers, fn)
}

// Run drives the loop until ctx is cancelled. A single goroutine reads
// transport.Datagram values and tick events from one select, so no two
// handlers ever execute concurrently.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	recv := s.trans.Recv()
	for {
		select {
		case dg, ok := <-recv:
			if !ok {
				return
			}
			s.dispatchDatagram(dg)

		case <-ticker.C:
			for _, fn := range s.tickHandlers {
				fn()
			}

		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) dispatchDatagram(dg transport.Datagram) {
	typ, err := wire.PeekType(dg.Payload)
	if err != nil {
		logger.Printf(logger.DBG, "[core] dropping malformed datagram from %s: %s", dg.Addr, err)
		return
	}
	ev := &Event{ID: EvMessage, From: dg.Addr, Type: typ, Payload: dg.Payload}
	for name, l := range s.listeners {
		if !l.filter.CheckEvent(EvMessage) || !l.filter.CheckPacketType(typ) {
			continue
		}
		select {
		case l.ch <- ev:
		default:
			logger.Printf(logger.WARN, "[core] listener %q backlog full, dropping %v from %s", name, typ, dg.Addr)
		}
	}
}
