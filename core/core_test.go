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
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/halvard/meshchat/transport"
	"github.com/halvard/meshchat/wire"
)

func TestSchedulerDispatchesByPacketType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := transport.NewUDP(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDP a: %v", err)
	}
	b, err := transport.NewUDP(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDP b: %v", err)
	}
	go a.Run(ctx)
	go b.Run(ctx)

	sched := NewScheduler(b, time.Hour)
	pingCh := make(chan *Event, 1)
	filter := NewEventFilter()
	filter.AddPacketType(wire.Ping)
	sched.Register("ping-listener", NewListener(pingCh, filter))
	go sched.Run(ctx)

	bAddr := b.LocalAddr().(*net.UDPAddr)
	if err := a.Send(ctx, bAddr, []byte{byte(wire.Ping), 1, 2, 3}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case ev := <-pingCh:
		if ev.Type != wire.Ping {
			t.Fatalf("Type = %v, want Ping", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestSchedulerRunsTicksInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := transport.NewUDP(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDP: %v", err)
	}
	go a.Run(ctx)

	sched := NewScheduler(a, 20*time.Millisecond)
	var seq int32
	results := make(chan [2]int32, 8)
	sched.AddTick(func() {
		first := atomic.AddInt32(&seq, 1)
		results <- [2]int32{0, first}
	})
	sched.AddTick(func() {
		second := atomic.AddInt32(&seq, 1)
		results <- [2]int32{1, second}
	})
	go sched.Run(ctx)

	var a0, a1 [2]int32
	select {
	case a0 = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first tick handler")
	}
	select {
	case a1 = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second tick handler")
	}
	cancel()

	if a0[0] != 0 || a1[0] != 1 {
		t.Fatalf("tick handlers ran out of order: %v then %v", a0, a1)
	}
	if a1[1] != a0[1]+1 {
		t.Fatalf("tick handlers interleaved with a later round: %v then %v", a0, a1)
	}
}
