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

package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/halvard/meshchat/wire"
)

func TestUDPSendReceive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := NewUDP(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDP a: %v", err)
	}
	b, err := NewUDP(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDP b: %v", err)
	}
	go a.Run(ctx)
	go b.Run(ctx)

	payload := append([]byte{byte(wire.Ping)}, []byte("hello")...)
	bAddr := b.LocalAddr().(*net.UDPAddr)
	if err := a.Send(ctx, bAddr, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case dg := <-b.Recv():
		if string(dg.Payload) != string(payload) {
			t.Fatalf("payload = %q, want %q", dg.Payload, payload)
		}
		typ, err := wire.PeekType(dg.Payload)
		if err != nil || typ != wire.Ping {
			t.Fatalf("PeekType = %v, %v; want Ping", typ, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
	}
}

func TestUDPRunClosesChannelOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a, err := NewUDP(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewUDP: %v", err)
	}
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	if _, ok := <-a.Recv(); ok {
		t.Fatal("expected Recv channel to be closed")
	}
}
