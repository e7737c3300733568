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

// Package transport is the consumed send/receive collaborator of spec §6:
// a connectionless UDP socket demultiplexed by a packet's single leading
// type byte, adapted from the teacher's PaketEndpoint (endpoint.go) but
// collapsed from its multi-protocol Endpoint abstraction since every
// announce and group-chat packet rides the same unreliable datagram
// socket. Where the teacher's core.go fans incoming messages out to
// per-subsystem listener channels from a single pump goroutine, here the
// datagram channel itself plays that role: the scheduler in package core
// is the sole reader and dispatches to announce/groupchat from its one
// cooperative loop (spec §5's scheduling model).
package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/bfix/gospel/logger"

	"github.com/halvard/meshchat/wire"
)

// ErrNoConnection is returned by Send when the socket has already closed.
var ErrNoConnection = errors.New("transport: no connection")

// Datagram is one received UDP packet, still undecoded beyond its leading
// type byte — the caller interprets Payload per wire.PeekType(Payload).
type Datagram struct {
	Addr    *net.UDPAddr
	Payload []byte
}

// Transport is the interface the announce and group-chat modules consume.
type Transport interface {
	// Recv returns the channel datagrams arrive on. Valid once Run starts.
	Recv() <-chan Datagram

	// Send writes payload to addr.
	Send(ctx context.Context, addr *net.UDPAddr, payload []byte) error

	// LocalAddr returns the bound local address.
	LocalAddr() net.Addr
}

// UDP is a Transport backed by a single net.PacketConn, the one concrete
// implementation this package ships (spec §6 places the rest of the
// networking stack — NAT traversal, friend-relay, onion routing — out of
// scope).
type UDP struct {
	conn net.PacketConn
	mtx  sync.Mutex // guards Send against concurrent writers
	ch   chan Datagram
}

// NewUDP binds a UDP socket at addr ("host:port", or ":0" for an
// ephemeral port) but does not start reading until Run is called.
func NewUDP(ctx context.Context, addr string) (*UDP, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	return &UDP{
		conn: conn,
		ch:   make(chan Datagram, 64),
	}, nil
}

// Recv implements Transport.
func (u *UDP) Recv() <-chan Datagram {
	return u.ch
}

// LocalAddr implements Transport.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Send implements Transport.
func (u *UDP) Send(ctx context.Context, addr *net.UDPAddr, payload []byte) error {
	u.mtx.Lock()
	defer u.mtx.Unlock()
	if u.conn == nil {
		return ErrNoConnection
	}
	n, err := u.conn.WriteTo(payload, addr)
	if err != nil {
		return err
	}
	if n != len(payload) {
		return errors.New("transport: short write")
	}
	return nil
}

// Run drives the read loop until ctx is cancelled, pushing each datagram
// onto the channel returned by Recv. Closes the channel on exit.
func (u *UDP) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		u.conn.Close()
	}()
	defer close(u.ch)
	buf := make([]byte, wire.MaxPacketSize)
	for {
		n, from, err := u.conn.ReadFrom(buf)
		if err != nil {
			logger.Println(logger.DBG, "[transport] read failed: "+err.Error())
			return
		}
		udpAddr, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		select {
		case u.ch <- Datagram{Addr: udpAddr, Payload: payload}:
		case <-ctx.Done():
			return
		}
	}
}
