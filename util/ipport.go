// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019, 2020 Bernd Fix  >Y<
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

package util

import (
	"fmt"
	"net"
	"strconv"
)

// Family identifies the address family of an IPPort, matching spec §6's
// packed node families.
type Family uint8

// Address families for packed nodes (spec §6).
const (
	FamilyNone     Family = 0
	FamilyIPv4     Family = 2
	FamilyIPv4TCP  Family = 130
	FamilyIPv6     Family = 10
	FamilyIPv6TCP  Family = 138
)

// IPPort is a network endpoint: an IP address (v4 or v6) plus a UDP/TCP
// port. It replaces the teacher's multi-transport Address abstraction,
// since every peer and announcement endpoint in this protocol is a single
// raw socket address (spec §3, §6).
type IPPort struct {
	Family Family
	IP     net.IP
	Port   uint16
}

// NewIPPort builds an IPPort for the given IP and port, inferring the
// family from the IP's length (4 vs 16 bytes).
func NewIPPort(ip net.IP, port uint16) IPPort {
	f := FamilyIPv4
	v4 := ip.To4()
	if v4 == nil {
		f = FamilyIPv6
	} else {
		ip = v4
	}
	return IPPort{Family: f, IP: Clone(ip), Port: port}
}

// ParseIPPort parses a "host:port" string into an IPPort.
func ParseIPPort(s string) (IPPort, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return IPPort{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return IPPort{}, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return IPPort{}, fmt.Errorf("invalid IP address: %q", host)
	}
	return NewIPPort(ip, uint16(port)), nil
}

// Zero reports whether this is the zeroed "free slot" sentinel used by
// the announcement table (spec §3 invariants) and the peer list.
func (a IPPort) Zero() bool {
	return a.Port == 0 && (len(a.IP) == 0 || a.IP.IsUnspecified())
}

// Equals compares two endpoints for equality.
func (a IPPort) Equals(b IPPort) bool {
	return a.Port == b.Port && a.IP.Equal(b.IP)
}

// String renders the endpoint as "host:port".
func (a IPPort) String() string {
	if a.Zero() {
		return "<none>"
	}
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

// TCP reports whether the family denotes a TCP-carried address.
func (f Family) TCP() bool {
	return f == FamilyIPv4TCP || f == FamilyIPv6TCP
}

// Size returns the raw IP byte length for the family (4 or 16), or 0 for
// an unrecognized family.
func (f Family) Size() int {
	switch f {
	case FamilyIPv4, FamilyIPv4TCP:
		return 4
	case FamilyIPv6, FamilyIPv6TCP:
		return 16
	}
	return 0
}
