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

// Package diagnostics persists the per-peer error counters named in
// spec §4.2.7/§7 (decrypt failures, malformed packets, certificate
// corruption, unauthorized moderation attempts): counters a deployment
// operator needs to tell a flaky peer from a hostile one, kept outside
// the in-memory chat state a restart is allowed to drop.
package diagnostics

import (
	"fmt"

	"github.com/halvard/meshchat/crypto"
)

// Kind names one of the failure classes spec §4.2.7 says are "dropped
// silently" on the wire: silent on the wire does not mean silent to the
// operator, so every drop still increments a counter here.
type Kind string

const (
	KindDecryptFailed   Kind = "decrypt_failed"
	KindMalformedPacket Kind = "malformed_packet"
	KindCertCorrupt     Kind = "cert_corrupt"
	KindUnauthorized    Kind = "unauthorized"
	KindUnknownSender   Kind = "unknown_sender"
	KindStaleTimestamp  Kind = "stale_timestamp"
)

// Meter records and reports per-peer, per-kind failure counts. Peers
// are identified by ENC key alone: most of the failures counted here
// (decrypt failures, malformed packets) happen before any SIG key is
// known, the same ENC-only identification the group-chat gossip
// handlers use (spec §6).
type Meter interface {
	// Record increments the counter for (peer, kind) by one.
	Record(peer *crypto.EncPublicKey, kind Kind) error
	// Counts returns every recorded (kind, count) pair for peer.
	Counts(peer *crypto.EncPublicKey) (map[Kind]int64, error)
	// Close releases the underlying storage handle.
	Close() error
}

func peerKey(peer *crypto.EncPublicKey) string {
	if peer == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("%x", peer.Bytes())
}
