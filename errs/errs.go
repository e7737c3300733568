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

// Package errs collects the sentinel error values for the error kinds named
// in spec §7, grouped the way the teacher groups per-package error
// variables (util/key_value_store.go, util/database.go).
package errs

import "fmt"

var (
	ErrTransport       = fmt.Errorf("transport error")
	ErrDecrypt         = fmt.Errorf("envelope decryption failed")
	ErrCertCorrupt     = fmt.Errorf("certificate integrity check failed")
	ErrUnknownInviter  = fmt.Errorf("inviter is not a known peer")
	ErrUnauthorized    = fmt.Errorf("source peer lacks OP/FOUNDER role")
	ErrBanned          = fmt.Errorf("peer is banned in this chat")
	ErrStaleTimestamp  = fmt.Errorf("update older than locally recorded state")
	ErrTableFull       = fmt.Errorf("table at capacity")
	ErrMalformedPacket = fmt.Errorf("malformed packet")
	ErrLengthOverflow  = fmt.Errorf("field exceeds maximum length")
	ErrNotImplemented  = fmt.Errorf("not implemented")
	ErrNotFound        = fmt.Errorf("not found")
	ErrAlreadyFounder  = fmt.Errorf("chat already has founder credentials")
	ErrInvalidState    = fmt.Errorf("operation not valid in current state")
)
