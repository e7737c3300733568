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
	"math"
	"time"
)

//----------------------------------------------------------------------
// Absolute time
//----------------------------------------------------------------------

// Clock returns the current wall-clock time. Tests substitute a fixed
// function here instead of sleeping, the same shape the teacher uses
// for deterministic AbsoluteTime construction in its table tests.
var Clock = time.Now

// AbsoluteTime refers to a unique point in time: whole seconds since the
// Unix epoch. Every on-wire timestamp in this protocol (invite/common
// certificates, gossip packets, announce packets) uses this 8-byte,
// big-endian representation.
type AbsoluteTime struct {
	Val uint64 `order:"big"`
}

// NewAbsoluteTime sets the point in time to the given time value.
func NewAbsoluteTime(t time.Time) AbsoluteTime {
	return AbsoluteTime{Val: uint64(t.Unix())}
}

// AbsoluteTimeNow returns the current point in time.
func AbsoluteTimeNow() AbsoluteTime {
	return NewAbsoluteTime(Clock())
}

// AbsoluteTimeNever returns the time defined as "never".
func AbsoluteTimeNever() AbsoluteTime {
	return AbsoluteTime{math.MaxUint64}
}

// String returns a human-readable notation of an absolute time.
func (t AbsoluteTime) String() string {
	if t.Val == math.MaxUint64 {
		return "Never"
	}
	return time.Unix(int64(t.Val), 0).Format(time.RFC3339)
}

// Add a duration to an absolute time yielding a new absolute time.
func (t AbsoluteTime) Add(d time.Duration) AbsoluteTime {
	return AbsoluteTime{
		Val: t.Val + uint64(d.Seconds()),
	}
}

// Sub returns the duration elapsed from s to t (t - s).
func (t AbsoluteTime) Sub(s AbsoluteTime) time.Duration {
	return time.Duration(int64(t.Val)-int64(s.Val)) * time.Second
}

// Before returns true if t happened strictly before s.
func (t AbsoluteTime) Before(s AbsoluteTime) bool {
	return t.Val < s.Val
}

// Expired returns true if more than 'age' has elapsed since t, as measured
// against Clock().
func (t AbsoluteTime) Expired(age time.Duration) bool {
	if t.Val == math.MaxUint64 {
		return false
	}
	return AbsoluteTimeNow().Sub(t) > age
}

//----------------------------------------------------------------------
// Relative time
//----------------------------------------------------------------------

// Relative time is a timestamp defined relative to the current time.
// It actually is more like a duration than a time...
type RelativeTime struct {
	Val uint64 `order:"big"`
}

// NewRelativeTime is initialized with a given duration.
func NewRelativeTime(d time.Duration) RelativeTime {
	return RelativeTime{
		Val: uint64(d.Milliseconds()),
	}
}

// String returns a human-readble representation of a relative time (duration).
func (t RelativeTime) String() string {
	if t.Val == math.MaxUint64 {
		return "Forever"
	}
	return (time.Duration(t.Val) * time.Millisecond).String()
}
