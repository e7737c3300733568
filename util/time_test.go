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

package util

import (
	"testing"
	"time"
)

func TestTimeCompare(t *testing.T) {
	t1 := AbsoluteTimeNow()
	t2 := t1.Add(time.Hour)
	t3 := t1.Add(24 * time.Hour)
	tNever := AbsoluteTimeNever()

	if !t1.Before(t2) {
		t.Fatal("(1)")
	}
	if !t1.Before(t3) {
		t.Fatal("(2)")
	}
	if !t2.Before(t3) {
		t.Fatal("(3)")
	}
	if tNever.Before(t1) {
		t.Fatal("(4)")
	}
	if t2.Sub(t1) != time.Hour {
		t.Fatal("(5)")
	}
}

func TestAbsoluteTimeExpired(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	old := Clock
	Clock = func() time.Time { return fixed }
	defer func() { Clock = old }()

	t1 := AbsoluteTimeNow()
	if t1.Expired(60 * time.Second) {
		t.Fatal("should not be expired yet")
	}
	Clock = func() time.Time { return fixed.Add(61 * time.Second) }
	if !t1.Expired(60 * time.Second) {
		t.Fatal("should be expired")
	}
}
