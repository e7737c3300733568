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

package announce

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/halvard/meshchat/dht"
	"github.com/halvard/meshchat/util"
)

func TestServiceRPCReportsTableContents(t *testing.T) {
	self := mustIdentity(t)
	selfAddr := util.NewIPPort(net.ParseIP("10.0.0.1"), 9000)
	trans := newCapturingTransport("10.0.0.1", 9000)
	lookup := dht.NewTable(util.NewPeerAddress(self.Public.Enc.Bytes()))
	svc := NewService(self, selfAddr, lookup, trans)

	chat := mustIdentity(t)
	host := mustIdentity(t)
	hostAddr := util.NewIPPort(net.ParseIP("10.0.0.2"), 9001)
	svc.Table().Insert(chat.Public, host.Public, hostAddr)

	path, hdlr := svc.RPC()
	if path != "/rpc/announce" {
		t.Fatalf("path = %q, want /rpc/announce", path)
	}

	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	hdlr(rec, req)

	var out summary
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if out.TableLen != 1 {
		t.Fatalf("TableLen = %d, want 1", out.TableLen)
	}
	if len(out.Announcements) != 1 {
		t.Fatalf("len(Announcements) = %d, want 1", len(out.Announcements))
	}
	if out.Announcements[0].ChatID != chat.Public.String() {
		t.Fatalf("ChatID = %q, want %q", out.Announcements[0].ChatID, chat.Public.String())
	}
}

func TestServiceRPCReportsEmptyTable(t *testing.T) {
	self := mustIdentity(t)
	selfAddr := util.NewIPPort(net.ParseIP("10.0.0.1"), 9000)
	trans := newCapturingTransport("10.0.0.1", 9000)
	lookup := dht.NewTable(util.NewPeerAddress(self.Public.Enc.Bytes()))
	svc := NewService(self, selfAddr, lookup, trans)

	_, hdlr := svc.RPC()
	req := httptest.NewRequest("GET", "/rpc/announce", nil)
	rec := httptest.NewRecorder()
	hdlr(rec, req)

	var out summary
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if out.TableLen != 0 || len(out.Announcements) != 0 || len(out.Requests) != 0 {
		t.Fatalf("expected an empty summary, got %+v", out)
	}
}
