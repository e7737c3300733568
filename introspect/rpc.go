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

// Package introspect mounts read-only JSON admin endpoints on a single
// gorilla/mux router, one route per module, the shape SPEC_FULL.md's
// DOMAIN STACK calls for and grounded on the teacher's service/rpc.go
// Router/StartRPC/RegisterRPC pattern.
package introspect

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bfix/gospel/logger"
	"github.com/gorilla/mux"
)

// Endpoint is a module's introspection route: path plus handler,
// matching the teacher's service.Module.RPC() shape.
type Endpoint interface {
	RPC() (string, http.HandlerFunc)
}

// Router is the shared gorilla/mux router every module registers its
// introspection route on.
var Router = mux.NewRouter()

var srv *http.Server

// Register mounts m's route on Router.
func Register(m Endpoint) {
	path, hdlr := m.RPC()
	Router.HandleFunc(path, hdlr)
}

// Start launches the introspection HTTP server on addr, terminated by
// ctx, mirroring the teacher's StartRPC.
func Start(ctx context.Context, addr string) error {
	srv = &http.Server{
		Handler:      Router,
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	go func() {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf(logger.WARN, "[introspect] server listen failed: %s", err.Error())
			}
		}()
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Printf(logger.WARN, "[introspect] server shutdown failed: %s", err.Error())
		}
	}()
	return nil
}

// WriteJSON is the shared handler tail: encode v as the JSON response
// body, logging (not panicking) on a write failure.
func WriteJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf(logger.WARN, "[introspect] response encode failed: %s", err.Error())
	}
}
