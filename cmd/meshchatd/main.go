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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bfix/gospel/logger"

	"github.com/halvard/meshchat/announce"
	"github.com/halvard/meshchat/config"
	"github.com/halvard/meshchat/core"
	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/dht"
	"github.com/halvard/meshchat/diagnostics"
	"github.com/halvard/meshchat/groupchat"
	"github.com/halvard/meshchat/introspect"
	"github.com/halvard/meshchat/transport"
	"github.com/halvard/meshchat/util"
)

func main() {
	defer func() {
		logger.Println(logger.INFO, "[meshchatd] Bye.")
		logger.Flush()
	}()
	logger.Println(logger.INFO, "[meshchatd] Starting...")

	var (
		cfgFile  string
		idFile   string
		logLevel int
	)
	flag.StringVar(&cfgFile, "c", "meshchat-config.json", "configuration file")
	flag.StringVar(&idFile, "i", "meshchat-identity.bin", "persistent node identity file")
	flag.IntVar(&logLevel, "L", logger.INFO, "log level")
	flag.Parse()

	logger.SetLogLevel(logLevel)

	if err := config.ParseConfig(cfgFile); err != nil {
		logger.Printf(logger.ERROR, "[meshchatd] invalid configuration file: %s", err.Error())
		return
	}
	applyTunables(config.Cfg)

	self, err := loadOrCreateIdentity(idFile)
	if err != nil {
		logger.Printf(logger.ERROR, "[meshchatd] identity: %s", err.Error())
		return
	}
	logger.Printf(logger.INFO, "[meshchatd] node EPK: %s", self.Public.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var listen string
	if config.Cfg.Transport != nil {
		listen = config.Cfg.Transport.Listen
	}
	if len(listen) == 0 {
		listen = ":0"
	}
	trans, err := transport.NewUDP(ctx, listen)
	if err != nil {
		logger.Printf(logger.ERROR, "[meshchatd] failed to bind %s: %s", listen, err.Error())
		return
	}
	go trans.Run(ctx)

	selfAddr, err := util.ParseIPPort(trans.LocalAddr().String())
	if err != nil {
		logger.Printf(logger.ERROR, "[meshchatd] failed to parse local address: %s", err.Error())
		return
	}

	lookup := dht.NewTable(util.NewPeerAddress(self.Public.Enc.Bytes()))

	gca := announce.NewService(self, selfAddr, lookup, trans)
	gc := groupchat.NewModule(selfAddr, lookup, trans, gca)

	if config.Cfg.Announce != nil && len(config.Cfg.Announce.RedisCache) > 0 {
		cache, err := announce.NewKVSCache("redis+" + config.Cfg.Announce.RedisCache)
		if err != nil {
			logger.Printf(logger.WARN, "[meshchatd] announce cache unavailable: %s", err.Error())
		} else {
			gca.Table().SetCache(cache)
		}
	}

	if meter := openMeter(config.Cfg.Diagnostics); meter != nil {
		defer meter.Close()
		gc.SetMeter(meter)
	}
	if config.Cfg.GroupChat != nil && config.Cfg.GroupChat.ErrorThreshold > 0 {
		gc.SetErrorThreshold(config.Cfg.GroupChat.ErrorThreshold)
	}

	sched := core.NewScheduler(trans, time.Second)
	gca.Register(sched)
	gc.Register(sched)

	if ep := rpcEndpoint(config.Cfg.RPC); len(ep) > 0 {
		introspect.Register(gca)
		introspect.Register(gc)
		if err := introspect.Start(ctx, ep); err != nil {
			logger.Printf(logger.ERROR, "[meshchatd] introspection endpoint failed: %s", err.Error())
			return
		}
		logger.Printf(logger.INFO, "[meshchatd] introspection endpoint on %s", ep)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Println(logger.INFO, "[meshchatd] shutting down...")
		cancel()
	}()

	sched.Run(ctx)
}

// applyTunables overrides the §4.3/§4.2 package-level tunables from the
// parsed config, leaving the compiled-in defaults in place for any field
// left blank.
func applyTunables(cfg *config.Config) {
	if cfg.Announce != nil {
		if d, ok := parseDuration(cfg.Announce.PingInterval); ok {
			announce.PingInterval = int64(d.Seconds())
		}
		if d, ok := parseDuration(cfg.Announce.NodesExpiration); ok {
			announce.NodesExpiration = int64(d.Seconds())
		}
	}
	if cfg.GroupChat != nil {
		if d, ok := parseDuration(cfg.GroupChat.PingInterval); ok {
			groupchat.GroupPingInterval = d
		}
		if d, ok := parseDuration(cfg.GroupChat.PeerTimeout); ok {
			groupchat.BadGroupNodeTimeout = d
		}
		if d, ok := parseDuration(cfg.GroupChat.SyncSkewTolerance); ok {
			groupchat.SyncSkewTolerance = d
		}
	}
}

func parseDuration(s string) (time.Duration, bool) {
	if len(s) == 0 {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logger.Printf(logger.WARN, "[meshchatd] invalid duration %q: %s", s, err.Error())
		return 0, false
	}
	return d, true
}

// openMeter opens the optional persistent error meter named in
// DiagnosticsConfig.Store, logging (not failing) if it cannot be opened.
func openMeter(cfg *config.DiagnosticsConfig) diagnostics.Meter {
	if cfg == nil || len(cfg.Store) == 0 {
		return nil
	}
	meter, err := diagnostics.NewSQLMeter(cfg.Store)
	if err != nil {
		logger.Printf(logger.WARN, "[meshchatd] diagnostics store unavailable: %s", err.Error())
		return nil
	}
	return meter
}

func rpcEndpoint(cfg *config.RPCConfig) string {
	if cfg == nil {
		return ""
	}
	return cfg.Endpoint
}

// loadOrCreateIdentity restores a node's persistent EPK/private keys from
// idFile, minting and saving a fresh identity on first run.
func loadOrCreateIdentity(idFile string) (*crypto.Identity, error) {
	if raw, err := os.ReadFile(idFile); err == nil {
		return crypto.IdentityFromBytes(raw)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	id, err := crypto.NewIdentity()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(idFile, id.Bytes(), 0600); err != nil {
		return nil, err
	}
	return id, nil
}
