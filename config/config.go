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

package config

import (
	"encoding/json"
	"io/ioutil"
	"reflect"
	"regexp"
	"strings"

	"github.com/bfix/gospel/logger"
)

///////////////////////////////////////////////////////////////////////
// Transport configuration

// TransportConfig describes the local UDP endpoint.
type TransportConfig struct {
	Listen string `json:"listen"` // "host:port" to bind
}

///////////////////////////////////////////////////////////////////////
// Announce service configuration

// AnnounceConfig tunes the §4.3 announce service.
type AnnounceConfig struct {
	PingInterval      string `json:"pingInterval"`      // e.g. "60s", default GCA_PING_INTERVAL
	NodesExpiration   string `json:"nodesExpiration"`   // default GCA_NODES_EXPIRATION
	RedisCache        string `json:"redisCache"`        // optional "addr+passwd+db" spec; empty = in-memory only
}

///////////////////////////////////////////////////////////////////////
// Group-chat module configuration

// GroupChatConfig tunes the §4.2 group-chat module.
type GroupChatConfig struct {
	PingInterval      string `json:"pingInterval"`      // default GROUP_PING_INTERVAL
	PeerTimeout       string `json:"peerTimeout"`        // default BAD_GROUPNODE_TIMEOUT
	SyncSkewTolerance string `json:"syncSkewTolerance"`  // default one minute (spec §4.2.3)
	ErrorThreshold    int    `json:"errorThreshold"`     // per-peer decrypt/integrity failures before disconnect
}

///////////////////////////////////////////////////////////////////////
// Diagnostics store configuration

// DiagnosticsConfig selects the optional persistent error-meter backend,
// DSN-prefixed the way util.ConnectSqlDatabase expects ("sqlite3:path",
// "mysql:dsn").
type DiagnosticsConfig struct {
	Store string `json:"store"` // e.g. "sqlite3:/var/lib/meshchat/meter.db"; empty = in-memory only
}

///////////////////////////////////////////////////////////////////////
// Introspection (read-only admin HTTP) configuration

// RPCConfig configures the gorilla/mux introspection endpoint.
type RPCConfig struct {
	Endpoint string `json:"endpoint"` // e.g. "127.0.0.1:8901"; empty = disabled
}

///////////////////////////////////////////////////////////////////////

// Environment settings
type Environ map[string]string

// Config is the aggregated configuration for a meshchat process.
type Config struct {
	Env         Environ            `json:"environ"`
	Transport   *TransportConfig   `json:"transport"`
	Announce    *AnnounceConfig    `json:"announce"`
	GroupChat   *GroupChatConfig   `json:"groupchat"`
	Diagnostics *DiagnosticsConfig `json:"diagnostics"`
	RPC         *RPCConfig         `json:"rpc"`
}

var (
	// Cfg is the global configuration
	Cfg *Config
)

// Parse a JSON-encoded configuration file map it to the Config data structure.
func ParseConfig(fileName string) (err error) {
	// parse configuration file
	file, err := ioutil.ReadFile(fileName)
	if err != nil {
		return
	}
	// unmarshal to Config data structure
	Cfg = new(Config)
	if err = json.Unmarshal(file, Cfg); err == nil {
		// process all string-based config settings and apply
		// string substitutions.
		applySubstitutions(Cfg, Cfg.Env)
	}
	return
}

var (
	rx = regexp.MustCompile("\\$\\{([^\\}]*)\\}")
)

// substString is a helper function to substitute environment variables
// with actual values.
func substString(s string, env map[string]string) string {
	matches := rx.FindAllStringSubmatch(s, -1)
	for _, m := range matches {
		if len(m[1]) != 0 {
			subst, ok := env[m[1]]
			if !ok {
				continue
			}
			s = strings.Replace(s, "${"+m[1]+"}", subst, -1)
		}
	}
	return s
}

// applySubstitutions traverses the configuration data structure
// and applies string substitutions to all string values.
func applySubstitutions(x interface{}, env map[string]string) {

	var process func(v reflect.Value)
	process = func(v reflect.Value) {
		for i := 0; i < v.NumField(); i++ {
			fld := v.Field(i)
			if fld.CanSet() {
				switch fld.Kind() {
				case reflect.String:
					// check for substitution
					s := fld.Interface().(string)
					for {
						s1 := substString(s, env)
						if s1 == s {
							break
						}
						logger.Printf(logger.DBG, "[config] %s --> %s\n", s, s1)
						fld.SetString(s1)
						s = s1
					}

				case reflect.Struct:
					// handle nested struct
					process(fld)

				case reflect.Ptr:
					// handle pointer
					e := fld.Elem()
					if e.IsValid() {
						process(fld.Elem())
					} else {
						logger.Printf(logger.ERROR, "[config] 'nil' pointer encountered")
					}
				}
			}
		}
	}
	// start processing at the top-level structure
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Ptr:
		// indirect top-level
		e := v.Elem()
		if e.IsValid() {
			process(e)
		} else {
			logger.Printf(logger.ERROR, "[config] 'nil' pointer encountered")
		}
	case reflect.Struct:
		// direct top-level
		process(v)
	}
}
