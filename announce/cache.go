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
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/util"
)

// Cache mirrors table inserts/evictions to a shared backend, letting
// several announce processes behind the same DHT view converge faster
// than waiting on independent liveness sweeps. Table works without one;
// this is an optional multi-process optimization, never a source of
// truth the core module depends on.
type Cache interface {
	Put(a *Announcement)
	Delete(chatID, nodeEPK *crypto.EPK)
}

// cacheRecord is the JSON form stored under each cache key.
type cacheRecord struct {
	IPPort    string `json:"ip_port"`
	Family    uint8  `json:"family"`
	TimeAdded uint64 `json:"time_added"`
}

// KVSCache adapts any util.KeyValueStore (redis, mysql, or sqlite3,
// selected by the same "type+arg+arg" DSN spec string OpenKVStore already
// dispatches on) into a Cache, so the §4.3.3 announcement table can be
// mirrored without this package knowing which backend is in play.
type KVSCache struct {
	store util.KeyValueStore
}

// NewKVSCache opens a cache backend via the DSN spec accepted by
// util.OpenKVStore (e.g. "redis+127.0.0.1:6379++0").
func NewKVSCache(spec string) (*KVSCache, error) {
	store, err := util.OpenKVStore(spec)
	if err != nil {
		return nil, err
	}
	return &KVSCache{store: store}, nil
}

func cacheKey(chatID, nodeEPK *crypto.EPK) string {
	return fmt.Sprintf("gca:%s:%s", hex.EncodeToString(chatID.Bytes()), hex.EncodeToString(nodeEPK.Bytes()))
}

// Put implements Cache.
func (c *KVSCache) Put(a *Announcement) {
	rec := cacheRecord{
		IPPort:    a.IPPort.String(),
		Family:    uint8(a.IPPort.Family),
		TimeAdded: a.TimeAdded.Val,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	c.store.Put(cacheKey(a.ChatID, a.NodeEPK), string(data))
}

// Delete implements Cache. util.KeyValueStore has no delete primitive
// (its put/get/list trio is a generic blob store, not a full cache API),
// so eviction overwrites the record with an empty marker instead; List
// callers must skip empty values.
func (c *KVSCache) Delete(chatID, nodeEPK *crypto.EPK) {
	c.store.Put(cacheKey(chatID, nodeEPK), "")
}
