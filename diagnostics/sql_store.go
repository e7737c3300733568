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

package diagnostics

import (
	"database/sql"

	"github.com/halvard/meshchat/crypto"
	"github.com/halvard/meshchat/util"
)

// SQLMeter is a Meter backed by a database/sql connection, opened the
// same way the teacher's key/value store picks a backend (sqlite3 or
// mysql, via a "driver:dsn" spec string).
type SQLMeter struct {
	db *sql.DB
}

// NewSQLMeter connects to spec (see util.ConnectSqlDatabase) and
// ensures the error_meter table exists.
func NewSQLMeter(spec string) (*SQLMeter, error) {
	db, err := util.ConnectSqlDatabase(spec)
	if err != nil {
		return nil, err
	}
	const schema = `
		create table if not exists error_meter (
			peer  text not null,
			kind  text not null,
			count integer not null default 0,
			primary key (peer, kind)
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLMeter{db: db}, nil
}

// Record implements Meter. It uses a portable update-then-insert
// sequence rather than an upsert clause, since the dialect backing db
// may be either sqlite3 or mysql (util.ConnectSqlDatabase's two
// supported flavors have incompatible upsert syntax).
func (m *SQLMeter) Record(peer *crypto.EncPublicKey, kind Kind) error {
	key := peerKey(peer)
	res, err := m.db.Exec(`update error_meter set count = count + 1 where peer = ? and kind = ?`, key, string(kind))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}
	_, err = m.db.Exec(`insert into error_meter(peer, kind, count) values(?, ?, 1)`, key, string(kind))
	return err
}

// Counts implements Meter.
func (m *SQLMeter) Counts(peer *crypto.EncPublicKey) (map[Kind]int64, error) {
	rows, err := m.db.Query(`select kind, count from error_meter where peer = ?`, peerKey(peer))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[Kind]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		out[Kind(kind)] = count
	}
	return out, rows.Err()
}

// Close implements Meter.
func (m *SQLMeter) Close() error {
	return m.db.Close()
}
