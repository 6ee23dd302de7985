// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2013 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package migrator

import (
	"github.com/mysqlconn/mysqlconn"
)

// migrationRow is one already-applied-migration bookkeeping record, decoded
// from the `migrations` table. Grounded on
// original_source/src/migrator/model.rs's MigrationModel.
type migrationRow struct {
	Version Version
	Name    string
}

// migrationRowMapping maps org_name-identified columns of a
// `select version_0, version_1, version_2, name from migrations` result set
// into migrationRow, independent of the order those columns come back in.
// Grounded on model.rs's MigrationMapping, which does the same org_name ->
// index lookup over the Rust ModelData derive.
type migrationRowMapping struct {
	idxVersion0 int
	idxVersion1 int
	idxVersion2 int
	idxName     int
}

func (m *migrationRowMapping) FromColumns(columns []mysql.Column) error {
	m.idxVersion0, m.idxVersion1, m.idxVersion2, m.idxName = -1, -1, -1, -1
	for i, c := range columns {
		switch c.OrgName {
		case "version_0":
			m.idxVersion0 = i
		case "version_1":
			m.idxVersion1 = i
		case "version_2":
			m.idxVersion2 = i
		case "name":
			m.idxName = i
		}
	}
	if m.idxVersion0 < 0 || m.idxVersion1 < 0 || m.idxVersion2 < 0 || m.idxName < 0 {
		return &mysql.ParseError{Kind: mysql.ParseMissingField, Message: "migrations row missing version_0/version_1/version_2/name column"}
	}
	return nil
}

func (m *migrationRowMapping) FromRow(row mysql.Row) (migrationRow, error) {
	return migrationRow{
		Version: Version{
			Major: uint16(row[m.idxVersion0].Uint64()),
			Minor: uint16(row[m.idxVersion1].Uint64()),
			Patch: uint16(row[m.idxVersion2].Uint64()),
		},
		Name: string(row[m.idxName].Bytes()),
	}, nil
}
