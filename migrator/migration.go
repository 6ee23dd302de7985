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
	"context"

	"github.com/mysqlconn/mysqlconn"
)

// Migration is one forward/backward schema change, applied and reverted
// against a single mysql.Connection. Grounded on
// original_source/src/migrator/migration.rs's Migration trait; the Rust
// original accepts a pool trait object so a migration can issue several
// statements over several borrowed connections, but this core's Migrator
// only ever holds one Connection at a time, so Up/Down take that directly.
type Migration interface {
	Name() string
	Up(ctx context.Context, conn *mysql.Connection) error
	Down(ctx context.Context, conn *mysql.Connection) error
}

// MigrationList groups the migrations introduced at one Version. A
// Migrator applies whole lists in Version order, never a partial list.
type MigrationList struct {
	Version    Version
	Migrations []Migration
}

// Ordered reports whether lists is sorted by strictly increasing Version,
// the precondition original_source/src/migrator/migration.rs's
// MigrationList::ordered checks before a Migrator trusts the slice.
func Ordered(lists []MigrationList) bool {
	for i := 1; i < len(lists); i++ {
		if lists[i-1].Version.Compare(lists[i].Version) >= 0 {
			return false
		}
	}
	return true
}
