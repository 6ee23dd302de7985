// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2013 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package migrator applies ordered schema migrations over a mysql.Connection,
// tracking which have already run in a bookkeeping table (§6 "Migration
// collaborator interface"). Grounded on
// original_source/src/migrator/{mod,migration,model,migrator_inner}.rs.
package migrator

import "fmt"

// Version identifies a MigrationList's position in the apply order,
// compared lexicographically (Major, then Minor, then Patch). Grounded on
// original_source/src/migrator/migration.rs's Version(u16, u16, u16).
type Version struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than
// other.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return cmpUint16(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return cmpUint16(v.Minor, other.Minor)
	}
	return cmpUint16(v.Patch, other.Patch)
}

func cmpUint16(a, b uint16) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v Version) String() string {
	return fmt.Sprintf("(%d.%d.%d)", v.Major, v.Minor, v.Patch)
}
