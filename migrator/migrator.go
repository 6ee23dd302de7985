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
	"fmt"

	"github.com/mysqlconn/mysqlconn"
	"github.com/sirupsen/logrus"
)

const bookkeepingTable = "migrations"

// tableExistsQuery and createTableDDL are grounded verbatim on
// original_source/src/migrator/migrator_inner.rs's Migrator::new: the
// information_schema.PARTITIONS probe (cheaper than a SHOW TABLES round
// trip since it's a single indexed lookup) and the composite-unique-key
// bookkeeping table definition.
const tableExistsQuery = `select 1 from information_schema.PARTITIONS where TABLE_NAME = "migrations" and TABLE_SCHEMA = DATABASE()`

const createTableDDL = `create table migrations (
	version_0 smallint unsigned not null,
	version_1 smallint unsigned not null,
	version_2 smallint unsigned not null,
	name varchar(255) not null,
	applied_at datetime not null default current_timestamp,
	unique (version_0, version_1, version_2, name)
)`

// Migrator applies and reverts MigrationLists against one mysql.Connection,
// tracking progress in the `migrations` table. Grounded on
// original_source/src/migrator/migrator_inner.rs's Migrator.
type Migrator struct {
	conn    *mysql.Connection
	lists   []MigrationList
	applied map[Version]map[string]bool
	log     *logrus.Entry
}

// New opens (creating if absent) the bookkeeping table, loads which
// migrations have already run, and returns a Migrator ready to apply or
// revert lists. lists must satisfy Ordered; New does not sort them.
func New(ctx context.Context, conn *mysql.Connection, lists []MigrationList) (*Migrator, error) {
	if !Ordered(lists) {
		return nil, fmt.Errorf("migrator: migration lists are not strictly ordered by version")
	}

	m := &Migrator{
		conn:    conn,
		lists:   lists,
		applied: make(map[Version]map[string]bool),
		log:     logrus.WithField("component", "migrator"),
	}

	exists, err := m.bookkeepingTableExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		m.log.Debug("creating migrations bookkeeping table")
		if _, err := conn.Execute(ctx, createTableDDL); err != nil {
			return nil, fmt.Errorf("migrator: creating bookkeeping table: %w", err)
		}
	}

	if err := m.loadApplied(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Migrator) bookkeepingTableExists(ctx context.Context) (bool, error) {
	rs, err := m.conn.Query(ctx, tableExistsQuery)
	if err != nil {
		return false, fmt.Errorf("migrator: checking bookkeeping table: %w", err)
	}
	rows, err := rs.Collect(ctx)
	if err != nil {
		return false, fmt.Errorf("migrator: checking bookkeeping table: %w", err)
	}
	return len(rows) > 0, nil
}

// loadApplied populates m.applied from the bookkeeping table, failing
// loudly if it names a migration that isn't present in m.lists — the
// migrator_inner.rs original panics on this case since it means the binary
// and the database have drifted; this core returns an error instead, since
// a library has no business panicking on its caller's behalf.
func (m *Migrator) loadApplied(ctx context.Context) error {
	rs, err := mysql.QueryMappedConn[migrationRow](ctx, m.conn, "select version_0, version_1, version_2, name from "+bookkeepingTable, &migrationRowMapping{})
	if err != nil {
		return fmt.Errorf("migrator: loading applied migrations: %w", err)
	}
	rows, err := rs.Collect(ctx)
	if err != nil {
		return fmt.Errorf("migrator: loading applied migrations: %w", err)
	}

	known := make(map[Version]map[string]bool, len(m.lists))
	for _, list := range m.lists {
		names := make(map[string]bool, len(list.Migrations))
		for _, mig := range list.Migrations {
			names[mig.Name()] = true
		}
		known[list.Version] = names
	}

	for _, row := range rows {
		names, ok := known[row.Version]
		if !ok || !names[row.Name] {
			return fmt.Errorf("migrator: bookkeeping table names unknown migration %q at version %s", row.Name, row.Version)
		}
		if m.applied[row.Version] == nil {
			m.applied[row.Version] = make(map[string]bool)
		}
		m.applied[row.Version][row.Name] = true
	}
	return nil
}

func (m *Migrator) isApplied(version Version, name string) bool {
	return m.applied[version] != nil && m.applied[version][name]
}

func (m *Migrator) markApplied(ctx context.Context, version Version, name string) error {
	stmt, err := m.conn.Prepare(ctx, "insert into "+bookkeepingTable+" (version_0, version_1, version_2, name) values (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("migrator: recording %s %s: %w", version, name, err)
	}
	defer stmt.Close(ctx)

	params := []mysql.Value{
		mysql.NewUint16(version.Major),
		mysql.NewUint16(version.Minor),
		mysql.NewUint16(version.Patch),
		mysql.NewBytes([]byte(name)),
	}
	if _, err := stmt.Execute(ctx, params); err != nil {
		return fmt.Errorf("migrator: recording %s %s: %w", version, name, err)
	}
	if m.applied[version] == nil {
		m.applied[version] = make(map[string]bool)
	}
	m.applied[version][name] = true
	return nil
}

func (m *Migrator) markReverted(ctx context.Context, version Version, name string) error {
	stmt, err := m.conn.Prepare(ctx, "delete from "+bookkeepingTable+" where version_0 = ? and version_1 = ? and version_2 = ? and name = ?")
	if err != nil {
		return fmt.Errorf("migrator: unrecording %s %s: %w", version, name, err)
	}
	defer stmt.Close(ctx)

	params := []mysql.Value{
		mysql.NewUint16(version.Major),
		mysql.NewUint16(version.Minor),
		mysql.NewUint16(version.Patch),
		mysql.NewBytes([]byte(name)),
	}
	if _, err := stmt.Execute(ctx, params); err != nil {
		return fmt.Errorf("migrator: unrecording %s %s: %w", version, name, err)
	}
	if m.applied[version] != nil {
		delete(m.applied[version], name)
	}
	return nil
}

// Up applies every not-yet-applied migration across all lists, ascending.
func (m *Migrator) Up(ctx context.Context) error {
	return m.upToIndex(ctx, len(m.lists))
}

// UpToVersion applies every not-yet-applied migration up to and including
// target. target must name one of the Migrator's lists.
func (m *Migrator) UpToVersion(ctx context.Context, target Version) error {
	idx := m.indexOf(target)
	if idx < 0 {
		return fmt.Errorf("migrator: unknown target version %s", target)
	}
	return m.upToIndex(ctx, idx+1)
}

func (m *Migrator) upToIndex(ctx context.Context, stopExclusive int) error {
	for _, list := range m.lists[:stopExclusive] {
		for _, mig := range list.Migrations {
			if m.isApplied(list.Version, mig.Name()) {
				continue
			}
			m.log.WithField("version", list.Version.String()).WithField("migration", mig.Name()).Info("applying migration")
			if err := mig.Up(ctx, m.conn); err != nil {
				return fmt.Errorf("migrator: applying %s %s: %w", list.Version, mig.Name(), err)
			}
			if err := m.markApplied(ctx, list.Version, mig.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}

// DownToVersion reverts every applied migration strictly above target,
// descending. Passing a Version lower than every list's Version reverts
// everything; a list whose Version equals target is kept.
func (m *Migrator) DownToVersion(ctx context.Context, target Version) error {
	for i := len(m.lists) - 1; i >= 0; i-- {
		list := m.lists[i]
		if list.Version.Compare(target) <= 0 {
			break
		}
		for j := len(list.Migrations) - 1; j >= 0; j-- {
			mig := list.Migrations[j]
			if !m.isApplied(list.Version, mig.Name()) {
				continue
			}
			m.log.WithField("version", list.Version.String()).WithField("migration", mig.Name()).Info("reverting migration")
			if err := mig.Down(ctx, m.conn); err != nil {
				return fmt.Errorf("migrator: reverting %s %s: %w", list.Version, mig.Name(), err)
			}
			if err := m.markReverted(ctx, list.Version, mig.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}

// ToVersion moves the schema to exactly target, applying forward or
// reverting backward as needed.
func (m *Migrator) ToVersion(ctx context.Context, target Version) error {
	if err := m.UpToVersion(ctx, target); err != nil {
		return err
	}
	return m.DownToVersion(ctx, target)
}

func (m *Migrator) indexOf(version Version) int {
	for i, list := range m.lists {
		if list.Version.Compare(version) == 0 {
			return i
		}
	}
	return -1
}
