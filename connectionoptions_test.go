// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2012 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDSNFullForm(t *testing.T) {
	opts, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)/testdb")
	require.NoError(t, err)
	require.Equal(t, "root", opts.User)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, "127.0.0.1", opts.Host)
	require.Equal(t, 3306, opts.Port)
	require.Equal(t, "testdb", opts.DBName)
}

func TestParseDSNNoPassword(t *testing.T) {
	opts, err := ParseDSN("root@tcp(db)/testdb")
	require.NoError(t, err)
	require.Equal(t, "root", opts.User)
	require.Equal(t, "", opts.Password)
	require.Equal(t, "db", opts.Host)
	require.Equal(t, 3306, opts.Port) // inherited default
}

func TestParseDSNNoUserinfo(t *testing.T) {
	opts, err := ParseDSN("tcp(db:1234)/testdb")
	require.NoError(t, err)
	require.Equal(t, "", opts.User)
	require.Equal(t, "db", opts.Host)
	require.Equal(t, 1234, opts.Port)
}

func TestParseDSNRejectsNonTCPScheme(t *testing.T) {
	_, err := ParseDSN("root:secret@unix(/var/run/mysqld.sock)/testdb")
	require.Error(t, err)
}

func TestParseDSNRejectsUnterminatedAddress(t *testing.T) {
	_, err := ParseDSN("root@tcp(db:3306/testdb")
	require.Error(t, err)
}

func TestParseDSNRejectsMissingDatabaseSeparator(t *testing.T) {
	_, err := ParseDSN("root@tcp(db:3306)testdb")
	require.Error(t, err)
}

func TestParseDSNRejectsInvalidPort(t *testing.T) {
	_, err := ParseDSN("root@tcp(db:notaport)/testdb")
	require.Error(t, err)
}

func TestParseDSNRejectsEmptyHost(t *testing.T) {
	_, err := ParseDSN("root@tcp()/testdb")
	require.Error(t, err)
}

func TestDefaultConnectionOptions(t *testing.T) {
	opts := DefaultConnectionOptions()
	require.Equal(t, 3306, opts.Port)
	require.True(t, opts.NoDelay)
	require.Equal(t, 4<<20, opts.MaxAllowedPacket)
	require.Equal(t, 10*time.Second, opts.Timeout)
	require.False(t, opts.AllowCleartextPasswords)
	require.NotNil(t, opts.Logger)
}

func TestOptionsApplyInOrder(t *testing.T) {
	opts := DefaultConnectionOptions()
	opts.Apply(
		WithUser("alice"),
		WithPassword("hunter2"),
		WithDBName("appdb"),
		WithTimeout(5*time.Second),
		WithAllowCleartextPasswords(),
		WithForcedAuthPlugin("mysql_clear_password"),
		WithCompression(),
	)
	require.Equal(t, "alice", opts.User)
	require.Equal(t, "hunter2", opts.Password)
	require.Equal(t, "appdb", opts.DBName)
	require.Equal(t, 5*time.Second, opts.Timeout)
	require.True(t, opts.AllowCleartextPasswords)
	require.Equal(t, "mysql_clear_password", opts.ForcedAuthPlugin)
	require.True(t, opts.UseCompression)
}
