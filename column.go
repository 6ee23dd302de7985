// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2017 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

// Column describes one field of a result set, assembled from a
// Column Definition packet (§4.8). Grounded on
// original_source/src/connection/types/column.rs and
// original_source/src/connection/packets/column_def.rs; org_table/charset/
// length are kept (the Rust ColumnDef carries them) even though the
// distilled Column drops them; no code in this package reads Length.
type Column struct {
	Schema   string
	Table    string
	OrgTable string
	Name     string
	OrgName  string
	Charset  uint16
	Length   uint32
	Type     ColumnType
	Flags    ColumnFlags
	Decimals uint8
}

// DatabaseTypeName returns the SQL type name MySQL reports for c.Type,
// matching the teacher's typeDatabaseName convention (fields.go).
func (c Column) DatabaseTypeName() string { return c.Type.String() }

// Unsigned reports whether the column carries the UNSIGNED flag.
func (c Column) Unsigned() bool { return c.Flags&FlagUnsigned != 0 }

// Nullable reports whether the column may hold NULL.
func (c Column) Nullable() bool { return c.Flags&FlagNotNULL == 0 }

// parseColumnDef reads one Column Definition packet (§4.8), grounded on the
// Rust ColumnDef::deserialize and the teacher's readColumns loop
// in packets.go.
func parseColumnDef(p *ParseBuf) (Column, error) {
	catalog, err := p.CheckedEatU8Str()
	if err != nil {
		return Column{}, &ProtocolError{Kind: ProtocolParse, Message: "column definition: catalog", Cause: err}
	}
	if string(catalog) != "def" {
		return Column{}, newProtocolError(ProtocolUnexpectedPacket, "column definition: unexpected catalog")
	}
	schema, err := p.CheckedEatU8Str()
	if err != nil {
		return Column{}, &ProtocolError{Kind: ProtocolParse, Message: "column definition: schema", Cause: err}
	}
	table, err := p.CheckedEatU8Str()
	if err != nil {
		return Column{}, &ProtocolError{Kind: ProtocolParse, Message: "column definition: table", Cause: err}
	}
	orgTable, err := p.CheckedEatU8Str()
	if err != nil {
		return Column{}, &ProtocolError{Kind: ProtocolParse, Message: "column definition: org_table", Cause: err}
	}
	name, err := p.CheckedEatU8Str()
	if err != nil {
		return Column{}, &ProtocolError{Kind: ProtocolParse, Message: "column definition: name", Cause: err}
	}
	orgName, err := p.CheckedEatU8Str()
	if err != nil {
		return Column{}, &ProtocolError{Kind: ProtocolParse, Message: "column definition: org_name", Cause: err}
	}
	if p.Len() < 13 {
		return Column{}, newProtocolError(ProtocolParse, "column definition: short fixed block")
	}
	fillerLen := p.EatU8()
	if fillerLen != 12 {
		return Column{}, newProtocolError(ProtocolInvalidPacket, "column definition: bad fixed-block length")
	}
	charset := p.EatU16LE()
	length := p.EatU32LE()
	rawType := p.EatU8()
	rawFlags := p.EatU16LE()
	decimals := p.EatU8()
	p.EatBytes(2) // reserved

	flags := ColumnFlags(rawFlags)
	if err := validateColumnFlags(flags); err != nil {
		return Column{}, err
	}

	return Column{
		Schema:   string(schema),
		Table:    string(table),
		OrgTable: string(orgTable),
		Name:     string(name),
		OrgName:  string(orgName),
		Charset:  charset,
		Length:   length,
		Type:     ColumnType(rawType),
		Flags:    flags,
		Decimals: decimals,
	}, nil
}
