package mysql

import mysql "github.com/mysqlconn/mysqlconn"

// Fuzz drives the wire-level decoders that see untrusted bytes straight off
// the network — ParseBuf's cursor and the lenenc-int codec — and ParseDSN
// through a go-fuzz-style corpus. It never expects data to look like a real packet;
// the goal is that a malformed or truncated one is rejected with an error
// (or handled via the Checked* variants) rather than panicking or reading
// out of bounds. Retargeted from the teacher's DSN-via-database/sql harness
// (this core registers no database/sql driver) to this core's own
// ParseBuf/lenenc surface, grounded on parsebuf.go.
func Fuzz(data []byte) int {
	interesting := 0

	p := mysql.NewParseBuf(data)
	for p.Len() > 0 {
		switch p.EatU8() % 8 {
		case 0:
			if _, err := p.CheckedEatU8(); err == nil {
				interesting = 1
			}
		case 1:
			if p.Len() >= 2 {
				_ = p.EatU16LE()
			}
		case 2:
			if p.Len() >= 4 {
				_ = p.EatU32LE()
			}
		case 3:
			if p.Len() >= 8 {
				_ = p.EatU64LE()
			}
		case 4:
			if _, _, err := p.EatLenencInt(); err == nil {
				interesting = 1
			}
		case 5:
			if _, _, err := p.EatLenencSlice(); err == nil {
				interesting = 1
			}
		case 6:
			if _, err := p.CheckedEatU8Str(); err == nil {
				interesting = 1
			}
		default:
			if _, err := p.EatNullTerminatedStr(); err == nil {
				interesting = 1
			}
		}
	}

	var buf [9]byte
	for _, n := range []uint64{0, 1, 250, 251, 0xffff, 0x1000000, ^uint64(0)} {
		encoded := mysql.PutLenencInt(buf[:0], n)
		decoded, isNullOrErr, err := mysql.NewParseBuf(encoded).EatLenencInt()
		if err != nil || isNullOrErr || decoded != n {
			panic("lenenc int round-trip mismatch")
		}
	}

	if _, err := mysql.ParseDSN(string(data)); err == nil {
		interesting = 1
	}

	return interesting
}
