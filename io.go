// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2012 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import "context"

// readChunkToBuf reads one wire chunk (3-byte LE length + 1-byte sequence
// id header, followed by that many payload bytes) and appends the payload
// to dst. It reports the chunk's sequence id and whether this was the
// terminal chunk of the logical packet: a chunk shorter than
// maxPayloadLen always terminates; a chunk of exactly maxPayloadLen does
// not, even if it happens to be the last data the sender had (§4.1), which
// is why an exact multiple of maxPayloadLen is followed by one more,
// empty, terminal chunk.
func readChunkToBuf(ctx context.Context, s Stream, dst []byte) (seqID byte, terminal bool, out []byte, err error) {
	var header [4]byte
	if err = s.ReadExact(ctx, header[:]); err != nil {
		return 0, false, dst, err
	}
	chunkLen := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
	seqID = header[3]

	if chunkLen == 0 {
		return seqID, true, dst, nil
	}

	start := len(dst)
	dst = append(dst, make([]byte, chunkLen)...)
	if err = s.ReadExact(ctx, dst[start:]); err != nil {
		return seqID, false, dst, err
	}

	if len(dst)%maxPayloadLen == 0 {
		return seqID, false, dst, nil
	}
	return seqID, true, dst, nil
}

// readPacketToBuf assembles one logical packet into dst, validating that
// each chunk's sequence id matches the rolling expected seqID and
// advancing it (mod 256) after every chunk, per §4.1's framing invariant.
func readPacketToBuf(ctx context.Context, s Stream, seqID *byte, dst []byte) ([]byte, error) {
	for {
		readSeqID, terminal, next, err := readChunkToBuf(ctx, s, dst)
		if err != nil {
			return dst, err
		}
		dst = next
		if readSeqID != *seqID {
			return dst, newProtocolError(ProtocolOutOfSync, "packet sequence id mismatch")
		}
		*seqID++
		if terminal {
			return dst, nil
		}
	}
}

// writePacket splits bytes into maxPayloadLen-sized chunks, each prefixed
// by a 3-byte LE length and a 1-byte sequence id taken from *seqID, which
// is advanced (mod 256) after every chunk written. An input whose length
// is an exact multiple of maxPayloadLen (including zero) is followed by
// one extra empty terminal chunk, mirroring readPacketToBuf's symmetric
// rule (§4.1).
func writePacket(ctx context.Context, s Stream, seqID *byte, payload []byte) error {
	extraEmptyChunk := len(payload)%maxPayloadLen == 0

	for len(payload) > 0 {
		chunkLen := len(payload)
		if chunkLen > maxPayloadLen {
			chunkLen = maxPayloadLen
		}
		if err := s.WriteUint32LE(ctx, uint32(chunkLen)|uint32(*seqID)<<24); err != nil {
			return err
		}
		if err := s.WriteAll(ctx, payload[:chunkLen]); err != nil {
			return err
		}
		payload = payload[chunkLen:]
		*seqID++
	}

	if extraEmptyChunk {
		if err := s.WriteUint32LE(ctx, uint32(*seqID)<<24); err != nil {
			return err
		}
		*seqID++
	}
	return nil
}
