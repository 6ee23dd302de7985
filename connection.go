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
	"context"
	"crypto/rsa"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// defaultMaxAllowedPacket is used for the Handshake Response's max packet
// size field, and as ConnectionData's starting value, whenever
// ConnectionOptions.MaxAllowedPacket is left unset (§4.6).
const defaultMaxAllowedPacket = 4 << 20

// ConnectionData is the per-connection negotiated state of §3: everything
// learned from the handshake and auth exchange, plus what the auth engine
// and initial-settings read mutate afterward. Grounded on
// original_source/src/connection/data.rs's ConnectionData.
type ConnectionData struct {
	ConnectionID     uint32
	ServerMajor      uint16
	ServerMinor      uint16
	ServerPatch      uint16
	IsMariaDB        bool
	Capabilities     CapabilityFlags
	Nonce            []byte
	AuthPlugin       string
	AuthSwitched     bool
	MaxAllowedPacket int
	ServerPubKey     *rsa.PublicKey
}

// Connection is the facade of §3/§4: it owns the stream, the framing
// sequence id, ConnectionData, the options it was built from, and the
// pending-result flag. Per §5 it is not safe for concurrent use: mu is
// held across exactly one command-plus-result-set lifetime by the
// caller's goroutine, mirroring the exclusive-borrow discipline the
// original design gets from the Rust borrow checker. Grounded on
// original_source/src/connection/mod.rs's Connection<T: Socket>.
type Connection struct {
	stream Stream
	seqID  byte

	data ConnectionData
	opts *ConnectionOptions

	pendingResult bool
	poisoned      error

	traceID uuid.UUID

	mu sync.Mutex
}

// Data returns the connection's negotiated state.
func (c *Connection) Data() ConnectionData { return c.data }

// TraceID is the per-connection diagnostic correlation id (§11,
// google/uuid). It is available only through this accessor; no log line or
// error message carries it.
func (c *Connection) TraceID() uuid.UUID { return c.traceID }

// Lock acquires exclusive use of the connection for the duration of one
// command and its result set (§5); Unlock releases it. Every exported
// operation that issues a command acquires this same mutex itself, and
// the mutex is not reentrant: a caller holding Lock blocks if it then
// issues a command on c.
func (c *Connection) Lock()   { c.mu.Lock() }
func (c *Connection) Unlock() { c.mu.Unlock() }

// lock and unlock implement resultSetConn/statementConn's half of the same
// mutex, so Query/Execute/Prepare/Ping can enforce the invariant the
// doc comment above describes without requiring every caller to know about
// the exported Lock/Unlock pair.
func (c *Connection) lock()   { c.mu.Lock() }
func (c *Connection) unlock() { c.mu.Unlock() }

// Connect dials opts.Host:opts.Port, performs the handshake and
// authentication round trip, and (if opts.MaxAllowedPacket is unset) reads
// the server's max_allowed_packet (§4.4/§4.5/§4.6). Grounded on
// original_source/src/connection/init.rs's Connection::connect.
func Connect(ctx context.Context, opts *ConnectionOptions) (*Connection, error) {
	stream, err := ConnectTCP(ctx, StreamOptions{
		Host:    opts.Host,
		Port:    opts.Port,
		NoDelay: opts.NoDelay,
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, err
	}

	c := &Connection{stream: stream, opts: opts, traceID: uuid.New()}

	if err := c.handshakeAndAuthenticate(ctx); err != nil {
		_ = stream.Close()
		return nil, err
	}

	if opts.MaxAllowedPacket <= 0 {
		if err := c.loadMaxAllowedPacket(ctx); err != nil {
			_ = stream.Close()
			return nil, err
		}
	}

	return c, nil
}

// handshakeAndAuthenticate reads the Initial Handshake packet, negotiates
// capabilities, builds and sends the Handshake Response, and drives the
// auth state machine (auth.go) to completion. This is kept distinct from
// performAuth because the very first response the client sends is a full
// Handshake Response packet, not a bare plugin auth response.
func (c *Connection) handshakeAndAuthenticate(ctx context.Context) error {
	opts := c.opts

	packet, err := c.readPacket(ctx)
	if err != nil {
		return err
	}
	hs, err := parseHandshake(packet)
	if err != nil {
		c.poison(err)
		return err
	}

	requested := requestedCapabilities
	if opts.DBName != "" {
		requested |= ClientConnectWithDB
	}
	if opts.UseCompression {
		requested |= ClientCompress
	}
	negotiated := requested & hs.Capabilities

	pluginName := hs.AuthPluginName
	if pluginName == "" {
		pluginName = "mysql_native_password"
	}
	if opts.ForcedAuthPlugin != "" && opts.ForcedAuthPlugin != pluginName {
		err := newRuntimeError(RuntimeAuthPluginMismatch,
			"server offered "+pluginName+", but auth_plugin forces "+opts.ForcedAuthPlugin)
		c.poison(err)
		return err
	}

	plugin, ok := getAuthPlugin(pluginName)
	if !ok {
		err := newProtocolError(ProtocolUnknownAuthPlugin, "server requested unknown auth plugin: "+pluginName)
		c.poison(err)
		return err
	}

	scramble, err := plugin.InitAuth(hs.Nonce, opts)
	if err != nil {
		c.poison(err)
		return err
	}

	major, minor, patch, isMariaDB, _ := hs.ParsedServerVersion()

	maxAllowedPacket := opts.MaxAllowedPacket
	if maxAllowedPacket <= 0 {
		maxAllowedPacket = defaultMaxAllowedPacket
	}

	c.data = ConnectionData{
		ConnectionID:     hs.ConnectionID,
		ServerMajor:      major,
		ServerMinor:      minor,
		ServerPatch:      patch,
		IsMariaDB:        isMariaDB,
		Capabilities:     negotiated,
		Nonce:            hs.Nonce,
		AuthPlugin:       pluginName,
		MaxAllowedPacket: maxAllowedPacket,
		ServerPubKey:     opts.ServerPubKey,
	}

	response := buildHandshakeResponse(negotiated, handshakeResponseOptions{
		scramble:       scramble,
		user:           opts.User,
		dbName:         opts.DBName,
		authPluginName: pluginName,
		maxPacketSize:  uint32(maxAllowedPacket),
		serverMajor:    major,
		serverMinor:    minor,
		serverPatch:    patch,
	})

	if err := c.writeHandshakePacket(ctx, response); err != nil {
		return err
	}

	reply, err := c.readHandshakePacket(ctx)
	if err != nil {
		return err
	}
	reply, err = plugin.ProcessAuthResponse(ctx, reply, hs.Nonce, opts, c)
	if err != nil {
		c.poison(err)
		return err
	}
	switched, err := dispatchAuthResponse(ctx, c, reply, hs.Nonce, opts, false)
	if err != nil {
		c.poison(err)
		return err
	}
	c.data.AuthSwitched = switched

	if negotiated&ClientCompress != 0 {
		c.stream = newCompressedStream(c.stream)
	}
	return nil
}

// loadMaxAllowedPacket implements §4.6: a single-row, single-column query
// whose result overwrites ConnectionData.MaxAllowedPacket.
func (c *Connection) loadMaxAllowedPacket(ctx context.Context) error {
	rs, err := c.Query(ctx, "select @@max_allowed_packet")
	if err != nil {
		return err
	}
	row, err := rs.One(ctx)
	if err != nil {
		return err
	}
	if row == nil || len(*row) == 0 {
		return nil
	}

	v := (*row)[0]
	switch v.Kind {
	case KindInt64:
		c.data.MaxAllowedPacket = int(v.Int64())
	case KindUint64:
		c.data.MaxAllowedPacket = int(v.Uint64())
	case KindBytes:
		n, err := strconv.ParseInt(string(v.Bytes()), 10, 64)
		if err != nil {
			return newProtocolError(ProtocolParse, "max_allowed_packet: not an integer")
		}
		c.data.MaxAllowedPacket = int(n)
	default:
		return newProtocolError(ProtocolParse, "max_allowed_packet: unexpected value type")
	}
	return nil
}

// poison records the first failure that leaves wire state undefined
// (§5/§7): every subsequent operation on this connection returns the same
// wrapped cause without touching the stream again.
func (c *Connection) poison(cause error) {
	if c.poisoned == nil {
		c.poisoned = fmt.Errorf("%w: %v", ErrConnectionPoisoned, cause)
	}
}

// readPacket implements resultSetConn/statementConn: read one logical
// packet, poisoning the connection on any I/O or framing failure.
func (c *Connection) readPacket(ctx context.Context) ([]byte, error) {
	if c.poisoned != nil {
		return nil, c.poisoned
	}
	packet, err := readPacketToBuf(ctx, c.stream, &c.seqID, nil)
	if err != nil {
		c.poison(err)
		return nil, c.poisoned
	}
	return packet, nil
}

// capabilities implements resultSetConn.
func (c *Connection) capabilities() CapabilityFlags { return c.data.Capabilities }

// setPendingResult implements resultSetConn.
func (c *Connection) setPendingResult(v bool) { c.pendingResult = v }

// readHandshakePacket and writeHandshakePacket implement authTransport:
// a raw packet exchange that does not reset the sequence id, since the
// handshake/auth round trip is itself one ongoing sequence (§4.4/§4.5).
func (c *Connection) readHandshakePacket(ctx context.Context) ([]byte, error) {
	return c.readPacket(ctx)
}

func (c *Connection) writeHandshakePacket(ctx context.Context, payload []byte) error {
	if c.poisoned != nil {
		return c.poisoned
	}
	if err := writePacket(ctx, c.stream, &c.seqID, payload); err != nil {
		c.poison(err)
		return c.poisoned
	}
	return nil
}

// Secure implements authTransport, delegating to the underlying stream
// (§4.5: caching_sha2_password sends the password in the clear only when
// this is true).
func (c *Connection) Secure() bool { return c.stream.Secure() }

// requestServerPubKey implements authTransport's RSA key request (§4.5):
// write the single-byte ComServerPubKeyRequest, then expect either a
// 0x01-prefixed PEM block or an ERR packet.
func (c *Connection) requestServerPubKey(ctx context.Context) ([]byte, error) {
	if err := c.writeHandshakePacket(ctx, []byte{0x02}); err != nil {
		return nil, err
	}
	packet, err := c.readHandshakePacket(ctx)
	if err != nil {
		return nil, err
	}
	if len(packet) == 0 {
		return nil, newProtocolError(ProtocolInvalidPacket, "empty server public key response")
	}
	switch packet[0] {
	case 0x01:
		return packet[1:], nil
	case iERR:
		return nil, decodeServerError(packet)
	default:
		return nil, newProtocolError(ProtocolUnexpectedPacket, "expected server public key response")
	}
}

// sendCommand implements statementConn: every command first drains any
// pending result set and resets the sequence id to 0, then writes the
// payload (§4.7).
func (c *Connection) sendCommand(ctx context.Context, payload []byte) error {
	if c.poisoned != nil {
		return c.poisoned
	}
	if _, err := drainPendingResult(ctx, c, c.pendingResult); err != nil {
		c.poison(err)
		return c.poisoned
	}
	c.seqID = 0
	if err := writePacket(ctx, c.stream, &c.seqID, payload); err != nil {
		c.poison(err)
		return c.poisoned
	}
	return nil
}

// Query issues COM_QUERY and returns the resulting text-protocol
// ResultSet, decoded into raw Values. The caller must drain it (Next/
// Collect/One/Finish) before issuing another command on this connection.
func (c *Connection) Query(ctx context.Context, query string) (*ResultSet[Row], error) {
	return QueryMappedConn[Row](ctx, c, query, RawRowMapping{})
}

// QueryMappedConn is Query generalized over a caller-supplied RowMapping,
// mirroring QueryMapped's relationship to PreparedStatement.Query (§9). It
// acquires c's command mutex for the command's duration; readResultSet
// releases it immediately for an OK-only reply or an error, and otherwise
// leaves it held until the returned ResultSet's terminal OK is observed.
func QueryMappedConn[R any](ctx context.Context, c *Connection, query string, mapping RowMapping[R]) (*ResultSet[R], error) {
	c.lock()
	if err := c.sendCommand(ctx, encodeQuery(query)); err != nil {
		c.unlock()
		return nil, err
	}
	return readResultSet[R](ctx, c, textRowProtocol, mapping)
}

// Execute issues COM_QUERY and returns the terminal OK packet, for
// statements that do not return rows. A query that does return a result
// set is a caller error here; use Query instead.
func (c *Connection) Execute(ctx context.Context, query string) (OkPacket, error) {
	c.lock()
	defer c.unlock()

	if err := c.sendCommand(ctx, encodeQuery(query)); err != nil {
		return OkPacket{}, err
	}

	packet, err := c.readPacket(ctx)
	if err != nil {
		return OkPacket{}, err
	}
	if len(packet) == 0 {
		return OkPacket{}, newProtocolError(ProtocolInvalidPacket, "empty query reply")
	}

	switch packet[0] {
	case iOK:
		return decodeOkPacket(packet, c.capabilities(), iOK)
	case iERR:
		return OkPacket{}, decodeServerError(packet)
	default:
		n, isNullOrErr, err := NewParseBuf(packet).EatLenencInt()
		if err != nil || isNullOrErr {
			return OkPacket{}, newProtocolError(ProtocolInvalidPacket, "result set header: bad column count")
		}
		for i := uint64(0); i < n; i++ {
			if _, err := c.readPacket(ctx); err != nil {
				return OkPacket{}, err
			}
		}
		c.setPendingResult(true)
		if _, err := drainPendingResult(ctx, c, true); err != nil {
			return OkPacket{}, err
		}
		return OkPacket{}, newProtocolError(ProtocolUnexpectedPacket, "Execute received a result set; use Query instead")
	}
}

// Prepare sends COM_STMT_PREPARE and returns the resulting
// PreparedStatement (§4.10). prepareStatement fully drains the Prepare OK's
// param/column definitions before returning, so the mutex is held for
// exactly this call's duration.
func (c *Connection) Prepare(ctx context.Context, query string) (*PreparedStatement, error) {
	c.lock()
	defer c.unlock()
	return prepareStatement(ctx, c, query)
}

// Ping issues COM_PING and returns once the server's OK packet is
// consumed, surfacing any error it returns instead.
func (c *Connection) Ping(ctx context.Context) error {
	c.lock()
	defer c.unlock()

	if err := c.sendCommand(ctx, encodePing()); err != nil {
		return err
	}
	packet, err := c.readPacket(ctx)
	if err != nil {
		return err
	}
	if len(packet) == 0 {
		return newProtocolError(ProtocolInvalidPacket, "empty ping reply")
	}
	switch packet[0] {
	case iOK:
		_, err := decodeOkPacket(packet, c.capabilities(), iOK)
		return err
	case iERR:
		return decodeServerError(packet)
	default:
		return newProtocolError(ProtocolUnexpectedPacket, "expected ok or err packet after ping")
	}
}

// Close sends COM_QUIT, which the server answers by closing the socket
// rather than replying, then closes the local stream.
func (c *Connection) Close(ctx context.Context) error {
	c.lock()
	defer c.unlock()
	if c.poisoned == nil {
		_ = c.sendCommand(ctx, encodeQuit())
	}
	return c.stream.Close()
}
