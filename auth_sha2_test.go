// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2023 The Go-MySQL-Driver Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCachingSha2FullAuthSendsCleartextOverSecureTransport(t *testing.T) {
	transport := &fakeAuthTransport{toRead: [][]byte{{iOK}}, secure: true}
	plugin := cachingSha2PasswordPlugin{}

	reply, err := plugin.ProcessAuthResponse(context.Background(), []byte{iAuthMoreData, 4}, []byte("01234567890123456789"), &ConnectionOptions{Password: "secret"}, transport)
	require.NoError(t, err)
	require.Equal(t, []byte{iOK}, reply)
	require.Len(t, transport.written, 1)
	require.Equal(t, append([]byte("secret"), 0), transport.written[0])
}

func TestCachingSha2FullAuthEncryptsOverInsecureTransport(t *testing.T) {
	transport := &fakeAuthTransport{secure: false}
	plugin := cachingSha2PasswordPlugin{}

	_, err := plugin.ProcessAuthResponse(context.Background(), []byte{iAuthMoreData, 4}, []byte("01234567890123456789"), &ConnectionOptions{Password: "secret"}, transport)
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.Equal(t, ProtocolInvalidPem, protoErr.Kind)
}

func TestCachingSha2FastAuthSuccessReadsFollowingPacket(t *testing.T) {
	transport := &fakeAuthTransport{toRead: [][]byte{{iOK}}}
	plugin := cachingSha2PasswordPlugin{}

	reply, err := plugin.ProcessAuthResponse(context.Background(), []byte{iAuthMoreData, 3}, []byte("01234567890123456789"), &ConnectionOptions{Password: "secret"}, transport)
	require.NoError(t, err)
	require.Equal(t, []byte{iOK}, reply)
	require.Empty(t, transport.written)
}
