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
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the opt-in diagnostic sink of §10.1, set through
// ConnectionOptions.Logger. No code path in this package calls it: auth
// switches, pool waits and row decoding log nothing.
type Logger interface {
	WithField(key string, value interface{}) *logrus.Entry
}

// discardLogger is the zero-value-safe default: every field access funnels
// into a logrus.Logger whose output is io.Discard, so a caller who never
// sets ConnectionOptions.Logger pays no observable logging cost.
type discardLogger struct{}

func (discardLogger) WithField(key string, value interface{}) *logrus.Entry {
	return newDiscardEntry().WithField(key, value)
}

func newDiscardEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
