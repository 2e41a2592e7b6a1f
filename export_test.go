// Copyright 2020 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efi

import "go.uber.org/zap"

type NullVarsBackend = nullVarsBackend

func Str16FromUnits(units []uint16) *Str16 {
	return str16FromUnits(units)
}

func MockLogger(l *zap.Logger) (restore func()) {
	orig := logger()
	SetLogger(l)
	return func() {
		SetLogger(orig)
	}
}
