// Copyright 2021 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efi

import (
	"sync"

	"go.uber.org/zap"
)

var (
	pkgLogger     *zap.Logger
	pkgLoggerOnce sync.Once
)

func logger() *zap.Logger {
	pkgLoggerOnce.Do(func() {
		if pkgLogger == nil {
			pkgLogger = zap.NewNop()
		}
	})
	return pkgLogger
}

// SetLogger configures the logger used for variable access. The string
// conversion functions never log. This must be called before any
// variables are accessed, and a no-op logger is used otherwise.
func SetLogger(l *zap.Logger) {
	pkgLogger = l
}
