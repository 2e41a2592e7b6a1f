// Copyright 2021 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package ioerr

import (
	"io"

	"golang.org/x/xerrors"
)

func isRawEOF(arg interface{}) bool {
	err, isErr := arg.(error)
	return isErr && err == io.EOF
}

// EOFIsUnexpected is a wrapper around xerrors.Errorf that converts any
// raw io.EOF argument into io.ErrUnexpectedEOF. Use it when decoding a
// field that isn't at the start of a structure, where running out of
// data means the structure is truncated. Wrapped io.EOF errors are left
// alone.
func EOFIsUnexpected(format string, args ...interface{}) error {
	converted := make([]interface{}, 0, len(args))
	for _, arg := range args {
		if isRawEOF(arg) {
			arg = io.ErrUnexpectedEOF
		}
		converted = append(converted, arg)
	}
	return xerrors.Errorf(format, converted...)
}

// PassRawEOF is a wrapper around xerrors.Errorf that returns a raw io.EOF
// if any of the arguments is a raw io.EOF, so that callers can detect a
// clean end of stream.
func PassRawEOF(format string, args ...interface{}) error {
	for _, arg := range args {
		if isRawEOF(arg) {
			return io.EOF
		}
	}
	return xerrors.Errorf(format, args...)
}
