// Copyright 2021 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efi

import (
	"fmt"
	"unicode/utf8"
)

// String16ErrorKind describes why a codepoint can't be represented in a
// String16.
type String16ErrorKind int

const (
	// String16Surrogate indicates a surrogate codepoint (U+D800-U+DFFF).
	String16Surrogate String16ErrorKind = iota + 1

	// String16Private indicates a codepoint from the private use area
	// (U+E000-U+F8FF).
	String16Private

	// String16OutOfRange indicates a codepoint outside of the basic
	// multilingual plane, or a byte sequence that isn't a codepoint.
	String16OutOfRange

	// String16Nul indicates an embedded nul (U+0000).
	String16Nul
)

func (k String16ErrorKind) String() string {
	switch k {
	case String16Surrogate:
		return "surrogate codepoint"
	case String16Private:
		return "private use codepoint"
	case String16OutOfRange:
		return "codepoint outside of the basic multilingual plane"
	case String16Nul:
		return "embedded nul"
	default:
		return fmt.Sprintf("String16ErrorKind(%d)", int(k))
	}
}

// Error implements error, so that a String16ErrorKind can be used as the
// target of errors.Is.
func (k String16ErrorKind) Error() string {
	return k.String()
}

// String16Error is returned when a string can't be converted to a String16.
type String16Error struct {
	Kind String16ErrorKind

	// Rune is the rejected codepoint, or utf8.RuneError if the input
	// contained a byte sequence that isn't valid UTF-8.
	Rune rune

	// Offset is the byte offset of the rejected codepoint for
	// NewString16, or its index for NewString16FromRunes.
	Offset int
}

func (e *String16Error) Error() string {
	return fmt.Sprintf("cannot represent U+%04X at offset %d: %v", e.Rune, e.Offset, e.Kind)
}

func (e *String16Error) Unwrap() error {
	return e.Kind
}

// classifyChar16 returns the reason that r isn't a valid CHAR16, or 0 if
// it is valid. A CHAR16 is any codepoint in the basic multilingual plane
// apart from nul, the surrogates and the private use area.
func classifyChar16(r rune) String16ErrorKind {
	switch {
	case r == 0:
		return String16Nul
	case r < 0 || r > 0xffff:
		return String16OutOfRange
	case r < surr1:
		return 0
	case r < surr3:
		return String16Surrogate
	case r < 0xf900:
		return String16Private
	default:
		return 0
	}
}

// classifyIllFormed handles a byte sequence that utf8 rejects. Surrogates
// encoded as 3-byte sequences are reported as such. Anything else isn't a
// codepoint at all.
func classifyIllFormed(s string) (rune, String16ErrorKind) {
	if len(s) >= 3 && s[0] == 0xed && s[1]&0xe0 == 0xa0 && s[2]&0xc0 == 0x80 {
		return 0xd000 | rune(s[1]&0x3f)<<6 | rune(s[2]&0x3f), String16Surrogate
	}
	return utf8.RuneError, String16OutOfRange
}

// String16 is an owned nul-terminated CHAR16 string, in the restricted
// subset of UCS-2 that the UEFI specification permits. Use Str16 to
// obtain a view of it.
type String16 struct {
	units []uint16 // always terminated by a single 0
}

// NewString16 converts the supplied string to a String16. The conversion
// fails with a *String16Error at the first codepoint that isn't a valid
// CHAR16. Bytes that aren't valid UTF-8 are never substituted.
func NewString16(s string) (*String16, error) {
	units := make([]uint16, 0, len(s)+1)
	for i := 0; i < len(s); {
		r, n := utf8.DecodeRuneInString(s[i:])

		var kind String16ErrorKind
		if r == utf8.RuneError && n == 1 {
			r, kind = classifyIllFormed(s[i:])
		} else {
			kind = classifyChar16(r)
		}
		if kind != 0 {
			return nil, &String16Error{Kind: kind, Rune: r, Offset: i}
		}

		units = append(units, uint16(r))
		i += n
	}

	return &String16{units: append(units, 0)}, nil
}

// NewString16FromRunes converts the supplied codepoints to a String16 in
// the same way as NewString16.
func NewString16FromRunes(runes []rune) (*String16, error) {
	units := make([]uint16, 0, len(runes)+1)
	for i, r := range runes {
		if kind := classifyChar16(r); kind != 0 {
			return nil, &String16Error{Kind: kind, Rune: r, Offset: i}
		}
		units = append(units, uint16(r))
	}

	return &String16{units: append(units, 0)}, nil
}

// MustString16 is like NewString16, but panics if the conversion fails.
func MustString16(s string) *String16 {
	str, err := NewString16(s)
	if err != nil {
		panic(err)
	}
	return str
}

// Str16 returns a view of this string, including the terminator. The view
// shares storage with the String16.
func (s *String16) Str16() *Str16 {
	return str16FromUnits(s.units)
}

func (s *String16) String() string {
	return s.Str16().String()
}
