// Copyright 2021 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efi

import (
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/xerrors"

	"github.com/canonical/go-efistr/internal/ioerr"
)

const (
	// 0xd800-0xdc00 encodes the high 10 bits of a pair.
	// 0xdc00-0xe000 encodes the low 10 bits of a pair.
	surr1 = 0xd800
	surr2 = 0xdc00
	surr3 = 0xe000

	replacementChar = 0xfffd
)

var (
	// ErrInvalidUTF16 is returned from Str16.Decode when the string
	// contains a surrogate code unit that isn't part of a valid pair.
	ErrInvalidUTF16 = errors.New("invalid UTF-16")

	// ErrMissingNul is returned from NewStr16 when the supplied code
	// units don't contain a terminating nul.
	ErrMissingNul = errors.New("missing nul terminator")
)

// Str16 is a borrowed view of a nul-terminated CHAR16 string. It doesn't own
// the memory it refers to. The last code unit in the view is the single
// terminating 0 and no other code unit is 0.
//
// The zero value is an empty view with no storage.
type Str16 struct {
	units []uint16 // includes the terminator
}

func str16FromUnits(units []uint16) *Str16 {
	return &Str16{units: units}
}

// Str16FromPtr returns a view of the nul-terminated string that starts at p,
// without copying it.
//
// This function is unsafe. The caller must guarantee that p is not nil, that
// it points to a native-endian UTF-16 string terminated by a single 0 code
// unit, and that the memory remains valid and is not modified for as long as
// the returned view is in use. There is no bound on the scan for the
// terminator, so a string that isn't terminated results in reads beyond the
// end of its allocation.
func Str16FromPtr(p *uint16) *Str16 {
	n := 0
	for *(*uint16)(unsafe.Add(unsafe.Pointer(p), uintptr(n)*unsafe.Sizeof(*p))) != 0 {
		n++
	}
	return str16FromUnits(unsafe.Slice(p, n+1))
}

// NewStr16 returns a view of the nul-terminated string at the start of the
// supplied code units. The view ends at the first 0, and any code units
// after it are excluded. If there isn't a 0, ErrMissingNul is returned.
func NewStr16(units []uint16) (*Str16, error) {
	for i, c := range units {
		if c == 0 {
			return str16FromUnits(units[:i+1 : i+1]), nil
		}
	}
	return nil, ErrMissingNul
}

// ReadStr16 reads a nul-terminated little-endian CHAR16 string from the
// supplied io.Reader. It returns io.EOF if there is no data, and
// io.ErrUnexpectedEOF if the data ends before the terminator.
func ReadStr16(r io.Reader) (*Str16, error) {
	var units []uint16
	for {
		var c uint16
		if err := binary.Read(r, binary.LittleEndian, &c); err != nil {
			if len(units) == 0 {
				return nil, ioerr.PassRawEOF("cannot read character 0: %w", err)
			}
			return nil, ioerr.EOFIsUnexpected("cannot read character %d: %w", len(units), err)
		}
		units = append(units, c)
		if c == 0 {
			break
		}
	}
	return str16FromUnits(units), nil
}

// Ptr returns a pointer to the first code unit, or nil for an empty view.
func (s *Str16) Ptr() *uint16 {
	if len(s.units) == 0 {
		return nil
	}
	return &s.units[0]
}

// Len returns the number of code units in the view, including the
// terminator.
func (s *Str16) Len() int {
	return len(s.units)
}

// Units returns the code units of the string without the terminator. The
// returned slice shares storage with the view and must not be modified.
func (s *Str16) Units() []uint16 {
	if len(s.units) == 0 {
		return nil
	}
	n := len(s.units) - 1
	return s.units[:n:n]
}

// Bytes returns the little-endian encoding of the string, including the
// terminator.
func (s *Str16) Bytes() []byte {
	b := make([]byte, len(s.units)*2)
	for i, c := range s.units {
		binary.LittleEndian.PutUint16(b[i*2:], c)
	}
	return b
}

// Write serializes the string, including the terminator, to the supplied
// writer in little-endian form.
func (s *Str16) Write(w io.Writer) error {
	_, err := w.Write(s.Bytes())
	return err
}

// Decode converts the string to UTF-8. Any valid UTF-16 is accepted,
// including surrogate pairs, even though NewString16 never produces them.
// An unpaired surrogate results in an error wrapping ErrInvalidUTF16.
func (s *Str16) Decode() (string, error) {
	units := s.Units()

	var b strings.Builder
	b.Grow(len(units))
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		switch {
		case r < surr1 || r >= surr3:
			b.WriteRune(r)
		case r < surr2 && i+1 < len(units) && units[i+1] >= surr2 && units[i+1] < surr3:
			b.WriteRune(utf16.DecodeRune(r, rune(units[i+1])))
			i++
		default:
			return "", xerrors.Errorf("unpaired surrogate %#04x at index %d: %w", r, i, ErrInvalidUTF16)
		}
	}
	return b.String(), nil
}

// String converts the string to UTF-8 in the same way as Decode. Strings
// obtained from the firmware are expected to be valid UTF-16, so this
// panics if that is not the case. Use Decode to handle malformed strings.
func (s *Str16) String() string {
	str, err := s.Decode()
	if err != nil {
		panic(err)
	}
	return str
}

// ConvertUTF16ToUTF8 converts the supplied UTF-16 string to a
// UTF-8 string. If the supplied string is NULL-terminated, then
// the NULL termination is removed from the string. Invalid
// sequences are replaced with U+FFFD.
func ConvertUTF16ToUTF8(in []uint16) string {
	for i, c := range in {
		if c == 0 {
			in = in[:i]
			break
		}
	}
	return string(utf16.Decode(in))
}

// ConvertUTF8ToUTF16 converts the supplied UTF-8 string to a
// UTF-16 string.
func ConvertUTF8ToUTF16(in string) []uint16 {
	return utf16.Encode([]rune(in))
}

// ConvertUTF8ToUCS2 converts the supplied UTF-8 string to a
// UCS-2 string. Codepoints outside of the basic multilingual
// plane are replaced with U+FFFD. Unlike NewString16, this never
// fails and doesn't append a terminator.
func ConvertUTF8ToUCS2(in string) []uint16 {
	out := make([]uint16, 0, len(in))
	for _, r := range in {
		if r > 0xffff {
			r = replacementChar
		}
		out = append(out, uint16(r))
	}
	return out
}
