// Copyright 2020 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efi

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// GUID corresponds to the EFI_GUID type.
type GUID [16]byte

func (guid GUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		binary.LittleEndian.Uint32(guid[0:4]),
		binary.LittleEndian.Uint16(guid[4:6]),
		binary.LittleEndian.Uint16(guid[6:8]),
		binary.BigEndian.Uint16(guid[8:10]),
		guid[10:16])
}

// MakeGUID makes a new GUID from the supplied arguments.
func MakeGUID(a uint32, b, c, d uint16, e [6]uint8) (out GUID) {
	binary.LittleEndian.PutUint32(out[0:4], a)
	binary.LittleEndian.PutUint16(out[4:6], b)
	binary.LittleEndian.PutUint16(out[6:8], c)
	binary.BigEndian.PutUint16(out[8:10], d)
	copy(out[10:], e[:])
	return
}

var guidFieldLengths = [...]int{8, 4, 4, 4, 12}

// DecodeGUIDString decodes the supplied GUID string. The string must have
// the format "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx" and may be surrounded
// by curly braces.
func DecodeGUIDString(s string) (GUID, error) {
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		s = s[1 : len(s)-1]
	}

	fields := strings.Split(s, "-")
	if len(fields) != len(guidFieldLengths) {
		return GUID{}, errors.New("invalid format")
	}

	var raw [][]byte
	for i, field := range fields {
		if len(field) != guidFieldLengths[i] {
			return GUID{}, errors.New("invalid format")
		}
		b, err := hex.DecodeString(field)
		if err != nil {
			return GUID{}, errors.New("invalid format")
		}
		raw = append(raw, b)
	}

	var e [6]uint8
	copy(e[:], raw[4])
	return MakeGUID(binary.BigEndian.Uint32(raw[0]), binary.BigEndian.Uint16(raw[1]),
		binary.BigEndian.Uint16(raw[2]), binary.BigEndian.Uint16(raw[3]), e), nil
}

