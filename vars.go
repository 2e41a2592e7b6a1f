// Copyright 2020 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efi

import (
	"context"
	"encoding/binary"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

type VariableAttributes uint32

const (
	AttributeNonVolatile                       VariableAttributes = 1 << 0
	AttributeBootserviceAccess                 VariableAttributes = 1 << 1
	AttributeRuntimeAccess                     VariableAttributes = 1 << 2
	AttributeHardwareErrorRecord               VariableAttributes = 1 << 3
	AttributeAuthenticatedWriteAccess          VariableAttributes = 1 << 4
	AttributeTimeBasedAuthenticatedWriteAccess VariableAttributes = 1 << 5
	AttributeAppendWrite                       VariableAttributes = 1 << 6
	AttributeEnhancedAuthenticatedAccess       VariableAttributes = 1 << 7
)

var (
	// GlobalVariable is the vendor GUID for variables defined by the
	// UEFI specification.
	GlobalVariable = MakeGUID(0x8be4df61, 0x93ca, 0x11d2, 0xaa0d, [...]uint8{0x00, 0xe0, 0x98, 0x03, 0x2b, 0x8c})

	// LoaderVendor is the vendor GUID used by systemd-boot for its
	// string variables such as LoaderInfo and LoaderEntrySelected.
	LoaderVendor = MakeGUID(0x4a67b082, 0x0a4c, 0x41cf, 0xb6c7, [...]uint8{0x44, 0x0b, 0x29, 0xbb, 0x8c, 0x4f})
)

var (
	ErrVarsUnavailable = errors.New("no variable backend is available")
	ErrVarNotExist     = errors.New("variable does not exist")
	ErrVarPermission   = errors.New("permission denied")
)

// VarsBackend provides access to EFI variables.
type VarsBackend interface {
	Get(name string, guid GUID) (VariableAttributes, []byte, error)
	Set(name string, guid GUID, attrs VariableAttributes, data []byte) error
}

type nullVarsBackend struct{}

func (v nullVarsBackend) Get(name string, guid GUID) (VariableAttributes, []byte, error) {
	return 0, nil, ErrVarsUnavailable
}

func (v nullVarsBackend) Set(name string, guid GUID, attrs VariableAttributes, data []byte) error {
	return ErrVarsUnavailable
}

type varsBackendKey struct{}

var nullContext = WithVarsBackend(context.Background(), nullVarsBackend{})

// DefaultVarContext is the default context for accessing variables. On
// Linux this uses efivarfs. On other platforms, variable access returns
// ErrVarsUnavailable.
var DefaultVarContext = newDefaultVarContext()

// WithVarsBackend returns a copy of the supplied context that accesses
// variables with the supplied backend.
func WithVarsBackend(ctx context.Context, backend VarsBackend) context.Context {
	return context.WithValue(ctx, varsBackendKey{}, backend)
}

func getVarsBackend(ctx context.Context) VarsBackend {
	backend, ok := ctx.Value(varsBackendKey{}).(VarsBackend)
	if !ok {
		return nullVarsBackend{}
	}
	return backend
}

// ReadVariable returns the value and attributes of the EFI variable with the
// specified name and GUID.
func ReadVariable(ctx context.Context, name string, guid GUID) ([]byte, VariableAttributes, error) {
	attrs, data, err := getVarsBackend(ctx).Get(name, guid)
	if err != nil {
		return nil, 0, err
	}
	logger().Debug("read variable",
		zap.String("name", name),
		zap.Stringer("guid", guid),
		zap.Uint32("attributes", uint32(attrs)),
		zap.Int("size", len(data)))
	return data, attrs, nil
}

// WriteVariable writes the supplied data value with the specified attributes
// to the EFI variable with the specified name and GUID.
func WriteVariable(ctx context.Context, name string, guid GUID, attrs VariableAttributes, data []byte) error {
	if err := getVarsBackend(ctx).Set(name, guid, attrs, data); err != nil {
		return err
	}
	logger().Debug("wrote variable",
		zap.String("name", name),
		zap.Stringer("guid", guid),
		zap.Uint32("attributes", uint32(attrs)),
		zap.Int("size", len(data)))
	return nil
}

// ReadStringVariable returns the value of the EFI variable with the specified
// name and GUID, decoded from a nul-terminated CHAR16 string. Malformed
// values result in an error rather than a panic.
func ReadStringVariable(ctx context.Context, name string, guid GUID) (string, VariableAttributes, error) {
	data, attrs, err := ReadVariable(ctx, name, guid)
	if err != nil {
		return "", 0, err
	}
	if len(data)%2 != 0 {
		return "", 0, xerrors.Errorf("variable %s-%s has an odd length (%d bytes)", name, guid, len(data))
	}

	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[i*2:])
	}

	str, err := NewStr16(units)
	if err != nil {
		return "", 0, xerrors.Errorf("cannot decode variable %s-%s: %w", name, guid, err)
	}
	if str.Len() != len(units) {
		logger().Debug("ignoring data after string terminator",
			zap.String("name", name),
			zap.Stringer("guid", guid),
			zap.Int("trailing", len(units)-str.Len()))
	}

	s, err := str.Decode()
	if err != nil {
		return "", 0, xerrors.Errorf("cannot decode variable %s-%s: %w", name, guid, err)
	}
	return s, attrs, nil
}

// WriteStringVariable encodes the supplied value as a nul-terminated CHAR16
// string and writes it to the EFI variable with the specified name and GUID.
// A value that can't be encoded results in a *String16Error and nothing is
// written.
func WriteStringVariable(ctx context.Context, name string, guid GUID, attrs VariableAttributes, value string) error {
	str, err := NewString16(value)
	if err != nil {
		return xerrors.Errorf("cannot encode value for variable %s-%s: %w", name, guid, err)
	}
	return WriteVariable(ctx, name, guid, attrs, str.Str16().Bytes())
}
