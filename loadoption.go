// Copyright 2021 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efi

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"math"

	"golang.org/x/xerrors"

	"github.com/canonical/go-efistr/internal/ioerr"
)

// LoadOptionClass describes a class of load option.
type LoadOptionClass string

const (
	LoadOptionClassDriver           LoadOptionClass = "Driver"
	LoadOptionClassSysPrep          LoadOptionClass = "SysPrep"
	LoadOptionClassBoot             LoadOptionClass = "Boot"
	LoadOptionClassPlatformRecovery LoadOptionClass = "PlatformRecovery"
)

// LoadOptionAttributes corresponds to the attributes of a load option.
type LoadOptionAttributes uint32

const (
	LoadOptionActive         LoadOptionAttributes = 0x00000001
	LoadOptionForceReconnect LoadOptionAttributes = 0x00000002
	LoadOptionHidden         LoadOptionAttributes = 0x00000008
	LoadOptionCategoryApp    LoadOptionAttributes = 0x00000100
)

// LoadOption corresponds to the EFI_LOAD_OPTION type. The device path is
// kept in its serialized form.
type LoadOption struct {
	Attributes   LoadOptionAttributes
	Description  string
	FilePathList []byte
	OptionalData []byte
}

func (o *LoadOption) String() string {
	return fmt.Sprintf("EFI_LOAD_OPTION{ Attributes: %d, Description: \"%s\", FilePathList: %x, OptionalData: %x }",
		o.Attributes, o.Description, o.FilePathList, o.OptionalData)
}

// Write serializes this load option to the supplied io.Writer. It fails
// without writing anything if the description can't be represented as a
// CHAR16 string.
func (o *LoadOption) Write(w io.Writer) error {
	desc, err := NewString16(o.Description)
	if err != nil {
		return xerrors.Errorf("cannot encode Description: %w", err)
	}
	if len(o.FilePathList) > math.MaxUint16 {
		return errors.New("FilePathList too long")
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, o.Attributes)
	binary.Write(&buf, binary.LittleEndian, uint16(len(o.FilePathList)))
	desc.Str16().Write(&buf)
	buf.Write(o.FilePathList)
	buf.Write(o.OptionalData)

	_, err = buf.WriteTo(w)
	return err
}

// Bytes returns the serialized form of this load option.
func (o *LoadOption) Bytes() ([]byte, error) {
	w := new(bytes.Buffer)
	if err := o.Write(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// ReadLoadOption reads a LoadOption from the supplied io.Reader.
// This function will consume all of the bytes available.
func ReadLoadOption(r io.Reader) (*LoadOption, error) {
	var hdr struct {
		Attributes         LoadOptionAttributes
		FilePathListLength uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, ioerr.EOFIsUnexpected("cannot read header: %w", err)
	}

	desc, err := ReadStr16(r)
	if err != nil {
		return nil, ioerr.EOFIsUnexpected("cannot read Description: %w", err)
	}
	description, err := desc.Decode()
	if err != nil {
		return nil, xerrors.Errorf("cannot decode Description: %w", err)
	}

	filePathList := make([]byte, hdr.FilePathListLength)
	if _, err := io.ReadFull(r, filePathList); err != nil {
		return nil, ioerr.EOFIsUnexpected("cannot read FilePathList: %w", err)
	}

	optionalData, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, xerrors.Errorf("cannot read OptionalData: %w", err)
	}

	return &LoadOption{
		Attributes:   hdr.Attributes,
		Description:  description,
		FilePathList: filePathList,
		OptionalData: optionalData}, nil
}

// ReadLoadOptionVariable returns the load option with the specified class
// and number, eg Boot0001.
func ReadLoadOptionVariable(ctx context.Context, class LoadOptionClass, n uint16) (*LoadOption, error) {
	name := fmt.Sprintf("%s%04X", class, n)
	data, _, err := ReadVariable(ctx, name, GlobalVariable)
	if err != nil {
		return nil, err
	}
	opt, err := ReadLoadOption(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Errorf("cannot decode %s: %w", name, err)
	}
	return opt, nil
}
