// Copyright 2020-2021 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efi

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/canonical/go-efistr/internal/ioerr"
)

const immutableFlag = 0x00000010 // FS_IMMUTABLE_FL

var varsRoot = "/"

func varsPath() string {
	return filepath.Join(varsRoot, "sys/firmware/efi/efivars")
}

func varPath(name string, guid GUID) string {
	return filepath.Join(varsPath(), fmt.Sprintf("%s-%s", name, guid))
}

type varFile interface {
	io.ReadWriteCloser
	GetInodeFlags() (uint, error)
	SetInodeFlags(flags uint) error
}

type realVarFile struct {
	*os.File
}

func (f *realVarFile) GetInodeFlags() (uint, error) {
	flags, err := unix.IoctlGetUint32(int(f.Fd()), unix.FS_IOC_GETFLAGS)
	if err != nil {
		return 0, &os.PathError{Op: "ioctl", Path: f.Name(), Err: err}
	}
	return uint(flags), nil
}

func (f *realVarFile) SetInodeFlags(flags uint) error {
	if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.FS_IOC_SETFLAGS, int(flags)); err != nil {
		return &os.PathError{Op: "ioctl", Path: f.Name(), Err: err}
	}
	return nil
}

func realOpenVarFile(path string, flags int, perm os.FileMode) (varFile, error) {
	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return nil, err
	}
	return &realVarFile{f}, nil
}

func processEfivarfsFileAccessError(err error) error {
	switch {
	case os.IsNotExist(err):
		return ErrVarNotExist
	case os.IsPermission(err):
		return ErrVarPermission
	default:
		return err
	}
}

func isEfivarfsAvailable() (bool, error) {
	var st unix.Statfs_t
	if err := unixStatfs(varsPath(), &st); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, xerrors.Errorf("cannot statfs %s: %w", varsPath(), err)
	}
	return uint(st.Type) == uint(unix.EFIVARFS_MAGIC), nil
}

// makeVarFileMutable clears the immutable flag on the variable at the
// specified path if it exists. The returned function sets it again.
func makeVarFileMutable(path string) (restore func() error, err error) {
	noop := func() error { return nil }

	f, err := openVarFile(path, os.O_RDONLY, 0)
	switch {
	case os.IsNotExist(err):
		return noop, nil
	case err != nil:
		return nil, err
	}
	defer f.Close()

	flags, err := f.GetInodeFlags()
	if err != nil {
		return nil, err
	}
	if flags&immutableFlag == 0 {
		return noop, nil
	}
	if err := f.SetInodeFlags(flags &^ immutableFlag); err != nil {
		return nil, err
	}

	return func() error {
		f, err := openVarFile(path, os.O_RDONLY, 0)
		switch {
		case os.IsNotExist(err):
			// the variable was deleted by the write
			return nil
		case err != nil:
			return err
		}
		defer f.Close()

		flags, err := f.GetInodeFlags()
		if err != nil {
			return err
		}
		return f.SetInodeFlags(flags | immutableFlag)
	}, nil
}

type efivarfsVarsBackend struct{}

func (v efivarfsVarsBackend) Get(name string, guid GUID) (VariableAttributes, []byte, error) {
	if available, err := isEfivarfsAvailable(); err != nil {
		return 0, nil, err
	} else if !available {
		return 0, nil, ErrVarsUnavailable
	}

	f, err := openVarFile(varPath(name, guid), os.O_RDONLY, 0)
	if err != nil {
		return 0, nil, processEfivarfsFileAccessError(err)
	}
	defer f.Close()

	var attrs VariableAttributes
	if err := binary.Read(f, binary.LittleEndian, &attrs); err != nil {
		if err == io.EOF {
			// efivarfs returns no data for a variable that was
			// deleted after it was opened.
			return 0, nil, ErrVarNotExist
		}
		return 0, nil, ioerr.EOFIsUnexpected("cannot read variable attributes: %w", err)
	}

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return 0, nil, xerrors.Errorf("cannot read variable data: %w", err)
	}

	return attrs, data, nil
}

func (v efivarfsVarsBackend) Set(name string, guid GUID, attrs VariableAttributes, data []byte) error {
	if available, err := isEfivarfsAvailable(); err != nil {
		return err
	} else if !available {
		return ErrVarsUnavailable
	}

	path := varPath(name, guid)

	restore, err := makeVarFileMutable(path)
	if err != nil {
		return processEfivarfsFileAccessError(err)
	}
	defer func() {
		if err := restore(); err != nil {
			logger().Warn("cannot restore immutable flag",
				zap.String("path", path),
				zap.Error(err))
		}
	}()

	flags := os.O_WRONLY | os.O_CREATE
	if attrs&AttributeAppendWrite != 0 {
		flags |= os.O_APPEND
	}

	f, err := openVarFile(path, flags, 0644)
	if err != nil {
		return processEfivarfsFileAccessError(err)
	}

	// efivarfs requires the attributes and data in a single write.
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, attrs)
	buf.Write(data)

	if _, err := buf.WriteTo(f); err != nil {
		f.Close()
		return processEfivarfsFileAccessError(err)
	}
	return f.Close()
}

func newDefaultVarContext() context.Context {
	return WithVarsBackend(context.Background(), efivarfsVarsBackend{})
}
