// Copyright 2022 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/canonical/go-efistr"
)

type guidArg efi.GUID

func (g guidArg) MarshalFlag() (string, error) {
	return efi.GUID(g).String(), nil
}

func (g *guidArg) UnmarshalFlag(value string) error {
	guid, err := efi.DecodeGUIDString(value)
	if err != nil {
		return fmt.Errorf("invalid GUID %q: %v", value, err)
	}
	*g = guidArg(guid)
	return nil
}

type encodeCommand struct {
	Output string `long:"output" short:"o" description:"Write the encoded string to the specified file, or - for stdout"`

	Positional struct {
		Text string `positional-arg-name:"text"`
	} `positional-args:"true" required:"true"`
}

func (cmd *encodeCommand) Execute(args []string) error {
	log := newLogger()
	defer log.Sync()

	str, err := efi.NewString16(cmd.Positional.Text)
	if err != nil {
		return fmt.Errorf("cannot encode string: %w", err)
	}
	b := str.Str16().Bytes()
	log.Debug("encoded string", zap.Int("units", str.Str16().Len()))

	switch cmd.Output {
	case "":
		fmt.Print(hex.Dump(b))
	case "-":
		if _, err := os.Stdout.Write(b); err != nil {
			return fmt.Errorf("cannot write string to stdout: %w", err)
		}
	default:
		if err := ioutil.WriteFile(cmd.Output, b, 0644); err != nil {
			return err
		}
	}
	return nil
}

type decodeCommand struct {
	Hex bool `long:"hex" description:"The input file contains hexadecimal text"`

	Positional struct {
		Filename string `positional-arg-name:"filename"`
	} `positional-args:"true" required:"true"`
}

func (cmd *decodeCommand) Execute(args []string) error {
	log := newLogger()
	defer log.Sync()

	data, err := ioutil.ReadFile(cmd.Positional.Filename)
	if err != nil {
		return err
	}
	if cmd.Hex {
		data, err = hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
		if err != nil {
			return fmt.Errorf("cannot decode hex input: %w", err)
		}
	}

	r := bytes.NewReader(data)
	str, err := efi.ReadStr16(r)
	if err != nil {
		return fmt.Errorf("cannot read string: %w", err)
	}
	if r.Len() > 0 {
		log.Debug("ignoring data after string terminator", zap.Int("bytes", r.Len()))
	}

	s, err := str.Decode()
	if err != nil {
		return fmt.Errorf("cannot decode string: %w", err)
	}
	fmt.Println(s)
	return nil
}

type readVarCommand struct {
	GUID guidArg `long:"guid" short:"g" description:"The vendor GUID of the variable" default:"4a67b082-0a4c-41cf-b6c7-440b29bb8c4f"`

	Positional struct {
		Name string `positional-arg-name:"name"`
	} `positional-args:"true" required:"true"`
}

func (cmd *readVarCommand) Execute(args []string) error {
	log := newLogger()
	defer log.Sync()
	efi.SetLogger(log)

	s, attrs, err := efi.ReadStringVariable(efi.DefaultVarContext, cmd.Positional.Name, efi.GUID(cmd.GUID))
	if err != nil {
		return err
	}
	log.Debug("variable attributes", zap.Uint32("attributes", uint32(attrs)))
	fmt.Println(s)
	return nil
}

type writeVarCommand struct {
	GUID  guidArg `long:"guid" short:"g" description:"The vendor GUID of the variable" default:"4a67b082-0a4c-41cf-b6c7-440b29bb8c4f"`
	Attrs uint32  `long:"attrs" short:"a" description:"The attributes of the variable" default:"7"`

	Positional struct {
		Name string `positional-arg-name:"name"`
		Text string `positional-arg-name:"text"`
	} `positional-args:"true" required:"true"`
}

func (cmd *writeVarCommand) Execute(args []string) error {
	log := newLogger()
	defer log.Sync()
	efi.SetLogger(log)

	return efi.WriteStringVariable(efi.DefaultVarContext, cmd.Positional.Name, efi.GUID(cmd.GUID),
		efi.VariableAttributes(cmd.Attrs), cmd.Positional.Text)
}

type loadOptionCommand struct {
	Class string `long:"class" short:"c" description:"The class of load option" default:"Boot" choice:"Boot" choice:"Driver" choice:"SysPrep" choice:"PlatformRecovery"`

	Positional struct {
		Number uint16 `positional-arg-name:"number" base:"16" description:"The load option number, in hexadecimal"`
	} `positional-args:"true" required:"true"`
}

func (cmd *loadOptionCommand) Execute(args []string) error {
	log := newLogger()
	defer log.Sync()
	efi.SetLogger(log)

	opt, err := efi.ReadLoadOptionVariable(efi.DefaultVarContext, efi.LoadOptionClass(cmd.Class), cmd.Positional.Number)
	if err != nil {
		return err
	}
	fmt.Println(opt.Description)
	return nil
}

type options struct {
	Verbose bool `long:"verbose" short:"v" description:"Enable debug logging"`

	Encode   encodeCommand   `command:"encode" description:"Encode text as a nul-terminated UCS-2 string"`
	Decode   decodeCommand   `command:"decode" description:"Decode a nul-terminated UCS-2 string from a file"`
	ReadVar  readVarCommand  `command:"read-var" description:"Print the string value of an EFI variable"`
	WriteVar writeVarCommand `command:"write-var" description:"Set an EFI variable to a string value"`

	LoadOption loadOptionCommand `command:"load-option" description:"Print the description of a load option"`
}

var opts options

func newLogger() *zap.Logger {
	if !opts.Verbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot create logger: %v\n", err)
		return zap.NewNop()
	}
	return log
}

func run() error {
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	_, err := parser.Parse()
	return err
}

func main() {
	if err := run(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Println(e.Message)
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
