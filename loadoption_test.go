// Copyright 2021 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package efi_test

import (
	"bytes"
	"context"
	"errors"

	. "gopkg.in/check.v1"

	. "github.com/canonical/go-efistr"
)

type loadoptionSuite struct{}

var _ = Suite(&loadoptionSuite{})

type testReadLoadOptionData struct {
	data     []byte
	expected *LoadOption
}

func (s *loadoptionSuite) testReadLoadOption(c *C, data *testReadLoadOptionData) {
	opt, err := ReadLoadOption(bytes.NewReader(data.data))
	c.Check(err, IsNil)
	c.Check(opt, DeepEquals, data.expected)
}

func (s *loadoptionSuite) TestReadLoadOption1(c *C) {
	s.testReadLoadOption(c, &testReadLoadOptionData{
		data: decodeHexString(c, "0100000062007500620075006e0074007500000004012a0001000000000800000000000000001000000000007b94de66b2fd25"+
			"45b75230d66bb2b9600202040434005c004500460049005c007500620075006e00740075005c007300680069006d007800360034002e006500660069"+
			"0000007fff0400"),
		expected: &LoadOption{
			Attributes:  LoadOptionActive,
			Description: "ubuntu",
			FilePathList: decodeHexString(c, "04012a0001000000000800000000000000001000000000007b94de66b2fd2545b75230d66bb2b96002020404"+
				"34005c004500460049005c007500620075006e00740075005c007300680069006d007800360034002e0065006600690000007fff0400"),
			OptionalData: []byte{}}})
}

func (s *loadoptionSuite) TestReadLoadOption2(c *C) {
	s.testReadLoadOption(c, &testReadLoadOptionData{
		data: decodeHexString(c, "0100000062004c0069006e007500780020004600690072006d0077006100720065002000550070006400610074006500720000"+
			"0004012a0001000000000800000000000000001000000000007b94de66b2fd2545b75230d66bb2b9600202040434005c004500460049005c00750062007500"+
			"6e00740075005c007300680069006d007800360034002e0065006600690000007fff04005c00660077007500700064007800360034002e006500660069000000"),
		expected: &LoadOption{
			Attributes:  LoadOptionActive,
			Description: "Linux Firmware Updater",
			FilePathList: decodeHexString(c, "04012a0001000000000800000000000000001000000000007b94de66b2fd2545b75230d66bb2b96002020404"+
				"34005c004500460049005c007500620075006e00740075005c007300680069006d007800360034002e0065006600690000007fff0400"),
			OptionalData: decodeHexString(c, "5c00660077007500700064007800360034002e006500660069000000")}})
}

func (s *loadoptionSuite) TestReadLoadOption3(c *C) {
	s.testReadLoadOption(c, &testReadLoadOptionData{
		data: decodeHexString(c, "010000002c004700720061007000680069006300200053006500740075007000000004071400edc5b6bdf36b0949837c353f6d"+
			"cbb6a2040614006478286b9c75c442b435a74ab694cd3b7fff0400"),
		expected: &LoadOption{
			Attributes:   LoadOptionActive,
			Description:  "Graphic Setup",
			FilePathList: decodeHexString(c, "04071400edc5b6bdf36b0949837c353f6dcbb6a2040614006478286b9c75c442b435a74ab694cd3b7fff0400"),
			OptionalData: []byte{}}})
}

func (s *loadoptionSuite) TestReadLoadOptionTruncatedDescription(c *C) {
	_, err := ReadLoadOption(bytes.NewReader(decodeHexString(c, "01000000000062007500")))
	c.Check(err, ErrorMatches, "cannot read Description: cannot read character 2: unexpected EOF")
}

func (s *loadoptionSuite) TestReadLoadOptionTruncatedFilePathList(c *C) {
	_, err := ReadLoadOption(bytes.NewReader(decodeHexString(c, "0100000004006100000004")))
	c.Check(err, ErrorMatches, "cannot read FilePathList: unexpected EOF")
}

func (s *loadoptionSuite) TestReadLoadOptionInvalidDescription(c *C) {
	_, err := ReadLoadOption(bytes.NewReader(decodeHexString(c, "01000000000000dc0000")))
	c.Check(err, ErrorMatches, "cannot decode Description: unpaired surrogate 0xdc00 at index 0: invalid UTF-16")
}

type testWriteLoadOptionData struct {
	opt      *LoadOption
	expected []byte
}

func (s *loadoptionSuite) testWriteLoadOption(c *C, data *testWriteLoadOptionData) {
	w := new(bytes.Buffer)
	c.Check(data.opt.Write(w), IsNil)
	c.Check(w.Bytes(), DeepEquals, data.expected)

	b, err := data.opt.Bytes()
	c.Check(err, IsNil)
	c.Check(b, DeepEquals, data.expected)
}

func (s *loadoptionSuite) TestWriteLoadOption1(c *C) {
	s.testWriteLoadOption(c, &testWriteLoadOptionData{
		opt: &LoadOption{
			Attributes:   LoadOptionActive,
			Description:  "Graphic Setup",
			FilePathList: decodeHexString(c, "04071400edc5b6bdf36b0949837c353f6dcbb6a2040614006478286b9c75c442b435a74ab694cd3b7fff0400")},
		expected: decodeHexString(c, "010000002c004700720061007000680069006300200053006500740075007000000004071400edc5b6bdf36b0949837c353f6d"+
			"cbb6a2040614006478286b9c75c442b435a74ab694cd3b7fff0400")})
}

func (s *loadoptionSuite) TestWriteLoadOption2(c *C) {
	s.testWriteLoadOption(c, &testWriteLoadOptionData{
		opt: &LoadOption{
			Attributes:   LoadOptionActive | LoadOptionHidden,
			Description:  "",
			OptionalData: []byte{0xaa}},
		expected: decodeHexString(c, "0900000000000000aa")})
}

func (s *loadoptionSuite) TestWriteLoadOptionInvalidDescription(c *C) {
	opt := &LoadOption{Description: "shim \ue001"}
	w := new(bytes.Buffer)
	err := opt.Write(w)
	c.Check(err, ErrorMatches, `cannot encode Description: cannot represent U\+E001 at offset 5: private use codepoint`)
	c.Check(errors.Is(err, String16Private), Equals, true)
	c.Check(w.Len(), Equals, 0)
}

func (s *loadoptionSuite) TestWriteLoadOptionFilePathListTooLong(c *C) {
	opt := &LoadOption{Description: "foo", FilePathList: make([]byte, 0x10000)}
	c.Check(opt.Write(new(bytes.Buffer)), ErrorMatches, "FilePathList too long")
}

func (s *loadoptionSuite) TestReadLoadOptionVariable(c *C) {
	backend := newMockVarsBackend()
	backend.vars["Boot000A-"+GlobalVariable.String()] = &mockVar{
		attrs: AttributeNonVolatile | AttributeBootserviceAccess | AttributeRuntimeAccess,
		data: decodeHexString(c, "010000002c004700720061007000680069006300200053006500740075007000000004071400edc5b6bdf36b0949837c353f6d"+
			"cbb6a2040614006478286b9c75c442b435a74ab694cd3b7fff0400")}
	ctx := WithVarsBackend(context.Background(), backend)

	opt, err := ReadLoadOptionVariable(ctx, LoadOptionClassBoot, 10)
	c.Assert(err, IsNil)
	c.Check(opt.Description, Equals, "Graphic Setup")

	_, err = ReadLoadOptionVariable(ctx, LoadOptionClassBoot, 11)
	c.Check(err, Equals, ErrVarNotExist)
}

func (s *loadoptionSuite) TestReadLoadOptionVariableInvalid(c *C) {
	backend := newMockVarsBackend()
	backend.vars["Driver0001-"+GlobalVariable.String()] = &mockVar{data: []byte{0x01}}
	ctx := WithVarsBackend(context.Background(), backend)

	_, err := ReadLoadOptionVariable(ctx, LoadOptionClassDriver, 1)
	c.Check(err, ErrorMatches, "cannot decode Driver0001: cannot read header: unexpected EOF")
}
