// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package dump stores outstanding allocation records as a stream of
// length-prefixed frames, each holding one protobuf-wire message.
//
// A dump starts with one Header frame followed by Header.Count record
// frames.
package dump

import (
	"errors"
	"fmt"
	"time"

	"github.com/lesismal/memcheck"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// Magic opens every header.
	Magic = "memcheck-dump"

	// Version of the record layout.
	Version = 1
)

var (
	// ErrBadMagic is returned when a stream does not start with a dump header.
	ErrBadMagic = errors.New("dump: bad magic")

	// ErrVersion is returned for dumps written by a newer layout.
	ErrVersion = errors.New("dump: unsupported version")
)

// Header describes the dump that follows it.
type Header struct {
	Version uint64
	Name    string
	Time    time.Time
	Count   uint64
}

// header fields
const (
	hdrMagic   protowire.Number = 1
	hdrVersion protowire.Number = 2
	hdrName    protowire.Number = 3
	hdrTime    protowire.Number = 4
	hdrCount   protowire.Number = 5
)

// record fields
const (
	recAddress  protowire.Number = 1
	recSize     protowire.Number = 2
	recFile     protowire.Number = 3
	recLine     protowire.Number = 4
	recFunction protowire.Number = 5
)

// AppendHeader appends the wire form of h to b.
func AppendHeader(b []byte, h Header) []byte {
	b = protowire.AppendTag(b, hdrMagic, protowire.BytesType)
	b = protowire.AppendString(b, Magic)
	b = protowire.AppendTag(b, hdrVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, h.Version)
	if h.Name != "" {
		b = protowire.AppendTag(b, hdrName, protowire.BytesType)
		b = protowire.AppendString(b, h.Name)
	}
	if !h.Time.IsZero() {
		b = protowire.AppendTag(b, hdrTime, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.Time.UnixNano()))
	}
	b = protowire.AppendTag(b, hdrCount, protowire.VarintType)
	b = protowire.AppendVarint(b, h.Count)
	return b
}

// UnmarshalHeader parses a header frame.
func UnmarshalHeader(b []byte) (Header, error) {
	var (
		h     Header
		magic bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return h, fmt.Errorf("dump: header tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == hdrMagic && typ == protowire.BytesType:
			var s string
			s, n = protowire.ConsumeString(b)
			magic = s == Magic
		case num == hdrVersion && typ == protowire.VarintType:
			h.Version, n = protowire.ConsumeVarint(b)
		case num == hdrName && typ == protowire.BytesType:
			h.Name, n = protowire.ConsumeString(b)
		case num == hdrTime && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			h.Time = time.Unix(0, int64(v))
		case num == hdrCount && typ == protowire.VarintType:
			h.Count, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return h, fmt.Errorf("dump: header field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if !magic {
		return h, ErrBadMagic
	}
	if h.Version > Version {
		return h, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return h, nil
}

// AppendRecord appends the wire form of rec to b.
func AppendRecord(b []byte, rec memcheck.Record) []byte {
	b = protowire.AppendTag(b, recAddress, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Address))
	b = protowire.AppendTag(b, recSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Size))
	b = protowire.AppendTag(b, recFile, protowire.BytesType)
	b = protowire.AppendString(b, rec.Site.File)
	b = protowire.AppendTag(b, recLine, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Site.Line))
	b = protowire.AppendTag(b, recFunction, protowire.BytesType)
	b = protowire.AppendString(b, rec.Site.Function)
	return b
}

// Marshal returns the wire form of rec.
func Marshal(rec memcheck.Record) []byte {
	return AppendRecord(nil, rec)
}

// Unmarshal parses one record. Unknown fields are skipped.
func Unmarshal(b []byte) (memcheck.Record, error) {
	var rec memcheck.Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, fmt.Errorf("dump: record tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		var v uint64
		switch {
		case num == recAddress && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			rec.Address = uintptr(v)
		case num == recSize && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			rec.Size = int(v)
		case num == recFile && typ == protowire.BytesType:
			rec.Site.File, n = protowire.ConsumeString(b)
		case num == recLine && typ == protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
			rec.Site.Line = int(v)
		case num == recFunction && typ == protowire.BytesType:
			rec.Site.Function, n = protowire.ConsumeString(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return rec, fmt.Errorf("dump: record field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return rec, nil
}
