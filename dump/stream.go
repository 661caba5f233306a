// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package dump

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/lemon-mint/frameio"
	"github.com/lesismal/memcheck"
)

// Writer writes a dump to an underlying io.Writer.
type Writer struct {
	bufw *bufio.Writer
	fw   frameio.FrameWriter
	buf  []byte
}

// NewWriter .
func NewWriter(w io.Writer) *Writer {
	bufw := bufio.NewWriter(w)
	return &Writer{
		bufw: bufw,
		fw:   frameio.NewFrameWriter(bufw),
	}
}

// WriteHeader writes the header frame. It must be the first frame.
func (w *Writer) WriteHeader(h Header) error {
	if h.Version == 0 {
		h.Version = Version
	}
	w.buf = AppendHeader(w.buf[:0], h)
	return w.fw.Write(w.buf)
}

// WriteRecord writes one record frame.
func (w *Writer) WriteRecord(rec memcheck.Record) error {
	w.buf = AppendRecord(w.buf[:0], rec)
	return w.fw.Write(w.buf)
}

// Flush .
func (w *Writer) Flush() error {
	return w.bufw.Flush()
}

// Reader reads a dump from an underlying io.Reader.
type Reader struct {
	fr frameio.FrameReader
}

// NewReader .
func NewReader(r io.Reader) *Reader {
	return &Reader{fr: frameio.NewFrameReader(bufio.NewReader(r))}
}

// ReadHeader reads the header frame.
func (r *Reader) ReadHeader() (Header, error) {
	data, err := r.fr.Read()
	if err != nil {
		return Header{}, err
	}
	return UnmarshalHeader(data)
}

// ReadRecord reads one record frame.
func (r *Reader) ReadRecord() (memcheck.Record, error) {
	data, err := r.fr.Read()
	if err != nil {
		return memcheck.Record{}, err
	}
	return Unmarshal(data)
}

// WriteAll writes a complete dump of records named name.
func WriteAll(w io.Writer, name string, records []memcheck.Record) error {
	dw := NewWriter(w)
	err := dw.WriteHeader(Header{
		Name:  name,
		Time:  time.Now(),
		Count: uint64(len(records)),
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err = dw.WriteRecord(rec); err != nil {
			return err
		}
	}
	return dw.Flush()
}

// ReadAll reads a complete dump.
func ReadAll(r io.Reader) (Header, []memcheck.Record, error) {
	dr := NewReader(r)
	h, err := dr.ReadHeader()
	if err != nil {
		return h, nil, err
	}
	records := make([]memcheck.Record, 0, min(h.Count, 1<<16))
	for i := uint64(0); i < h.Count; i++ {
		rec, err := dr.ReadRecord()
		if err != nil {
			return h, records, fmt.Errorf("dump: record %d of %d: %w", i+1, h.Count, err)
		}
		records = append(records, rec)
	}
	return h, records, nil
}
