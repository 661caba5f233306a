// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memcheck

import (
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"
)

// ReportHeader opens every text report.
const ReportHeader = "--- not freed:\n"

// WriteReport writes records to w, one line per allocation:
//
//	--- not freed:
//	addr: 0xc000012345, 12 bytes allocated at main.go:10:main.main
func WriteReport(w io.Writer, records []Record) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString(ReportHeader)
	for _, rec := range records {
		fmt.Fprintf(buf, "addr: %#x, %d bytes allocated at %s\n", rec.Address, rec.Size, rec.Site)
	}
	_, err := buf.WriteTo(w)
	return err
}
