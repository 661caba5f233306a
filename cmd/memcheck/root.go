// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/lesismal/memcheck"
	"github.com/lesismal/memcheck/dump"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// Global flags
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "memcheck",
	Short: "Inspect memcheck leak reports",
	Long: `memcheck decodes dump files written by a memcheck registry and talks to
the debug endpoints of a running process.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

var printer = message.NewPrinter(language.English)

type report struct {
	Header  dump.Header       `json:"header"`
	Records []memcheck.Record `json:"records"`
}

// printReport writes a summary line followed by the text report, or the
// whole dump as JSON with --json.
func printReport(w io.Writer, h dump.Header, records []memcheck.Record) error {
	if jsonOut {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report{Header: h, Records: records})
	}
	var total int64
	for _, rec := range records {
		total += int64(rec.Size)
	}
	name := h.Name
	if name == "" {
		name = memcheck.DefaultName
	}
	printer.Fprintf(w, "%s: %d allocations, %d bytes outstanding", name, len(records), total)
	if !h.Time.IsZero() {
		fmt.Fprintf(w, " at %s", h.Time.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)
	return memcheck.WriteReport(w, records)
}
