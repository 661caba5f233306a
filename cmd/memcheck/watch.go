// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/lesismal/memcheck"
	"github.com/lesismal/memcheck/debugserver"
	"github.com/spf13/cobra"
)

var watchCount int

func init() {
	cmd := newWatchCmd()
	cmd.Flags().IntVarP(&watchCount, "count", "n", 0, "Exit after this many events, 0 means never")
	rootCmd.AddCommand(cmd)
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <url>",
		Short: "Stream allocation events from a debug server",
		Long: `The watch command prints every allocation, release and relocation of a
running process as it happens. A URL without a path uses ` + debugserver.PathWatch + `.

Example:
  memcheck watch http://localhost:6060
  memcheck watch ws://localhost:6060/debug/memcheck/watch -n 100`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0])
		},
	}
}

func watchURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid url %q", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = debugserver.PathWatch
	}
	return u.String(), nil
}

func runWatch(cmd *cobra.Command, raw string) error {
	target, err := watchURL(raw)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", target, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	out := cmd.OutOrStdout()
	for n := 0; watchCount <= 0 || n < watchCount; n++ {
		var ev memcheck.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		}
		if err := printEvent(out, ev); err != nil {
			return err
		}
	}
	return nil
}

func printEvent(w io.Writer, ev memcheck.Event) error {
	if jsonOut {
		return json.NewEncoder(w).Encode(ev)
	}
	size := printer.Sprintf("%d", ev.Size)
	var err error
	switch ev.Op {
	case memcheck.OpRealloc:
		_, err = fmt.Fprintf(w, "%-7s %#x -> %#x, %s bytes at %s\n", ev.Op, ev.OldAddress, ev.Address, size, ev.Site)
	default:
		_, err = fmt.Fprintf(w, "%-7s %#x, %s bytes at %s\n", ev.Op, ev.Address, size, ev.Site)
	}
	return err
}
