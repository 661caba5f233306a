// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/lesismal/memcheck/debugserver"
	"github.com/lesismal/memcheck/dump"
	"github.com/spf13/cobra"
)

var (
	fetchTimeout time.Duration
	fetchSave    string
)

func init() {
	cmd := newFetchCmd()
	cmd.Flags().DurationVar(&fetchTimeout, "timeout", 10*time.Second, "HTTP timeout")
	cmd.Flags().StringVarP(&fetchSave, "output", "o", "", "Also save the raw dump to this file")
	rootCmd.AddCommand(cmd)
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch outstanding allocations from a debug server",
		Long: `The fetch command downloads the outstanding allocations of a running
process. A URL without a path uses ` + debugserver.PathOutstanding + `.

Example:
  memcheck fetch http://localhost:6060
  memcheck fetch http://localhost:6060 -o leaks.dump`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args[0])
		},
	}
}

// outstandingURL points raw at the dump form of the outstanding endpoint.
func outstandingURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = debugserver.PathOutstanding
	}
	q := u.Query()
	q.Set("format", debugserver.FormatPB)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func runFetch(cmd *cobra.Command, raw string) error {
	target, err := outstandingURL(raw)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: fetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: %s: %s", target, resp.Status, msg)
	}

	var body io.Reader = resp.Body
	if fetchSave != "" {
		f, err := os.Create(fetchSave)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", fetchSave, err)
		}
		defer f.Close()
		body = io.TeeReader(resp.Body, f)
	}

	h, records, err := dump.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return printReport(cmd.OutOrStdout(), h, records)
}
