// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package debugserver exposes a Registry's outstanding allocations and
// counters over HTTP, and streams its events to websocket watchers.
package debugserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/lesismal/memcheck"
	"github.com/lesismal/memcheck/dump"
)

const (
	// PathOutstanding serves the outstanding allocations.
	PathOutstanding = "/debug/memcheck/outstanding"
	// PathStats serves Registry.Stats as JSON.
	PathStats = "/debug/memcheck/stats"
	// PathWatch upgrades to a websocket carrying one JSON event per message.
	PathWatch = "/debug/memcheck/watch"
)

const (
	// FormatText is the "--- not freed:" report, the default.
	FormatText = "text"
	// FormatJSON is a JSON array of records.
	FormatJSON = "json"
	// FormatPB is a dump stream.
	FormatPB = "pb"
)

var errUnknownFormat = errors.New("debugserver: unknown format")

func contentType(format string) (string, error) {
	switch format {
	case "", FormatText:
		return "text/plain; charset=utf-8", nil
	case FormatJSON:
		return "application/json", nil
	case FormatPB:
		return "application/octet-stream", nil
	}
	return "", errUnknownFormat
}

func encode(w io.Writer, format, name string, records []memcheck.Record) error {
	switch format {
	case "", FormatText:
		return memcheck.WriteReport(w, records)
	case FormatJSON:
		return json.NewEncoder(w).Encode(records)
	case FormatPB:
		return dump.WriteAll(w, name, records)
	}
	return errUnknownFormat
}

func encodeStats(w io.Writer, reg *memcheck.Registry) error {
	return json.NewEncoder(w).Encode(reg.Stats())
}

// NewRouter routes the debug endpoints of reg. The watch endpoint is only
// registered when hub is not nil.
func NewRouter(reg *memcheck.Registry, hub *Hub) *httprouter.Router {
	router := httprouter.New()
	router.GET(PathOutstanding, func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		format := r.URL.Query().Get("format")
		ct, err := contentType(format)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", ct)
		if err = encode(w, format, reg.Name(), reg.ReportOutstanding()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	router.GET(PathStats, func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		if err := encodeStats(w, reg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	if hub != nil {
		router.Handler(http.MethodGet, PathWatch, hub)
	}
	return router
}
