// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package debugserver

import (
	"github.com/lesismal/memcheck"
	"github.com/valyala/fasthttp"
)

// FastHandler serves the outstanding and stats endpoints of reg for
// fasthttp servers.
func FastHandler(reg *memcheck.Registry) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !ctx.IsGet() {
			ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}
		switch string(ctx.Path()) {
		case PathOutstanding:
			format := string(ctx.QueryArgs().Peek("format"))
			ct, err := contentType(format)
			if err != nil {
				ctx.Error(err.Error(), fasthttp.StatusBadRequest)
				return
			}
			ctx.SetContentType(ct)
			if err = encode(ctx, format, reg.Name(), reg.ReportOutstanding()); err != nil {
				ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
			}
		case PathStats:
			ctx.SetContentType("application/json")
			if err := encodeStats(ctx, reg); err != nil {
				ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
			}
		default:
			ctx.NotFound()
		}
	}
}
