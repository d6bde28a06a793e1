// Package api implements the HTTP surface of the mock server: project CRUD,
// mock resolution, the index and the metrics endpoint.
//
// Every handler is a value implementing httpwire.Handler. Dependencies are
// passed in through Deps; nothing is global.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/getmockd/mockapi/internal/matching"
	"github.com/getmockd/mockapi/pkg/cache"
	"github.com/getmockd/mockapi/pkg/httpwire"
	"github.com/getmockd/mockapi/pkg/logging"
	"github.com/getmockd/mockapi/pkg/metrics"
	"github.com/getmockd/mockapi/pkg/store"
)

// Client-facing messages. Those ending in ": " are followed by error detail.
const (
	MsgWelcome          = "Hello world!"
	MsgProjectMissing   = "Project does not exist."
	MsgProjectExists    = "Project already exists."
	MsgInvalidName      = "Invalid project name."
	MsgInvalidFormat    = "Invalid project configuration format: "
	MsgInvalidFile      = "Invalid project configuration file: "
	MsgWriteFailed      = "Failed to write project configuration: "
	MsgNotImplemented   = "Not implemented."
	MsgRequestCancelled = "Request cancelled: "
)

// StatusNotImplemented is sent when no condition matches a mock request.
const StatusNotImplemented = 406

// Deps are the collaborators the handlers use.
type Deps struct {
	Store   store.Store
	Cache   *cache.Cache
	Matcher *matching.Engine
	Metrics *metrics.Set
	Logger  *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return logging.Nop()
	}
	return d.Logger
}

// instrumented records request count and duration for a route.
type instrumented struct {
	route   string
	next    httpwire.Handler
	metrics *metrics.Set
}

func instrument(route string, set *metrics.Set, h httpwire.Handler) httpwire.Handler {
	if set == nil {
		return h
	}
	return &instrumented{route: route, next: h, metrics: set}
}

func (h *instrumented) Handle(ctx context.Context, req *httpwire.Request) *httpwire.Response {
	start := time.Now()
	resp := h.next.Handle(ctx, req)
	status := 500
	if resp != nil {
		status = resp.Status
	}
	metrics.Inc(h.metrics.RequestsTotal, h.route, itoa(status))
	metrics.Observe(h.metrics.RequestDuration, time.Since(start).Seconds(), h.route)
	return resp
}
