package matching

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/getmockd/mockapi/pkg/httpwire"
	"github.com/getmockd/mockapi/pkg/logging"
	"github.com/getmockd/mockapi/pkg/project"
)

// ErrNoMatch is returned by Resolve when no condition of the endpoint accepts
// the request.
var ErrNoMatch = errors.New("no matching condition")

// Tier names the resolution step that produced a match.
type Tier string

// Resolution tiers.
const (
	TierKeyed Tier = "keyed"
	TierScan  Tier = "scan"
)

// Result is a successful resolution.
type Result struct {
	Condition *project.Condition
	Tier      Tier
}

// Response builds the wire response for the matched condition.
func (r *Result) Response() *httpwire.Response {
	c := r.Condition
	return &httpwire.Response{
		Status:  c.Response.Status,
		Body:    c.BodyText(),
		Headers: maps.Clone(c.Response.Headers),
	}
}

// Engine resolves requests against project endpoints. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	log    *slog.Logger
	strict bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for unknown operators and near-miss
// diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithStrictBody selects strict (true) or subset (false) body matching.
func WithStrictBody(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// New creates an Engine. Body matching is strict unless configured otherwise.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:    logging.Nop(),
		strict: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strict reports whether body matching is strict.
func (e *Engine) Strict() bool { return e.strict }

// Match finds the condition of ep that answers req, trying the keyed lookup
// first and then scanning conditions in declaration order.
func (e *Engine) Match(ep *project.Endpoint, req *httpwire.Request) (*Result, bool) {
	if ep == nil || req == nil {
		return nil, false
	}

	key := project.RequestKey(string(req.Method), req.Queries, req.Body)
	if c, ok := ep.Lookup(key); ok {
		return &Result{Condition: c, Tier: TierKeyed}, true
	}

	for i, c := range ep.Conditions() {
		if c == nil {
			continue
		}
		ok, err := e.accepts(c, req)
		if err != nil {
			e.log.Warn("condition skipped", "index", i, "method", c.Method, "error", err)
			continue
		}
		if ok {
			return &Result{Condition: c, Tier: TierScan}, true
		}
	}

	if e.log.Enabled(context.Background(), slog.LevelDebug) {
		for _, nm := range NearMisses(ep, req, e.strict, 3) {
			e.log.Debug("near miss", "index", nm.Index, "method", nm.Method, "matched", nm.Matched, "reason", nm.Reason)
		}
	}
	return nil, false
}

// Resolve matches req and then waits out the condition's delay. The wait
// ends early, with ctx's error, if ctx is cancelled.
func (e *Engine) Resolve(ctx context.Context, ep *project.Endpoint, req *httpwire.Request) (*Result, error) {
	res, ok := e.Match(ep, req)
	if !ok {
		return nil, ErrNoMatch
	}
	if d := res.Condition.DelayDuration(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, nil
}

// accepts evaluates the full predicate of c.
func (e *Engine) accepts(c *project.Condition, req *httpwire.Request) (bool, error) {
	if !strings.EqualFold(c.Method, string(req.Method)) {
		return false, nil
	}
	ok, err := MatchQueries(c.Queries(), req.Queries)
	if err != nil || !ok {
		return false, err
	}
	if !MatchHeaders(c.Headers(), req.Header) {
		return false, nil
	}
	body, has := c.ExpectedBody()
	return MatchBody(body, has, req.Body, e.strict), nil
}
