package api

import (
	"context"
	"errors"
	"strings"

	"github.com/getmockd/mockapi/internal/matching"
	"github.com/getmockd/mockapi/pkg/cache"
	"github.com/getmockd/mockapi/pkg/httpwire"
	"github.com/getmockd/mockapi/pkg/metrics"
	"github.com/getmockd/mockapi/pkg/project"
	"github.com/getmockd/mockapi/pkg/store"
)

// Index answers GET /.
type Index struct{}

func (Index) Handle(context.Context, *httpwire.Request) *httpwire.Response {
	return httpwire.JSON(200, map[string]string{"name": MsgWelcome})
}

// Metrics serves the registry in text exposition format.
type Metrics struct {
	Set *metrics.Set
}

func (h *Metrics) Handle(context.Context, *httpwire.Request) *httpwire.Response {
	return &httpwire.Response{
		Status:  200,
		Body:    h.Set.Registry.Text(),
		Headers: map[string]string{"Content-Type": metrics.ContentType},
	}
}

// GetProject returns the stored configuration text of a project unchanged.
type GetProject struct {
	deps *Deps
}

func (h *GetProject) Handle(ctx context.Context, req *httpwire.Request) *httpwire.Response {
	name := req.Params["name"]
	if store.ValidateName(name) != nil {
		return httpwire.Error(400, MsgInvalidName)
	}

	raw, err := h.deps.Store.ReadRaw(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httpwire.Error(404, MsgProjectMissing)
		}
		h.deps.logger().Error("failed to read project", "project", name, "error", err)
		return httpwire.Error(500, MsgInvalidFile+err.Error())
	}
	return httpwire.OK(raw, map[string]string{"Content-Type": "application/json"})
}

// SaveProject stores a project configuration. With create set it answers
// POST and refuses to overwrite; otherwise it answers PUT and refuses to
// create. The body must parse as a valid configuration and is stored
// byte-for-byte. A successful write invalidates the cached configuration.
type SaveProject struct {
	deps   *Deps
	create bool
}

func (h *SaveProject) Handle(ctx context.Context, req *httpwire.Request) *httpwire.Response {
	name := req.Params["name"]
	if store.ValidateName(name) != nil {
		return httpwire.Error(400, MsgInvalidName)
	}
	if _, err := project.ParseString(req.Body); err != nil {
		return httpwire.Error(400, MsgInvalidFormat+parseDetail(err))
	}

	var err error
	if h.create {
		err = h.deps.Store.Create(ctx, name, req.Body)
	} else {
		err = h.deps.Store.Replace(ctx, name, req.Body)
	}
	switch {
	case err == nil:
	case errors.Is(err, store.ErrAlreadyExists):
		return httpwire.Error(400, MsgProjectExists)
	case errors.Is(err, store.ErrNotFound):
		return httpwire.Error(400, MsgProjectMissing)
	default:
		h.deps.logger().Error("failed to write project", "project", name, "error", err)
		return httpwire.Error(500, MsgWriteFailed+err.Error())
	}

	evicted := false
	if h.deps.Cache != nil {
		evicted = h.deps.Cache.Cached(name)
		h.deps.Cache.Invalidate(name)
	}
	h.deps.logger().Info("project saved", "project", name, "created", h.create, "bytes", len(req.Body), "evicted", evicted)
	return httpwire.Result("ok")
}

// Mock resolves a request against a project's configuration. The router's
// regex captures are the project name and the endpoint path.
type Mock struct {
	deps *Deps
}

func (h *Mock) Handle(ctx context.Context, req *httpwire.Request) *httpwire.Response {
	if len(req.Matches) < 2 {
		return httpwire.Error(400, MsgProjectMissing)
	}
	name, path := req.Matches[0], req.Matches[1]

	cfg, err := h.deps.Cache.Get(ctx, name)
	if err != nil {
		return h.loadError(name, err)
	}

	ep, ok := cfg.Endpoint(path)
	if !ok {
		h.countMatch("none")
		return httpwire.Text(StatusNotImplemented, MsgNotImplemented)
	}

	res, err := h.deps.Matcher.Resolve(ctx, ep, req)
	switch {
	case err == nil:
	case errors.Is(err, matching.ErrNoMatch):
		h.countMatch("none")
		return httpwire.Text(StatusNotImplemented, MsgNotImplemented)
	default:
		return httpwire.Error(503, MsgRequestCancelled+err.Error())
	}

	h.countMatch(string(res.Tier))
	return res.Response()
}

func (h *Mock) loadError(name string, err error) *httpwire.Response {
	switch {
	case errors.Is(err, cache.ErrProjectNotFound):
		return httpwire.Error(400, MsgProjectMissing)
	case project.IsParseError(err):
		return httpwire.Error(400, MsgInvalidFormat+parseDetail(err))
	default:
		h.deps.logger().Error("failed to load project", "project", name, "error", err)
		return httpwire.Error(400, MsgInvalidFile+err.Error())
	}
}

func (h *Mock) countMatch(tier string) {
	if h.deps.Metrics != nil {
		metrics.Inc(h.deps.Metrics.Matches, tier)
	}
}

// parseDetail is the underlying parser message of a project parse error.
func parseDetail(err error) string {
	var pe *project.ParseError
	if errors.As(err, &pe) {
		return strings.TrimSpace(pe.Err.Error())
	}
	return err.Error()
}
