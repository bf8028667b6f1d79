// Package router is the request/response boundary between foreground
// surfaces and the challenge pipeline. Every call is a tagged payload that
// yields either a success outcome with data or an error outcome with a
// machine-readable reason.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/ashureev/preppal/internal/metrics"
	"github.com/ashureev/preppal/internal/pipeline"
	"github.com/ashureev/preppal/internal/worker"
)

// ReasonUnknownTag is returned for tags with no registered handler.
const ReasonUnknownTag = "UnknownTag"

// Tag names a request kind.
type Tag string

// Request is one tagged call.
type Request struct {
	Tag     Tag             `json:"tag"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// NoReply asks for the call to run without awaiting its outcome.
	NoReply bool `json:"noReply,omitempty"`
}

// Outcome is the result of a call.
type Outcome struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// HandlerFunc processes a payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Spawner runs fire-and-forget work.
type Spawner interface {
	Go(name string, task worker.Task) error
}

type route struct {
	fn    HandlerFunc
	async bool
}

// Router dispatches tagged requests to handlers.
type Router struct {
	mu         sync.RWMutex
	routes     map[Tag]route
	background Spawner
	logger     *slog.Logger
}

// New creates a router. background runs fire-and-forget calls.
func New(background Spawner, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		routes:     make(map[Tag]route),
		background: background,
		logger:     logger,
	}
}

// Register adds a handler whose outcome is returned to the caller.
func (r *Router) Register(tag Tag, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[tag] = route{fn: fn}
}

// RegisterAsync adds a handler that always runs in the background; callers
// get an immediate acknowledgement and never see its result.
func (r *Router) RegisterAsync(tag Tag, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[tag] = route{fn: fn, async: true}
}

// Tags returns the registered tags.
func (r *Router) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]Tag, 0, len(r.routes))
	for t := range r.routes {
		tags = append(tags, t)
	}
	return tags
}

func (r *Router) lookup(tag Tag) (route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routes[tag]
	return rt, ok
}

// Dispatch runs req and returns its outcome. Requests for background tags,
// or with NoReply set, are scheduled and acknowledged immediately.
func (r *Router) Dispatch(ctx context.Context, req Request) Outcome {
	rt, ok := r.lookup(req.Tag)
	if !ok {
		metrics.RecordMessage(string(req.Tag), ReasonUnknownTag)
		return Outcome{Error: fmt.Sprintf("unknown tag %q", req.Tag), Reason: ReasonUnknownTag}
	}

	if rt.async || req.NoReply {
		if err := r.Send(req); err != nil {
			return r.failure(req.Tag, err)
		}
		return Outcome{Success: true}
	}

	return r.invoke(ctx, req.Tag, rt.fn, req.Payload)
}

// Send schedules req without waiting for it. The outcome is only logged.
func (r *Router) Send(req Request) error {
	rt, ok := r.lookup(req.Tag)
	if !ok {
		metrics.RecordMessage(string(req.Tag), ReasonUnknownTag)
		return fmt.Errorf("unknown tag %q", req.Tag)
	}
	if r.background == nil {
		return fmt.Errorf("no background executor configured")
	}

	return r.background.Go(string(req.Tag), func(ctx context.Context) error {
		out := r.invoke(ctx, req.Tag, rt.fn, req.Payload)
		if !out.Success {
			return fmt.Errorf("%s: %s", out.Reason, out.Error)
		}
		return nil
	})
}

func (r *Router) invoke(ctx context.Context, tag Tag, fn HandlerFunc, payload json.RawMessage) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Message handler panicked",
				"tag", tag,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
			metrics.RecordMessage(string(tag), pipeline.ReasonInternalError)
			out = Outcome{Error: "internal error", Reason: pipeline.ReasonInternalError}
		}
	}()

	data, err := fn(ctx, payload)
	if err != nil {
		return r.failure(tag, err)
	}
	metrics.RecordMessage(string(tag), "ok")
	return Outcome{Success: true, Data: data}
}

func (r *Router) failure(tag Tag, err error) Outcome {
	reason := pipeline.Reason(err)
	metrics.RecordMessage(string(tag), reason)
	if reason == pipeline.ReasonInternalError {
		r.logger.Error("Message handler failed", "tag", tag, "error", err)
	} else {
		r.logger.Warn("Message handler failed", "tag", tag, "reason", reason, "error", err)
	}
	return Outcome{Error: err.Error(), Reason: reason}
}

// decode unmarshals payload into T. An empty payload yields the zero value.
func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 || string(payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: %v", pipeline.ErrInvalidPayload, err)
	}
	return v, nil
}
