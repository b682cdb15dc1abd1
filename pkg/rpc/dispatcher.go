package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/nodesync/pkg/state"
)

const tracerName = "github.com/vango-dev/nodesync/pkg/rpc"

// BatchResult summarizes an applied batch.
type BatchResult struct {
	// Committed is the number of actions that ran.
	Committed int

	// Dropped is the number of writes skipped because their node was disabled.
	Dropped int
}

// Dispatcher routes invocations to handlers and applies batches.
//
// A batch is applied in two phases. Every invocation is first validated and
// decoded into an action; if any invocation fails (other than a disabled
// drop) the batch is rejected and nothing changes. The actions then run in
// the order the invocations arrived.
//
// Dispatcher is safe for concurrent use, but the tree passed to Apply must
// not be used concurrently.
type Dispatcher struct {
	handlers map[string]Handler
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used by the dispatcher and its default handlers.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithTracer sets the tracer. Default: the global otel tracer provider.
func WithTracer(tracer trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithMetrics enables metrics.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithHandler registers h for its RPC type, replacing any default handler.
func WithHandler(h Handler) DispatcherOption {
	return func(d *Dispatcher) {
		d.handlers[h.RPCType()] = h
	}
}

// NewDispatcher creates a dispatcher with the map sync and event handlers.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]Handler)}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	for _, h := range []Handler{NewMapSyncHandler(d.logger), NewEventHandler(d.logger)} {
		if _, ok := d.handlers[h.RPCType()]; !ok {
			d.handlers[h.RPCType()] = h
		}
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// Apply validates every invocation in batch against tree, then commits them
// in order.
func (d *Dispatcher) Apply(ctx context.Context, tree *state.Tree, batch []Invocation) (BatchResult, error) {
	_, span := d.tracer.Start(ctx, "rpc.Apply",
		trace.WithAttributes(attribute.Int("rpc.batch_size", len(batch))),
	)
	defer span.End()
	start := time.Now()

	var result BatchResult
	actions := make([]func() error, 0, len(batch))
	types := make([]string, 0, len(batch))
	for i, inv := range batch {
		h, ok := d.handlers[inv.Type]
		if !ok {
			err := invocationError(ErrMalformedInvocation, inv, "unknown invocation type %q", inv.Type)
			d.metrics.invocation("unknown", outcomeRejected)
			return result, d.fail(span, start, fmt.Errorf("rpc: invocation %d: %w", i, err))
		}
		action, err := h.Handle(tree, inv)
		if errors.Is(err, ErrNodeDisabled) {
			result.Dropped++
			d.metrics.invocation(inv.Type, outcomeDropped)
			continue
		}
		if err != nil {
			d.metrics.invocation(inv.Type, outcomeRejected)
			return result, d.fail(span, start, fmt.Errorf("rpc: invocation %d: %w", i, err))
		}
		actions = append(actions, action)
		types = append(types, inv.Type)
	}

	for i, action := range actions {
		if err := action(); err != nil {
			// Earlier actions have already run; the tree keeps them.
			d.logger.Error("commit failed", "error", err, "committed", result.Committed)
			return result, d.fail(span, start, fmt.Errorf("%w: commit: %v", ErrInternalInconsistency, err))
		}
		result.Committed++
		d.metrics.invocation(types[i], outcomeCommitted)
	}

	span.SetAttributes(
		attribute.Int("rpc.committed", result.Committed),
		attribute.Int("rpc.dropped", result.Dropped),
	)
	d.metrics.batch("ok", time.Since(start))
	return result, nil
}

func (d *Dispatcher) fail(span trace.Span, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	d.metrics.batch("error", time.Since(start))
	d.logger.Debug("batch rejected", "error", err)
	return err
}
