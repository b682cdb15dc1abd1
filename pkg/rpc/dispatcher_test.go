package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vango-dev/nodesync/pkg/state"
)

func newTestDispatcher(opts ...DispatcherOption) *Dispatcher {
	opts = append([]DispatcherOption{WithLogger(slog.New(&recordHandler{}))}, opts...)
	return NewDispatcher(opts...)
}

func TestApplyGatesWholeBatchBeforeCommit(t *testing.T) {
	tree, el := newUI(t)
	el.PropertyMap().SetUpdateFromClientFilter(func(key string) bool { return key == "allowed" })

	batch := []Invocation{
		mapSync(t, el, "allowed", "first"),
		mapSync(t, el, "secret", "second"),
	}
	result, err := newTestDispatcher().Apply(context.Background(), tree, batch)
	if !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("err = %v, want ErrAuthorizationDenied", err)
	}
	if result.Committed != 0 {
		t.Errorf("Committed = %d, want 0", result.Committed)
	}
	if el.PropertyMap().HasProperty("allowed") {
		t.Error("no write should be committed when a later invocation fails")
	}
}

func TestApplyCommitsInOrder(t *testing.T) {
	tree, el := newUI(t)
	el.PropertyMap().SetUpdateFromClientFilter(allowAll)

	var seen []any
	el.PropertyMap().AddPropertyChangeListener("value", func(e state.PropertyChangeEvent) {
		seen = append(seen, e.Value)
	})

	batch := []Invocation{
		mapSync(t, el, "value", "a"),
		mapSync(t, el, "value", "b"),
		mapSync(t, el, "value", "c"),
	}
	result, err := newTestDispatcher().Apply(context.Background(), tree, batch)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Committed != 3 {
		t.Errorf("Committed = %d, want 3", result.Committed)
	}
	if len(seen) != 3 || seen[0] != "a" || seen[2] != "c" {
		t.Errorf("commit order = %v, want [a b c]", seen)
	}
	if got := el.PropertyMap().Property("value"); got != "c" {
		t.Errorf("value = %v, want c", got)
	}
}

func TestApplySkipsDisabledDrops(t *testing.T) {
	tree, el := newUI(t)
	el.PropertyMap().SetUpdateFromClientFilter(allowAll)
	field := state.NewElement("input")
	if err := state.AppendChild(el, field); err != nil {
		t.Fatal(err)
	}
	field.PropertyMap().SetUpdateFromClientFilter(allowAll)
	field.SetEnabled(false)

	batch := []Invocation{
		mapSync(t, field, "value", "ignored"),
		mapSync(t, el, "value", "kept"),
	}
	result, err := newTestDispatcher().Apply(context.Background(), tree, batch)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Committed != 1 || result.Dropped != 1 {
		t.Errorf("result = %+v, want 1 committed, 1 dropped", result)
	}
	if field.PropertyMap().HasProperty("value") {
		t.Error("disabled field should not be written")
	}
	if got := el.PropertyMap().Property("value"); got != "kept" {
		t.Errorf("value = %v, want kept", got)
	}
}

func TestApplyUnknownType(t *testing.T) {
	tree, el := newUI(t)
	inv := Invocation{Type: "publishedEventHandler", Node: el.ID()}

	_, err := newTestDispatcher().Apply(context.Background(), tree, []Invocation{inv})
	var invErr *InvocationError
	if !errors.As(err, &invErr) || !errors.Is(err, ErrMalformedInvocation) {
		t.Errorf("err = %v, want malformed InvocationError", err)
	}
}

type countingHandler struct {
	calls int
}

func (h *countingHandler) RPCType() string { return TypeMapSync }

func (h *countingHandler) Handle(*state.Tree, Invocation) (func() error, error) {
	h.calls++
	return func() error { return nil }, nil
}

func TestWithHandlerReplacesDefault(t *testing.T) {
	tree, el := newUI(t)
	h := &countingHandler{}
	d := newTestDispatcher(WithHandler(h))

	if _, err := d.Apply(context.Background(), tree, []Invocation{mapSync(t, el, "x", 1)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if h.calls != 1 {
		t.Errorf("calls = %d, want 1", h.calls)
	}
	if el.PropertyMap().HasProperty("x") {
		t.Error("default handler should not run")
	}
}

func TestEventInvocationFiresListeners(t *testing.T) {
	tree, el := newUI(t)
	var got []state.DomEvent
	el.Listeners().AddEventListener("click", func(e state.DomEvent) {
		got = append(got, e)
	})

	batch := []Invocation{NewEvent(el, "click", map[string]any{"button": float64(0)})}
	if _, err := newTestDispatcher().Apply(context.Background(), tree, batch); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(got) != 1 || got[0].Node != el || got[0].Data["button"] != float64(0) {
		t.Errorf("events = %+v", got)
	}

	el.SetEnabled(false)
	if _, err := newTestDispatcher().Apply(context.Background(), tree, batch); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(got) != 1 {
		t.Error("listener should not run on a disabled element")
	}
}

func TestEventRunsAfterSyncInSameBatch(t *testing.T) {
	tree, el := newUI(t)
	var valueAtEvent any
	el.Listeners().AddEventListener("change", func(state.DomEvent) {
		valueAtEvent = el.PropertyMap().Property("value")
	}).SynchronizeProperty("value")

	batch := []Invocation{
		mapSync(t, el, "value", "typed"),
		NewEvent(el, "change", nil),
	}
	if _, err := newTestDispatcher().Apply(context.Background(), tree, batch); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if valueAtEvent != "typed" {
		t.Errorf("value seen by listener = %v, want typed", valueAtEvent)
	}
}

func TestEventInvalid(t *testing.T) {
	tree, el := newUI(t)
	model, _ := el.PropertyMap().ResolveModelMap("m")

	tests := []struct {
		name string
		inv  Invocation
		want error
	}{
		{"missing event", Invocation{Type: TypeEvent, Node: el.ID()}, ErrMalformedInvocation},
		{"unknown node", Invocation{Type: TypeEvent, Node: -5, Event: "click"}, ErrMalformedInvocation},
		{"model node", Invocation{Type: TypeEvent, Node: model.Node().ID(), Event: "click"}, ErrInternalInconsistency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEventHandler(nil).Handle(tree, tt.inv); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApplyRecordsMetrics(t *testing.T) {
	tree, el := newUI(t)
	el.PropertyMap().SetUpdateFromClientFilter(func(key string) bool { return key != "secret" })
	reg := prometheus.NewRegistry()
	d := newTestDispatcher(WithMetrics(NewMetrics(WithRegistry(reg))))

	_, _ = d.Apply(context.Background(), tree, []Invocation{mapSync(t, el, "a", 1), mapSync(t, el, "b", 2)})
	_, _ = d.Apply(context.Background(), tree, []Invocation{mapSync(t, el, "secret", 3)})

	if got := counterValue(t, reg, "nodesync_rpc_invocations_total", "outcome", outcomeCommitted); got != 2 {
		t.Errorf("committed = %v, want 2", got)
	}
	if got := counterValue(t, reg, "nodesync_rpc_invocations_total", "outcome", outcomeRejected); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := counterValue(t, reg, "nodesync_rpc_batches_total", "status", "error"); got != 1 {
		t.Errorf("failed batches = %v, want 1", got)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestApplyRecordsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tree, el := newUI(t)
	d := newTestDispatcher(WithTracer(tp.Tracer("test")))

	_, err := d.Apply(context.Background(), tree, []Invocation{mapSync(t, el, "denied", 1)})
	if err == nil {
		t.Fatal("expected denial")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "rpc.Apply" {
		t.Errorf("span name = %q, want rpc.Apply", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status().Code)
	}
}

func TestEncodeChanges(t *testing.T) {
	tree, el := newUI(t)
	tree.CollectChanges()

	model, _ := el.PropertyMap().ResolveModelMap("person")
	_ = el.PropertyMap().SetProperty("tags", []any{"a"})
	_ = model.SetProperty("name", "Ada")

	encoded, err := EncodeChanges(tree.CollectChanges())
	if err != nil {
		t.Fatalf("EncodeChanges: %v", err)
	}

	var sawNodeValue, sawArray, sawAttach bool
	for _, c := range encoded {
		switch {
		case c.Type == "put" && c.Key == "person":
			sawNodeValue = c.NodeValue != nil && *c.NodeValue == model.Node().ID() && c.Value == nil
		case c.Type == "put" && c.Key == "tags":
			sawArray = string(c.Value) == `[1,["a"]]`
		case c.Type == "attach" && c.Node == model.Node().ID():
			sawAttach = true
		}
	}
	if !sawNodeValue || !sawArray || !sawAttach {
		raw, _ := json.Marshal(encoded)
		t.Errorf("unexpected encoding: %s", raw)
	}
}
