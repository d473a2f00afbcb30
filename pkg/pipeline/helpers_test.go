package pipeline_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/wehubfusion/Daedalus/pkg/pipeline"
)

// pushFunc is the external contract used by the tests: a plain push
// function for string records.
type pushFunc func(ctx context.Context, rec string) error

var stringKind = pipeline.Kind[string]{
	Name:    "string",
	Empty:   func() string { return "" },
	Combine: func(values []string) string { return strings.Join(values, "+") },
}

var pushKind = pipeline.Kind[pushFunc]{
	Name:  "push",
	Empty: func() pushFunc { return func(context.Context, string) error { return nil } },
	Combine: func(values []pushFunc) pushFunc {
		return func(ctx context.Context, rec string) error {
			for _, fn := range values {
				if err := fn(ctx, rec); err != nil {
					return err
				}
			}
			return nil
		}
	},
}

func newTestPipeline(t *testing.T) *pipeline.Pipeline[string] {
	t.Helper()
	p, err := pipeline.New[string]("test", stringKind)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func newTestInput(t *testing.T, id string) *pipeline.Input[pushFunc, string] {
	t.Helper()
	in, err := pipeline.NewInput[pushFunc, string](id, id, pushKind,
		func(emit pipeline.Emit[string]) pushFunc {
			return func(ctx context.Context, rec string) error { return emit(ctx, rec) }
		})
	if err != nil {
		t.Fatalf("NewInput(%s): %v", id, err)
	}
	return in
}

func newTestOutput(t *testing.T, id string) *pipeline.Output[string, pushFunc] {
	t.Helper()
	out, err := pipeline.NewOutput[string, pushFunc](id, id, pushKind,
		func(sink pushFunc) pipeline.Emit[string] {
			return pipeline.Emit[string](sink)
		})
	if err != nil {
		t.Fatalf("NewOutput(%s): %v", id, err)
	}
	return out
}

// collector is a thread-safe record sink.
type collector struct {
	mu   sync.Mutex
	recs []string
}

func (c *collector) push(ctx context.Context, rec string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return nil
}

func (c *collector) records() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.recs))
	copy(out, c.recs)
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

// wired builds a pipeline with one input "in", one output "out" connected to
// a collector, and returns all three.
func wired(t *testing.T) (*pipeline.Pipeline[string], pushFunc, *collector) {
	t.Helper()
	p := newTestPipeline(t)

	in := newTestInput(t, "in")
	if _, err := p.RegisterInput(in); err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}

	out := newTestOutput(t, "out")
	sink := &collector{}
	if _, err := out.Connect(sink.push); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := p.RegisterOutput(out); err != nil {
		t.Fatalf("RegisterOutput: %v", err)
	}

	return p, in.Handle(), sink
}

// uppercase is a trivial mapper used across the tests.
func uppercase(ctx context.Context, rec string, emit pipeline.Emit[string]) error {
	return emit(ctx, strings.ToUpper(rec))
}
