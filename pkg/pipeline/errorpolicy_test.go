package pipeline_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/wehubfusion/Daedalus/pkg/pipeline"
)

type eventLog struct {
	mu     sync.Mutex
	events []pipeline.PipelineErrorEvent
}

func (l *eventLog) listen(ev pipeline.PipelineErrorEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []pipeline.PipelineErrorEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]pipeline.PipelineErrorEvent, len(l.events))
	copy(out, l.events)
	return out
}

var errBoom = stderrors.New("boom")

func failing(ctx context.Context, rec string, emit pipeline.Emit[string]) error {
	return errBoom
}

func TestSuppressDropsAndContinues(t *testing.T) {
	p, push, sink := wired(t)
	p.SetDefaultErrorPolicy(pipeline.Suppress)

	log := &eventLog{}
	p.AddPipelineErrorListener(log.listen)

	if _, _, err := p.AddProcessor(10, "failing", failing); err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}

	if err := push(context.Background(), "doomed"); err != nil {
		t.Fatalf("suppressed failure must not abort the producer call: %v", err)
	}
	if sink.count() != 0 {
		t.Fatal("the failing record must be dropped")
	}
	if len(log.all()) != 0 {
		t.Fatal("suppress must not fire error events")
	}

	// The pipeline keeps serving subsequent records once the stage is gone.
	n, err := p.Processor(p.Stages()[1].ID)
	if err != nil {
		t.Fatalf("Processor: %v", err)
	}
	if err := n.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if err := push(context.Background(), "fine"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if sink.count() != 1 {
		t.Fatal("subsequent records must flow")
	}
}

func TestPropagateFiresEvent(t *testing.T) {
	p, push, _ := wired(t)
	p.SetDefaultErrorPolicy(pipeline.Propagate)

	log := &eventLog{}
	p.AddPipelineErrorListener(log.listen)

	if _, _, err := p.AddProcessor(10, "failing", failing); err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}

	if err := push(context.Background(), "rec"); err != nil {
		t.Fatalf("non-fatal propagate must not unwind the producer call: %v", err)
	}
	events := log.all()
	if len(events) != 1 {
		t.Fatalf("want one error event, got %d", len(events))
	}
	if !stderrors.Is(events[0].Err, errBoom) {
		t.Fatalf("event must carry the original error, got %v", events[0].Err)
	}
	if events[0].Severity != pipeline.SeverityError {
		t.Fatalf("severity = %v, want ERROR", events[0].Severity)
	}
}

func TestPropagateFatalUnwinds(t *testing.T) {
	p, push, sink := wired(t)
	p.SetDefaultErrorPolicy(pipeline.Propagate)

	log := &eventLog{}
	p.AddPipelineErrorListener(log.listen)

	fatalStage := func(ctx context.Context, rec string, emit pipeline.Emit[string]) error {
		return pipeline.Fatal(errBoom)
	}
	if _, _, err := p.AddProcessor(10, "fatal", fatalStage); err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}

	err := push(context.Background(), "rec")
	if err == nil {
		t.Fatal("fatal propagate must unwind the push call")
	}
	if !stderrors.Is(err, errBoom) {
		t.Fatalf("unwound error must wrap the original, got %v", err)
	}
	if sink.count() != 0 {
		t.Fatal("the record must not reach the tail")
	}
	events := log.all()
	if len(events) != 1 || events[0].Severity != pipeline.SeverityFatal {
		t.Fatalf("want one FATAL event, got %+v", events)
	}
}

func TestRetryExactlyOnce(t *testing.T) {
	p, push, sink := wired(t)

	var attempts int
	flaky := func(ctx context.Context, rec string, emit pipeline.Emit[string]) error {
		attempts++
		if attempts == 1 {
			return errBoom
		}
		return emit(ctx, rec)
	}
	n, _, err := p.AddProcessor(10, "flaky", flaky)
	if err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}
	n.SetErrorPolicy(pipeline.Retry)

	if err := push(context.Background(), "rec"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if sink.count() != 1 {
		t.Fatal("the retried record must be delivered")
	}
}

func TestRetryPropagatesSecondFailure(t *testing.T) {
	p, push, _ := wired(t)

	log := &eventLog{}
	p.AddPipelineErrorListener(log.listen)

	var attempts int
	alwaysFails := func(ctx context.Context, rec string, emit pipeline.Emit[string]) error {
		attempts++
		return errBoom
	}
	n, _, err := p.AddProcessor(10, "broken", alwaysFails)
	if err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}
	n.SetErrorPolicy(pipeline.Retry)

	if err := push(context.Background(), "rec"); err != nil {
		t.Fatalf("non-fatal retry failure must not unwind: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want exactly 2 (no unbounded retry)", attempts)
	}
	if len(log.all()) != 1 {
		t.Fatal("the second failure must be propagated as an event")
	}
}

func TestTerminateEscalatesAsFatal(t *testing.T) {
	p, push, _ := wired(t)

	log := &eventLog{}
	p.AddPipelineErrorListener(log.listen)

	n, _, err := p.AddProcessor(10, "failing", failing)
	if err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}
	n.SetErrorPolicy(pipeline.Terminate)

	err = push(context.Background(), "rec")
	if err == nil {
		t.Fatal("terminate must unwind the push call")
	}
	events := log.all()
	if len(events) != 1 || events[0].Severity != pipeline.SeverityFatal {
		t.Fatalf("terminate must escalate as FATAL regardless of record severity, got %+v", events)
	}
}

func TestStagePolicyOverridesDefault(t *testing.T) {
	p, push, _ := wired(t)
	p.SetDefaultErrorPolicy(pipeline.Propagate)

	log := &eventLog{}
	p.AddPipelineErrorListener(log.listen)

	n, _, err := p.AddProcessor(10, "failing", failing)
	if err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}
	n.SetErrorPolicy(pipeline.Suppress)

	if err := push(context.Background(), "rec"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(log.all()) != 0 {
		t.Fatal("stage override must win over the pipeline default")
	}
}

func TestSeverityOf(t *testing.T) {
	if pipeline.SeverityOf(errBoom) != pipeline.SeverityError {
		t.Fatal("plain errors are ERROR severity")
	}
	if pipeline.SeverityOf(pipeline.Fatal(errBoom)) != pipeline.SeverityFatal {
		t.Fatal("Fatal-wrapped errors are FATAL severity")
	}
	if pipeline.Fatal(nil) != nil {
		t.Fatal("Fatal(nil) must be nil")
	}
}
