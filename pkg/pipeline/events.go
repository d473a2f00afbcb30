package pipeline

import (
	"sync"

	"go.uber.org/zap"
)

// ProcessorEventKind identifies a stage membership change.
type ProcessorEventKind int

const (
	ProcessorAdded ProcessorEventKind = iota
	ProcessorRemoved
	ProcessorEnabled
	ProcessorDisabled
)

// String returns the event kind name.
func (k ProcessorEventKind) String() string {
	switch k {
	case ProcessorAdded:
		return "ADDED"
	case ProcessorRemoved:
		return "REMOVED"
	case ProcessorEnabled:
		return "ENABLED"
	case ProcessorDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// ProcessorEvent notifies a stage membership change.
type ProcessorEvent struct {
	Pipeline string
	ID       string
	Name     string
	Priority int
	Kind     ProcessorEventKind
}

// AttributeEvent notifies a change of a named pipeline attribute, such as
// the default error policy or the number of attached transformers.
type AttributeEvent struct {
	Pipeline string
	Name     string
	Old      any
	New      any
}

// PipelineErrorEvent carries a processing failure escalated by an error
// policy.
type PipelineErrorEvent struct {
	Pipeline string
	Stage    string
	Err      error
	Severity Severity
}

// ProcessorChangeListener receives stage membership events.
type ProcessorChangeListener func(ProcessorEvent)

// AttributeChangeListener receives pipeline attribute events.
type AttributeChangeListener func(AttributeEvent)

// ErrorListener receives escalated processing failures.
type ErrorListener func(PipelineErrorEvent)

// PipelineListener receives all three event streams of a pipeline.
type PipelineListener interface {
	OnProcessorChange(ProcessorEvent)
	OnAttributeChange(AttributeEvent)
	OnPipelineError(PipelineErrorEvent)
}

// eventSupport dispatches listener callbacks synchronously on the detecting
// goroutine. Listener registration uses its own mutex, separate from the
// pipeline's structural lock, so listeners can be added and removed without
// stalling data flow. Listener panics are recovered and logged; they never
// corrupt pipeline state.
type eventSupport struct {
	mu        sync.Mutex
	seq       uint64
	processor map[uint64]ProcessorChangeListener
	attribute map[uint64]AttributeChangeListener
	errors    map[uint64]ErrorListener
	logger    *zap.Logger
}

func newEventSupport(logger *zap.Logger) *eventSupport {
	return &eventSupport{
		processor: make(map[uint64]ProcessorChangeListener),
		attribute: make(map[uint64]AttributeChangeListener),
		errors:    make(map[uint64]ErrorListener),
		logger:    logger,
	}
}

func (e *eventSupport) addProcessorListener(fn ProcessorChangeListener) *Registration {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	id := e.seq
	e.processor[id] = fn
	return newRegistration(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.processor, id)
	})
}

func (e *eventSupport) addAttributeListener(fn AttributeChangeListener) *Registration {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	id := e.seq
	e.attribute[id] = fn
	return newRegistration(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.attribute, id)
	})
}

func (e *eventSupport) addErrorListener(fn ErrorListener) *Registration {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	id := e.seq
	e.errors[id] = fn
	return newRegistration(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.errors, id)
	})
}

func (e *eventSupport) fireProcessor(ev ProcessorEvent) {
	for _, fn := range e.processorSnapshot() {
		e.dispatch(func() { fn(ev) })
	}
}

func (e *eventSupport) fireAttribute(ev AttributeEvent) {
	for _, fn := range e.attributeSnapshot() {
		e.dispatch(func() { fn(ev) })
	}
}

func (e *eventSupport) fireError(ev PipelineErrorEvent) {
	for _, fn := range e.errorSnapshot() {
		e.dispatch(func() { fn(ev) })
	}
}

func (e *eventSupport) processorSnapshot() []ProcessorChangeListener {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ProcessorChangeListener, 0, len(e.processor))
	for _, fn := range e.processor {
		out = append(out, fn)
	}
	return out
}

func (e *eventSupport) attributeSnapshot() []AttributeChangeListener {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]AttributeChangeListener, 0, len(e.attribute))
	for _, fn := range e.attribute {
		out = append(out, fn)
	}
	return out
}

func (e *eventSupport) errorSnapshot() []ErrorListener {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ErrorListener, 0, len(e.errors))
	for _, fn := range e.errors {
		out = append(out, fn)
	}
	return out
}

// dispatch invokes one listener, recovering panics so a misbehaving listener
// cannot take down the producer's call stack.
func (e *eventSupport) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("pipeline listener panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
