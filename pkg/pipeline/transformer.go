package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// binding is the lock-injecting call wrapper installed into an attached
// Input: a small value closing over the pipeline's lock and the current
// entry stage. Relinking replaces the whole value for subsequent calls;
// calls already admitted keep the binding they loaded, which is safe because
// the write-locked relink excludes in-flight readers.
type binding[T any] struct {
	mu    *sync.RWMutex
	entry *Node[T]
}

func (b *binding[T]) push(ctx context.Context, rec T) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entry.process(ctx, rec)
}

// InputPort is the attachment surface Head accepts. Concrete values are
// created with NewInput; the interface erases the external type parameter so
// Head can own inputs of heterogeneous shapes.
type InputPort[T any] interface {
	// ID returns the transformer id, unique among inputs of one pipeline.
	ID() string

	// Name returns the transformer's display name.
	Name() string

	// KindName returns the name of the external data shape.
	KindName() string

	attach(mu *sync.RWMutex, entry *Node[T]) error
	relink(entry *Node[T])
	detach()
	connector() any
}

// Input adapts an externally shaped producer contract E to a pipeline's
// internal record type T. The builder closure receives the downstream
// supplier and constructs the externally typed forwarding value, which lets
// E be an arbitrary contract (a func type, a multi-method interface) while
// funneling into a single internal call.
//
// The forwarding handle is built once at construction and stays valid for
// the transformer's lifetime; attachment state is carried by the binding it
// indirects through. Calling the handle of a detached Input fails
// immediately with a not-connected error, never silently.
type Input[E, T any] struct {
	id   string
	name string
	kind Kind[E]

	handle E
	bind   atomic.Pointer[binding[T]]
}

// NewInput creates a detached input transformer. The build closure receives
// the transformer's downstream supplier and must return the external
// forwarding value producers will call.
func NewInput[E, T any](id, name string, kind Kind[E], build func(emit Emit[T]) E) (*Input[E, T], error) {
	if id == "" {
		return nil, errors.Configuration("input id cannot be empty", nil)
	}
	if err := kind.validate(); err != nil {
		return nil, err
	}
	if build == nil {
		return nil, errors.Configuration("input "+id+" has no builder", errors.ErrInvalidMapper)
	}
	t := &Input[E, T]{id: id, name: name, kind: kind}
	t.handle = build(t.push)
	return t, nil
}

// ID returns the transformer id.
func (t *Input[E, T]) ID() string { return t.id }

// Name returns the transformer's display name.
func (t *Input[E, T]) Name() string { return t.name }

// KindName returns the name of the external data shape.
func (t *Input[E, T]) KindName() string { return t.kind.Name }

// Handle returns the externally typed forwarding value. The handle may be
// held across attach/detach cycles; its behavior always reflects the
// transformer's current attachment.
func (t *Input[E, T]) Handle() E { return t.handle }

// push is the single internal entry point behind the external handle.
func (t *Input[E, T]) push(ctx context.Context, rec T) error {
	b := t.bind.Load()
	if b == nil {
		return errors.Structural("input "+t.id+" is not attached", errors.ErrNotConnected)
	}
	if err := b.push(ctx, rec); err != nil {
		// Tag escalated failures with the originating transformer.
		return fmt.Errorf("input %s: %w", t.id, err)
	}
	return nil
}

func (t *Input[E, T]) attach(mu *sync.RWMutex, entry *Node[T]) error {
	if t.bind.Load() != nil {
		return errors.Configuration("input "+t.id+" already has a parent", errors.ErrAlreadyAttached)
	}
	t.bind.Store(&binding[T]{mu: mu, entry: entry})
	return nil
}

func (t *Input[E, T]) relink(entry *Node[T]) {
	b := t.bind.Load()
	if b == nil {
		return
	}
	t.bind.Store(&binding[T]{mu: b.mu, entry: entry})
}

func (t *Input[E, T]) detach() {
	t.bind.Store(nil)
}

func (t *Input[E, T]) connector() any { return t.handle }

// OutputPort is the attachment surface Tail accepts. Concrete values are
// created with NewOutput.
type OutputPort[T any] interface {
	// ID returns the transformer id, unique among outputs of one pipeline.
	ID() string

	// Name returns the transformer's display name.
	Name() string

	// KindName returns the name of the external data shape.
	KindName() string

	attach() error
	detach()
	emit(ctx context.Context, rec T) error
}

// Output adapts a pipeline's internal record type T to an externally shaped
// consumer contract E. The builder closure turns a consumer value into the
// internal delivery function. While no consumer is connected, delivery goes
// to the shape's Empty instance; several connected consumers are fused with
// the shape's Combine.
type Output[T, E any] struct {
	id   string
	name string
	kind Kind[E]

	build    func(sink E) Emit[T]
	attached atomic.Bool

	mu      sync.Mutex
	seq     uint64
	sinks   []outputSink[E]
	current atomic.Pointer[Emit[T]]
}

type outputSink[E any] struct {
	id  uint64
	val E
}

// NewOutput creates a detached output transformer. The build closure turns
// an external consumer into the internal delivery function; it is invoked
// once per connection change, with the fused consumer value.
func NewOutput[T, E any](id, name string, kind Kind[E], build func(sink E) Emit[T]) (*Output[T, E], error) {
	if id == "" {
		return nil, errors.Configuration("output id cannot be empty", nil)
	}
	if err := kind.validate(); err != nil {
		return nil, err
	}
	if build == nil {
		return nil, errors.Configuration("output "+id+" has no builder", errors.ErrInvalidMapper)
	}
	t := &Output[T, E]{id: id, name: name, kind: kind, build: build}
	if err := t.rebuild(); err != nil {
		return nil, err
	}
	return t, nil
}

// ID returns the transformer id.
func (t *Output[T, E]) ID() string { return t.id }

// Name returns the transformer's display name.
func (t *Output[T, E]) Name() string { return t.name }

// KindName returns the name of the external data shape.
func (t *Output[T, E]) KindName() string { return t.kind.Name }

// Connect binds an external consumer and returns its Registration.
// Consumers may be connected and disconnected while the transformer is
// attached and records are flowing; each record observes a consistent fused
// consumer set.
func (t *Output[T, E]) Connect(sink E) (*Registration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	id := t.seq
	t.sinks = append(t.sinks, outputSink[E]{id: id, val: sink})
	if err := t.rebuild(); err != nil {
		t.sinks = t.sinks[:len(t.sinks)-1]
		return nil, err
	}
	return newRegistration(func() { t.disconnect(id) }), nil
}

func (t *Output[T, E]) disconnect(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.sinks {
		if s.id == id {
			t.sinks = append(t.sinks[:i], t.sinks[i+1:]...)
			break
		}
	}
	// The sink set only shrinks here, so fuse cannot fail worse than the
	// construction-time rebuild did.
	_ = t.rebuild()
}

// rebuild recomputes the delivery function from the current consumer set.
// Callers hold t.mu (or there is no concurrent access yet, at construction).
func (t *Output[T, E]) rebuild() error {
	vals := make([]E, len(t.sinks))
	for i, s := range t.sinks {
		vals[i] = s.val
	}
	eff, err := t.kind.fuse(vals)
	if err != nil {
		return err
	}
	deliver := t.build(eff)
	if deliver == nil {
		return errors.Configuration("output "+t.id+" builder returned nil delivery", errors.ErrInvalidMapper)
	}
	t.current.Store(&deliver)
	return nil
}

func (t *Output[T, E]) attach() error {
	if !t.attached.CompareAndSwap(false, true) {
		return errors.Configuration("output "+t.id+" already has a parent", errors.ErrAlreadyAttached)
	}
	return nil
}

func (t *Output[T, E]) detach() {
	t.attached.Store(false)
}

// emit delivers one record to the fused consumer set. Called on the data
// path with the pipeline's read lock held.
func (t *Output[T, E]) emit(ctx context.Context, rec T) error {
	deliver := t.current.Load()
	if err := (*deliver)(ctx, rec); err != nil {
		return fmt.Errorf("output %s: %w", t.id, err)
	}
	return nil
}
