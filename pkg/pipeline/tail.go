package pipeline

import (
	"context"
	stderrors "errors"

	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// Tail is the fan-out boundary of a pipeline: a permanent, always-enabled
// stage holding the maximal sentinel priority and owning the keyed set of
// attached output transformers. By default every inbound record is
// multicast to the live snapshot of attached outputs; an OutputSwitch or
// OutputStack can redirect the tail's active target.
type Tail[T any] struct {
	node    Node[T]
	outputs map[string]OutputPort[T]
	order   []string

	// snapshot is rebuilt under the write lock on attach/detach and read
	// on the data path under the read lock.
	snapshot []OutputPort[T]

	// override, when non-nil, replaces the multicast as the tail's active
	// target. Installed by OutputSwitch and OutputStack under the write
	// lock.
	override Emit[T]
}

func newTail[T any](pipelineName string) *Tail[T] {
	t := &Tail[T]{
		outputs: make(map[string]OutputPort[T]),
	}
	t.node = Node[T]{
		id:       "tail",
		name:     pipelineName + ".tail",
		priority: TailPriority,
		role:     roleTail,
		enabled:  true,
		mapper: func(ctx context.Context, rec T, _ Emit[T]) error {
			return t.deliver(ctx, rec)
		},
	}
	return t
}

// deliver fans one record out to the tail's current target. A failing
// output does not starve its siblings: the loop visits every target and the
// failures are joined into one processing error afterwards.
func (t *Tail[T]) deliver(ctx context.Context, rec T) error {
	if t.override != nil {
		return t.override(ctx, rec)
	}
	var errs []error
	for _, out := range t.snapshot {
		if err := out.emit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// register attaches an output under the write lock. Callers hold the lock.
func (t *Tail[T]) register(out OutputPort[T]) error {
	if _, ok := t.outputs[out.ID()]; ok {
		return errors.Structural("output "+out.ID()+" is already registered", errors.ErrDuplicateID)
	}
	if err := out.attach(); err != nil {
		return err
	}
	t.outputs[out.ID()] = out
	t.order = append(t.order, out.ID())
	t.rebuild()
	return nil
}

// unregister detaches an output under the write lock. Callers hold the lock.
func (t *Tail[T]) unregister(id string) bool {
	out, ok := t.outputs[id]
	if !ok {
		return false
	}
	out.detach()
	delete(t.outputs, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.rebuild()
	return true
}

// rebuild recomputes the multicast snapshot in attachment order.
func (t *Tail[T]) rebuild() {
	snapshot := make([]OutputPort[T], 0, len(t.outputs))
	for _, id := range t.order {
		snapshot = append(snapshot, t.outputs[id])
	}
	t.snapshot = snapshot
}

// lookup returns the output registered under id. Callers hold at least the
// read lock.
func (t *Tail[T]) lookup(id string) (OutputPort[T], error) {
	out, ok := t.outputs[id]
	if !ok {
		return nil, errors.Structural("no output registered under id "+id, errors.ErrNotFound)
	}
	return out, nil
}

func (t *Tail[T]) count() int { return len(t.outputs) }
