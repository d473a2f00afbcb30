package pipeline

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// Head is the fan-in boundary of a pipeline: a permanent, always-enabled
// stage holding the minimal sentinel priority and owning the keyed set of
// attached input transformers. Producers obtain ready-to-call forwarding
// handles through Connector without holding references into the pipeline.
type Head[T any] struct {
	node   Node[T]
	inputs map[string]InputPort[T]
	order  []string
}

func newHead[T any](pipelineName string) *Head[T] {
	h := &Head[T]{
		inputs: make(map[string]InputPort[T]),
	}
	h.node = Node[T]{
		id:       "head",
		name:     pipelineName + ".head",
		priority: HeadPriority,
		role:     roleHead,
		enabled:  true,
		mapper: func(ctx context.Context, rec T, emit Emit[T]) error {
			return emit(ctx, rec)
		},
	}
	return h
}

// register attaches an input under the write lock. Callers hold the lock.
func (h *Head[T]) register(p *Pipeline[T], in InputPort[T]) error {
	if _, ok := h.inputs[in.ID()]; ok {
		return errors.Structural("input "+in.ID()+" is already registered", errors.ErrDuplicateID)
	}
	if err := in.attach(&p.mu, h.node.out); err != nil {
		return err
	}
	h.inputs[in.ID()] = in
	h.order = append(h.order, in.ID())
	return nil
}

// unregister detaches an input under the write lock. Callers hold the lock.
func (h *Head[T]) unregister(id string) bool {
	in, ok := h.inputs[id]
	if !ok {
		return false
	}
	in.detach()
	delete(h.inputs, id)
	for i, oid := range h.order {
		if oid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return true
}

// relink rebuilds every attached input's binding against the current chain
// entry. Callers hold the write lock.
func (h *Head[T]) relink() {
	for _, in := range h.inputs {
		in.relink(h.node.out)
	}
}

// connector returns the externally typed forwarding handle of the input
// registered under id. Callers hold at least the read lock.
func (h *Head[T]) connector(id string) (any, error) {
	in, ok := h.inputs[id]
	if !ok {
		return nil, errors.Structural("no input registered under id "+id, errors.ErrNotFound)
	}
	return in.connector(), nil
}

func (h *Head[T]) count() int { return len(h.inputs) }
