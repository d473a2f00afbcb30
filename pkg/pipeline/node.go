package pipeline

import (
	"context"
	"math"

	"github.com/wehubfusion/Daedalus/pkg/errors"
)

type stageRole int

const (
	roleProcessor stageRole = iota
	roleHead
	roleTail
)

// Sentinel priorities reserved for the Head and Tail boundary stages.
// Ordinary stages must use priorities strictly between the two.
const (
	HeadPriority = math.MinInt
	TailPriority = math.MaxInt
)

// Node is one processing stage of a pipeline: an id, a display name, a fixed
// priority, an enabled flag, and a transformation closure. Nodes are created
// with NewNode or Pipeline.AddProcessor and participate in the chain only
// while registered and enabled.
//
// The prev/next links and the forwarding target are owned by the pipeline's
// active list and are only ever touched under the pipeline's write lock.
type Node[T any] struct {
	id       string
	name     string
	priority int
	role     stageRole
	mapper   Mapper[T]

	// Guarded by the owning pipeline's lock.
	enabled bool
	prev    *Node[T]
	next    *Node[T]
	out     *Node[T]
	policy  *ErrorPolicy
	pl      *Pipeline[T]
}

// NewNode creates an unregistered processing stage. The id must be non-empty
// and unique among the stages registered with the target pipeline; the
// priority must lie strictly between the reserved Head and Tail sentinel
// values; the mapper cannot be nil.
func NewNode[T any](id, name string, priority int, mapper Mapper[T]) (*Node[T], error) {
	if id == "" {
		return nil, errors.Configuration("node id cannot be empty", nil)
	}
	if mapper == nil {
		return nil, errors.Configuration("node "+id+" has no mapper", errors.ErrInvalidMapper)
	}
	if priority == HeadPriority || priority == TailPriority {
		return nil, errors.Configuration("node "+id+" uses a reserved sentinel priority", errors.ErrInvalidPriority)
	}
	return &Node[T]{
		id:       id,
		name:     name,
		priority: priority,
		role:     roleProcessor,
		mapper:   mapper,
	}, nil
}

// ID returns the stage id.
func (n *Node[T]) ID() string { return n.id }

// Name returns the stage's display name.
func (n *Node[T]) Name() string { return n.name }

// Priority returns the stage priority, fixed at construction.
func (n *Node[T]) Priority() int { return n.priority }

// Enabled reports whether the stage currently participates in the chain.
func (n *Node[T]) Enabled() bool {
	if n.pl == nil {
		return false
	}
	n.pl.mu.RLock()
	defer n.pl.mu.RUnlock()
	return n.enabled
}

// SetEnabled links or unlinks the stage without deregistering it. Disabling
// removes the stage from the traversal order but keeps it addressable by id;
// re-enabling restores it at its priority position. The surrounding relink
// happens under the pipeline's write lock.
func (n *Node[T]) SetEnabled(enabled bool) error {
	if n.pl == nil {
		return errors.Structural("node "+n.id+" is not registered", errors.ErrNotFound)
	}
	if n.role != roleProcessor {
		return errors.Structural("boundary stage "+n.id+" cannot be disabled", nil)
	}
	return n.pl.setEnabled(n, enabled)
}

// SetErrorPolicy overrides the pipeline's default error policy for this
// stage.
func (n *Node[T]) SetErrorPolicy(policy ErrorPolicy) {
	if n.pl == nil {
		n.policy = &policy
		return
	}
	n.pl.mu.Lock()
	defer n.pl.mu.Unlock()
	n.policy = &policy
}

// process runs the stage's mapper against rec with the stage's current
// forwarding target. Called with the pipeline's read lock held.
func (n *Node[T]) process(ctx context.Context, rec T) error {
	err := n.mapper(ctx, rec, n.emit)
	if err != nil {
		return n.pl.handleStageError(ctx, n, rec, err)
	}
	return nil
}

// emit forwards a record to the next enabled stage in priority order. A nil
// target means the stage is last in the chain and the record stops here.
func (n *Node[T]) emit(ctx context.Context, rec T) error {
	if n.out == nil {
		return nil
	}
	return n.out.process(ctx, rec)
}
