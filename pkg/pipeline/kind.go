package pipeline

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// Emit pushes a record to the next stage of the chain. Mappers receive an
// Emit bound to their current downstream target and may call it zero, one,
// or many times per input record.
type Emit[T any] func(ctx context.Context, rec T) error

// Mapper is the transformation closure carried by a processing stage.
// It receives the inbound record and an Emit bound to the next enabled stage
// in priority order. Returning an error routes the record through the
// stage's error policy.
type Mapper[T any] func(ctx context.Context, rec T, emit Emit[T]) error

// Kind describes a data shape flowing across a pipeline boundary: its name,
// an "empty" no-op instance used where a sink or selection is absent, and an
// array-combining function used to fuse several values of the shape into one
// (multicast and aggregate forms).
type Kind[T any] struct {
	// Name identifies the shape in dumps, logs, and events.
	Name string

	// Empty constructs the no-op instance of the shape. Used as the Tail
	// default sink and the unselected OutputSwitch state.
	Empty func() T

	// Combine fuses several values of the shape into a single one. Used
	// when more than one consumer is connected to the same Output.
	Combine func(values []T) T
}

func (k Kind[T]) validate() error {
	if k.Name == "" {
		return errors.Configuration("kind name cannot be empty", nil)
	}
	return nil
}

// fuse builds the effective value for a set of connected consumers: the
// no-op instance for none, the value itself for one, Combine for several.
func (k Kind[T]) fuse(values []T) (T, error) {
	switch len(values) {
	case 0:
		var zero T
		if k.Empty == nil {
			return zero, errors.Configuration("kind "+k.Name+" has no Empty constructor", nil)
		}
		return k.Empty(), nil
	case 1:
		return values[0], nil
	default:
		var zero T
		if k.Combine == nil {
			return zero, errors.Configuration("kind "+k.Name+" has no Combine function", nil)
		}
		return k.Combine(values), nil
	}
}
