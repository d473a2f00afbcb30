package record

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/pipeline"
)

// Push is the external contract of a record pipeline boundary: a plain
// push function. It is the shape producers call on the Head side and
// consumers implement on the Tail side.
type Push = func(ctx context.Context, rec *Record) error

// PushKind returns the type descriptor for Push: the empty instance drops
// records, combining fans a call out to every function in order.
func PushKind() pipeline.Kind[Push] {
	return pipeline.Kind[Push]{
		Name:  "record.push",
		Empty: func() Push { return func(context.Context, *Record) error { return nil } },
		Combine: func(values []Push) Push {
			return func(ctx context.Context, rec *Record) error {
				for _, fn := range values {
					if err := fn(ctx, rec); err != nil {
						return err
					}
				}
				return nil
			}
		},
	}
}

// NewInput creates an input transformer whose external handle is a Push.
func NewInput(id, name string) (*pipeline.Input[Push, *Record], error) {
	return pipeline.NewInput[Push, *Record](id, name, PushKind(),
		func(emit pipeline.Emit[*Record]) Push {
			return Push(emit)
		})
}

// NewOutput creates an output transformer accepting Push consumers.
func NewOutput(id, name string) (*pipeline.Output[*Record, Push], error) {
	return pipeline.NewOutput[*Record, Push](id, name, PushKind(),
		func(sink Push) pipeline.Emit[*Record] {
			return pipeline.Emit[*Record](sink)
		})
}
