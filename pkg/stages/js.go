package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/pipeline"
	"github.com/wehubfusion/Daedalus/pkg/record"
)

// JS builds a mapper that runs a JavaScript snippet against each record.
// The script sees two globals:
//
//	data     — the record payload as a string
//	metadata — the record metadata as an object
//
// and must leave its result in a global named `result`. A string result
// replaces the payload; `null` or `undefined` drops the record. The script
// is compiled once at construction; a parse failure is a configuration
// error, a per-record exception is a processing error routed through the
// stage's error policy.
func JS(script string) (pipeline.Mapper[*record.Record], error) {
	if script == "" {
		return nil, errors.Configuration("js stage needs a script", errors.ErrInvalidMapper)
	}
	program, err := goja.Compile("stage.js", script, true)
	if err != nil {
		return nil, errors.Configuration("js stage script does not parse", err)
	}

	return func(ctx context.Context, rec *record.Record, emit pipeline.Emit[*record.Record]) error {
		vm := goja.New()
		if err := vm.Set("data", string(rec.Data)); err != nil {
			return errors.Processing("js stage could not bind data", err)
		}
		meta := map[string]string{}
		if rec.Metadata != nil {
			meta = rec.Metadata
		}
		if err := vm.Set("metadata", meta); err != nil {
			return errors.Processing("js stage could not bind metadata", err)
		}

		if _, err := vm.RunProgram(program); err != nil {
			var exc *goja.Exception
			if errors.As(err, &exc) {
				return errors.Processing(fmt.Sprintf("js stage threw: %v", exc.Value()), err)
			}
			return errors.Processing("js stage failed", err)
		}

		result := vm.Get("result")
		if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
			// Script chose to drop the record.
			return nil
		}

		out := rec.Clone()
		switch v := result.Export().(type) {
		case string:
			out.WithData([]byte(v))
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return errors.Processing("js stage result is not serializable", err)
			}
			out.WithData(raw)
		}
		return emit(ctx, out)
	}, nil
}
