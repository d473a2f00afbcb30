package stages

import (
	"context"
	stdstrings "strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/pipeline"
	"github.com/wehubfusion/Daedalus/pkg/record"
)

// StringOp names a payload string operation.
type StringOp string

const (
	OpUpper   StringOp = "to_upper"
	OpLower   StringOp = "to_lower"
	OpTitle   StringOp = "title_case"
	OpTrim    StringOp = "trim"
	OpReplace StringOp = "replace"
)

// StringConfig parameterizes a Strings stage.
type StringConfig struct {
	Op StringOp

	// Cutset applies to OpTrim; empty means whitespace.
	Cutset string

	// Old/New apply to OpReplace.
	Old string
	New string
}

// Strings builds a mapper applying one string operation to each record's
// payload. Unicode-aware casing uses the golang.org/x/text casers.
func Strings(cfg StringConfig) (pipeline.Mapper[*record.Record], error) {
	var apply func(string) string
	switch cfg.Op {
	case OpUpper:
		caser := cases.Upper(language.Und)
		apply = caser.String
	case OpLower:
		caser := cases.Lower(language.Und)
		apply = caser.String
	case OpTitle:
		caser := cases.Title(language.Und)
		apply = caser.String
	case OpTrim:
		cutset := cfg.Cutset
		if cutset == "" {
			apply = stdstrings.TrimSpace
		} else {
			apply = func(s string) string { return stdstrings.Trim(s, cutset) }
		}
	case OpReplace:
		if cfg.Old == "" {
			return nil, errors.Configuration("replace needs a non-empty Old", nil)
		}
		apply = func(s string) string { return stdstrings.ReplaceAll(s, cfg.Old, cfg.New) }
	default:
		return nil, errors.Configuration("unknown string operation "+string(cfg.Op), nil)
	}

	return func(ctx context.Context, rec *record.Record, emit pipeline.Emit[*record.Record]) error {
		out := rec.Clone()
		out.WithData([]byte(apply(string(rec.Data))))
		return emit(ctx, out)
	}, nil
}
