package record

import (
	"github.com/wehubfusion/Daedalus/pkg/pipeline"
)

// Kind returns the pipeline type descriptor for *Record. The empty instance
// is a zero record; combining folds payloads and metadata left to right,
// keeping the first record's envelope.
func Kind() pipeline.Kind[*Record] {
	return pipeline.Kind[*Record]{
		Name:  "record",
		Empty: func() *Record { return &Record{} },
		Combine: func(values []*Record) *Record {
			if len(values) == 0 {
				return &Record{}
			}
			out := values[0].Clone()
			for _, rec := range values[1:] {
				if rec == nil {
					continue
				}
				out.Data = append(out.Data, rec.Data...)
				for k, v := range rec.Metadata {
					out.WithMetadata(k, v)
				}
			}
			return out
		},
	}
}
