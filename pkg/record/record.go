// Package record defines the record type flowed through the bundled
// pipelines, bridges, and examples. The engine itself is generic; this
// package is the concrete shape its packet-processing origin works with.
package record

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record is one unit of data flowing through a pipeline: an opaque payload
// plus the envelope fields the bundled stages and bridges care about.
// Records are serialized to JSON at process boundaries and carry timestamps.
type Record struct {
	// CorrelationID is a unique identifier for tracking a record across
	// stages and bridges
	CorrelationID string `json:"correlationId,omitempty"`

	// Source names where the record entered the system
	Source string `json:"source,omitempty"`

	// Reference is an opaque caller-supplied handle for the payload
	Reference string `json:"reference,omitempty"`

	// Data is the record payload
	Data []byte `json:"data,omitempty"`

	// Metadata holds additional key-value pairs for the record
	Metadata map[string]string `json:"metadata,omitempty"`

	// CreatedAt is the timestamp when the record was created
	CreatedAt string `json:"createdAt"`

	// UpdatedAt is the timestamp when the record was last updated
	UpdatedAt string `json:"updatedAt"`
}

// New creates a record with a generated correlation id and timestamps.
func New(source string) *Record {
	now := time.Now().Format(time.RFC3339)
	return &Record{
		CorrelationID: uuid.NewString(),
		Source:        source,
		Metadata:      make(map[string]string),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// WithData sets the record payload
func (r *Record) WithData(data []byte) *Record {
	r.Data = data
	r.UpdatedAt = time.Now().Format(time.RFC3339)
	return r
}

// WithReference sets the caller-supplied payload handle
func (r *Record) WithReference(reference string) *Record {
	r.Reference = reference
	r.UpdatedAt = time.Now().Format(time.RFC3339)
	return r
}

// WithMetadata adds metadata to the record
func (r *Record) WithMetadata(key, value string) *Record {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
	r.UpdatedAt = time.Now().Format(time.RFC3339)
	return r
}

// Clone returns a deep copy. Stages that mutate a record they also forward
// elsewhere should clone first.
func (r *Record) Clone() *Record {
	out := *r
	if r.Data != nil {
		out.Data = make([]byte, len(r.Data))
		copy(out.Data, r.Data)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// ToBytes serializes the record to JSON bytes
func (r *Record) ToBytes() ([]byte, error) {
	return json.Marshal(r)
}

// FromBytes deserializes a record from JSON bytes
func FromBytes(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
