package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/record"
)

// BlobSink archives records delivered by a pipeline output. Each record is
// stored as a JSON blob under <prefix>/<correlation-id>/<uuid>.json so all
// records of one correlated flow live next to each other. Push satisfies
// record.Push and can be connected to an output transformer directly.
type BlobSink struct {
	store  BlobStore
	prefix string
	logger *zap.Logger
}

// NewBlobSink creates a sink writing through the given store.
func NewBlobSink(store BlobStore, prefix string, logger *zap.Logger) (*BlobSink, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &BlobSink{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}, nil
}

// Push archives a single record. Blob metadata carries the record envelope
// so listings can be filtered without downloading payloads.
func (s *BlobSink) Push(ctx context.Context, rec *record.Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}

	data, err := rec.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	blobPath := s.recordPath(rec)
	metadata := map[string]string{
		"correlation_id": rec.CorrelationID,
		"source":         rec.Source,
		"created_at":     rec.CreatedAt,
	}
	if rec.Reference != "" {
		metadata["reference"] = rec.Reference
	}

	url, err := s.store.Upload(ctx, blobPath, data, metadata)
	if err != nil {
		return fmt.Errorf("failed to archive record: %w", err)
	}

	s.logger.Debug("Archived record",
		zap.String("correlation_id", rec.CorrelationID),
		zap.String("blob_path", blobPath),
		zap.String("blob_url", url))

	return nil
}

// Load fetches an archived record by its container-relative blob path.
func (s *BlobSink) Load(ctx context.Context, blobPath string) (*record.Record, error) {
	data, err := s.store.Download(ctx, blobPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	rec, err := record.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode archived record: %w", err)
	}

	return rec, nil
}

func (s *BlobSink) recordPath(rec *record.Record) string {
	correlation := rec.CorrelationID
	if correlation == "" {
		correlation = "uncorrelated"
	}
	name := uuid.New().String() + ".json"
	if s.prefix == "" {
		return correlation + "/" + name
	}
	return s.prefix + "/" + correlation + "/" + name
}
