package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/parcelgraph/parcelgraph-engine/pkg/jsonutil"
)

// Record types produced by normalization.
const (
	RecordTypeEntity       = "entity"
	RecordTypePerson       = "person"
	RecordTypeAddress      = "address"
	RecordTypeProperty     = "property"
	RecordTypeOwner        = "owner"
	RecordTypeRelationship = "relationship"
)

// RawRecord is one record as fetched from a source, before normalization.
// Data holds the source's own field names and values.
type RawRecord struct {
	Data       map[string]any
	SourceURL  string
	IngestedAt time.Time
}

// NormalizedRecord is one record ready for persistence. A single raw record
// typically normalizes into several of these (an entity plus its people,
// addresses, and relationships).
type NormalizedRecord struct {
	Data         map[string]any
	SourceSystem string
	RecordType   string
}

// Source is one external data feed. FetchBatch pulls raw records, Normalize
// turns one raw record into persistable records, and Persist writes a
// normalized group through the domain services. Validate rejects records
// that should not reach Normalize.
type Source interface {
	Name() string
	Description() string
	FetchBatch(ctx context.Context, batchSize int) ([]RawRecord, error)
	Validate(raw RawRecord) bool
	Normalize(raw RawRecord) ([]NormalizedRecord, error)

	// Persist writes one raw record's normalized group and returns how
	// many records were persisted.
	Persist(ctx context.Context, records []NormalizedRecord) (int, error)
}

// Fetcher supplies raw records to a source. Production fetchers scrape or
// call the upstream system; tests inject fixed batches.
type Fetcher interface {
	Fetch(ctx context.Context, batchSize int) ([]RawRecord, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, batchSize int) ([]RawRecord, error)

func (f FetcherFunc) Fetch(ctx context.Context, batchSize int) ([]RawRecord, error) {
	return f(ctx, batchSize)
}

// stringField returns a trimmed string field from a record's data map, ""
// when absent. Loosely typed feeds send numbers and booleans where strings
// belong; those are coerced.
func stringField(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(jsonutil.String(v))
}

// floatField parses a numeric field that may arrive as a number or a
// formatted string ("485,000", "$485000"). Returns nil when absent or
// unparseable.
func floatField(data map[string]any, key string) *float64 {
	f, ok := jsonutil.Float(data[key])
	if !ok {
		return nil
	}
	return &f
}

// dateField parses a "2006-01-02" date field. Returns nil when absent or
// malformed.
func dateField(data map[string]any, key string) *time.Time {
	raw := stringField(data, key)
	if raw == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &d
}
