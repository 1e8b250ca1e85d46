package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/ingest"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

type mockIngestRunRepo struct {
	runs []*models.IngestRun
}

func (m *mockIngestRunRepo) Insert(_ context.Context, run *models.IngestRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockIngestRunRepo) BySource(_ context.Context, source string, limit int) ([]*models.IngestRun, error) {
	var out []*models.IngestRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.runs[i].Source == source {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

type stubIngestSource struct {
	name string
}

func (s *stubIngestSource) Name() string        { return s.name }
func (s *stubIngestSource) Description() string { return "stub source" }

func (s *stubIngestSource) FetchBatch(_ context.Context, batchSize int) ([]ingest.RawRecord, error) {
	records := []ingest.RawRecord{
		{Data: map[string]any{"key": "one"}},
		{Data: map[string]any{"key": "two"}},
	}
	if batchSize > 0 && batchSize < len(records) {
		records = records[:batchSize]
	}
	return records, nil
}

func (s *stubIngestSource) Validate(_ ingest.RawRecord) bool { return true }

func (s *stubIngestSource) Normalize(raw ingest.RawRecord) ([]ingest.NormalizedRecord, error) {
	return []ingest.NormalizedRecord{{Data: raw.Data, SourceSystem: s.name, RecordType: ingest.RecordTypeEntity}}, nil
}

func (s *stubIngestSource) Persist(_ context.Context, records []ingest.NormalizedRecord) (int, error) {
	return len(records), nil
}

func newTestIngestHandler(t *testing.T) (*IngestHandler, *mockIngestRunRepo) {
	t.Helper()
	repo := &mockIngestRunRepo{}
	runner := ingest.NewRunner(repo, zap.NewNop())
	runner.Register(&stubIngestSource{name: "stub"})
	return NewIngestHandler(runner, repo, zap.NewNop()), repo
}

func TestIngestHandler_Sources(t *testing.T) {
	handler, _ := newTestIngestHandler(t)

	req := httptest.NewRequest("GET", "/api/ingest/sources", nil)
	rec := httptest.NewRecorder()

	handler.Sources(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		Sources []string `json:"sources"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Sources) != 1 || response.Sources[0] != "stub" {
		t.Errorf("unexpected sources %v", response.Sources)
	}
}

func TestIngestHandler_Run_Success(t *testing.T) {
	handler, repo := newTestIngestHandler(t)

	req := httptest.NewRequest("POST", "/api/ingest/stub/run", nil)
	req.SetPathValue("source", "stub")
	rec := httptest.NewRecorder()

	handler.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var run models.IngestRun
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if run.Status != models.IngestStatusSuccess {
		t.Errorf("expected status success, got %q", run.Status)
	}
	if run.RecordsProcessed != 2 {
		t.Errorf("expected 2 records processed, got %d", run.RecordsProcessed)
	}
	if len(repo.runs) != 1 {
		t.Errorf("expected run to be recorded, got %d rows", len(repo.runs))
	}
}

func TestIngestHandler_Run_UnknownSource(t *testing.T) {
	handler, _ := newTestIngestHandler(t)

	req := httptest.NewRequest("POST", "/api/ingest/nope/run", nil)
	req.SetPathValue("source", "nope")
	rec := httptest.NewRecorder()

	handler.Run(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	var errResp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if errResp["error"] != "unknown_source" {
		t.Errorf("expected error 'unknown_source', got %q", errResp["error"])
	}
}

func TestIngestHandler_Runs(t *testing.T) {
	handler, repo := newTestIngestHandler(t)
	repo.runs = []*models.IngestRun{
		{Source: "stub", Status: models.IngestStatusSuccess},
		{Source: "stub", Status: models.IngestStatusPartial},
		{Source: "other", Status: models.IngestStatusFailure},
	}

	req := httptest.NewRequest("GET", "/api/ingest/stub/runs", nil)
	req.SetPathValue("source", "stub")
	rec := httptest.NewRecorder()

	handler.Runs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		Runs  []*models.IngestRun `json:"runs"`
		Count int                 `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Count != 2 {
		t.Errorf("expected 2 runs, got %d", response.Count)
	}
}
