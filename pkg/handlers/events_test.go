package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

type mockEventRepo struct {
	events []*models.Event
	nextID int64
}

func (m *mockEventRepo) Create(_ context.Context, event *models.Event) error {
	m.nextID++
	event.ID = m.nextID
	event.CreatedAt = time.Now()
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventRepo) ForEntity(_ context.Context, entityID int64, eventType string, limit int) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range m.events {
		if e.EntityID != entityID {
			continue
		}
		if eventType != "" && e.EventType != eventType {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockEventRepo) Recent(_ context.Context, days, limit int) ([]*models.Event, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	var out []*models.Event
	for _, e := range m.events {
		if e.EventDate.Before(cutoff) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func TestEventHandler_ForEntity(t *testing.T) {
	repo := &mockEventRepo{
		events: []*models.Event{
			{ID: 1, EntityID: 1, EventType: models.EventTypeFiling, EventDate: time.Now()},
			{ID: 2, EntityID: 1, EventType: models.EventTypeOfficerChange, EventDate: time.Now()},
			{ID: 3, EntityID: 2, EventType: models.EventTypeDeed, EventDate: time.Now()},
		},
	}
	handler := NewEventHandler(repo, zap.NewNop())

	req := makeEntityRequest("GET", "/api/entities/1/events", "1")
	rec := httptest.NewRecorder()

	handler.ForEntity(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		Events []*models.Event `json:"events"`
		Count  int             `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Count != 2 {
		t.Errorf("expected 2 events, got %d", response.Count)
	}
}

func TestEventHandler_ForEntity_TypeFilter(t *testing.T) {
	repo := &mockEventRepo{
		events: []*models.Event{
			{ID: 1, EntityID: 1, EventType: models.EventTypeFiling, EventDate: time.Now()},
			{ID: 2, EntityID: 1, EventType: models.EventTypeOfficerChange, EventDate: time.Now()},
		},
	}
	handler := NewEventHandler(repo, zap.NewNop())

	req := makeEntityRequest("GET", "/api/entities/1/events?event_type=FILING", "1")
	rec := httptest.NewRecorder()

	handler.ForEntity(rec, req)

	var response struct {
		Events []*models.Event `json:"events"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Events) != 1 || response.Events[0].EventType != models.EventTypeFiling {
		t.Errorf("unexpected events %v", response.Events)
	}
}

func TestEventHandler_Recent(t *testing.T) {
	repo := &mockEventRepo{
		events: []*models.Event{
			{ID: 1, EntityID: 1, EventType: models.EventTypeDeed, EventDate: time.Now().AddDate(0, 0, -5)},
			{ID: 2, EntityID: 2, EventType: models.EventTypeDeed, EventDate: time.Now().AddDate(0, 0, -90)},
		},
	}
	handler := NewEventHandler(repo, zap.NewNop())

	req := httptest.NewRequest("GET", "/api/events/recent?days=30", nil)
	rec := httptest.NewRecorder()

	handler.Recent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		Days  int `json:"days"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Days != 30 {
		t.Errorf("expected days 30, got %d", response.Days)
	}
	if response.Count != 1 {
		t.Errorf("expected 1 recent event, got %d", response.Count)
	}
}

func TestEventHandler_Create(t *testing.T) {
	repo := &mockEventRepo{}
	handler := NewEventHandler(repo, zap.NewNop())

	body, _ := json.Marshal(map[string]any{
		"entity_id":     1,
		"event_type":    models.EventTypeTaxDelinq,
		"source_system": "marion_pa",
		"payload":       map[string]any{"tax_year": 2025},
	})
	req := httptest.NewRequest("POST", "/api/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}

	var created models.Event
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == 0 {
		t.Error("expected created event to have an id")
	}
	if created.EventDate.IsZero() {
		t.Error("expected event date to default to now")
	}
	if len(repo.events) != 1 {
		t.Errorf("expected 1 stored event, got %d", len(repo.events))
	}
}

func TestEventHandler_Create_MissingFields(t *testing.T) {
	handler := NewEventHandler(&mockEventRepo{}, zap.NewNop())

	cases := []map[string]any{
		{"event_type": "FILING", "source_system": "sunbiz"},
		{"entity_id": 1, "source_system": "sunbiz"},
		{"entity_id": 1, "event_type": "FILING"},
	}
	for i, payload := range cases {
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest("POST", "/api/events", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected status %d, got %d", i, http.StatusBadRequest, rec.Code)
		}
	}
}
