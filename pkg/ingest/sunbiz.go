package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/repositories"
	"github.com/parcelgraph/parcelgraph-engine/pkg/services"
)

// SourceSunbiz is the source name of the Florida Division of Corporations
// feed.
const SourceSunbiz = "sunbiz"

var docNumberRe = regexp.MustCompile(`^[A-Z]\d{11}$`)

// SunbizSource ingests Florida business entity registrations. Each filing
// record becomes an entity upsert with its registered agent and principal
// address, plus officer_of edges for listed officers.
type SunbizSource struct {
	fetcher  Fetcher
	entities services.EntityService
	people   repositories.PersonRepository
	graph    services.GraphService
	logger   *zap.Logger
}

// NewSunbizSource creates a SunbizSource. A nil fetcher falls back to the
// built-in sample batch.
func NewSunbizSource(
	fetcher Fetcher,
	entities services.EntityService,
	people repositories.PersonRepository,
	graph services.GraphService,
	logger *zap.Logger,
) *SunbizSource {
	if fetcher == nil {
		fetcher = FetcherFunc(sampleSunbizBatch)
	}
	return &SunbizSource{
		fetcher:  fetcher,
		entities: entities,
		people:   people,
		graph:    graph,
		logger:   logger.Named("ingest-sunbiz"),
	}
}

var _ Source = (*SunbizSource)(nil)

func (s *SunbizSource) Name() string { return SourceSunbiz }

func (s *SunbizSource) Description() string {
	return "Florida Division of Corporations business entity records"
}

func (s *SunbizSource) FetchBatch(ctx context.Context, batchSize int) ([]RawRecord, error) {
	return s.fetcher.Fetch(ctx, batchSize)
}

// Validate requires a well-formed document number and an entity name.
func (s *SunbizSource) Validate(raw RawRecord) bool {
	docNumber := stringField(raw.Data, "doc_number")
	if docNumber == "" || stringField(raw.Data, "entity_name") == "" {
		s.logger.Warn("Rejecting record with missing identity fields",
			zap.String("doc_number", docNumber))
		return false
	}
	if !docNumberRe.MatchString(docNumber) {
		s.logger.Warn("Rejecting record with malformed document number",
			zap.String("doc_number", docNumber))
		return false
	}
	return true
}

func (s *SunbizSource) Normalize(raw RawRecord) ([]NormalizedRecord, error) {
	var records []NormalizedRecord

	records = append(records, NormalizedRecord{
		Data: map[string]any{
			"external_id":    stringField(raw.Data, "doc_number"),
			"type":           normalizeEntityType(stringField(raw.Data, "entity_type")),
			"legal_name":     stringField(raw.Data, "entity_name"),
			"jurisdiction":   "FL",
			"status":         strings.ToUpper(stringField(raw.Data, "status")),
			"formation_date": dateField(raw.Data, "filed_date"),
		},
		SourceSystem: SourceSunbiz,
		RecordType:   RecordTypeEntity,
	})

	if stringField(raw.Data, "principal_address_line1") != "" {
		records = append(records, NormalizedRecord{
			Data: map[string]any{
				"line1":       stringField(raw.Data, "principal_address_line1"),
				"line2":       stringField(raw.Data, "principal_address_line2"),
				"city":        stringField(raw.Data, "principal_city"),
				"state":       stringField(raw.Data, "principal_state"),
				"postal_code": stringField(raw.Data, "principal_zip"),
			},
			SourceSystem: SourceSunbiz,
			RecordType:   RecordTypeAddress,
		})
	}

	if agent := stringField(raw.Data, "registered_agent"); agent != "" {
		records = append(records, NormalizedRecord{
			Data:         map[string]any{"full_name": agent, "role": "agent"},
			SourceSystem: SourceSunbiz,
			RecordType:   RecordTypePerson,
		})
	}
	for _, officer := range officerList(raw.Data) {
		if officer.name == "" {
			continue
		}
		records = append(records, NormalizedRecord{
			Data: map[string]any{
				"full_name": officer.name,
				"role":      "officer",
				"title":     officer.title,
			},
			SourceSystem: SourceSunbiz,
			RecordType:   RecordTypePerson,
		})
	}

	return records, nil
}

func (s *SunbizSource) Persist(ctx context.Context, records []NormalizedRecord) (int, error) {
	var entityRecord *NormalizedRecord
	var addressRecord *NormalizedRecord
	agentName := ""
	var officers []NormalizedRecord

	for i := range records {
		r := &records[i]
		switch r.RecordType {
		case RecordTypeEntity:
			entityRecord = r
		case RecordTypeAddress:
			addressRecord = r
		case RecordTypePerson:
			if stringField(r.Data, "role") == "agent" {
				agentName = stringField(r.Data, "full_name")
			} else {
				officers = append(officers, *r)
			}
		}
	}
	if entityRecord == nil {
		return 0, fmt.Errorf("no entity record in normalized group")
	}

	formationDate, _ := entityRecord.Data["formation_date"].(*time.Time)
	input := services.NewEntityInput{
		Entity: &models.Entity{
			ExternalID:    stringField(entityRecord.Data, "external_id"),
			SourceSystem:  SourceSunbiz,
			Type:          stringField(entityRecord.Data, "type"),
			LegalName:     stringField(entityRecord.Data, "legal_name"),
			Jurisdiction:  stringField(entityRecord.Data, "jurisdiction"),
			Status:        stringField(entityRecord.Data, "status"),
			FormationDate: formationDate,
		},
		AgentName: agentName,
	}
	if addressRecord != nil {
		input.Address = &models.Address{
			Line1:      stringField(addressRecord.Data, "line1"),
			Line2:      stringField(addressRecord.Data, "line2"),
			City:       stringField(addressRecord.Data, "city"),
			State:      stringField(addressRecord.Data, "state"),
			PostalCode: stringField(addressRecord.Data, "postal_code"),
			Country:    "US",
		}
	}

	entity, err := s.entities.CreateWithRelations(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("persist entity: %w", err)
	}
	persisted := 1

	if entity.RegisteredAgentID != nil {
		_, err := s.graph.CreateRelationship(ctx, &models.Relationship{
			FromType:     models.NodeTypePerson,
			FromID:       *entity.RegisteredAgentID,
			ToType:       models.NodeTypeEntity,
			ToID:         entity.ID,
			RelType:      models.RelTypeAgentFor,
			SourceSystem: SourceSunbiz,
		})
		if err != nil {
			return persisted, fmt.Errorf("create agent edge: %w", err)
		}
	}

	for _, officer := range officers {
		person, err := s.people.Upsert(ctx, stringField(officer.Data, "full_name"))
		if err != nil {
			return persisted, fmt.Errorf("upsert officer: %w", err)
		}
		_, err = s.graph.CreateRelationship(ctx, &models.Relationship{
			FromType:     models.NodeTypePerson,
			FromID:       person.ID,
			ToType:       models.NodeTypeEntity,
			ToID:         entity.ID,
			RelType:      models.RelTypeOfficerOf,
			SourceSystem: SourceSunbiz,
		})
		if err != nil {
			return persisted, fmt.Errorf("create officer edge: %w", err)
		}
		persisted++
	}

	return persisted, nil
}

type officerField struct {
	name  string
	title string
}

func officerList(data map[string]any) []officerField {
	raw, ok := data["officers"].([]any)
	if !ok {
		return nil
	}
	var officers []officerField
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		officers = append(officers, officerField{
			name:  stringField(entry, "name"),
			title: stringField(entry, "title"),
		})
	}
	return officers
}

// normalizeEntityType maps a Sunbiz entity type description onto the
// normalized vocabulary, with a generic fallback for unrecognized forms.
func normalizeEntityType(entityType string) string {
	upper := strings.ToUpper(entityType)
	switch {
	case strings.Contains(upper, "LLC") || strings.Contains(upper, "LIMITED LIABILITY"):
		return models.EntityTypeLLC
	case strings.Contains(upper, "NONPROFIT") || strings.Contains(upper, "NON-PROFIT"):
		return models.EntityTypeNonprofit
	case strings.Contains(upper, "CORP"):
		return models.EntityTypeCorp
	case strings.Contains(upper, "TRUST"):
		return models.EntityTypeTrust
	default:
		return "entity"
	}
}

// sampleSunbizBatch is the development fetcher, returning representative
// filing records. Production deployments inject a fetcher backed by the
// Sunbiz search endpoints.
func sampleSunbizBatch(_ context.Context, batchSize int) ([]RawRecord, error) {
	samples := []map[string]any{
		{
			"doc_number":              "L21000123456",
			"entity_name":             "SUNRISE PROPERTIES LLC",
			"entity_type":             "LIMITED LIABILITY COMPANY",
			"status":                  "ACTIVE",
			"filed_date":              "2021-03-15",
			"registered_agent":        "JOHN SMITH",
			"principal_address_line1": "456 BUSINESS BLVD",
			"principal_address_line2": "SUITE 200",
			"principal_city":          "MIAMI",
			"principal_state":         "FL",
			"principal_zip":           "33101",
			"officers": []any{
				map[string]any{"name": "JANE DOE", "title": "MANAGER"},
			},
		},
		{
			"doc_number":              "P22000789012",
			"entity_name":             "COASTAL DEVELOPMENT CORP",
			"entity_type":             "CORPORATION",
			"status":                  "ACTIVE",
			"filed_date":              "2022-01-10",
			"registered_agent":        "CORPORATE SERVICES INC",
			"principal_address_line1": "2000 OCEAN DRIVE",
			"principal_city":          "MIAMI BEACH",
			"principal_state":         "FL",
			"principal_zip":           "33139",
			"officers": []any{
				map[string]any{"name": "ROBERT WILSON", "title": "PRESIDENT"},
				map[string]any{"name": "SARAH JOHNSON", "title": "SECRETARY"},
			},
		},
		{
			"doc_number":              "N23000345678",
			"entity_name":             "COMMUNITY HEALTH FOUNDATION INC",
			"entity_type":             "NONPROFIT CORPORATION",
			"status":                  "ACTIVE",
			"filed_date":              "2023-06-01",
			"registered_agent":        "MARY THOMPSON",
			"principal_address_line1": "500 CHARITY ST",
			"principal_city":          "ORLANDO",
			"principal_state":         "FL",
			"principal_zip":           "32801",
		},
	}

	var batch []RawRecord
	for _, data := range samples {
		if len(batch) >= batchSize {
			break
		}
		batch = append(batch, RawRecord{
			Data:      data,
			SourceURL: fmt.Sprintf("https://search.sunbiz.org/Inquiry/CorporationSearch/ByDocumentNumber?documentNumber=%s", data["doc_number"]),
		})
	}
	return batch, nil
}
