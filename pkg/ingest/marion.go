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

// SourceMarionPA is the source name of the Marion County, FL property
// appraiser feed.
const SourceMarionPA = "marion_pa"

// nameMatchConfidence is assigned to owns edges created from approximate
// owner-name matching against the entity table.
const nameMatchConfidence = 0.8

var parcelIDRe = regexp.MustCompile(`^\d{2}-\d{2}-\d{2}-\d{4}-\d{5}-\d{4}$`)

var entityNameIndicators = []string{
	"LLC", "CORP", "INC", "LTD", "LP", "COMPANY", "CORPORATION", "TRUST",
}

// MarionCountySource ingests Marion County parcel records. Each record
// becomes a property upsert with its situs address, and an active owns edge
// from the owner: entities are matched by name with reduced confidence,
// individual owners are upserted as people.
type MarionCountySource struct {
	fetcher    Fetcher
	entities   services.EntityService
	people     repositories.PersonRepository
	properties repositories.PropertyRepository
	addresses  repositories.AddressRepository
	graph      services.GraphService
	logger     *zap.Logger
}

// NewMarionCountySource creates a MarionCountySource. A nil fetcher falls
// back to the built-in sample batch.
func NewMarionCountySource(
	fetcher Fetcher,
	entities services.EntityService,
	people repositories.PersonRepository,
	properties repositories.PropertyRepository,
	addresses repositories.AddressRepository,
	graph services.GraphService,
	logger *zap.Logger,
) *MarionCountySource {
	if fetcher == nil {
		fetcher = FetcherFunc(sampleMarionBatch)
	}
	return &MarionCountySource{
		fetcher:    fetcher,
		entities:   entities,
		people:     people,
		properties: properties,
		addresses:  addresses,
		graph:      graph,
		logger:     logger.Named("ingest-marion-pa"),
	}
}

var _ Source = (*MarionCountySource)(nil)

func (s *MarionCountySource) Name() string { return SourceMarionPA }

func (s *MarionCountySource) Description() string {
	return "Marion County, FL Property Appraiser records"
}

func (s *MarionCountySource) FetchBatch(ctx context.Context, batchSize int) ([]RawRecord, error) {
	return s.fetcher.Fetch(ctx, batchSize)
}

// Validate requires a well-formed parcel id and an owner name.
func (s *MarionCountySource) Validate(raw RawRecord) bool {
	parcelID := stringField(raw.Data, "parcel_id")
	if parcelID == "" || stringField(raw.Data, "owner_name") == "" {
		s.logger.Warn("Rejecting record with missing identity fields",
			zap.String("parcel_id", parcelID))
		return false
	}
	if !parcelIDRe.MatchString(parcelID) {
		s.logger.Warn("Rejecting record with malformed parcel id",
			zap.String("parcel_id", parcelID))
		return false
	}
	return true
}

func (s *MarionCountySource) Normalize(raw RawRecord) ([]NormalizedRecord, error) {
	parcelID := stringField(raw.Data, "parcel_id")
	var records []NormalizedRecord

	records = append(records, NormalizedRecord{
		Data: map[string]any{
			"parcel_id":        parcelID,
			"county":           "Marion",
			"jurisdiction":     "FL",
			"land_use_code":    stringField(raw.Data, "land_use_code"),
			"acreage":          floatField(raw.Data, "acreage"),
			"last_sale_date":   dateField(raw.Data, "last_sale_date"),
			"last_sale_price":  floatField(raw.Data, "last_sale_price"),
			"assessed_value":   floatField(raw.Data, "assessed_value"),
			"market_value":     floatField(raw.Data, "market_value"),
			"homestead_exempt": stringField(raw.Data, "homestead_exemption"),
			"tax_year":         stringField(raw.Data, "tax_year"),
			"appraiser_url":    fmt.Sprintf("https://www.pa.marion.fl.us/search?parcel=%s", parcelID),
		},
		SourceSystem: SourceMarionPA,
		RecordType:   RecordTypeProperty,
	})

	if stringField(raw.Data, "situs_address") != "" {
		records = append(records, NormalizedRecord{
			Data: map[string]any{
				"line1":       stringField(raw.Data, "situs_address"),
				"city":        stringField(raw.Data, "situs_city"),
				"state":       stringField(raw.Data, "situs_state"),
				"postal_code": stringField(raw.Data, "situs_zip"),
				"county":      "Marion",
			},
			SourceSystem: SourceMarionPA,
			RecordType:   RecordTypeAddress,
		})
	}

	if ownerName := stringField(raw.Data, "owner_name"); ownerName != "" {
		ownerType := "person"
		if isEntityName(ownerName) {
			ownerType = "entity"
		}
		records = append(records, NormalizedRecord{
			Data:         map[string]any{"name": ownerName, "owner_type": ownerType},
			SourceSystem: SourceMarionPA,
			RecordType:   RecordTypeOwner,
		})
	}

	return records, nil
}

func (s *MarionCountySource) Persist(ctx context.Context, records []NormalizedRecord) (int, error) {
	var propertyRecord, addressRecord, ownerRecord *NormalizedRecord
	for i := range records {
		r := &records[i]
		switch r.RecordType {
		case RecordTypeProperty:
			propertyRecord = r
		case RecordTypeAddress:
			addressRecord = r
		case RecordTypeOwner:
			ownerRecord = r
		}
	}
	if propertyRecord == nil {
		return 0, fmt.Errorf("no property record in normalized group")
	}

	property := propertyFromRecord(propertyRecord)

	if addressRecord != nil {
		address, err := s.addresses.Upsert(ctx, &models.Address{
			Line1:      stringField(addressRecord.Data, "line1"),
			City:       stringField(addressRecord.Data, "city"),
			State:      stringField(addressRecord.Data, "state"),
			PostalCode: stringField(addressRecord.Data, "postal_code"),
			County:     stringField(addressRecord.Data, "county"),
			Country:    "US",
		})
		if err != nil {
			return 0, fmt.Errorf("upsert situs address: %w", err)
		}
		property.SitusAddressID = &address.ID
	}

	if err := s.properties.Upsert(ctx, property); err != nil {
		return 0, fmt.Errorf("upsert property: %w", err)
	}
	persisted := 1

	if property.SitusAddressID != nil {
		_, err := s.graph.CreateRelationship(ctx, &models.Relationship{
			FromType:     models.NodeTypeProperty,
			FromID:       property.ID,
			ToType:       models.NodeTypeAddress,
			ToID:         *property.SitusAddressID,
			RelType:      models.RelTypeLocatedAt,
			SourceSystem: SourceMarionPA,
		})
		if err != nil {
			return persisted, fmt.Errorf("create situs edge: %w", err)
		}
	}

	if ownerRecord != nil {
		n, err := s.persistOwner(ctx, ownerRecord, property)
		persisted += n
		if err != nil {
			return persisted, err
		}
	}

	return persisted, nil
}

// persistOwner creates the owns edge for a parcel's owner of record. Entity
// owners are matched against the entity table by name; when no match is
// found the ownership is skipped rather than inventing an entity row.
func (s *MarionCountySource) persistOwner(ctx context.Context, owner *NormalizedRecord, property *models.Property) (int, error) {
	name := stringField(owner.Data, "name")

	if stringField(owner.Data, "owner_type") == "entity" {
		matches, err := s.entities.Search(ctx, services.EntitySearch{Name: name, Limit: 5})
		if err != nil {
			return 0, fmt.Errorf("match owner entity: %w", err)
		}
		if len(matches) == 0 {
			s.logger.Info("No entity match for parcel owner",
				zap.String("owner_name", name),
				zap.String("parcel_id", property.ParcelID))
			return 0, nil
		}
		_, err = s.graph.CreateRelationship(ctx, &models.Relationship{
			FromType:     models.NodeTypeEntity,
			FromID:       matches[0].ID,
			ToType:       models.NodeTypeProperty,
			ToID:         property.ID,
			RelType:      models.RelTypeOwns,
			SourceSystem: SourceMarionPA,
			Confidence:   nameMatchConfidence,
		})
		if err != nil {
			return 0, fmt.Errorf("create entity ownership edge: %w", err)
		}
		return 1, nil
	}

	person, err := s.people.Upsert(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("upsert owner person: %w", err)
	}
	_, err = s.graph.CreateRelationship(ctx, &models.Relationship{
		FromType:     models.NodeTypePerson,
		FromID:       person.ID,
		ToType:       models.NodeTypeProperty,
		ToID:         property.ID,
		RelType:      models.RelTypeOwns,
		SourceSystem: SourceMarionPA,
	})
	if err != nil {
		return 0, fmt.Errorf("create person ownership edge: %w", err)
	}
	return 1, nil
}

func propertyFromRecord(r *NormalizedRecord) *models.Property {
	lastSaleDate, _ := r.Data["last_sale_date"].(*time.Time)
	acreage, _ := r.Data["acreage"].(*float64)
	lastSalePrice, _ := r.Data["last_sale_price"].(*float64)
	assessedValue, _ := r.Data["assessed_value"].(*float64)
	marketValue, _ := r.Data["market_value"].(*float64)

	return &models.Property{
		ParcelID:        stringField(r.Data, "parcel_id"),
		County:          stringField(r.Data, "county"),
		Jurisdiction:    stringField(r.Data, "jurisdiction"),
		AppraiserURL:    stringField(r.Data, "appraiser_url"),
		LandUseCode:     stringField(r.Data, "land_use_code"),
		Acreage:         acreage,
		LastSaleDate:    lastSaleDate,
		LastSalePrice:   lastSalePrice,
		MarketValue:     marketValue,
		AssessedValue:   assessedValue,
		HomesteadExempt: stringField(r.Data, "homestead_exempt"),
		TaxYear:         stringField(r.Data, "tax_year"),
	}
}

// isEntityName reports whether an owner-of-record name looks like a
// business entity rather than an individual.
func isEntityName(name string) bool {
	upper := strings.ToUpper(name)
	for _, indicator := range entityNameIndicators {
		if strings.Contains(upper, indicator) {
			return true
		}
	}
	return false
}

// sampleMarionBatch is the development fetcher with representative parcel
// records. Production deployments inject a fetcher backed by the county's
// bulk parcel downloads.
func sampleMarionBatch(_ context.Context, batchSize int) ([]RawRecord, error) {
	samples := []map[string]any{
		{
			"parcel_id":           "15-11-20-0000-00100-0000",
			"owner_name":          "SUNRISE PROPERTIES LLC",
			"situs_address":       "1234 RANCH RD",
			"situs_city":          "OCALA",
			"situs_state":         "FL",
			"situs_zip":           "34471",
			"land_use_code":       "0100",
			"acreage":             "2.50",
			"last_sale_date":      "2021-06-15",
			"last_sale_price":     "485000",
			"assessed_value":      "465000",
			"market_value":        "485000",
			"tax_year":            "2023",
			"homestead_exemption": "Y",
		},
		{
			"parcel_id":           "16-12-21-0000-00200-0000",
			"owner_name":          "COASTAL DEVELOPMENT CORP",
			"situs_address":       "5678 COMMERCIAL BLVD",
			"situs_city":          "OCALA",
			"situs_state":         "FL",
			"situs_zip":           "34474",
			"land_use_code":       "0400",
			"acreage":             "5.75",
			"last_sale_date":      "2022-03-10",
			"last_sale_price":     "1250000",
			"assessed_value":      "1200000",
			"market_value":        "1250000",
			"tax_year":            "2023",
			"homestead_exemption": "N",
		},
		{
			"parcel_id":           "17-13-22-0000-00300-0000",
			"owner_name":          "SMITH, JOHN & MARY",
			"situs_address":       "9999 HOMEOWNER ST",
			"situs_city":          "OCALA",
			"situs_state":         "FL",
			"situs_zip":           "34471",
			"land_use_code":       "0100",
			"acreage":             "1.25",
			"last_sale_date":      "2018-09-20",
			"last_sale_price":     "285000",
			"assessed_value":      "295000",
			"market_value":        "315000",
			"tax_year":            "2023",
			"homestead_exemption": "Y",
		},
	}

	var batch []RawRecord
	for _, data := range samples {
		if len(batch) >= batchSize {
			break
		}
		batch = append(batch, RawRecord{
			Data:      data,
			SourceURL: fmt.Sprintf("https://www.pa.marion.fl.us/search?parcel=%s", data["parcel_id"]),
		})
	}
	return batch, nil
}
