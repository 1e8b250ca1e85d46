package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parcelgraph/parcelgraph-engine/pkg/database"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

// PropertyRepository provides data access for real-estate parcels.
// Identity within a county is the parcel number.
type PropertyRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Property, error)
	GetByParcel(ctx context.Context, county, parcelID string) (*models.Property, error)
	ByCounty(ctx context.Context, county string, limit int) ([]*models.Property, error)
	ByAddress(ctx context.Context, addressID int64) ([]*models.Property, error)

	// Upsert inserts or updates by (county, parcel_id) identity and
	// populates the property's ID and timestamps.
	Upsert(ctx context.Context, property *models.Property) error
}

type propertyRepository struct {
	db *database.DB
}

// NewPropertyRepository creates a new PropertyRepository.
func NewPropertyRepository(db *database.DB) PropertyRepository {
	return &propertyRepository{db: db}
}

var _ PropertyRepository = (*propertyRepository)(nil)

const propertyColumns = `id, parcel_id, county, jurisdiction, situs_address_id,
	appraiser_url, land_use_code, acreage, last_sale_date, last_sale_price,
	market_value, assessed_value, homestead_exempt, tax_year, created_at, updated_at`

func (r *propertyRepository) GetByID(ctx context.Context, id int64) (*models.Property, error) {
	property, err := scanPropertyRow(r.db.QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property %d: %w", id, err)
	}
	return property, nil
}

func (r *propertyRepository) GetByParcel(ctx context.Context, county, parcelID string) (*models.Property, error) {
	property, err := scanPropertyRow(r.db.QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE county = $1 AND parcel_id = $2`,
		county, parcelID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property %s/%s: %w", county, parcelID, err)
	}
	return property, nil
}

func (r *propertyRepository) ByCounty(ctx context.Context, county string, limit int) ([]*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE county = $1 ORDER BY updated_at DESC LIMIT $2`
	return r.queryProperties(ctx, query, county, limit)
}

func (r *propertyRepository) ByAddress(ctx context.Context, addressID int64) ([]*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE situs_address_id = $1 ORDER BY id`
	return r.queryProperties(ctx, query, addressID)
}

func (r *propertyRepository) Upsert(ctx context.Context, property *models.Property) error {
	query := `
		INSERT INTO properties (
			parcel_id, county, jurisdiction, situs_address_id, appraiser_url,
			land_use_code, acreage, last_sale_date, last_sale_price,
			market_value, assessed_value, homestead_exempt, tax_year
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (county, parcel_id) DO UPDATE SET
			jurisdiction = EXCLUDED.jurisdiction,
			situs_address_id = EXCLUDED.situs_address_id,
			appraiser_url = EXCLUDED.appraiser_url,
			land_use_code = EXCLUDED.land_use_code,
			acreage = EXCLUDED.acreage,
			last_sale_date = EXCLUDED.last_sale_date,
			last_sale_price = EXCLUDED.last_sale_price,
			market_value = EXCLUDED.market_value,
			assessed_value = EXCLUDED.assessed_value,
			homestead_exempt = EXCLUDED.homestead_exempt,
			tax_year = EXCLUDED.tax_year,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		property.ParcelID, property.County, nullIfEmpty(property.Jurisdiction),
		property.SitusAddressID, nullIfEmpty(property.AppraiserURL),
		nullIfEmpty(property.LandUseCode), property.Acreage,
		property.LastSaleDate, property.LastSalePrice,
		property.MarketValue, property.AssessedValue,
		nullIfEmpty(property.HomesteadExempt), nullIfEmpty(property.TaxYear),
	).Scan(&property.ID, &property.CreatedAt, &property.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert property %s/%s: %w", property.County, property.ParcelID, err)
	}
	return nil
}

func (r *propertyRepository) queryProperties(ctx context.Context, query string, args ...any) ([]*models.Property, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var properties []*models.Property
	for rows.Next() {
		property, err := scanPropertyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, property)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating properties: %w", err)
	}

	return properties, nil
}

func scanPropertyRow(row pgx.Row) (*models.Property, error) {
	var p models.Property
	var jurisdiction, appraiserURL, landUse, homestead, taxYear *string
	err := row.Scan(
		&p.ID, &p.ParcelID, &p.County, &jurisdiction, &p.SitusAddressID,
		&appraiserURL, &landUse, &p.Acreage, &p.LastSaleDate, &p.LastSalePrice,
		&p.MarketValue, &p.AssessedValue, &homestead, &taxYear,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if jurisdiction != nil {
		p.Jurisdiction = *jurisdiction
	}
	if appraiserURL != nil {
		p.AppraiserURL = *appraiserURL
	}
	if landUse != nil {
		p.LandUseCode = *landUse
	}
	if homestead != nil {
		p.HomesteadExempt = *homestead
	}
	if taxYear != nil {
		p.TaxYear = *taxYear
	}
	return &p, nil
}
