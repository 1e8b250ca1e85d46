package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/parcelgraph/parcelgraph-engine/pkg/database"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

// AddressRepository provides data access for deduplicated addresses.
type AddressRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Address, error)
	GetByHash(ctx context.Context, normalizedHash string) (*models.Address, error)

	// Upsert inserts the address if its normalized hash is new, otherwise
	// returns the existing row. The input's NormalizedHash is ignored and
	// recomputed.
	Upsert(ctx context.Context, addr *models.Address) (*models.Address, error)
}

type addressRepository struct {
	db *database.DB
}

// NewAddressRepository creates a new AddressRepository.
func NewAddressRepository(db *database.DB) AddressRepository {
	return &addressRepository{db: db}
}

var _ AddressRepository = (*addressRepository)(nil)

var nonAlnumRe = regexp.MustCompile(`[^A-Z0-9]`)

// AddressHash computes the deduplication hash from the uppercased,
// pipe-joined address components. Truncated to 16 hex chars, matching the
// column width used by ingestion since the first backfill.
func AddressHash(addr *models.Address) string {
	var components []string
	add := func(s string) {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			components = append(components, s)
		}
	}
	add(addr.Line1)
	add(addr.Line2)
	add(addr.City)
	add(addr.State)
	if postal := nonAlnumRe.ReplaceAllString(strings.ToUpper(addr.PostalCode), ""); postal != "" {
		components = append(components, postal)
	}
	add(addr.County)
	country := strings.ToUpper(strings.TrimSpace(addr.Country))
	if country == "" {
		country = "US"
	}
	components = append(components, country)

	sum := sha256.Sum256([]byte(strings.Join(components, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

const addressColumns = `id, line1, line2, city, state, postal_code, county, country, normalized_hash, created_at`

func (r *addressRepository) GetByID(ctx context.Context, id int64) (*models.Address, error) {
	addr, err := scanAddressRow(r.db.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address %d: %w", id, err)
	}
	return addr, nil
}

func (r *addressRepository) GetByHash(ctx context.Context, normalizedHash string) (*models.Address, error) {
	addr, err := scanAddressRow(r.db.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE normalized_hash = $1`, normalizedHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address by hash: %w", err)
	}
	return addr, nil
}

func (r *addressRepository) Upsert(ctx context.Context, addr *models.Address) (*models.Address, error) {
	hash := AddressHash(addr)

	existing, err := r.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	country := strings.ToUpper(strings.TrimSpace(addr.Country))
	if country == "" {
		country = "US"
	}

	insert := `
		INSERT INTO addresses (line1, line2, city, state, postal_code, county, country, normalized_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (normalized_hash) DO UPDATE SET normalized_hash = EXCLUDED.normalized_hash
		RETURNING ` + addressColumns

	created, err := scanAddressRow(r.db.QueryRow(ctx, insert,
		strings.TrimSpace(addr.Line1), nullIfEmpty(addr.Line2),
		nullIfEmpty(addr.City), nullIfEmpty(strings.ToUpper(strings.TrimSpace(addr.State))),
		nullIfEmpty(addr.PostalCode), nullIfEmpty(addr.County),
		country, hash))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert address: %w", err)
	}
	return created, nil
}

func nullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func scanAddressRow(row pgx.Row) (*models.Address, error) {
	var a models.Address
	var line2, city, state, postal, county *string
	err := row.Scan(&a.ID, &a.Line1, &line2, &city, &state, &postal, &county,
		&a.Country, &a.NormalizedHash, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if line2 != nil {
		a.Line2 = *line2
	}
	if city != nil {
		a.City = *city
	}
	if state != nil {
		a.State = *state
	}
	if postal != nil {
		a.PostalCode = *postal
	}
	if county != nil {
		a.County = *county
	}
	return &a, nil
}
