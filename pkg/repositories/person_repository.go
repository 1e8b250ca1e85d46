package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/parcelgraph/parcelgraph-engine/pkg/database"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

// PersonRepository provides data access for people (registered agents,
// officers). Identity for matching is the normalized name.
type PersonRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Person, error)
	SearchByName(ctx context.Context, name string, limit int) ([]*models.Person, error)

	// Upsert inserts or updates by normalized-name identity, keeping the
	// most recently seen spelling as the display name.
	Upsert(ctx context.Context, fullName string) (*models.Person, error)
}

type personRepository struct {
	db *database.DB
}

// NewPersonRepository creates a new PersonRepository.
func NewPersonRepository(db *database.DB) PersonRepository {
	return &personRepository{db: db}
}

var _ PersonRepository = (*personRepository)(nil)

var nonWordRe = regexp.MustCompile(`[^\w\s]`)

// NormalizePersonName uppercases, strips punctuation and collapses
// whitespace so the same individual matches across source spellings.
func NormalizePersonName(name string) string {
	normalized := nonWordRe.ReplaceAllString(strings.ToUpper(name), "")
	return strings.Join(strings.Fields(normalized), " ")
}

func (r *personRepository) GetByID(ctx context.Context, id int64) (*models.Person, error) {
	query := `SELECT id, full_name, normalized_name, created_at FROM people WHERE id = $1`

	var p models.Person
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.FullName, &p.NormalizedName, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person %d: %w", id, err)
	}
	return &p, nil
}

func (r *personRepository) SearchByName(ctx context.Context, name string, limit int) ([]*models.Person, error) {
	query := `
		SELECT id, full_name, normalized_name, created_at
		FROM people
		WHERE full_name ILIKE $1 OR normalized_name ILIKE $2
		ORDER BY full_name
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, "%"+name+"%", "%"+NormalizePersonName(name)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search people: %w", err)
	}
	defer rows.Close()

	var people []*models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.FullName, &p.NormalizedName, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating people: %w", err)
	}

	return people, nil
}

func (r *personRepository) Upsert(ctx context.Context, fullName string) (*models.Person, error) {
	normalized := NormalizePersonName(fullName)

	query := `
		SELECT id, full_name, normalized_name, created_at
		FROM people WHERE normalized_name = $1`

	var p models.Person
	err := r.db.QueryRow(ctx, query, normalized).Scan(&p.ID, &p.FullName, &p.NormalizedName, &p.CreatedAt)
	if err == nil {
		// Refresh the display name to the latest spelling seen.
		display := strings.TrimSpace(fullName)
		if display != p.FullName {
			if _, err := r.db.Exec(ctx, `UPDATE people SET full_name = $2 WHERE id = $1`, p.ID, display); err != nil {
				return nil, fmt.Errorf("failed to update person name: %w", err)
			}
			p.FullName = display
		}
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up person: %w", err)
	}

	insert := `
		INSERT INTO people (full_name, normalized_name)
		VALUES ($1, $2)
		RETURNING id, full_name, normalized_name, created_at`

	err = r.db.QueryRow(ctx, insert, strings.TrimSpace(fullName), normalized).
		Scan(&p.ID, &p.FullName, &p.NormalizedName, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert person: %w", err)
	}
	return &p, nil
}
