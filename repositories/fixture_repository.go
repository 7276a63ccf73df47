package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/field-control/brackets"
	"github.com/Dosada05/field-control/models"
	"github.com/lib/pq"
)

// FixtureRepository persists bracket nodes. It satisfies brackets.Store, with
// Parent answered by a child-column lookup rather than a full-table scan.
// Matches reference fixtures through matches.fixture_id with ON DELETE SET
// NULL, so deleting the bracket clears match references in the database.
type FixtureRepository interface {
	brackets.Store
	Create(ctx context.Context, fixture *models.Fixture) error
	List(ctx context.Context) ([]*models.Fixture, error)
	DeleteAll(ctx context.Context) error
}

type postgresFixtureRepository struct {
	db *sql.DB
}

func NewPostgresFixtureRepository(db *sql.DB) FixtureRepository {
	return &postgresFixtureRepository{db: db}
}

const fixtureColumns = `f.id, f.root, f.winner, f.blue_id, f.gold_id,
	COALESCE(array_agg(m.id ORDER BY m.id) FILTER (WHERE m.id IS NOT NULL), '{}')`

const fixtureQuery = `
	SELECT ` + fixtureColumns + `
	FROM fixtures f
	LEFT JOIN matches m ON m.fixture_id = f.id`

func scanFixture(row interface{ Scan(...any) error }) (*models.Fixture, error) {
	fixture := &models.Fixture{}
	var matches pq.Int64Array
	err := row.Scan(&fixture.ID, &fixture.Root, &fixture.Winner,
		&fixture.BlueID, &fixture.GoldID, &matches)
	if err != nil {
		return nil, err
	}
	fixture.Matches = make([]int, len(matches))
	for i, id := range matches {
		fixture.Matches[i] = int(id)
	}
	return fixture, nil
}

func (r *postgresFixtureRepository) Create(ctx context.Context, fixture *models.Fixture) error {
	query := `
		INSERT INTO fixtures (root, winner, blue_id, gold_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		fixture.Root, fixture.Winner, fixture.BlueID, fixture.GoldID,
	).Scan(&fixture.ID)
	if err != nil {
		return fmt.Errorf("failed to create fixture: %w", err)
	}
	return nil
}

func (r *postgresFixtureRepository) Get(ctx context.Context, id int) (*models.Fixture, error) {
	query := fixtureQuery + ` WHERE f.id = $1 GROUP BY f.id`
	fixture, err := scanFixture(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, brackets.ErrFixtureNotFound
		}
		return nil, fmt.Errorf("failed to get fixture %d: %w", id, err)
	}
	return fixture, nil
}

// Parent returns the unique fixture whose blue or gold child is the given
// fixture, or nil for the root.
func (r *postgresFixtureRepository) Parent(ctx context.Context, childID int) (*models.Fixture, error) {
	query := fixtureQuery + ` WHERE f.blue_id = $1 OR f.gold_id = $1 GROUP BY f.id`
	fixture, err := scanFixture(r.db.QueryRowContext(ctx, query, childID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find parent of fixture %d: %w", childID, err)
	}
	return fixture, nil
}

func (r *postgresFixtureRepository) List(ctx context.Context) ([]*models.Fixture, error) {
	rows, err := r.db.QueryContext(ctx, fixtureQuery+` GROUP BY f.id ORDER BY f.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	defer rows.Close()

	fixtures := []*models.Fixture{}
	for rows.Next() {
		fixture, err := scanFixture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fixture: %w", err)
		}
		fixtures = append(fixtures, fixture)
	}
	return fixtures, rows.Err()
}

func (r *postgresFixtureRepository) Update(ctx context.Context, fixture *models.Fixture) error {
	query := `UPDATE fixtures SET root = $1, winner = $2, blue_id = $3, gold_id = $4 WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query,
		fixture.Root, fixture.Winner, fixture.BlueID, fixture.GoldID, fixture.ID)
	if err != nil {
		return fmt.Errorf("failed to update fixture %d: %w", fixture.ID, err)
	}
	return checkAffectedRows(result, brackets.ErrFixtureNotFound)
}

// DeleteAll removes the whole bracket unconditionally.
func (r *postgresFixtureRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM fixtures`); err != nil {
		return fmt.Errorf("failed to delete fixtures: %w", err)
	}
	return nil
}
