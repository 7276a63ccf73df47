package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/field-control/models"
)

var ErrMatchNotFound = errors.New("match not found")

// MatchRepository persists matches and their append-only event logs. A
// match's events are stored with an explicit seq column and always returned
// in insertion order; they are never re-sorted by timestamp.
type MatchRepository interface {
	Create(ctx context.Context) (*models.Match, error)
	GetByID(ctx context.Context, id int) (*models.Match, error)
	List(ctx context.Context) ([]*models.Match, error)
	ReplaceEvents(ctx context.Context, matchID int, events []models.MatchEvent) ([]models.MatchEvent, error)
	Delete(ctx context.Context, id int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context) (*models.Match, error) {
	match := &models.Match{Events: []models.MatchEvent{}}
	query := `INSERT INTO matches DEFAULT VALUES RETURNING id`
	if err := r.db.QueryRowContext(ctx, query).Scan(&match.ID); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	return match, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match := &models.Match{ID: id}
	query := `SELECT fixture_id FROM matches WHERE id = $1`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&match.FixtureID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}

	events, err := r.eventsForMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	match.Events = events
	return match, nil
}

func (r *postgresMatchRepository) eventsForMatch(ctx context.Context, matchID int) ([]models.MatchEvent, error) {
	query := `
		SELECT id, match_id, type, timestamp_ms, alliance, team_id, value, description
		FROM match_events
		WHERE match_id = $1
		ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for match %d: %w", matchID, err)
	}
	defer rows.Close()

	events := []models.MatchEvent{}
	for rows.Next() {
		var event models.MatchEvent
		if err := rows.Scan(&event.ID, &event.MatchID, &event.Type, &event.Timestamp,
			&event.Alliance, &event.Team, &event.Value, &event.Desc); err != nil {
			return nil, fmt.Errorf("failed to scan match event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *postgresMatchRepository) List(ctx context.Context) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, fixture_id FROM matches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := []*models.Match{}
	for rows.Next() {
		match := &models.Match{}
		if err := rows.Scan(&match.ID, &match.FixtureID); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

// ReplaceEvents swaps a match's whole event collection in one transaction,
// preserving the given slice order as the fold order.
func (r *postgresMatchRepository) ReplaceEvents(ctx context.Context, matchID int, events []models.MatchEvent) ([]models.MatchEvent, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE id = $1`, matchID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to check match %d: %w", matchID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM match_events WHERE match_id = $1`, matchID); err != nil {
		return nil, fmt.Errorf("failed to clear events for match %d: %w", matchID, err)
	}

	stored := make([]models.MatchEvent, len(events))
	insert := `
		INSERT INTO match_events (match_id, seq, type, timestamp_ms, alliance, team_id, value, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	for i, event := range events {
		event.MatchID = matchID
		alliance := event.Alliance
		if alliance == "" {
			alliance = models.AllianceNone
		}
		if err := tx.QueryRowContext(ctx, insert,
			matchID, i, event.Type, event.Timestamp, alliance, event.Team, event.Value, event.Desc,
		).Scan(&event.ID); err != nil {
			return nil, fmt.Errorf("failed to insert event %d for match %d: %w", i, matchID, err)
		}
		event.Alliance = alliance
		stored[i] = event
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit event replacement: %w", err)
	}
	return stored, nil
}

func (r *postgresMatchRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
