package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/field-control/game"
	"github.com/Dosada05/field-control/models"
	"github.com/Dosada05/field-control/repositories"
)

// MatchService is the single ingestion choke point for match events: both the
// live field controller and the administrative bulk-edit path go through it,
// so every committed log is validated and normalized the same way.
type MatchService interface {
	Create(ctx context.Context) (*models.Match, error)
	Get(ctx context.Context, id int) (*models.Match, error)
	List(ctx context.Context) ([]*models.Match, error)
	Delete(ctx context.Context, id int) error

	// AppendEvents re-reads the committed log, normalizes committed ++ new as
	// one batch and replaces the match's event collection.
	AppendEvents(ctx context.Context, matchID int, events []models.MatchEvent) (*models.Match, error)

	// ReplaceEvents normalizes and stores a full replacement log (bulk edit).
	ReplaceEvents(ctx context.Context, matchID int, events []models.MatchEvent) (*models.Match, error)
}

type matchService struct {
	matches   repositories.MatchRepository
	durations game.Durations
}

func NewMatchService(matches repositories.MatchRepository, durations game.Durations) MatchService {
	return &matchService{matches: matches, durations: durations}
}

func (s *matchService) Create(ctx context.Context) (*models.Match, error) {
	return s.matches.Create(ctx)
}

func (s *matchService) Get(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matches.GetByID(ctx, id)
	if err != nil {
		return nil, mapMatchError(err)
	}
	return match, nil
}

func (s *matchService) List(ctx context.Context) ([]*models.Match, error) {
	return s.matches.List(ctx)
}

func (s *matchService) Delete(ctx context.Context, id int) error {
	return mapMatchError(s.matches.Delete(ctx, id))
}

func (s *matchService) AppendEvents(ctx context.Context, matchID int, events []models.MatchEvent) (*models.Match, error) {
	if err := validateEvents(events); err != nil {
		return nil, err
	}
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, mapMatchError(err)
	}
	return s.commit(ctx, match, append(match.Events, events...))
}

func (s *matchService) ReplaceEvents(ctx context.Context, matchID int, events []models.MatchEvent) (*models.Match, error) {
	if err := validateEvents(events); err != nil {
		return nil, err
	}
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, mapMatchError(err)
	}
	return s.commit(ctx, match, events)
}

func (s *matchService) commit(ctx context.Context, match *models.Match, events []models.MatchEvent) (*models.Match, error) {
	normalized := game.Normalize(events, game.New(s.durations))
	stored, err := s.matches.ReplaceEvents(ctx, match.ID, normalized)
	if err != nil {
		return nil, mapMatchError(err)
	}
	match.Events = stored
	return match, nil
}

func validateEvents(events []models.MatchEvent) error {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return fmt.Errorf("%w: event %d: %w", ErrValidationFailed, i, err)
		}
	}
	return nil
}

func mapMatchError(err error) error {
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return ErrMatchNotFound
	}
	return err
}
