package services

import (
	"context"
	"fmt"

	"github.com/Dosada05/field-control/brackets"
	"github.com/Dosada05/field-control/models"
	"github.com/Dosada05/field-control/repositories"
)

// Notifier pushes a JSON-marshalable message to every attached dashboard.
type Notifier interface {
	Publish(message any)
}

// BracketService builds, persists and maintains the elimination bracket, and
// notifies dashboards when it changes.
type BracketService interface {
	Generate(ctx context.Context, allianceIDs []int) ([]*models.Fixture, error)
	UpdateWinner(ctx context.Context, update models.FixtureUpdate) (*models.Fixture, error)
	List(ctx context.Context) ([]*models.Fixture, error)
	DeleteAll(ctx context.Context) error
}

type bracketService struct {
	fixtures repositories.FixtureRepository
	notifier Notifier
}

func NewBracketService(fixtures repositories.FixtureRepository, notifier Notifier) BracketService {
	return &bracketService{fixtures: fixtures, notifier: notifier}
}

type bracketMessage struct {
	Type     string            `json:"type"`
	Fixtures []*models.Fixture `json:"fixtures,omitempty"`
	Fixture  *models.Fixture   `json:"fixture,omitempty"`
}

// Generate replaces any existing bracket with a fresh tree built from the
// seed-ordered alliance ids.
func (s *bracketService) Generate(ctx context.Context, allianceIDs []int) ([]*models.Fixture, error) {
	root, err := brackets.Build(allianceIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBracketTooSmall, err)
	}

	if err := s.fixtures.DeleteAll(ctx); err != nil {
		return nil, err
	}
	if _, err := s.persist(ctx, root); err != nil {
		return nil, err
	}

	fixtures, err := s.fixtures.List(ctx)
	if err != nil {
		return nil, err
	}
	s.notify(bracketMessage{Type: "BRACKET_GENERATED", Fixtures: fixtures})
	return fixtures, nil
}

// persist writes the tree bottom-up so child ids exist before their parent
// row references them.
func (s *bracketService) persist(ctx context.Context, node *brackets.Node) (int, error) {
	fixture := &models.Fixture{Root: node.Root, Winner: node.Winner}
	if node.Blue != nil {
		id, err := s.persist(ctx, node.Blue)
		if err != nil {
			return 0, err
		}
		fixture.BlueID = &id
	}
	if node.Gold != nil {
		id, err := s.persist(ctx, node.Gold)
		if err != nil {
			return 0, err
		}
		fixture.GoldID = &id
	}
	if err := s.fixtures.Create(ctx, fixture); err != nil {
		return 0, err
	}
	return fixture.ID, nil
}

func (s *bracketService) UpdateWinner(ctx context.Context, update models.FixtureUpdate) (*models.Fixture, error) {
	if err := brackets.UpdateWinner(ctx, s.fixtures, update.ID, update.Winner); err != nil {
		return nil, err
	}
	fixture, err := s.fixtures.Get(ctx, update.ID)
	if err != nil {
		return nil, err
	}
	s.notify(bracketMessage{Type: "FIXTURE_UPDATED", Fixture: fixture})
	return fixture, nil
}

func (s *bracketService) List(ctx context.Context) ([]*models.Fixture, error) {
	return s.fixtures.List(ctx)
}

func (s *bracketService) DeleteAll(ctx context.Context) error {
	if err := s.fixtures.DeleteAll(ctx); err != nil {
		return err
	}
	s.notify(bracketMessage{Type: "BRACKET_DELETED"})
	return nil
}

func (s *bracketService) notify(message bracketMessage) {
	if s.notifier != nil {
		s.notifier.Publish(message)
	}
}
