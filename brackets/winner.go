package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/field-control/models"
)

// ErrFixtureNotFound is returned by Store implementations when a fixture id
// does not exist; UpdateWinner surfaces it unwrapped in meaning so callers
// can map it to a 404.
var ErrFixtureNotFound = errors.New("fixture not found")

// Store is the slice of fixture persistence UpdateWinner needs. Parent returns
// the unique fixture whose blue or gold child is the given fixture, or nil
// when the fixture is the root — re-scanning all fixtures per call is the
// store's problem to avoid, not this package's.
type Store interface {
	Get(ctx context.Context, id int) (*models.Fixture, error)
	Update(ctx context.Context, fixture *models.Fixture) error
	Parent(ctx context.Context, childID int) (*models.Fixture, error)
}

// UpdateWinner replaces a fixture's winner, first clearing every ancestor
// whose recorded winner depended on the superseded result. The cascade stops
// at the first ancestor that either has no winner or credits a different
// alliance, so independent branches are never touched. Only after the cascade
// completes is the new winner written, keeping the tree invariant that a
// non-leaf winner always equals the winner of exactly one child.
func UpdateWinner(ctx context.Context, store Store, fixtureID int, winner *int) error {
	fixture, err := store.Get(ctx, fixtureID)
	if err != nil {
		return fmt.Errorf("fetch fixture %d: %w", fixtureID, err)
	}

	if fixture.Winner != nil {
		old := *fixture.Winner
		current := fixture
		for {
			parent, err := store.Parent(ctx, current.ID)
			if err != nil {
				return fmt.Errorf("find parent of fixture %d: %w", current.ID, err)
			}
			if parent == nil || parent.Winner == nil || *parent.Winner != old {
				break
			}
			parent.Winner = nil
			if err := store.Update(ctx, parent); err != nil {
				return fmt.Errorf("clear winner of fixture %d: %w", parent.ID, err)
			}
			current = parent
		}
	}

	fixture.Winner = winner
	if err := store.Update(ctx, fixture); err != nil {
		return fmt.Errorf("update fixture %d: %w", fixture.ID, err)
	}
	return nil
}
