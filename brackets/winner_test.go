package brackets

import (
	"context"
	"testing"

	"github.com/Dosada05/field-control/models"
	"github.com/stretchr/testify/require"
)

// memStore is a map-backed Store for exercising the invalidation cascade.
type memStore struct {
	fixtures map[int]*models.Fixture
}

func newMemStore(fixtures ...*models.Fixture) *memStore {
	s := &memStore{fixtures: make(map[int]*models.Fixture)}
	for _, f := range fixtures {
		s.fixtures[f.ID] = f
	}
	return s
}

func (s *memStore) Get(_ context.Context, id int) (*models.Fixture, error) {
	f, ok := s.fixtures[id]
	if !ok {
		return nil, ErrFixtureNotFound
	}
	copied := *f
	return &copied, nil
}

func (s *memStore) Update(_ context.Context, fixture *models.Fixture) error {
	if _, ok := s.fixtures[fixture.ID]; !ok {
		return ErrFixtureNotFound
	}
	copied := *fixture
	s.fixtures[fixture.ID] = &copied
	return nil
}

func (s *memStore) Parent(_ context.Context, childID int) (*models.Fixture, error) {
	for _, f := range s.fixtures {
		if (f.BlueID != nil && *f.BlueID == childID) || (f.GoldID != nil && *f.GoldID == childID) {
			copied := *f
			return &copied, nil
		}
	}
	return nil, nil
}

func intp(v int) *int { return &v }

// A beat B, then C, then D: every ancestor credits A.
func cascadeStore() *memStore {
	return newMemStore(
		&models.Fixture{ID: 1, Winner: intp(100)}, // leaf A
		&models.Fixture{ID: 2, Winner: intp(200)}, // leaf B
		&models.Fixture{ID: 3, Winner: intp(300)}, // leaf C
		&models.Fixture{ID: 4, Winner: intp(400)}, // leaf D
		&models.Fixture{ID: 5, BlueID: intp(1), GoldID: intp(2), Winner: intp(100)},
		&models.Fixture{ID: 6, BlueID: intp(5), GoldID: intp(3), Winner: intp(100)},
		&models.Fixture{ID: 7, BlueID: intp(6), GoldID: intp(4), Winner: intp(100), Root: true},
	)
}

func TestUpdateWinnerCascadesInvalidation(t *testing.T) {
	store := cascadeStore()

	require.NoError(t, UpdateWinner(context.Background(), store, 5, intp(200)))

	require.Equal(t, intp(200), store.fixtures[5].Winner)
	require.Nil(t, store.fixtures[6].Winner)
	require.Nil(t, store.fixtures[7].Winner)
	// Independent leaves keep their pre-seeded winners.
	require.Equal(t, intp(300), store.fixtures[3].Winner)
	require.Equal(t, intp(400), store.fixtures[4].Winner)
}

func TestUpdateWinnerStopsAtDisagreeingAncestor(t *testing.T) {
	store := cascadeStore()
	// The grandparent credits someone else entirely: the cascade must stop
	// before it.
	store.fixtures[7].Winner = intp(400)

	require.NoError(t, UpdateWinner(context.Background(), store, 5, intp(200)))

	require.Nil(t, store.fixtures[6].Winner)
	require.Equal(t, intp(400), store.fixtures[7].Winner)
}

func TestUpdateWinnerWithoutPriorWinner(t *testing.T) {
	store := newMemStore(&models.Fixture{ID: 9})

	require.NoError(t, UpdateWinner(context.Background(), store, 9, intp(123)))
	require.Equal(t, intp(123), store.fixtures[9].Winner)
}

func TestUpdateWinnerUnknownFixture(t *testing.T) {
	store := newMemStore()
	err := UpdateWinner(context.Background(), store, 77, intp(1))
	require.ErrorIs(t, err, ErrFixtureNotFound)
}

func TestUpdateWinnerClearsToNil(t *testing.T) {
	store := cascadeStore()
	require.NoError(t, UpdateWinner(context.Background(), store, 6, nil))
	require.Nil(t, store.fixtures[6].Winner)
	require.Nil(t, store.fixtures[7].Winner)
}
