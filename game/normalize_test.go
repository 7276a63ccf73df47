package game

import (
	"testing"

	"github.com/Dosada05/field-control/models"
	"github.com/stretchr/testify/require"
)

func TestNormalizePinsJoinTimestamps(t *testing.T) {
	out := Normalize([]models.MatchEvent{
		event(models.EventJoin, models.AllianceBlue, intp(1), nil, 500),
	}, nil)

	require.Len(t, out, 1)
	require.Zero(t, out[0].Timestamp)
}

func TestNormalizeMergesDuplicateJoins(t *testing.T) {
	desc := "rejoined after swap"
	out := Normalize([]models.MatchEvent{
		event(models.EventJoin, models.AllianceBlue, intp(1), nil, 0),
		event(models.EventJoin, models.AllianceGold, intp(2), nil, 0),
		{Type: models.EventJoin, Alliance: models.AllianceGold, Team: intp(1), Desc: &desc},
	}, nil)

	// The repeated join folds into the original record at its position.
	require.Len(t, out, 2)
	require.Equal(t, models.AllianceGold, out[0].Alliance)
	require.Equal(t, intp(1), out[0].Team)
	require.Equal(t, &desc, out[0].Desc)
	require.Equal(t, intp(2), out[1].Team)
}

func TestNormalizeBackfillsAlliance(t *testing.T) {
	out := Normalize([]models.MatchEvent{
		event(models.EventJoin, models.AllianceBlue, intp(1), nil, 0),
		{Type: models.EventAuto, Team: intp(1), Timestamp: 10},
		{Type: models.EventEstop, Team: intp(2), Timestamp: 12},
		event(models.EventJoin, models.AllianceGold, intp(2), nil, 0),
		{Type: models.EventIdle, Team: intp(2), Timestamp: 20},
	}, nil)

	require.Equal(t, models.AllianceBlue, out[1].Alliance)
	// Inference is causally ordered: team 2 had not joined yet at event 3.
	require.Equal(t, models.AllianceNone, out[2].Alliance)
	require.Equal(t, models.AllianceGold, out[4].Alliance)
}

func TestNormalizeStartsFromBaseline(t *testing.T) {
	baseline := Fold([]models.MatchEvent{
		event(models.EventJoin, models.AllianceGold, intp(5), nil, 0),
	}, DefaultDurations)

	out := Normalize([]models.MatchEvent{
		{Type: models.EventTeleop, Team: intp(5), Timestamp: 30},
	}, baseline)

	require.Equal(t, models.AllianceGold, out[0].Alliance)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	batch := []models.MatchEvent{
		event(models.EventJoin, models.AllianceBlue, intp(1), nil, 100),
		event(models.EventJoin, models.AllianceGold, intp(2), nil, 0),
		{Type: models.EventAuto, Team: intp(1), Timestamp: 10},
		event(models.EventAdd, models.AllianceGold, nil, floatp(2), 15),
	}
	once := Normalize(batch, nil)
	twice := Normalize(once, nil)
	require.Equal(t, once, twice)
}

func TestNormalizePreservesOrder(t *testing.T) {
	batch := []models.MatchEvent{
		event(models.EventAdd, models.AllianceBlue, nil, floatp(1), 5),
		event(models.EventJoin, models.AllianceBlue, intp(1), nil, 0),
		event(models.EventOther, models.AllianceNone, nil, nil, 9),
	}
	out := Normalize(batch, nil)
	require.Equal(t, models.EventAdd, out[0].Type)
	require.Equal(t, models.EventJoin, out[1].Type)
	require.Equal(t, models.EventOther, out[2].Type)
}
