package game

import "github.com/Dosada05/field-control/models"

// Normalize is the single choke point applied to an event batch before it is
// committed to a match's log. Starting from the given baseline state it:
//
//   - pins every join event to timestamp zero and merges a repeated join for
//     the same team into the earlier record in place, so the log never holds
//     two join records for one team;
//   - back-fills a missing alliance on team-carrying events from the alliance
//     the team belongs to at that point of the batch (causally ordered, not
//     retroactive);
//   - passes everything else through unchanged, in original relative order.
//
// Running Normalize on an already-normalized batch is a no-op.
func Normalize(events []models.MatchEvent, baseline *GameState) []models.MatchEvent {
	state := baseline
	if state == nil {
		state = New(DefaultDurations)
	}

	out := make([]models.MatchEvent, 0, len(events))
	joinIndex := make(map[int]int) // team -> position of its join in out

	for _, event := range events {
		if event.Type == models.EventJoin && event.Team != nil {
			event.Timestamp = 0
			if i, ok := joinIndex[*event.Team]; ok {
				mergeJoin(&out[i], event)
				state.Apply(out[i])
				continue
			}
			joinIndex[*event.Team] = len(out)
		} else if event.Team != nil && event.Alliance == "" {
			event.Alliance = state.GetAlliance(*event.Team)
		}
		state.Apply(event)
		out = append(out, event)
	}
	return out
}

// mergeJoin folds the fields of a repeated join into the original record,
// keeping the original's id and log position.
func mergeJoin(dst *models.MatchEvent, src models.MatchEvent) {
	if src.Alliance != "" {
		dst.Alliance = src.Alliance
	}
	if src.Value != nil {
		dst.Value = src.Value
	}
	if src.Desc != nil {
		dst.Desc = src.Desc
	}
}
