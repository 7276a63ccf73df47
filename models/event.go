package models

import (
	"errors"
	"fmt"
)

type EventType string

const (
	EventJoin     EventType = "join"
	EventAuto     EventType = "auto"
	EventTeleop   EventType = "teleop"
	EventIdle     EventType = "idle"
	EventEstop    EventType = "estop"
	EventAdd      EventType = "add"
	EventMultiply EventType = "multiply"
	EventExtend   EventType = "extend"
	EventOther    EventType = "other"
)

var eventTypes = map[EventType]bool{
	EventJoin:     true,
	EventAuto:     true,
	EventTeleop:   true,
	EventIdle:     true,
	EventEstop:    true,
	EventAdd:      true,
	EventMultiply: true,
	EventExtend:   true,
	EventOther:    true,
}

var (
	ErrEventUnknownType     = errors.New("unknown event type")
	ErrEventNegativeTime    = errors.New("event timestamp must not be negative")
	ErrEventTeamRequired    = errors.New("event type requires a team")
	ErrEventInvalidAlliance = errors.New("invalid event alliance")
)

// MatchEvent is one immutable fact in a match's append-only log. A match's
// identity is the ordered list of its events; the reducer folds them strictly
// in log order and never re-sorts by timestamp.
type MatchEvent struct {
	ID        int       `json:"id"`
	MatchID   int       `json:"match_id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // milliseconds
	Alliance  Alliance  `json:"alliance"`
	Team      *int      `json:"team,omitempty"`
	Value     *float64  `json:"value,omitempty"`
	Desc      *string   `json:"description,omitempty"`
}

// Validate rejects structurally broken events before they reach the
// normalizer. The reducer itself does not validate.
func (e *MatchEvent) Validate() error {
	if !eventTypes[e.Type] {
		return fmt.Errorf("%w: %q", ErrEventUnknownType, e.Type)
	}
	if e.Timestamp < 0 {
		return fmt.Errorf("%w: %d", ErrEventNegativeTime, e.Timestamp)
	}
	switch e.Alliance {
	case AllianceNone, AllianceBlue, AllianceGold:
	case "":
		// Left blank for the normalizer to back-fill from the team's roster.
	default:
		return fmt.Errorf("%w: %q", ErrEventInvalidAlliance, e.Alliance)
	}
	switch e.Type {
	case EventJoin, EventAuto, EventTeleop, EventIdle, EventEstop, EventExtend:
		if e.Team == nil {
			return fmt.Errorf("%w: %q", ErrEventTeamRequired, e.Type)
		}
	}
	return nil
}

// Match is a competition match: an id plus its ordered event log.
type Match struct {
	ID        int          `json:"id"`
	FixtureID *int         `json:"fixture_id,omitempty"`
	Events    []MatchEvent `json:"events"`
}
