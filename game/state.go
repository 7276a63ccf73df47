// Package game holds the pure match-state reducer: an ordered event log folds
// into alliance scores, per-team phase intervals and a derived timer. The
// package does no I/O and is safe to call from any goroutine as long as each
// call works on its own event slice.
package game

import (
	"github.com/Dosada05/field-control/models"
)

// Durations are the fallback phase lengths applied when a phase event carries
// no explicit value.
type Durations struct {
	Auto   int64 // milliseconds
	Teleop int64
}

// DefaultDurations matches the standard field configuration: 30s autonomous,
// 180s tele-operated.
var DefaultDurations = Durations{Auto: 30_000, Teleop: 180_000}

// PhaseInterval is one team's current phase and its scheduled window.
type PhaseInterval struct {
	Phase models.Phase `json:"phase"`
	Start int64        `json:"start"`
	Stop  int64        `json:"stop"`
}

// PhaseTransition records a point where every registered team was in the same
// phase and that shared phase changed. Stop stays zero while the transition
// is still open.
type PhaseTransition struct {
	Phase models.Phase `json:"phase"`
	Start int64        `json:"start"`
	Stop  int64        `json:"stop"`
}

// AllianceState is one side's derived score and per-team timers. It exists
// only as reducer output and is recomputed on demand.
type AllianceState struct {
	Score      float64               `json:"score"`
	Multiplier float64               `json:"multiplier"`
	Intervals  map[int]PhaseInterval `json:"intervals"`
}

func newAllianceState() *AllianceState {
	return &AllianceState{Multiplier: 1, Intervals: make(map[int]PhaseInterval)}
}

func (a *AllianceState) apply(event models.MatchEvent, durations Durations) {
	value := func(fallback float64) float64 {
		if event.Value != nil {
			return *event.Value
		}
		return fallback
	}

	switch event.Type {
	case models.EventJoin:
		if event.Team == nil {
			return
		}
		// Re-joining is a deliberate reset: any in-progress timer is cleared.
		a.Intervals[*event.Team] = PhaseInterval{Phase: models.PhaseIdle}

	case models.EventAuto, models.EventTeleop:
		if event.Team == nil {
			return
		}
		interval, ok := a.Intervals[*event.Team]
		if !ok || interval.Phase == models.PhaseEstop {
			// An e-stop is only cleared by removing and re-joining the team.
			return
		}
		phase, fallback := models.PhaseAuto, durations.Auto
		if event.Type == models.EventTeleop {
			phase, fallback = models.PhaseTeleop, durations.Teleop
		}
		interval.Phase = phase
		interval.Start = event.Timestamp
		interval.Stop = event.Timestamp + int64(value(float64(fallback)))
		a.Intervals[*event.Team] = interval

	case models.EventIdle, models.EventEstop:
		if event.Team == nil {
			return
		}
		interval, ok := a.Intervals[*event.Team]
		if !ok || interval.Phase == models.PhaseEstop {
			return
		}
		phase := models.PhaseIdle
		if event.Type == models.EventEstop {
			phase = models.PhaseEstop
		}
		a.Intervals[*event.Team] = PhaseInterval{Phase: phase, Start: event.Timestamp, Stop: event.Timestamp}

	case models.EventAdd:
		v := value(0)
		if v < 0 {
			// Penalties bypass the multiplier.
			a.Score += v
		} else {
			a.Score += a.Multiplier * v
		}

	case models.EventMultiply:
		if v := value(-1); v >= 0 {
			a.Multiplier = v
		}

	case models.EventExtend:
		if event.Team == nil {
			return
		}
		interval, ok := a.Intervals[*event.Team]
		if !ok || !interval.Phase.Running() {
			return
		}
		interval.Stop += int64(value(0))
		a.Intervals[*event.Team] = interval
	}
}

// GameState is the full derived match state: both alliances plus the recorded
// synchronization-barrier phase transitions.
type GameState struct {
	Blue        *AllianceState    `json:"blue"`
	Gold        *AllianceState    `json:"gold"`
	Transitions []PhaseTransition `json:"transitions"`

	durations    Durations
	currentPhase models.Phase
}

// New returns an empty game state using the given fallback durations.
func New(durations Durations) *GameState {
	return &GameState{
		Blue:         newAllianceState(),
		Gold:         newAllianceState(),
		durations:    durations,
		currentPhase: models.PhaseIdle,
	}
}

// Fold reduces an ordered event slice into a fresh game state. Events are
// processed strictly in slice order; the caller is responsible for ordering.
func Fold(events []models.MatchEvent, durations Durations) *GameState {
	state := New(durations)
	for _, event := range events {
		state.Apply(event)
	}
	return state
}

// Apply folds one more event into the state.
func (g *GameState) Apply(event models.MatchEvent) {
	switch event.Alliance {
	case models.AllianceBlue:
		g.Blue.apply(event, g.durations)
	case models.AllianceGold:
		g.Gold.apply(event, g.durations)
	}
	g.recordTransition(event.Timestamp)
}

// recordTransition fires only when every registered team, across both
// alliances, agrees on one phase and that phase differs from the last one
// tracked. It is a barrier detection, not a per-team signal.
func (g *GameState) recordTransition(timestamp int64) {
	var phase models.Phase
	count := 0
	for _, alliance := range []*AllianceState{g.Blue, g.Gold} {
		for _, interval := range alliance.Intervals {
			if count == 0 {
				phase = interval.Phase
			} else if interval.Phase != phase {
				return
			}
			count++
		}
	}
	if count == 0 || phase == g.currentPhase {
		return
	}
	if n := len(g.Transitions); n > 0 {
		g.Transitions[n-1].Stop = timestamp
	}
	g.Transitions = append(g.Transitions, PhaseTransition{Phase: phase, Start: timestamp})
	g.currentPhase = phase
}

// GetAlliance reports which side a team is registered on, or AllianceNone.
func (g *GameState) GetAlliance(team int) models.Alliance {
	if _, ok := g.Blue.Intervals[team]; ok {
		return models.AllianceBlue
	}
	if _, ok := g.Gold.Intervals[team]; ok {
		return models.AllianceGold
	}
	return models.AllianceNone
}

// Winner returns the alliance with the strictly higher score, or AllianceNone
// on a tie.
func (g *GameState) Winner() models.Alliance {
	switch {
	case g.Blue.Score > g.Gold.Score:
		return models.AllianceBlue
	case g.Gold.Score > g.Blue.Score:
		return models.AllianceGold
	default:
		return models.AllianceNone
	}
}

// Intervals returns every registered team's interval across both alliances.
func (g *GameState) Intervals() map[int]PhaseInterval {
	intervals := make(map[int]PhaseInterval, len(g.Blue.Intervals)+len(g.Gold.Intervals))
	for team, interval := range g.Blue.Intervals {
		intervals[team] = interval
	}
	for team, interval := range g.Gold.Intervals {
		intervals[team] = interval
	}
	return intervals
}

// Timer derives the timer view at the given instant. TimeRemaining is the
// smallest remaining window among active intervals and TotalTime the smallest
// scheduled duration among them, so the dashboard's progress ratio follows
// the robot that finishes first.
func (g *GameState) Timer(now int64) models.TimerView {
	timer := models.TimerView{Phase: models.PhaseIdle, Stage: models.StageDone}
	active := false
	for _, interval := range g.Intervals() {
		if !interval.Phase.Running() || now < interval.Start || now >= interval.Stop {
			continue
		}
		remaining := interval.Stop - now
		total := interval.Stop - interval.Start
		if !active || remaining < timer.TimeRemaining {
			timer.TimeRemaining = remaining
			timer.Phase = interval.Phase
		}
		if !active || total < timer.TotalTime {
			timer.TotalTime = total
		}
		active = true
	}
	if active {
		timer.Stage = models.StageRunning
	} else {
		timer.TimeRemaining = 0
		timer.TotalTime = 0
	}
	return timer
}

// Started reports whether the match has ever entered a running phase, or is
// in one right now.
func (g *GameState) Started() bool {
	if g.currentPhase.Running() {
		return true
	}
	for _, transition := range g.Transitions {
		if transition.Phase.Running() {
			return true
		}
	}
	return false
}
