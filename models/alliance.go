package models

// Alliance is one of the two competing sides in a match. Events that apply to
// neither side (operator notes, match-wide markers) carry AllianceNone.
type Alliance string

const (
	AllianceNone Alliance = "none"
	AllianceBlue Alliance = "blue"
	AllianceGold Alliance = "gold"
)

// Phase is a per-robot match sub-period. Estop is terminal: once a robot is
// emergency-stopped it only leaves that phase by being removed from the match
// roster and re-added.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseEstop  Phase = "estop"
	PhaseAuto   Phase = "auto"
	PhaseTeleop Phase = "teleop"
)

// Running reports whether the phase has a ticking timer.
func (p Phase) Running() bool {
	return p == PhaseAuto || p == PhaseTeleop
}
