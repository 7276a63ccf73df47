package models

import "encoding/json"

// TimerStage mirrors the dashboard's notion of match progress.
type TimerStage string

const (
	StageInit    TimerStage = "init"
	StageRunning TimerStage = "running"
	StageDone    TimerStage = "done"
)

// TimerView is the timer as advertised to clients. Before the derived game
// state reports a running timer, an operator-set TimerView is authoritative;
// afterwards the derived timer always wins.
type TimerView struct {
	Phase         Phase      `json:"phase"`
	TimeRemaining int64      `json:"timeRemaining"` // milliseconds
	TotalTime     int64      `json:"totalTime"`     // milliseconds
	Stage         TimerStage `json:"stage"`
}

// ControlRequest is a single operator (or synthetic deadline) command to the
// field controller. All fields are optional; an empty request is a no-op that
// still reconciles connections against the live match roster. An explicit
// JSON null for matchId or timerView clears the value, which is distinct
// from omitting the field, so both carry a Set flag.
type ControlRequest struct {
	MatchID        OptionalInt       `json:"matchId"`
	Events         []MatchEvent      `json:"events,omitempty"`
	Activations    []int             `json:"activations,omitempty"`
	ForceReconnect bool              `json:"forceReconnect,omitempty"`
	TimerView      OptionalTimerView `json:"timerView"`
}

// OptionalInt distinguishes an absent JSON field from an explicit null.
type OptionalInt struct {
	Set   bool
	Value *int
}

func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o OptionalInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// OptionalTimerView is the nullable-or-absent counterpart for timer views.
type OptionalTimerView struct {
	Set   bool
	Value *TimerView
}

func (o *OptionalTimerView) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o OptionalTimerView) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// RobotStatus is the per-connection slice of a snapshot.
type RobotStatus struct {
	TeamID     int      `json:"teamId"`
	UpdateRate float64  `json:"updateRate"` // peripheral updates per second
	UIDs       []string `json:"uids"`
}

// ControlState is the controller's own state within a snapshot.
type ControlState struct {
	MatchID   *int          `json:"matchId"`
	TimerView *TimerView    `json:"timerView"`
	Robots    []RobotStatus `json:"robots"`
}

// ControlResponse is one broadcast snapshot. Match is omitted when no live
// match is selected; LogEvents carries remote robot log records queued since
// the previous snapshot.
type ControlResponse struct {
	Control   ControlState `json:"control"`
	Match     *Match       `json:"match,omitempty"`
	LogEvents []LogEvent   `json:"logEvents,omitempty"`
}

// LogEvent is one record forwarded from a robot's remote log stream.
type LogEvent struct {
	TeamID    int            `json:"teamId"`
	Timestamp int64          `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}
