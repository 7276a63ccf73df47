package field

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/field-control/game"
	"github.com/Dosada05/field-control/models"
	"github.com/itbasis/go-clock"
)

// RobotConfig is the stored network configuration for reaching one robot.
type RobotConfig struct {
	Host           string
	CallPort       int
	LogPort        int
	UpdatePort     int
	MulticastGroup string
}

// PeripheralUpdate is one sensor/actuator report from a robot's update stream.
type PeripheralUpdate struct {
	UID    string
	Params map[string]any
}

// RobotClient is the transport session to one robot. Request may fail;
// failures are caught at the connection and never escalated. Notify is
// fire-and-forget.
type RobotClient interface {
	Request(ctx context.Context, method string, args ...any) (any, error)
	Notify(method string, args ...any) error
	Close() error
}

// RobotDialer opens robot sessions from stored team configuration.
type RobotDialer interface {
	Dial(conf RobotConfig, onUpdate func([]PeripheralUpdate), onLog func(models.LogEvent)) (RobotClient, error)
}

// RobotConnection owns the live session to one team's robot: its transport
// handle, the current phase, and at most one pending wall-clock deadline that
// idles the robot when its timed phase runs out.
//
// Disconnected -> Idling -> Active[deadline] -> Idling, or -> Estopped which
// only a full teardown clears.
type RobotConnection struct {
	teamID int
	client RobotClient
	clk    clock.Clock
	logger *slog.Logger

	// onDeadline re-enters the controller's serialized handle pathway.
	onDeadline func(teamID int)

	mu          sync.Mutex
	phase       models.Phase
	deadline    *clock.Timer
	deadlineFor int64 // phase stop the pending deadline was scheduled against

	uids        []string
	updateCount int
	countedFrom time.Time
}

func dialRobot(team *models.Team, dialer RobotDialer, clk clock.Clock, logger *slog.Logger,
	onLog func(models.LogEvent), onDeadline func(teamID int)) (*RobotConnection, error) {

	conn := &RobotConnection{
		teamID:      team.ID,
		clk:         clk,
		logger:      logger.With(slog.Int("team", team.ID)),
		onDeadline:  onDeadline,
		phase:       models.PhaseIdle,
		countedFrom: clk.Now(),
	}
	client, err := dialer.Dial(RobotConfig{
		Host:           team.Hostname,
		CallPort:       team.CallPort,
		LogPort:        team.LogPort,
		UpdatePort:     team.UpdatePort,
		MulticastGroup: team.MulticastGroup,
	}, conn.recordUpdates, func(event models.LogEvent) {
		event.TeamID = team.ID
		onLog(event)
	})
	if err != nil {
		return nil, err
	}
	conn.client = client
	return conn, nil
}

var phaseMethods = map[models.Phase]string{
	models.PhaseAuto:   "start_auto",
	models.PhaseTeleop: "start_teleop",
	models.PhaseIdle:   "idle",
	models.PhaseEstop:  "estop",
}

// Dispatch sends the command matching the team's derived interval and
// (re)schedules or cancels the connection's deadline against the interval's
// stop time. Transport errors are logged here and go no further.
func (c *RobotConnection) Dispatch(ctx context.Context, interval game.PhaseInterval, now int64) {
	c.mu.Lock()
	if c.phase == models.PhaseEstop {
		// Estopped accepts nothing short of a reconnect.
		c.mu.Unlock()
		return
	}
	c.phase = interval.Phase
	if interval.Phase.Running() && interval.Stop <= now {
		// Timed phase already ran out, e.g. an operator re-selected a match
		// whose auto window expired. Starting it now would leave the robot
		// running with no deadline; arm one that fires immediately so the
		// usual pathway records the idle event and stops the robot.
		c.scheduleDeadline(interval.Stop, now)
		c.mu.Unlock()
		return
	}
	if interval.Phase.Running() {
		c.scheduleDeadline(interval.Stop, now)
	} else {
		c.cancelDeadline()
	}
	c.mu.Unlock()

	method := phaseMethods[interval.Phase]
	if interval.Phase == models.PhaseEstop {
		// An e-stop must not wait on a sick robot.
		if err := c.client.Notify(method); err != nil {
			c.logger.Error("e-stop notify failed", slog.Any("error", err))
		}
		return
	}
	if _, err := c.client.Request(ctx, method, interval.Stop-interval.Start); err != nil {
		c.logger.Error("robot dispatch failed",
			slog.String("method", method), slog.Any("error", err))
	}
}

// scheduleDeadline arms the auto-idle timer for the given phase stop,
// replacing any pending one. Caller holds c.mu.
func (c *RobotConnection) scheduleDeadline(stop, now int64) {
	if c.deadline != nil {
		c.deadline.Stop()
	}
	c.deadlineFor = stop
	c.deadline = c.clk.AfterFunc(time.Duration(stop-now)*time.Millisecond, func() {
		c.mu.Lock()
		stale := c.deadlineFor != stop
		c.mu.Unlock()
		if stale {
			// A later command rescheduled past us.
			return
		}
		c.onDeadline(c.teamID)
	})
}

// cancelDeadline drops any pending auto-idle timer. Caller holds c.mu.
func (c *RobotConnection) cancelDeadline() {
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
	c.deadlineFor = 0
}

// Teardown cancels the pending deadline before releasing the transport, so a
// stale timer can never fire against a closed session.
func (c *RobotConnection) Teardown() {
	c.mu.Lock()
	c.cancelDeadline()
	c.phase = models.PhaseIdle
	c.mu.Unlock()
	if err := c.client.Close(); err != nil {
		c.logger.Error("closing robot session", slog.Any("error", err))
	}
}

// recordUpdates tracks peripheral uids and the update rate counters.
func (c *RobotConnection) recordUpdates(updates []PeripheralUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateCount++
	for _, update := range updates {
		seen := false
		for _, uid := range c.uids {
			if uid == update.UID {
				seen = true
				break
			}
		}
		if !seen {
			c.uids = append(c.uids, update.UID)
		}
	}
}

// Status reports the connection for a snapshot. The update rate is averaged
// over the window since the previous Status call.
func (c *RobotConnection) Status() models.RobotStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	elapsed := now.Sub(c.countedFrom).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(c.updateCount) / elapsed
	}
	c.updateCount = 0
	c.countedFrom = now

	uids := make([]string, len(c.uids))
	copy(uids, c.uids)
	return models.RobotStatus{TeamID: c.teamID, UpdateRate: rate, UIDs: uids}
}
