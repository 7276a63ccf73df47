// Package field is the match orchestrator: it owns the single live match, the
// per-team robot connections and the timer view advertised to dashboards, and
// keeps all of them reconciled against the event-sourced game state.
package field

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/field-control/game"
	"github.com/Dosada05/field-control/models"
	"github.com/itbasis/go-clock"
	"golang.org/x/sync/errgroup"
)

// MatchIngest is the slice of match persistence the controller consumes.
// AppendEvents must re-read the committed log, normalize, and replace it —
// it is the single event-ingestion choke point.
type MatchIngest interface {
	Get(ctx context.Context, id int) (*models.Match, error)
	AppendEvents(ctx context.Context, matchID int, events []models.MatchEvent) (*models.Match, error)
}

// TeamStore resolves a team's stored robot network configuration.
type TeamStore interface {
	Get(ctx context.Context, id int) (*models.Team, error)
}

// Controller is the field control orchestrator. Every state mutation funnels
// through Handle, which is serialized per instance: an operator command
// racing a just-fired deadline runs strictly one after the other.
type Controller struct {
	clk             clock.Clock
	logger          *slog.Logger
	durations       game.Durations
	dispatchTimeout time.Duration
	matches         MatchIngest
	teams           TeamStore
	dialer          RobotDialer
	hub             *Hub

	mu        sync.Mutex
	matchID   *int
	timerView *models.TimerView
	conns     map[int]*RobotConnection
	logQueue  []models.LogEvent
}

func NewController(matches MatchIngest, teams TeamStore, dialer RobotDialer, hub *Hub,
	durations game.Durations, dispatchTimeout time.Duration, clk clock.Clock, logger *slog.Logger) *Controller {

	return &Controller{
		clk:             clk,
		logger:          logger,
		durations:       durations,
		dispatchTimeout: dispatchTimeout,
		matches:         matches,
		teams:           teams,
		dialer:          dialer,
		hub:             hub,
		conns:           make(map[int]*RobotConnection),
	}
}

// Handle processes one control request end to end: select match, set timer
// view, ingest events, reconcile connections against the derived roster, and
// dispatch phase commands. It returns the resulting snapshot.
func (c *Controller) Handle(ctx context.Context, request models.ControlRequest) (*models.ControlResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if request.MatchID.Set {
		c.matchID = request.MatchID.Value
	}
	if request.TimerView.Set {
		c.timerView = request.TimerView.Value
	}

	var match *models.Match
	if len(request.Events) > 0 {
		if c.matchID == nil {
			c.logger.Warn("dropping events: no live match selected",
				slog.Int("count", len(request.Events)))
		} else {
			var err error
			match, err = c.matches.AppendEvents(ctx, *c.matchID, request.Events)
			if err != nil {
				return nil, err
			}
		}
	}

	if request.ForceReconnect || c.matchID == nil {
		c.teardownAll()
	}

	if c.matchID != nil {
		if match == nil {
			var err error
			match, err = c.matches.Get(ctx, *c.matchID)
			if err != nil {
				c.logger.Error("fetching live match", slog.Any("error", err))
				match = nil
			}
		}
		if match != nil {
			c.reconcile(ctx, match, request.Activations)
		}
	}

	return c.snapshotLocked(match), nil
}

// reconcile brings the connection map in line with the derived roster and
// fans phase commands out to the robots. One unreachable robot never delays
// the others: dispatch errors are swallowed at the connection.
func (c *Controller) reconcile(ctx context.Context, match *models.Match, activations []int) {
	state := game.Fold(match.Events, c.durations)
	roster := state.Intervals()
	now := c.clk.Now().UnixMilli()

	activate := func(team int) bool {
		if activations == nil {
			return true
		}
		for _, id := range activations {
			if id == team {
				return true
			}
		}
		return false
	}

	g, gctx := errgroup.WithContext(ctx)
	for team, interval := range roster {
		conn, ok := c.conns[team]
		if !ok {
			stored, err := c.teams.Get(ctx, team)
			if err != nil {
				c.logger.Error("loading team network config",
					slog.Int("team", team), slog.Any("error", err))
				continue
			}
			conn, err = dialRobot(stored, c.dialer, c.clk, c.logger, c.queueLog, c.deadlineFired)
			if err != nil {
				c.logger.Error("connecting to robot",
					slog.Int("team", team), slog.Any("error", err))
				continue
			}
			c.conns[team] = conn
		}
		if !activate(team) {
			continue
		}
		conn, interval := conn, interval
		g.Go(func() error {
			// Handle holds c.mu for the duration of the fan-out, so a robot
			// that accepted the connection but never answers must not be
			// allowed to pin the whole control loop.
			dctx, cancel := context.WithTimeout(gctx, c.dispatchTimeout)
			defer cancel()
			conn.Dispatch(dctx, interval, now)
			return nil
		})
	}
	_ = g.Wait()

	for team, conn := range c.conns {
		if _, ok := roster[team]; !ok {
			conn.Teardown()
			delete(c.conns, team)
		}
	}
}

// teardownAll cancels every pending deadline and releases every connection.
// Caller holds c.mu.
func (c *Controller) teardownAll() {
	for team, conn := range c.conns {
		conn.Teardown()
		delete(c.conns, team)
	}
}

// deadlineFired synthesizes an idle event for a team whose timed phase ran
// out, re-entering the serialized handle pathway like any external command.
func (c *Controller) deadlineFired(team int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := c.Handle(ctx, models.ControlRequest{
			Events: []models.MatchEvent{{
				Type:      models.EventIdle,
				Team:      &team,
				Timestamp: c.clk.Now().UnixMilli(),
			}},
		})
		if err != nil {
			c.logger.Error("handling phase deadline",
				slog.Int("team", team), slog.Any("error", err))
			return
		}
		c.Broadcast(ctx)
	}()
}

// queueLog buffers a robot log record for the next snapshot.
func (c *Controller) queueLog(event models.LogEvent) {
	c.mu.Lock()
	c.logQueue = append(c.logQueue, event)
	c.mu.Unlock()
}

// Snapshot builds one consistent view of the controller for broadcast.
func (c *Controller) Snapshot(ctx context.Context) (*models.ControlResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var match *models.Match
	if c.matchID != nil {
		var err error
		match, err = c.matches.Get(ctx, *c.matchID)
		if err != nil {
			// The control cycle survives a persistence hiccup; the snapshot
			// just omits match data.
			c.logger.Error("fetching match for snapshot", slog.Any("error", err))
			match = nil
		}
	}
	return c.snapshotLocked(match), nil
}

// snapshotLocked assembles the response and reconciles the timer view: until
// the derived game state has started, the operator-set view wins; afterwards
// the derived timer overwrites it. Caller holds c.mu.
func (c *Controller) snapshotLocked(match *models.Match) *models.ControlResponse {
	if match != nil {
		state := game.Fold(match.Events, c.durations)
		if state.Started() {
			derived := state.Timer(c.clk.Now().UnixMilli())
			c.timerView = &derived
		}
	}

	robots := make([]models.RobotStatus, 0, len(c.conns))
	for _, conn := range c.conns {
		robots = append(robots, conn.Status())
	}
	sort.Slice(robots, func(i, j int) bool { return robots[i].TeamID < robots[j].TeamID })

	response := &models.ControlResponse{
		Control: models.ControlState{
			MatchID:   c.matchID,
			TimerView: c.timerView,
			Robots:    robots,
		},
		Match:     match,
		LogEvents: c.logQueue,
	}
	c.logQueue = nil
	return response
}

// Broadcast pushes one snapshot to the given clients, or to all attached
// clients when none are named.
func (c *Controller) Broadcast(ctx context.Context, targets ...*Client) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		c.logger.Error("building broadcast snapshot", slog.Any("error", err))
		return
	}
	c.hub.Send(snapshot, targets...)
}

// Run re-broadcasts the current snapshot on a fixed interval so reconnecting
// clients converge even when no command triggers a push.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	ticker := c.clk.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Broadcast(ctx)
		}
	}
}
