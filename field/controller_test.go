package field

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/field-control/game"
	"github.com/Dosada05/field-control/models"
	"github.com/itbasis/go-clock"
	"github.com/stretchr/testify/require"
)

// fakeMatches is an in-memory MatchIngest running the real normalizer, so
// controller tests exercise the same ingestion path as production.
type fakeMatches struct {
	mu      sync.Mutex
	matches map[int][]models.MatchEvent
}

func newFakeMatches() *fakeMatches {
	return &fakeMatches{matches: make(map[int][]models.MatchEvent)}
}

func (f *fakeMatches) seed(id int, events ...models.MatchEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[id] = game.Normalize(events, nil)
}

func (f *fakeMatches) Get(_ context.Context, id int) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events, ok := f.matches[id]
	if !ok {
		return nil, errors.New("match not found")
	}
	return &models.Match{ID: id, Events: append([]models.MatchEvent(nil), events...)}, nil
}

func (f *fakeMatches) AppendEvents(_ context.Context, id int, events []models.MatchEvent) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	committed, ok := f.matches[id]
	if !ok {
		return nil, errors.New("match not found")
	}
	normalized := game.Normalize(append(append([]models.MatchEvent(nil), committed...), events...), nil)
	f.matches[id] = normalized
	return &models.Match{ID: id, Events: append([]models.MatchEvent(nil), normalized...)}, nil
}

type fakeTeams struct{}

func (fakeTeams) Get(_ context.Context, id int) (*models.Team, error) {
	return &models.Team{
		ID:             id,
		Number:         id,
		Name:           fmt.Sprintf("team-%d", id),
		Hostname:       fmt.Sprintf("10.0.0.%d", id),
		CallPort:       6000,
		LogPort:        6001,
		UpdatePort:     6002,
		MulticastGroup: "224.1.1.1",
	}, nil
}

type fakeClient struct {
	mu       sync.Mutex
	requests []string
	notifies []string
	failWith error
	stall    bool
	closed   bool
}

func (c *fakeClient) Request(ctx context.Context, method string, _ ...any) (any, error) {
	c.mu.Lock()
	stall, fail := c.stall, c.failWith
	c.mu.Unlock()
	if stall {
		// A robot whose session is up but which never answers.
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail != nil {
		return nil, fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, method)
	return nil, nil
}

func (c *fakeClient) setStall(stall bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stall = stall
}

func (c *fakeClient) Notify(method string, _ ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifies = append(c.notifies, method)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.requests...)
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	mu      sync.Mutex
	clients map[string]*fakeClient
	failFor map[string]error
	dials   int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{clients: make(map[string]*fakeClient), failFor: make(map[string]error)}
}

func (d *fakeDialer) Dial(conf RobotConfig, _ func([]PeripheralUpdate), _ func(models.LogEvent)) (RobotClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failFor[conf.Host]; err != nil {
		return nil, err
	}
	d.dials++
	client := &fakeClient{}
	d.clients[conf.Host] = client
	return client, nil
}

func (d *fakeDialer) client(team int) *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[fmt.Sprintf("10.0.0.%d", team)]
}

type fixture struct {
	controller *Controller
	matches    *fakeMatches
	dialer     *fakeDialer
	clk        *clock.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	matches := newFakeMatches()
	dialer := newFakeDialer()
	clk := clock.NewMock()
	controller := NewController(matches, fakeTeams{}, dialer, NewHub(),
		game.DefaultDurations, 50*time.Millisecond, clk, slog.Default())
	return &fixture{controller: controller, matches: matches, dialer: dialer, clk: clk}
}

func join(team int, alliance models.Alliance) models.MatchEvent {
	return models.MatchEvent{Type: models.EventJoin, Team: &team, Alliance: alliance}
}

func matchIDRequest(id int) models.ControlRequest {
	return models.ControlRequest{MatchID: models.OptionalInt{Set: true, Value: &id}}
}

func TestHandleConnectsRoster(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue), join(2, models.AllianceGold))

	response, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)

	require.NotNil(t, response.Match)
	require.Equal(t, 1, response.Match.ID)
	require.Len(t, response.Control.Robots, 2)
	require.Equal(t, []string{"idle"}, f.dialer.client(1).calls())
	require.Equal(t, []string{"idle"}, f.dialer.client(2).calls())
}

func TestHandleDispatchesPhaseCommands(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue))
	_, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)

	team, value := 1, 5000.0
	_, err = f.controller.Handle(context.Background(), models.ControlRequest{
		Events: []models.MatchEvent{{Type: models.EventAuto, Team: &team, Value: &value}},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"idle", "start_auto"}, f.dialer.client(1).calls())
}

func TestActivationsRestrictDispatch(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue), join(2, models.AllianceGold))
	request := matchIDRequest(1)
	request.Activations = []int{2}

	_, err := f.controller.Handle(context.Background(), request)
	require.NoError(t, err)

	// Both connections exist, but only team 2 was commanded.
	require.Empty(t, f.dialer.client(1).calls())
	require.Equal(t, []string{"idle"}, f.dialer.client(2).calls())
}

func TestDeadlineSynthesizesIdle(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue))
	_, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)

	team, value := 1, 5000.0
	_, err = f.controller.Handle(context.Background(), models.ControlRequest{
		Events: []models.MatchEvent{{Type: models.EventAuto, Team: &team, Value: &value,
			Timestamp: f.clk.Now().UnixMilli()}},
	})
	require.NoError(t, err)

	f.clk.Add(5 * time.Second)

	// The fired deadline re-enters Handle on its own goroutine and appends a
	// synthetic idle event, alliance back-filled by the normalizer.
	require.Eventually(t, func() bool {
		match, err := f.matches.Get(context.Background(), 1)
		require.NoError(t, err)
		last := match.Events[len(match.Events)-1]
		return last.Type == models.EventIdle && last.Alliance == models.AllianceBlue
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		calls := f.dialer.client(1).calls()
		return len(calls) == 3 && calls[2] == "idle"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClearingMatchTearsDownConnections(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue))
	_, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)
	client := f.dialer.client(1)

	// Put the robot into a timed phase so a deadline is pending.
	team, value := 1, 5000.0
	_, err = f.controller.Handle(context.Background(), models.ControlRequest{
		Events: []models.MatchEvent{{Type: models.EventAuto, Team: &team, Value: &value,
			Timestamp: f.clk.Now().UnixMilli()}},
	})
	require.NoError(t, err)

	_, err = f.controller.Handle(context.Background(), models.ControlRequest{
		MatchID: models.OptionalInt{Set: true, Value: nil},
	})
	require.NoError(t, err)

	require.True(t, client.isClosed())

	// The deadline was cancelled before teardown: advancing the clock must
	// not synthesize an idle event against the released connection.
	f.clk.Add(time.Minute)
	match, err := f.matches.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, match.Events, 2)
}

func TestForceReconnectRedials(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue))
	_, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)
	first := f.dialer.client(1)

	request := models.ControlRequest{ForceReconnect: true}
	_, err = f.controller.Handle(context.Background(), request)
	require.NoError(t, err)

	require.True(t, first.isClosed())
	require.Equal(t, 2, f.dialer.dials)
}

func TestEstopIsTerminalForConnection(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue))
	_, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)

	team := 1
	_, err = f.controller.Handle(context.Background(), models.ControlRequest{
		Events: []models.MatchEvent{{Type: models.EventEstop, Team: &team, Timestamp: 10}},
	})
	require.NoError(t, err)

	client := f.dialer.client(1)
	require.Equal(t, []string{"estop"}, client.notifies)

	// Later commands leave the e-stopped robot alone.
	value := 5000.0
	_, err = f.controller.Handle(context.Background(), models.ControlRequest{
		Events: []models.MatchEvent{{Type: models.EventAuto, Team: &team, Value: &value, Timestamp: 20}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"idle"}, client.calls())
	require.Equal(t, []string{"estop"}, client.notifies)
}

func TestRosterShrinkTearsDownConnection(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue), join(2, models.AllianceGold))
	_, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)
	client := f.dialer.client(2)

	// An administrative edit dropped team 2 from the log.
	f.matches.seed(1, join(1, models.AllianceBlue))
	_, err = f.controller.Handle(context.Background(), models.ControlRequest{})
	require.NoError(t, err)

	require.True(t, client.isClosed())
	require.False(t, f.dialer.client(1).isClosed())
}

func TestDispatchFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue), join(2, models.AllianceGold))
	_, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)
	f.dialer.client(1).failWith = errors.New("robot unreachable")

	team1, team2, value := 1, 2, 5000.0
	_, err = f.controller.Handle(context.Background(), models.ControlRequest{
		Events: []models.MatchEvent{
			{Type: models.EventAuto, Team: &team1, Value: &value},
			{Type: models.EventAuto, Team: &team2, Value: &value},
		},
	})
	require.NoError(t, err)
	require.Contains(t, f.dialer.client(2).calls(), "start_auto")
}

func TestDialFailureSkipsTeam(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue), join(2, models.AllianceGold))
	f.dialer.failFor["10.0.0.1"] = errors.New("no route to host")

	response, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)

	require.Len(t, response.Control.Robots, 1)
	require.Equal(t, 2, response.Control.Robots[0].TeamID)
}

func TestEventsWithoutLiveMatchAreDropped(t *testing.T) {
	f := newFixture(t)
	team := 1
	response, err := f.controller.Handle(context.Background(), models.ControlRequest{
		Events: []models.MatchEvent{{Type: models.EventIdle, Team: &team}},
	})
	require.NoError(t, err)
	require.Nil(t, response.Match)
}

func TestHungRobotDoesNotStallControl(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue), join(2, models.AllianceGold))
	_, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)
	f.dialer.client(1).setStall(true)

	team1, team2, value := 1, 2, 5000.0
	start := time.Now()
	_, err = f.controller.Handle(context.Background(), models.ControlRequest{
		Events: []models.MatchEvent{
			{Type: models.EventAuto, Team: &team1, Value: &value},
			{Type: models.EventAuto, Team: &team2, Value: &value},
		},
	})
	require.NoError(t, err)

	// The hung robot is abandoned at the dispatch timeout; neither the
	// operator response nor the healthy robot waits on it.
	require.Less(t, time.Since(start), time.Second)
	require.Contains(t, f.dialer.client(2).calls(), "start_auto")

	done := make(chan struct{})
	go func() {
		_, _ = f.controller.Snapshot(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("snapshot stalled behind a hung robot")
	}
}

func TestExpiredPhaseIdlesOnSelect(t *testing.T) {
	f := newFixture(t)
	team, value := 1, 5000.0
	f.matches.seed(1, join(1, models.AllianceBlue),
		models.MatchEvent{Type: models.EventAuto, Team: &team, Alliance: models.AllianceBlue,
			Value: &value, Timestamp: 0})

	// Select the match well after its auto window ran out.
	f.clk.Add(10 * time.Second)
	_, err := f.controller.Handle(context.Background(), matchIDRequest(1))
	require.NoError(t, err)

	// The expired phase is never started; the immediate deadline idles the
	// robot through the normal pathway and records it in the log.
	require.Empty(t, f.dialer.client(1).calls())

	f.clk.Add(time.Millisecond)
	require.Eventually(t, func() bool {
		match, err := f.matches.Get(context.Background(), 1)
		require.NoError(t, err)
		last := match.Events[len(match.Events)-1]
		return last.Type == models.EventIdle && last.Alliance == models.AllianceBlue
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		calls := f.dialer.client(1).calls()
		return len(calls) == 1 && calls[0] == "idle"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSnapshotTimerReconciliation(t *testing.T) {
	f := newFixture(t)
	f.matches.seed(1, join(1, models.AllianceBlue))

	operator := &models.TimerView{Phase: models.PhaseAuto, TimeRemaining: 30_000, TotalTime: 30_000, Stage: models.StageInit}
	request := matchIDRequest(1)
	request.TimerView = models.OptionalTimerView{Set: true, Value: operator}
	_, err := f.controller.Handle(context.Background(), request)
	require.NoError(t, err)

	// Not started: the operator view wins.
	snapshot, err := f.controller.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, operator, snapshot.Control.TimerView)

	team, value := 1, 5000.0
	_, err = f.controller.Handle(context.Background(), models.ControlRequest{
		Events: []models.MatchEvent{{Type: models.EventAuto, Team: &team, Value: &value,
			Timestamp: f.clk.Now().UnixMilli()}},
	})
	require.NoError(t, err)
	f.clk.Add(time.Second)

	// Running: the derived timer overwrites the operator view.
	snapshot, err = f.controller.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.StageRunning, snapshot.Control.TimerView.Stage)
	require.Equal(t, int64(4000), snapshot.Control.TimerView.TimeRemaining)
	require.Equal(t, int64(5000), snapshot.Control.TimerView.TotalTime)
}
