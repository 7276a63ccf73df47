// Package rpc implements the robot transport: MessagePack-RPC over TCP for
// requests and notifications, a multicast UDP listener for the robot's
// peripheral update stream, and a UDP listener for its remote log records.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Dosada05/field-control/field"
	"github.com/Dosada05/field-control/models"
	"github.com/vmihailenco/msgpack/v5"
)

// MessagePack-RPC message types.
const (
	msgRequest      = 0
	msgResponse     = 1
	msgNotification = 2
)

// Dialer opens robot sessions from stored team network configuration. It
// satisfies field.RobotDialer.
type Dialer struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewDialer(timeout time.Duration, logger *slog.Logger) *Dialer {
	return &Dialer{Timeout: timeout, Logger: logger}
}

func (d *Dialer) Dial(conf field.RobotConfig,
	onUpdate func([]field.PeripheralUpdate), onLog func(models.LogEvent)) (field.RobotClient, error) {

	call, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", conf.Host, conf.CallPort), d.Timeout)
	if err != nil {
		return nil, fmt.Errorf("dial robot call port: %w", err)
	}

	group := net.ParseIP(conf.MulticastGroup)
	if group == nil {
		call.Close()
		return nil, fmt.Errorf("invalid multicast group %q", conf.MulticastGroup)
	}
	updates, err := net.ListenMulticastUDP("udp", nil, &net.UDPAddr{IP: group, Port: conf.UpdatePort})
	if err != nil {
		call.Close()
		return nil, fmt.Errorf("join update multicast group: %w", err)
	}

	logs, err := net.ListenUDP("udp", &net.UDPAddr{Port: conf.LogPort})
	if err != nil {
		call.Close()
		updates.Close()
		return nil, fmt.Errorf("listen on log port: %w", err)
	}

	c := &client{
		call:    call,
		updates: updates,
		logs:    logs,
		logger:  d.Logger.With(slog.String("robot", conf.Host)),
		pending: make(map[uint32]chan response),
	}
	go c.readResponses()
	go c.readUpdates(onUpdate)
	go c.readLogs(onLog)
	return c, nil
}

type response struct {
	result any
	err    error
}

type client struct {
	call    net.Conn
	updates *net.UDPConn
	logs    *net.UDPConn
	logger  *slog.Logger

	writeMu sync.Mutex
	mu      sync.Mutex
	nextID  uint32
	pending map[uint32]chan response
	closed  bool
}

// Request performs one MessagePack-RPC call and waits for the matching
// response or context expiry.
func (c *client) Request(ctx context.Context, method string, args ...any) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, net.ErrClosed
	}
	c.nextID++
	id := c.nextID
	done := make(chan response, 1)
	c.pending[id] = done
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if args == nil {
		args = []any{}
	}
	if err := c.write([]any{msgRequest, id, method, args}); err != nil {
		return nil, fmt.Errorf("send request %q: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-done:
		return resp.result, resp.err
	}
}

// Notify sends a fire-and-forget notification.
func (c *client) Notify(method string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	if err := c.write([]any{msgNotification, method, args}); err != nil {
		return fmt.Errorf("send notification %q: %w", method, err)
	}
	return nil
}

func (c *client) write(message []any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return msgpack.NewEncoder(c.call).Encode(message)
}

func (c *client) Close() error {
	c.mu.Lock()
	c.closed = true
	for id, done := range c.pending {
		done <- response{err: net.ErrClosed}
		delete(c.pending, id)
	}
	c.mu.Unlock()

	err := c.call.Close()
	c.updates.Close()
	c.logs.Close()
	return err
}

// readResponses decodes [type, id, error, result] frames off the call socket
// and completes the matching pending request.
func (c *client) readResponses() {
	decoder := msgpack.NewDecoder(c.call)
	for {
		var frame []any
		if err := decoder.Decode(&frame); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Error("robot call socket read failed", slog.Any("error", err))
			}
			return
		}
		if len(frame) != 4 {
			c.logger.Warn("dropping malformed rpc frame", slog.Int("len", len(frame)))
			continue
		}
		kind, _ := toInt(frame[0])
		id, ok := toInt(frame[1])
		if kind != msgResponse || !ok {
			continue
		}

		resp := response{result: frame[3]}
		if frame[2] != nil {
			resp.err = fmt.Errorf("robot error: %v", frame[2])
		}
		c.mu.Lock()
		if done, pending := c.pending[uint32(id)]; pending {
			// A duplicate id racing a cancelled Request must not wedge the
			// read loop: the waiter's buffer only ever takes one delivery.
			select {
			case done <- resp:
			default:
			}
		}
		c.mu.Unlock()
	}
}

// readUpdates decodes peripheral update datagrams: a msgpack map from
// peripheral uid to parameter map.
func (c *client) readUpdates(onUpdate func([]field.PeripheralUpdate)) {
	buf := make([]byte, 1<<16)
	for {
		n, _, err := c.updates.ReadFromUDP(buf)
		if err != nil {
			return
		}
		var raw map[string]map[string]any
		if err := msgpack.Unmarshal(buf[:n], &raw); err != nil {
			c.logger.Warn("dropping malformed update datagram", slog.Any("error", err))
			continue
		}
		updates := make([]field.PeripheralUpdate, 0, len(raw))
		for uid, params := range raw {
			updates = append(updates, field.PeripheralUpdate{UID: uid, Params: params})
		}
		onUpdate(updates)
	}
}

// readLogs decodes JSON log records off the log socket. The caller stamps the
// owning team onto each event.
func (c *client) readLogs(onLog func(models.LogEvent)) {
	buf := make([]byte, 1<<16)
	for {
		n, _, err := c.logs.ReadFromUDP(buf)
		if err != nil {
			return
		}
		var event models.LogEvent
		if err := json.Unmarshal(buf[:n], &event); err != nil {
			c.logger.Warn("dropping malformed log record", slog.Any("error", err))
			continue
		}
		onLog(event)
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}
