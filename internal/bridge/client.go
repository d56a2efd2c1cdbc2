// Package bridge implements the core of a long-lived, authenticated,
// reconnecting WebSocket session that ships structured telemetry events
// (console logs, error reports) to a trusted host, answers control
// requests from that host, and survives transient disconnection without
// losing events up to a bounded buffer.
package bridge

import (
	"context"
	"time"

	"github.com/ariabridge/bridge-client/internal/platform"
)

// Client is the externally visible bridge object: configuration, the
// event buffer, and the control-handler registration. A Client is cheaply
// cloneable/shareable — Clone returns a value that shares the same buffer,
// drop counter and handler slot, so a producer clone and a supervisor
// clone observe the same state.
type Client struct {
	cfg  Config
	buf  *eventBuffer
	slot *controlSlot
}

// New constructs a Client with an empty buffer and no control handler.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:  cfg,
		buf:  newEventBuffer(cfg.BufferLimit),
		slot: &controlSlot{},
	}
}

// Clone returns a Client sharing this one's buffer and handler slot.
func (c *Client) Clone() *Client {
	return &Client{cfg: c.cfg, buf: c.buf, slot: c.slot}
}

// OnControl registers or replaces the control_request handler. Set-last-wins.
func (c *Client) OnControl(h ControlFunc) {
	c.slot.set(h)
}

// SendConsole builds a console event stamped with the current wall-clock
// time and enqueues it.
func (c *Client) SendConsole(level, message string) {
	c.buf.enqueue(consoleEvent{
		Type:      "console",
		Level:     level,
		Message:   message,
		Timestamp: nowMS(),
	})
}

// SendError builds an error event stamped with the current wall-clock time
// and enqueues it.
func (c *Client) SendError(message string) {
	c.buf.enqueue(errorEvent{
		Type:      "error",
		Message:   message,
		Timestamp: nowMS(),
	})
}

// Stats is a read-only snapshot of buffer occupancy, for observability
// (e.g. the "status" example control handler).
type Stats struct {
	Buffered int
}

// Stats returns a point-in-time snapshot of buffer state.
func (c *Client) Stats() Stats {
	return Stats{Buffered: c.buf.len()}
}

// RunWithReconnect runs the Reconnect Supervisor until ctx is cancelled.
// It never returns an error; the only user-observable failure mode is
// continuing disconnection, visible externally as the absence of events on
// the remote side.
func (c *Client) RunWithReconnect(ctx context.Context) {
	platformTag := c.cfg.Platform
	if platformTag == "" {
		platformTag = platform.Tag()
	}
	runSupervisor(ctx, c.cfg.URL, c.cfg, c.buf, c.slot, newControlLimiter(), platformTag)
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}
