package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// errLivenessTimeout is returned when no inbound pong arrives within the
// liveness deadline.
var errLivenessTimeout = errors.New("bridge: liveness deadline expired without a pong")

// dialTimeout bounds the initial WebSocket handshake (TCP connect + HTTP
// upgrade), independent of the application-level auth deadline that follows.
const dialTimeout = 15 * time.Second

// writerQueueDepth bounds how many outbound frames may be pending for the
// writer goroutine before producers block; generous since the event buffer
// is already the real backpressure point.
const writerQueueDepth = 64

// runSession performs one full connection attempt: dial, handshake, HELLO,
// buffer flush, then the steady-state read/write/heartbeat/liveness loop.
// It returns a non-nil error for every exit, including a clean remote
// close, per spec.md's Supervisor contract (every exit warrants
// reconnection).
func runSession(ctx context.Context, url string, cfg Config, buf *eventBuffer, slot *controlSlot, limiter *controlLimiter, platformTag string) error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("bridge: dial: %w", err)
	}
	defer conn.Close()

	// Close the transport as soon as ctx is cancelled so any in-flight
	// read or write unblocks promptly instead of waiting out its deadline.
	cancelWatch := make(chan struct{})
	defer close(cancelWatch)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-cancelWatch:
		}
	}()

	if err := runHandshake(conn, cfg, slot, limiter); err != nil {
		return fmt.Errorf("bridge: handshake: %w", err)
	}
	// runHandshake leaves a read deadline on conn; clear it so steady-state
	// reads are bounded only by the liveness timer.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("bridge: clear read deadline: %w", err)
	}
	slog.Info("bridge session authenticated")

	if err := writeJSON(conn, newHelloFrame(cfg.Capabilities, platformTag, cfg.ProjectID)); err != nil {
		return fmt.Errorf("bridge: hello: %w", err)
	}

	writeCh := make(chan interface{}, writerQueueDepth)
	defer close(writeCh)
	writerErrCh := make(chan error, 1)
	go runWriter(conn, writeCh, writerErrCh)

	// Flush whatever accumulated while disconnected before anything else,
	// preserving FIFO order; the drop-notice (if any) follows every
	// flushed event.
	flushBuffer(buf, writeCh)

	notifyCh := make(chan struct{}, 1)
	buf.setNotify(notifyCh)
	defer buf.setNotify(nil)

	readCh := make(chan wireMessage, 1)
	readErrCh := make(chan error, 1)
	go runReader(conn, readCh, readErrCh)

	hbTicker := time.NewTicker(cfg.heartbeatInterval())
	defer hbTicker.Stop()

	livenessTimer := time.NewTimer(cfg.heartbeatTimeout())
	defer livenessTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-hbTicker.C:
			select {
			case writeCh <- newPingFrame():
			default:
				slog.Warn("bridge writer backlogged, dropping scheduled ping")
			}

		case <-notifyCh:
			flushBuffer(buf, writeCh)

		case <-livenessTimer.C:
			return errLivenessTimeout

		case err := <-writerErrCh:
			return fmt.Errorf("bridge: write: %w", err)

		case msg := <-readCh:
			if err := handleInbound(msg, writeCh, slot, limiter, livenessTimer, cfg); err != nil {
				return err
			}

		case err := <-readErrCh:
			return fmt.Errorf("bridge: read: %w", err)
		}
	}
}

// flushBuffer drains the buffer and forwards events, followed by a
// drop-notice info event if any were head-dropped, onto the writer's
// channel in order.
func flushBuffer(buf *eventBuffer, writeCh chan<- interface{}) {
	events, dropped := buf.drain()
	for _, ev := range events {
		writeCh <- ev
	}
	if dropped > 0 {
		writeCh <- infoEvent{
			Type:    "info",
			Level:   "info",
			Message: fmt.Sprintf("bridge buffered drop count=%d", dropped),
		}
	}
}

// handleInbound processes one decoded inbound frame, updating the liveness
// timer on pong and replying to ping/control_request via the writer
// channel. It returns a non-nil error only when the session must end.
func handleInbound(msg wireMessage, writeCh chan<- interface{}, slot *controlSlot, limiter *controlLimiter, livenessTimer *time.Timer, cfg Config) error {
	if msg.closed {
		return errors.New("bridge: remote closed the connection")
	}
	if msg.messageType != websocket.TextMessage {
		return nil // binary frames are ignored
	}

	var frame inboundFrame
	if err := json.Unmarshal(msg.data, &frame); err != nil || frame.Type == "" {
		return nil // malformed frame: ignored
	}

	switch frame.Type {
	case "ping":
		select {
		case writeCh <- newPongFrame():
		default:
		}
	case "pong":
		if !livenessTimer.Stop() {
			select {
			case <-livenessTimer.C:
			default:
			}
		}
		livenessTimer.Reset(cfg.heartbeatTimeout())
	case "control_request":
		if result := dispatchControl(slot, limiter, msg.data); result != nil {
			select {
			case writeCh <- result:
			default:
				slog.Warn("bridge writer backlogged, dropping control_result")
			}
		}
	default:
		// Unknown type: ignored.
	}
	return nil
}

// runWriter is the single writer goroutine for a session: it is the only
// goroutine that calls conn.WriteMessage, preserving frame order across
// pings, pongs, control_results and flushed events.
func runWriter(conn *websocket.Conn, writeCh <-chan interface{}, errCh chan<- error) {
	for v := range writeCh {
		if err := writeJSON(conn, v); err != nil {
			errCh <- err
			return
		}
	}
}

// wireMessage is one frame read off the wire, or a sentinel for remote
// close.
type wireMessage struct {
	messageType int
	data        []byte
	closed      bool
}

// runReader reads frames until an error or close, forwarding each to msgCh.
func runReader(conn *websocket.Conn, msgCh chan<- wireMessage, errCh chan<- error) {
	// No read deadline is set here: liveness is enforced at the
	// application level by the session loop's timer, not transport reads.
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				msgCh <- wireMessage{closed: true}
				return
			}
			errCh <- err
			return
		}
		msgCh <- wireMessage{messageType: mt, data: data}
	}
}
