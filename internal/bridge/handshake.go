package bridge

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// errAuthTimeout is returned when auth_success does not arrive within the
// handshake deadline (the heartbeat timeout, reused per spec.md §4.3).
var errAuthTimeout = errors.New("bridge: auth_success not received before deadline")

// runHandshake sends the auth frame and blocks until auth_success arrives or
// the deadline elapses, transparently servicing ping and control_request
// frames in the meantime. The conn's read deadline is mutated repeatedly;
// callers must not rely on it afterward without resetting it.
func runHandshake(conn *websocket.Conn, cfg Config, slot *controlSlot, limiter *controlLimiter) error {
	if err := writeJSON(conn, newAuthFrame(cfg.Secret)); err != nil {
		return err
	}

	deadline := time.Now().Add(cfg.heartbeatTimeout())

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errAuthTimeout
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return err
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				continue
			}
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				return errAuthTimeout
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			continue
		}

		switch frame.Type {
		case "auth_success":
			return nil
		case "ping":
			if err := writeJSON(conn, newPongFrame()); err != nil {
				return err
			}
		case "control_request":
			if result := dispatchControl(slot, limiter, data); result != nil {
				if err := writeJSON(conn, result); err != nil {
					return err
				}
			}
		default:
			// Unknown type: ignored.
		}
	}
}

// writeJSON marshals v and writes it as a single text frame.
func writeJSON(conn *websocket.Conn, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
