// Package controlhandlers provides example control_request handlers that
// application code can register with a bridge.Client via OnControl.
package controlhandlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariabridge/bridge-client/internal/bridge"
)

// StatsSource is satisfied by *bridge.Client; it is a narrow interface so
// the status handler doesn't need to import the concrete client type.
type StatsSource interface {
	Stats() bridge.Stats
}

// Registry maps an action name to the handler that answers it, and is
// itself a bridge.ControlFunc so a whole Registry can be installed with a
// single OnControl call.
type Registry struct {
	handlers map[string]bridge.ControlFunc
}

// NewRegistry builds a Registry with the standard ping/echo/status actions.
// source is used by "status" to report buffer occupancy; it may be nil, in
// which case "status" reports zero buffered events.
func NewRegistry(source StatsSource, startedAt time.Time) *Registry {
	r := &Registry{handlers: make(map[string]bridge.ControlFunc)}
	r.handlers["ping"] = handlePing
	r.handlers["echo"] = handleEcho
	r.handlers["status"] = handleStatus(source, startedAt)
	return r
}

// Register adds or replaces the handler for action.
func (r *Registry) Register(action string, h bridge.ControlFunc) {
	r.handlers[action] = h
}

// Dispatch implements bridge.ControlFunc, routing to the handler registered
// for req.Action.
func (r *Registry) Dispatch(req bridge.ControlRequest) (interface{}, error) {
	h, ok := r.handlers[req.Action]
	if !ok {
		return nil, fmt.Errorf("controlhandlers: unknown action %q", req.Action)
	}
	return h(req)
}

func handlePing(bridge.ControlRequest) (interface{}, error) {
	return map[string]bool{"pong": true}, nil
}

func handleEcho(req bridge.ControlRequest) (interface{}, error) {
	var args interface{}
	if len(req.Args) > 0 {
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, fmt.Errorf("controlhandlers: decoding echo args: %w", err)
		}
	}
	return map[string]interface{}{"echo": args}, nil
}

func handleStatus(source StatsSource, startedAt time.Time) bridge.ControlFunc {
	return func(bridge.ControlRequest) (interface{}, error) {
		buffered := 0
		if source != nil {
			buffered = source.Stats().Buffered
		}
		return map[string]interface{}{
			"uptime_seconds": int(time.Since(startedAt).Seconds()),
			"buffered":       buffered,
		}, nil
	}
}
