package bridge

import (
	"encoding/json"
	"sync"
	"time"
)

// ControlRequest is the full inbound control_request object handed to a
// ControlFunc.
type ControlRequest struct {
	ID     json.RawMessage
	Action string
	Args   json.RawMessage
}

// ControlFunc handles a control_request and returns either a result value
// or an error whose message is surfaced to the host.
type ControlFunc func(req ControlRequest) (interface{}, error)

// controlSlot holds a single, set-last-wins, optional ControlFunc, safely
// readable while the session loop is running. Guarded independently of the
// event buffer's mutex so a handler is never invoked while the buffer lock
// is held.
type controlSlot struct {
	mu      sync.RWMutex
	handler ControlFunc
}

func (s *controlSlot) set(h ControlFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *controlSlot) get() ControlFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

// controlRateLimitBurst and controlRateLimitWindow bound each action to 20
// requests per 10 seconds, guarding handler invocation against a flood of
// requests from a misbehaving or compromised host.
const (
	controlRateLimitBurst  = 20
	controlRateLimitWindow = 10 * time.Second
)

type controlBucket struct {
	tokens     int
	lastRefill time.Time
}

// controlLimiter is a per-action token bucket gating dispatch.
type controlLimiter struct {
	mu      sync.Mutex
	buckets map[string]*controlBucket
}

func newControlLimiter() *controlLimiter {
	return &controlLimiter{buckets: make(map[string]*controlBucket)}
}

// allow reports whether a request for action may proceed, refilling and
// consuming one token as a side effect.
func (l *controlLimiter) allow(action string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[action]
	if !ok {
		b = &controlBucket{tokens: controlRateLimitBurst, lastRefill: time.Now()}
		l.buckets[action] = b
	}

	now := time.Now()
	if elapsed := now.Sub(b.lastRefill); elapsed >= controlRateLimitWindow {
		windows := int(elapsed / controlRateLimitWindow)
		b.tokens += windows * controlRateLimitBurst
		if b.tokens > controlRateLimitBurst {
			b.tokens = controlRateLimitBurst
		}
		b.lastRefill = now
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// dispatchControl marshals a control_request frame, invokes the registered
// handler (if any), and returns the control_result frame to write, or nil
// if the request should be silently dropped (malformed frame, no handler
// registered, or the request exceeds its rate limit). A handler's own error
// is not a dispatch failure: it is carried in the returned frame's Error
// field for the host to see. dispatchControl therefore never fails outright;
// it has no error return.
func dispatchControl(slot *controlSlot, limiter *controlLimiter, raw json.RawMessage) *controlResultFrame {
	var req controlRequestFrame
	if err := json.Unmarshal(raw, &req); err != nil {
		// Malformed frame: ignored per spec, not an error.
		return nil
	}

	handler := slot.get()
	if handler == nil {
		return nil
	}

	if !limiter.allow(req.Action) {
		return nil
	}

	result, err := handler(ControlRequest{ID: req.ID, Action: req.Action, Args: req.Args})
	frame := newControlResult(req.ID, result, err)
	return &frame
}
