package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// testHost is a minimal in-process mock of the trusted remote host, used to
// exercise the scenarios from the session/client test suite. It records
// every decoded JSON frame it receives and can optionally auto-reply to
// application pings and push a control_request right after hello.
type testHost struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	autoPong        bool
	controlAction   string
	controlArgs     string
	pushPings       bool
	pingInterval    time.Duration
	closeAfterFirst string // frame type that ends this connection once, to simulate a killed transport

	mu        sync.Mutex
	sessions  int
	messages  []map[string]interface{}
	closeUsed bool
}

// consumeCloseAfter reports whether this connection should close itself upon
// seeing frameType, and ensures the one-shot only fires once across every
// connection this host ever serves.
func (h *testHost) consumeCloseAfter(frameType string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closeAfterFirst == "" || h.closeUsed || h.closeAfterFirst != frameType {
		return false
	}
	h.closeUsed = true
	return true
}

func newTestHost(autoPong bool) *testHost {
	h := &testHost{autoPong: autoPong}
	h.server = httptest.NewServer(http.HandlerFunc(h.handle))
	return h
}

// withControlPush arranges for the host to push one control_request, with
// the given action and raw JSON args, immediately after the client's hello.
func (h *testHost) withControlPush(action, argsJSON string) *testHost {
	h.controlAction = action
	h.controlArgs = argsJSON
	return h
}

// withCloseAfter arranges for the host to drop the connection as soon as it
// receives one frame of the given type, simulating a killed transport
// mid-session. It fires only once per testHost; subsequent connections
// behave normally.
func (h *testHost) withCloseAfter(frameType string) *testHost {
	h.closeAfterFirst = frameType
	return h
}

// withPeerPings arranges for the host to itself send periodic application
// "ping" frames to the client once authenticated, independent of whatever
// ping cadence the client runs on its own side.
func (h *testHost) withPeerPings(interval time.Duration) *testHost {
	h.pushPings = true
	h.pingInterval = interval
	return h
}

func (h *testHost) url() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http")
}

func (h *testHost) close() {
	h.server.Close()
}

func (h *testHost) record(v map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v["type"] == "auth" {
		h.sessions++
	}
	h.messages = append(h.messages, v)
}

// snapshot returns a copy of every frame received so far.
func (h *testHost) snapshot() []map[string]interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]map[string]interface{}, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *testHost) sessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions
}

func typesOf(msgs []map[string]interface{}) []string {
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if t, ok := m["type"].(string); ok {
			types = append(types, t)
		}
	}
	return types
}

func countType(msgs []map[string]interface{}, t string) int {
	n := 0
	for _, m := range msgs {
		if m["type"] == t {
			n++
		}
	}
	return n
}

func (h *testHost) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(payload string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, []byte(payload))
	}

	controlSent := false
	done := make(chan struct{})
	defer close(done)

	if h.pushPings {
		go func() {
			ticker := time.NewTicker(h.pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if write(`{"type":"ping"}`) != nil {
						return
					}
				}
			}
		}()
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var v map[string]interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			continue
		}
		h.record(v)

		if t, ok := v["type"].(string); ok && h.consumeCloseAfter(t) {
			return // drop the connection, simulating a killed transport
		}

		switch v["type"] {
		case "auth":
			_ = write(`{"type":"auth_success","role":"host"}`)
		case "ping":
			if h.autoPong {
				_ = write(`{"type":"pong"}`)
			}
		case "hello":
			if h.controlAction != "" && !controlSent {
				controlSent = true
				frame := `{"type":"control_request","id":"c1","action":"` + h.controlAction + `","args":` + h.controlArgs + `}`
				_ = write(frame)
			}
		}
	}
}

func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
