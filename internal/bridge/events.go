package bridge

import "encoding/json"

// protocolVersion is the HELLO frame's protocol field. Bumping this is a
// breaking wire change and must be coordinated with the host.
const protocolVersion = 2

// authFrame is the C->S auth frame that opens every session.
type authFrame struct {
	Type   string `json:"type"`
	Secret string `json:"secret"`
	Role   string `json:"role"`
}

func newAuthFrame(secret string) authFrame {
	return authFrame{Type: "auth", Secret: secret, Role: "bridge"}
}

// helloFrame is the C->S frame sent once per session immediately after
// auth_success, before any buffered event.
type helloFrame struct {
	Type         string   `json:"type"`
	Capabilities []string `json:"capabilities"`
	Platform     string   `json:"platform"`
	ProjectID    *string  `json:"projectId"`
	Protocol     int      `json:"protocol"`
}

func newHelloFrame(capabilities []string, platform string, projectID string) helloFrame {
	var pid *string
	if projectID != "" {
		pid = &projectID
	}
	return helloFrame{
		Type:         "hello",
		Capabilities: capabilities,
		Platform:     platform,
		ProjectID:    pid,
		Protocol:     protocolVersion,
	}
}

// pingFrame and pongFrame carry no payload beyond the discriminator.
type pingFrame struct {
	Type string `json:"type"`
}

func newPingFrame() pingFrame { return pingFrame{Type: "ping"} }

type pongFrame struct {
	Type string `json:"type"`
}

func newPongFrame() pongFrame { return pongFrame{Type: "pong"} }

// consoleEvent is a C->S console-log telemetry event.
type consoleEvent struct {
	Type      string `json:"type"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// errorEvent is a C->S error-report telemetry event.
type errorEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// infoEvent is the synthetic drop-notice emitted once per reconnect when
// prior overflow occurred.
type infoEvent struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// inboundFrame is the minimal shape needed to discriminate any frame read
// off the wire. Unknown fields (e.g. control_request's id/action/args) are
// captured via the raw payload and re-decoded by the component that cares.
type inboundFrame struct {
	Type string `json:"type"`
}

// controlRequestFrame is the S->C invocation of an application-registered
// handler.
type controlRequestFrame struct {
	Type   string          `json:"type"`
	ID     json.RawMessage `json:"id"`
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args"`
}

// controlResultError is the error shape nested in a failed control_result.
type controlResultError struct {
	Message string `json:"message"`
}

// controlResultFrame is the C->S reply to a control_request, correlated by
// the echoed id.
type controlResultFrame struct {
	Type   string               `json:"type"`
	ID     json.RawMessage      `json:"id"`
	OK     bool                 `json:"ok"`
	Result interface{}          `json:"result,omitempty"`
	Error  *controlResultError  `json:"error,omitempty"`
}

func newControlResult(id json.RawMessage, result interface{}, handlerErr error) controlResultFrame {
	if id == nil {
		id = json.RawMessage("null")
	}
	if handlerErr != nil {
		return controlResultFrame{
			Type:  "control_result",
			ID:    id,
			OK:    false,
			Error: &controlResultError{Message: handlerErr.Error()},
		}
	}
	return controlResultFrame{
		Type:   "control_result",
		ID:     id,
		OK:     true,
		Result: result,
	}
}
