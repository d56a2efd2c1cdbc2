package controlhandlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariabridge/bridge-client/internal/bridge"
)

type fakeStatsSource struct{ buffered int }

func (f fakeStatsSource) Stats() bridge.Stats { return bridge.Stats{Buffered: f.buffered} }

func TestRegistryPing(t *testing.T) {
	r := NewRegistry(nil, time.Now())
	result, err := r.Dispatch(bridge.ControlRequest{Action: "ping"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"pong": true}, result)
}

func TestRegistryEcho(t *testing.T) {
	r := NewRegistry(nil, time.Now())
	result, err := r.Dispatch(bridge.ControlRequest{
		Action: "echo",
		Args:   json.RawMessage(`{"value":1}`),
	})
	require.NoError(t, err)
	echoed, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.NotNil(t, echoed["echo"])
}

func TestRegistryEchoWithNoArgs(t *testing.T) {
	r := NewRegistry(nil, time.Now())
	result, err := r.Dispatch(bridge.ControlRequest{Action: "echo"})
	require.NoError(t, err)
	echoed, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Nil(t, echoed["echo"])
}

func TestRegistryStatusReportsBufferedCount(t *testing.T) {
	startedAt := time.Now().Add(-5 * time.Second)
	r := NewRegistry(fakeStatsSource{buffered: 7}, startedAt)

	result, err := r.Dispatch(bridge.ControlRequest{Action: "status"})
	require.NoError(t, err)
	status, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 7, status["buffered"])
	assert.GreaterOrEqual(t, status["uptime_seconds"], 0)
}

func TestRegistryStatusWithNilSourceReportsZero(t *testing.T) {
	r := NewRegistry(nil, time.Now())
	result, err := r.Dispatch(bridge.ControlRequest{Action: "status"})
	require.NoError(t, err)
	status := result.(map[string]interface{})
	assert.Equal(t, 0, status["buffered"])
}

func TestRegistryUnknownActionErrors(t *testing.T) {
	r := NewRegistry(nil, time.Now())
	_, err := r.Dispatch(bridge.ControlRequest{Action: "nope"})
	assert.Error(t, err)
}

func TestRegistryRegisterOverridesAction(t *testing.T) {
	r := NewRegistry(nil, time.Now())
	r.Register("ping", func(bridge.ControlRequest) (interface{}, error) {
		return "overridden", nil
	})

	result, err := r.Dispatch(bridge.ControlRequest{Action: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "overridden", result)
}
