package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probekit/probekit/internal/common/apperrors"
	"github.com/probekit/probekit/internal/common/jsonrpc"
	"github.com/probekit/probekit/internal/probekit/config"
	"github.com/probekit/probekit/internal/probekit/registry"
	"github.com/probekit/probekit/internal/probekit/session"
)

func testDispatcher(t *testing.T) (*Dispatcher, *atomic.Int32) {
	t.Helper()
	cfg := &config.EffectiveConfig{
		Features: map[string]bool{
			config.FeatureAPITools:     true,
			config.FeatureBrowserTools: false,
		},
	}

	var invocations atomic.Int32
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Descriptor{
		Name:            "echo",
		Description:     "echoes its arguments",
		Category:        registry.CategoryAPI,
		RequiredFeature: config.FeatureAPITools,
		InputSchema:     json.RawMessage(`{"type":"object","properties":{"msg":{"type":"string"}},"required":["msg"]}`),
		Handler: registry.HandlerFunc(func(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
			invocations.Add(1)
			var p struct {
				Msg string `json:"msg"`
			}
			json.Unmarshal(args, &p)
			return map[string]string{"echo": p.Msg}, nil
		}),
	}))
	require.NoError(t, reg.Register(registry.Descriptor{
		Name:            "browser_navigate",
		Category:        registry.CategoryBrowser,
		RequiredFeature: config.FeatureBrowserTools,
		Handler: registry.HandlerFunc(func(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
			return nil, nil
		}),
	}))
	require.NoError(t, reg.Register(registry.Descriptor{
		Name:            "flaky",
		Category:        registry.CategoryAPI,
		RequiredFeature: config.FeatureAPITools,
		Handler: registry.HandlerFunc(func(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
			return nil, session.ErrRateLimited
		}),
	}))

	return New(cfg, reg), &invocations
}

func request(t *testing.T, id string, method jsonrpc.MethodType, params any) *jsonrpc.Request {
	t.Helper()
	req := &jsonrpc.Request{JSONRPC: jsonrpc.Version, Method: method}
	if id != "" {
		req.ID = jsonrpc.NewID(id)
	}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = raw
	}
	return req
}

func initialize(t *testing.T, d *Dispatcher) {
	t.Helper()
	resp := d.Dispatch(context.Background(), request(t, "init", jsonrpc.MethodInitialize, InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      ClientInfo{Name: "test-client"},
	}))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
}

func TestCallBeforeInitializeRejected(t *testing.T) {
	d, invocations := testDispatcher(t)

	resp := d.Dispatch(context.Background(), request(t, "1", jsonrpc.MethodToolsCall,
		ToolsCallParams{Name: "echo", Arguments: json.RawMessage(`{"msg":"hi"}`)}))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrCodeProtocolSequence, resp.Error.Code)
	assert.Equal(t, "1", resp.ID.String())

	// The rejected call must have no side effects.
	assert.Zero(t, invocations.Load())
	assert.Equal(t, StateUninitialized, d.State())
}

func TestListBeforeInitializeRejected(t *testing.T) {
	d, _ := testDispatcher(t)

	resp := d.Dispatch(context.Background(), request(t, "1", jsonrpc.MethodToolsList, nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrCodeProtocolSequence, resp.Error.Code)
}

func TestInitializeHandshake(t *testing.T) {
	d, _ := testDispatcher(t)

	resp := d.Dispatch(context.Background(), request(t, "init", jsonrpc.MethodInitialize, InitializeParams{
		ProtocolVersion: "1.2.0",
		ClientInfo:      ClientInfo{Name: "probe-cli", Version: "3.1.4"},
	}))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(InitializeResult)
	require.True(t, ok)
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, ServerName, result.ServerInfo.Name)
	assert.Equal(t, StateInitialized, d.State())
}

func TestInitializeTwiceRejected(t *testing.T) {
	d, _ := testDispatcher(t)
	initialize(t, d)

	resp := d.Dispatch(context.Background(), request(t, "2", jsonrpc.MethodInitialize, nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrCodeProtocolSequence, resp.Error.Code)
}

func TestConcurrentInitializeAcceptedOnce(t *testing.T) {
	d, _ := testDispatcher(t)

	const racers = 10
	gate := make(chan struct{})
	responses := make(chan *jsonrpc.Response, racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			<-gate
			responses <- d.Dispatch(context.Background(),
				request(t, fmt.Sprintf("init-%d", i), jsonrpc.MethodInitialize, nil))
		}(i)
	}
	close(gate)

	accepted := 0
	for i := 0; i < racers; i++ {
		resp := <-responses
		require.NotNil(t, resp)
		if resp.Error == nil {
			accepted++
			continue
		}
		assert.Equal(t, jsonrpc.ErrCodeProtocolSequence, resp.Error.Code)
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, StateInitialized, d.State())
}

func TestInitializeVersionNegotiation(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		wantCode int
	}{
		{"same version", "1.0.0", 0},
		{"newer minor same major", "1.9.3", 0},
		{"different major", "2.0.0", jsonrpc.ErrCodeInvalidParams},
		{"not a version", "latest", jsonrpc.ErrCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := testDispatcher(t)
			resp := d.Dispatch(context.Background(), request(t, "1", jsonrpc.MethodInitialize, InitializeParams{
				ProtocolVersion: tt.version,
			}))
			require.NotNil(t, resp)
			if tt.wantCode == 0 {
				assert.Nil(t, resp.Error)
			} else {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestToolsListGatedByFlags(t *testing.T) {
	d, _ := testDispatcher(t)
	initialize(t, d)

	resp := d.Dispatch(context.Background(), request(t, "1", jsonrpc.MethodToolsList, nil))
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(ToolsListResult)
	require.True(t, ok)
	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	// Browser tools are flagged off; api tools appear in registration order.
	assert.Equal(t, []string{"echo", "flaky"}, names)
	assert.Equal(t, StateServing, d.State())
}

func TestToolsCallSuccess(t *testing.T) {
	d, invocations := testDispatcher(t)
	initialize(t, d)

	resp := d.Dispatch(context.Background(), request(t, "42", jsonrpc.MethodToolsCall,
		ToolsCallParams{Name: "echo", Arguments: json.RawMessage(`{"msg":"hello"}`)}))
	require.Nil(t, resp.Error)
	assert.Equal(t, "42", resp.ID.String())
	assert.Equal(t, map[string]string{"echo": "hello"}, resp.Result)
	assert.Equal(t, int32(1), invocations.Load())
}

func TestToolsCallErrors(t *testing.T) {
	tests := []struct {
		name     string
		params   ToolsCallParams
		wantCode int
	}{
		{"unknown tool", ToolsCallParams{Name: "nope"}, jsonrpc.ErrCodeToolNotFound},
		{"disabled tool", ToolsCallParams{Name: "browser_navigate"}, jsonrpc.ErrCodeToolDisabled},
		{"schema violation", ToolsCallParams{Name: "echo", Arguments: json.RawMessage(`{"msg":7}`)}, jsonrpc.ErrCodeInvalidParams},
		{"missing required", ToolsCallParams{Name: "echo", Arguments: json.RawMessage(`{}`)}, jsonrpc.ErrCodeInvalidParams},
		{"handler rate limited", ToolsCallParams{Name: "flaky"}, jsonrpc.ErrCodeRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := testDispatcher(t)
			initialize(t, d)
			resp := d.Dispatch(context.Background(), request(t, "1", jsonrpc.MethodToolsCall, tt.params))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestUnknownMethod(t *testing.T) {
	d, _ := testDispatcher(t)
	initialize(t, d)

	resp := d.Dispatch(context.Background(), request(t, "1", jsonrpc.MethodType("tools/teleport"), nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrCodeMethodNotFound, resp.Error.Code)
}

func TestNotificationGetsNoResponse(t *testing.T) {
	d, _ := testDispatcher(t)
	initialize(t, d)

	resp := d.Dispatch(context.Background(), request(t, "", jsonrpc.MethodToolsList, nil))
	assert.Nil(t, resp)
}

func TestClosedDispatcherRejectsRequests(t *testing.T) {
	d, _ := testDispatcher(t)
	initialize(t, d)
	d.Close()

	resp := d.Dispatch(context.Background(), request(t, "1", jsonrpc.MethodToolsList, nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrCodeProtocolSequence, resp.Error.Code)
	assert.Equal(t, StateClosed, d.State())
}

func TestConcurrentCallsCorrelateByID(t *testing.T) {
	d, _ := testDispatcher(t)
	initialize(t, d)

	const calls = 20
	responses := make(chan *jsonrpc.Response, calls)
	for i := 0; i < calls; i++ {
		go func(i int) {
			args := json.RawMessage(fmt.Sprintf(`{"msg":"m-%d"}`, i))
			responses <- d.Dispatch(context.Background(), request(t, fmt.Sprintf("id-%d", i), jsonrpc.MethodToolsCall,
				ToolsCallParams{Name: "echo", Arguments: args}))
		}(i)
	}

	seen := make(map[string]bool)
	for i := 0; i < calls; i++ {
		resp := <-responses
		require.NotNil(t, resp)
		require.Nil(t, resp.Error)
		// Each response carries its originating id exactly once.
		assert.False(t, seen[resp.ID.String()])
		seen[resp.ID.String()] = true
		var n int
		fmt.Sscanf(resp.ID.String(), "id-%d", &n)
		assert.Equal(t, map[string]string{"echo": fmt.Sprintf("m-%d", n)}, resp.Result)
	}
	assert.Len(t, seen, calls)
}
