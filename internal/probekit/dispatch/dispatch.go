// Package dispatch implements the JSON-RPC protocol dispatcher: a
// per-connection state machine that accepts the initialize handshake,
// serves tool listings, and routes tool calls through the registry.
// Transport framing (line-delimited stdio or HTTP bodies) lives outside;
// the dispatcher operates on already-deframed request objects.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog/log"

	"github.com/probekit/probekit/internal/common/apperrors"
	"github.com/probekit/probekit/internal/common/jsonrpc"
	"github.com/probekit/probekit/internal/probekit/browser"
	"github.com/probekit/probekit/internal/probekit/config"
	"github.com/probekit/probekit/internal/probekit/registry"
	"github.com/probekit/probekit/internal/probekit/session"
)

// Server identity reported by initialize and the /version endpoint.
const (
	ServerName    = "probekit"
	ServerVersion = "0.1.0"
)

// ProtocolVersion is the protocol version this dispatcher speaks. Clients
// must request the same major; minor and patch may differ.
const ProtocolVersion = "1.0.0"

// State is the per-connection protocol state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitialized   State = "initialized"
	StateServing       State = "serving"
	StateClosed        State = "closed"
)

// Dispatcher routes JSON-RPC requests for one connection. Requests may be
// dispatched concurrently; each produces exactly one response correlated by
// the originating request id. State transitions are serialized internally.
type Dispatcher struct {
	cfg *config.EffectiveConfig
	reg *registry.Registry

	mu    sync.Mutex
	state State
}

// New creates a dispatcher in the uninitialized state.
func New(cfg *config.EffectiveConfig, reg *registry.Registry) *Dispatcher {
	return &Dispatcher{
		cfg:   cfg,
		reg:   reg,
		state: StateUninitialized,
	}
}

// State returns the current protocol state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close moves the connection to its terminal state. Subsequent requests are
// rejected with a protocol-sequence error.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateClosed
}

// InitializeParams is the payload of the initialize handshake.
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeResult is the handshake response payload.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

// ServerInfo identifies this server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolInfo is one entry of the tools/list response.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ToolsListResult is the tools/list response payload.
type ToolsListResult struct {
	Tools []ToolInfo `json:"tools"`
}

// ToolsCallParams is the tools/call request payload.
type ToolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Dispatch processes one request and returns its response. Notifications
// (requests without an id) return nil. Errors never escape as panics or
// process exits; every failure becomes a JSON-RPC error response with a
// stable machine-readable code.
func (d *Dispatcher) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	resp := d.dispatch(ctx, req)
	if req.ID.IsZero() {
		return nil
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	if err := d.checkSequence(req.Method); err != nil {
		log.Ctx(ctx).Debug().Str("method", string(req.Method)).Msg("request out of protocol sequence")
		return errorResponse(req.ID, err)
	}

	switch req.Method {
	case jsonrpc.MethodInitialize:
		return d.handleInitialize(ctx, req)
	case jsonrpc.MethodToolsList:
		return d.handleToolsList(ctx, req)
	case jsonrpc.MethodToolsCall:
		return d.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, ErrMethodNotFound.Msg(string(req.Method)))
	}
}

// checkSequence enforces the protocol state machine: the first accepted
// method must be initialize, initialize is accepted exactly once, and a
// closed connection accepts nothing. Rejected requests have no side effects.
func (d *Dispatcher) checkSequence(method jsonrpc.MethodType) apperrors.Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StateClosed:
		return ErrProtocolSequence.Msg("connection is closed")
	case StateUninitialized:
		if method != jsonrpc.MethodInitialize {
			return ErrProtocolSequence.Msg(fmt.Sprintf("%s received before initialize", method))
		}
	default:
		if method == jsonrpc.MethodInitialize {
			return ErrProtocolSequence.Msg("initialize received twice")
		}
	}
	return nil
}

func (d *Dispatcher) handleInitialize(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, ErrInvalidParams.MsgErr("initialize params", err))
		}
	}

	if params.ProtocolVersion != "" {
		if err := negotiateVersion(params.ProtocolVersion); err != nil {
			return errorResponse(req.ID, err)
		}
	}

	if aerr := d.commitInitialize(); aerr != nil {
		return errorResponse(req.ID, aerr)
	}

	log.Ctx(ctx).Info().
		Str("client", params.ClientInfo.Name).
		Str("client_version", params.ClientInfo.Version).
		Msg("client initialized")

	return jsonrpc.NewSuccessResponse(req.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      ServerInfo{Name: ServerName, Version: ServerVersion},
		Capabilities:    map[string]any{"tools": map[string]any{}},
	})
}

// commitInitialize performs the transition to initialized, re-checking the
// state under the same lock so two racing initialize requests cannot both
// succeed.
func (d *Dispatcher) commitInitialize() apperrors.Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StateUninitialized:
		d.state = StateInitialized
		return nil
	case StateClosed:
		return ErrProtocolSequence.Msg("connection is closed")
	default:
		return ErrProtocolSequence.Msg("initialize received twice")
	}
}

// negotiateVersion accepts any client version sharing the server's major.
func negotiateVersion(requested string) apperrors.Error {
	clientVer, err := semver.NewVersion(requested)
	if err != nil {
		return ErrInvalidParams.Msg(fmt.Sprintf("protocol version %q is not a valid version", requested))
	}
	serverVer := semver.MustParse(ProtocolVersion)
	if clientVer.Major() != serverVer.Major() {
		return ErrUnsupportedVersion.Msg(
			fmt.Sprintf("client requested %s, server speaks %s", requested, ProtocolVersion))
	}
	return nil
}

// handleToolsList never fails once initialized.
func (d *Dispatcher) handleToolsList(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	d.markServing()
	descriptors := d.reg.List(d.cfg)
	tools := make([]ToolInfo, 0, len(descriptors))
	for _, desc := range descriptors {
		tools = append(tools, ToolInfo{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.InputSchema,
		})
	}
	return jsonrpc.NewSuccessResponse(req.ID, ToolsListResult{Tools: tools})
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	d.markServing()

	var params ToolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, ErrInvalidParams.MsgErr("tools/call params", err))
	}
	if params.Name == "" {
		return errorResponse(req.ID, ErrInvalidParams.Msg("tool name is required"))
	}

	desc, aerr := d.reg.Resolve(params.Name, d.cfg)
	if aerr != nil {
		return errorResponse(req.ID, aerr)
	}
	if aerr := desc.ValidateArguments(params.Arguments); aerr != nil {
		return errorResponse(req.ID, aerr)
	}

	logger := log.Ctx(ctx).With().Str("tool", params.Name).Logger()
	result, aerr := desc.Handler.Invoke(logger.WithContext(ctx), params.Arguments)
	if aerr != nil {
		logger.Debug().Err(aerr).Msg("tool call failed")
		return errorResponse(req.ID, aerr)
	}
	return jsonrpc.NewSuccessResponse(req.ID, result)
}

func (d *Dispatcher) markServing() {
	d.mu.Lock()
	if d.state == StateInitialized {
		d.state = StateServing
	}
	d.mu.Unlock()
}

// errorResponse converts an application error into a JSON-RPC error
// response with a stable machine-readable code.
func errorResponse(id jsonrpc.ID, err apperrors.Error) *jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, errorCode(err), err.Error(), nil)
}

// errorCode maps application error sentinels to protocol error codes.
func errorCode(err apperrors.Error) int {
	switch {
	case errors.Is(err, ErrProtocolSequence):
		return jsonrpc.ErrCodeProtocolSequence
	case errors.Is(err, ErrUnsupportedVersion), errors.Is(err, ErrInvalidParams):
		return jsonrpc.ErrCodeInvalidParams
	case errors.Is(err, ErrMethodNotFound):
		return jsonrpc.ErrCodeMethodNotFound
	case errors.Is(err, registry.ErrToolNotFound):
		return jsonrpc.ErrCodeToolNotFound
	case errors.Is(err, registry.ErrToolDisabled):
		return jsonrpc.ErrCodeToolDisabled
	case errors.Is(err, registry.ErrInvalidArguments):
		return jsonrpc.ErrCodeInvalidParams
	case errors.Is(err, session.ErrSessionLimitExceeded):
		return jsonrpc.ErrCodeSessionLimitExceeded
	case errors.Is(err, session.ErrSessionNotFound):
		return jsonrpc.ErrCodeSessionNotFound
	case errors.Is(err, session.ErrRateLimited):
		return jsonrpc.ErrCodeRateLimited
	case errors.Is(err, session.ErrRequestFailed):
		return jsonrpc.ErrCodeRequestFailed
	case errors.Is(err, session.ErrInvalidRequestSpec):
		return jsonrpc.ErrCodeInvalidParams
	case errors.Is(err, browser.ErrNotLaunched):
		return jsonrpc.ErrCodeInvalidRequest
	default:
		return jsonrpc.ErrCodeInternalError
	}
}
