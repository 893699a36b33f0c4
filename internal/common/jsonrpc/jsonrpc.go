// Package jsonrpc implements the JSON-RPC 2.0 message layer for the probekit
// protocol. It handles request/response construction and parsing; framing
// (line-delimited stdio or HTTP bodies) is a transport concern.
package jsonrpc

import (
	"encoding/json"
	"errors"
)

// Version specifies the JSON-RPC protocol version
const Version = "2.0"

// MethodType represents a JSON-RPC method name
type MethodType string

// Protocol methods served by the dispatcher.
const (
	MethodInitialize MethodType = "initialize"
	MethodToolsList  MethodType = "tools/list"
	MethodToolsCall  MethodType = "tools/call"
)

// ID is a JSON-RPC request id. The protocol permits strings and numbers;
// the wire form is preserved verbatim so a response mirrors whatever id
// type the client sent. The zero value marks a notification.
type ID struct {
	raw json.RawMessage
}

// NewID builds a string id.
func NewID(s string) ID {
	raw, _ := json.Marshal(s)
	return ID{raw: raw}
}

// IsZero reports whether the id is absent.
func (id ID) IsZero() bool {
	return len(id.raw) == 0
}

// String returns the id text: the unquoted value for string ids, the
// literal digits for numeric ids.
func (id ID) String() string {
	var s string
	if json.Unmarshal(id.raw, &s) == nil {
		return s
	}
	return string(id.raw)
}

// MarshalJSON emits the original wire form, or null for an absent id.
func (id ID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON accepts a string, a number, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.raw = nil
		return nil
	}
	if len(data) > 0 && data[0] != '"' {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.New("id must be a string or a number")
		}
	}
	id.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Request represents a JSON-RPC 2.0 request or notification.
// ID is absent for notifications.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  MethodType      `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
// Either Result or Error must be set, but not both.
type Response struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      ID           `json:"id"`
	Result  any          `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ErrorObject represents a JSON-RPC 2.0 error object.
// Code must be a valid JSON-RPC error code, Message a short description.
// Data is optional and carries additional error information.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewSuccessResponse creates a response carrying a result.
// The result must be JSON-serializable.
func NewSuccessResponse(id ID, result any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response. The data parameter is optional
// and must be JSON-serializable if provided.
func NewErrorResponse(id ID, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// ParseRequest unmarshals a JSON-RPC request or notification.
// Returns an error if the request is invalid or missing required fields.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.JSONRPC != Version || req.Method == "" {
		return nil, errors.New("invalid JSON-RPC request")
	}
	return &req, nil
}

// ParseResponse unmarshals a JSON-RPC response.
// Returns an error if the response carries neither result nor error.
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	if resp.JSONRPC != Version {
		return nil, errors.New("invalid JSON-RPC response")
	}
	if resp.Result == nil && resp.Error == nil {
		return nil, errors.New("response must have either result or error")
	}
	return &resp, nil
}

// Standard JSON-RPC 2.0 error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON was received
	ErrCodeInvalidRequest = -32600 // The JSON sent is not a valid Request object
	ErrCodeMethodNotFound = -32601 // The method does not exist
	ErrCodeInvalidParams  = -32602 // Invalid method parameter(s)
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
)

// Implementation-defined error codes (-32000 to -32099 reserved range).
const (
	ErrCodeProtocolSequence     = -32002 // method received before initialize
	ErrCodeToolNotFound         = -32010 // tool name not registered
	ErrCodeToolDisabled         = -32011 // tool registered but feature-gated off
	ErrCodeSessionLimitExceeded = -32020 // creating a session would exceed the limit
	ErrCodeSessionNotFound      = -32021 // unknown or reaped session id
	ErrCodeRateLimited          = -32029 // request budget exhausted
	ErrCodeRequestFailed        = -32030 // outbound request failed after retries
)
