package tools

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/probekit/probekit/internal/common/apperrors"
	"github.com/probekit/probekit/internal/probekit/registry"
	"github.com/probekit/probekit/internal/probekit/session"
)

type apiRequestArgs struct {
	SessionID string            `json:"sessionId"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	TimeoutMs int               `json:"timeoutMs"`
	Extract   string            `json:"extract"`
}

// APIRequestResult is the api_request tool result.
type APIRequestResult struct {
	SessionID string            `json:"sessionId"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	LatencyMs int64             `json:"latencyMs"`
	Attempt   int               `json:"attempt"`
	Outcome   session.Outcome   `json:"outcome"`
	Extracted any               `json:"extracted,omitempty"`
}

func (c *Catalog) apiRequest(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
	var a apiRequestArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, registry.ErrInvalidArguments.MsgErr("api_request arguments", err)
	}

	s, aerr := c.manager.GetOrCreate(a.SessionID)
	if aerr != nil {
		return nil, aerr
	}

	entry, aerr := c.manager.Execute(ctx, s, session.RequestSpec{
		Method:    a.Method,
		URL:       a.URL,
		Headers:   a.Headers,
		Body:      a.Body,
		TimeoutMs: a.TimeoutMs,
	})
	if aerr != nil {
		return nil, aerr
	}

	result := &APIRequestResult{
		SessionID: s.ID(),
		Status:    entry.Response.Status,
		Headers:   entry.Response.Headers,
		Body:      entry.Response.Body,
		LatencyMs: entry.Response.LatencyMs,
		Attempt:   entry.Attempt,
		Outcome:   entry.Outcome,
	}
	if a.Extract != "" {
		if v := gjson.Get(entry.Response.Body, a.Extract); v.Exists() {
			result.Extracted = v.Value()
		}
	}
	return result, nil
}

type sessionIDArgs struct {
	SessionID string `json:"sessionId"`
}

func (c *Catalog) apiSessionStatus(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
	var a sessionIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, registry.ErrInvalidArguments.MsgErr("api_session_status arguments", err)
	}
	snap, aerr := c.manager.Status(a.SessionID)
	if aerr != nil {
		return nil, aerr
	}
	return snap, nil
}

type apiSessionReportArgs struct {
	SessionID     string   `json:"sessionId"`
	Format        string   `json:"format"`
	Theme         string   `json:"theme"`
	RedactHeaders []string `json:"redactHeaders"`
	Save          bool     `json:"save"`
}

// APISessionReportResult is the api_session_report tool result. Payload is
// raw text for uncompressed reports and base64 text for compressed ones.
type APISessionReportResult struct {
	SessionID  string `json:"sessionId"`
	Filename   string `json:"filename"`
	Format     string `json:"format"`
	Compressed bool   `json:"compressed"`
	Payload    string `json:"payload"`
	Path       string `json:"path,omitempty"` // set when saved as an artifact
}

func (c *Catalog) apiSessionReport(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
	var a apiSessionReportArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, registry.ErrInvalidArguments.MsgErr("api_session_report arguments", err)
	}

	rep, aerr := c.manager.Report(a.SessionID, session.ReportOptions{
		Format:        a.Format,
		Theme:         a.Theme,
		RedactHeaders: a.RedactHeaders,
	})
	if aerr != nil {
		return nil, aerr
	}

	result := &APISessionReportResult{
		SessionID:  a.SessionID,
		Filename:   rep.Filename,
		Format:     rep.Format,
		Compressed: rep.Compressed,
		Payload:    string(rep.Payload),
	}
	if a.Save && c.store != nil {
		path, aerr := c.store.Save(rep.Filename, rep.Payload)
		if aerr != nil {
			return nil, aerr
		}
		result.Path = path
	}
	return result, nil
}

func (c *Catalog) apiSessionClose(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
	var a sessionIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, registry.ErrInvalidArguments.MsgErr("api_session_close arguments", err)
	}
	if aerr := c.manager.Close(a.SessionID); aerr != nil {
		return nil, aerr
	}
	return map[string]any{"sessionId": a.SessionID, "closed": true}, nil
}
