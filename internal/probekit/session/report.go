package session

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/golang/snappy"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/probekit/probekit/internal/common/apperrors"
)

// Report formats.
const (
	ReportFormatJSON = "json"
	ReportFormatText = "text"
)

// Report themes (text format only).
const (
	ReportThemePlain = "plain"
	ReportThemeANSI  = "ansi"
)

const redactedValue = "[REDACTED]"

// ReportOptions controls report rendering.
type ReportOptions struct {
	Format        string   `json:"format,omitempty"`         // json (default) or text
	Theme         string   `json:"theme,omitempty"`          // plain (default) or ansi
	RedactHeaders []string `json:"redact_headers,omitempty"` // merged with the configured redact list
}

// Report is a rendered session report ready for the persistence collaborator.
type Report struct {
	SessionID  string `json:"session_id"`
	Format     string `json:"format"`
	Filename   string `json:"filename"`
	Payload    []byte `json:"payload"`
	Compressed bool   `json:"compressed"` // snappy-framed and base64-encoded when true
}

// reportDocument is the JSON report shape.
type reportDocument struct {
	Session     Snapshot       `json:"session"`
	History     []HistoryEntry `json:"history"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Report renders the full retained history of the session. Sensitive header
// values are redacted before the payload leaves the manager. Reports above
// the configured threshold are snappy-compressed and base64-encoded so the
// persistence collaborator receives a text-safe payload.
func (m *Manager) Report(id string, opts ReportOptions) (*Report, apperrors.Error) {
	m.mu.Lock()
	s, exists := m.sessions[id]
	m.mu.Unlock()
	if !exists {
		return nil, ErrSessionNotFound.Msg(fmt.Sprintf("session not found: %s", id))
	}

	now := m.now()
	expiry := m.cfg.SessionTimeout()

	s.mu.Lock()
	if st := s.liveStatus(now, expiry); st == StatusExpired || st == StatusClosed {
		s.mu.Unlock()
		return nil, ErrSessionNotFound.Msg(fmt.Sprintf("session not found: %s", id))
	}
	snap := s.snapshot(now, expiry)
	history := s.historyCopy()
	s.mu.Unlock()

	redact := append([]string{}, m.cfg.Security.RedactHeaders...)
	redact = append(redact, opts.RedactHeaders...)

	format := opts.Format
	if format == "" {
		format = ReportFormatJSON
	}

	var payload []byte
	var ext string
	switch format {
	case ReportFormatJSON:
		doc := reportDocument{Session: snap, History: history, GeneratedAt: now}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, ErrSessionError.MsgErr("rendering report", err)
		}
		payload = redactDocument(raw, len(history), redact)
		ext = "json"
	case ReportFormatText:
		payload = []byte(renderText(snap, history, opts.Theme))
		ext = "txt"
	default:
		return nil, ErrSessionError.Msg(fmt.Sprintf("unknown report format: %s", format))
	}

	report := &Report{
		SessionID: id,
		Format:    format,
		Filename:  fmt.Sprintf("report-%s-%d.%s", id, now.Unix(), ext),
	}
	if m.cfg.Output.CompressReports && len(payload) > m.cfg.Output.CompressThresholdBytes {
		compressed, err := compressPayload(payload)
		if err != nil {
			return nil, ErrSessionError.MsgErr("compressing report", err)
		}
		report.Payload = compressed
		report.Compressed = true
		report.Filename += ".sz.b64"
	} else {
		report.Payload = payload
	}
	return report, nil
}

// redactDocument blanks sensitive header values in the serialized report.
// Paths are only rewritten when present so untouched documents pass through
// byte-identical.
func redactDocument(raw []byte, entries int, headers []string) []byte {
	for i := 0; i < entries; i++ {
		for _, h := range headers {
			for _, side := range []string{"request", "response"} {
				path := fmt.Sprintf("history.%d.%s.headers.%s", i, side, h)
				if gjson.GetBytes(raw, path).Exists() {
					if updated, err := sjson.SetBytes(raw, path, redactedValue); err == nil {
						raw = updated
					}
				}
			}
		}
	}
	return raw
}

// renderText produces a line-oriented report. The ansi theme colors
// outcomes; plain emits bare text. Header values are never included.
func renderText(snap Snapshot, history []HistoryEntry, theme string) string {
	paint := func(o Outcome) string { return string(o) }
	if theme == ReportThemeANSI {
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		paint = func(o Outcome) string {
			switch o {
			case OutcomeSuccess:
				return green(o)
			case OutcomeRetried:
				return yellow(o)
			default:
				return red(o)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "session %s  status=%s  requests=%d  errors=%d  avg_latency=%dms\n",
		snap.ID, snap.Status, snap.Metrics.RequestCount, snap.Metrics.ErrorCount, snap.Metrics.AverageLatencyMs())
	for i, e := range history {
		status := fmt.Sprintf("%d", e.Response.Status)
		if e.Response.Status == 0 {
			status = "no response"
		}
		fmt.Fprintf(&b, "%3d. [attempt %d] %s %s -> %s (%dms) %s\n",
			i+1, e.Attempt, e.Request.Method, e.Request.URL, status, e.Response.LatencyMs, paint(e.Outcome))
		if e.Response.Error != "" {
			fmt.Fprintf(&b, "     error: %s\n", e.Response.Error)
		}
	}
	return b.String()
}

// compressPayload snappy-compresses and base64-encodes a report payload.
func compressPayload(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	b64 := base64.NewEncoder(base64.StdEncoding, &buf)
	sw := snappy.NewBufferedWriter(b64)
	if _, err := io.Copy(sw, bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	if err := sw.Close(); err != nil {
		return nil, fmt.Errorf("snappy close failed: %w", err)
	}
	if err := b64.Close(); err != nil {
		return nil, fmt.Errorf("base64 close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePayload reverses compressPayload for consumers that need the
// original bytes back.
func DecodePayload(encoded []byte) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}
	return io.ReadAll(snappy.NewReader(bytes.NewReader(decoded)))
}
