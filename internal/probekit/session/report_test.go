package session

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSession(t *testing.T, m *Manager, id string) *Session {
	t.Helper()
	s, err := m.GetOrCreate(id)
	require.NoError(t, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendEntry(HistoryEntry{
		Request: RecordedRequest{
			Method:  "GET",
			URL:     "https://api.example.com/users",
			Headers: map[string]string{"Authorization": "Bearer s3cr3t", "Accept": "application/json"},
		},
		Response: RecordedResponse{
			Status:    200,
			Headers:   map[string]string{"Content-Type": "application/json", "X-Session-Token": "tok-999"},
			Body:      `[{"id":1}]`,
			LatencyMs: 12,
		},
		Attempt:   1,
		Timestamp: m.now(),
		Outcome:   OutcomeSuccess,
	})
	s.appendEntry(HistoryEntry{
		Request:   RecordedRequest{Method: "POST", URL: "https://api.example.com/orders"},
		Response:  RecordedResponse{Error: "dial tcp: connection refused", LatencyMs: 3},
		Attempt:   1,
		Timestamp: m.now(),
		Outcome:   OutcomeFailed,
	})
	return s
}

func TestReportJSONRedactsConfiguredHeaders(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	seedSession(t, m, "sess-1")

	rep, err := m.Report("sess-1", ReportOptions{})
	require.NoError(t, err)
	assert.Equal(t, ReportFormatJSON, rep.Format)
	assert.False(t, rep.Compressed)

	var doc reportDocument
	require.NoError(t, json.Unmarshal(rep.Payload, &doc))
	require.Len(t, doc.History, 2)
	assert.Equal(t, redactedValue, doc.History[0].Request.Headers["Authorization"])
	assert.Equal(t, "application/json", doc.History[0].Request.Headers["Accept"])
	assert.NotContains(t, string(rep.Payload), "s3cr3t")
}

func TestReportRedactsRequestedHeaders(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	seedSession(t, m, "sess-1")

	rep, err := m.Report("sess-1", ReportOptions{RedactHeaders: []string{"X-Session-Token"}})
	require.NoError(t, err)

	var doc reportDocument
	require.NoError(t, json.Unmarshal(rep.Payload, &doc))
	assert.Equal(t, redactedValue, doc.History[0].Response.Headers["X-Session-Token"])
	assert.NotContains(t, string(rep.Payload), "tok-999")
}

func TestReportTextFormat(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	seedSession(t, m, "sess-1")

	rep, err := m.Report("sess-1", ReportOptions{Format: ReportFormatText})
	require.NoError(t, err)
	assert.Equal(t, ReportFormatText, rep.Format)
	assert.True(t, strings.HasSuffix(rep.Filename, ".txt"))

	text := string(rep.Payload)
	assert.Contains(t, text, "session sess-1")
	assert.Contains(t, text, "GET https://api.example.com/users -> 200")
	assert.Contains(t, text, "no response")
	assert.Contains(t, text, "connection refused")
	// Header values never make it into the text rendering.
	assert.NotContains(t, text, "s3cr3t")
}

func TestReportUnknownFormat(t *testing.T) {
	m, _ := newTestManager(t, testConfig())
	seedSession(t, m, "sess-1")

	_, err := m.Report("sess-1", ReportOptions{Format: "yaml"})
	require.Error(t, err)
}

func TestReportSessionNotFound(t *testing.T) {
	m, _ := newTestManager(t, testConfig())

	_, err := m.Report("missing", ReportOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReportExpiredSessionNotFound(t *testing.T) {
	cfg := testConfig()
	cfg.Security.SessionTimeoutSeconds = 60
	m, clk := newTestManager(t, cfg)
	seedSession(t, m, "sess-1")

	clk.Advance(2 * time.Minute)
	_, err := m.Report("sess-1", ReportOptions{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReportCompressionRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.Output.CompressReports = true
	cfg.Output.CompressThresholdBytes = 64
	m, _ := newTestManager(t, cfg)
	seedSession(t, m, "sess-1")

	rep, err := m.Report("sess-1", ReportOptions{})
	require.NoError(t, err)
	require.True(t, rep.Compressed)
	assert.True(t, strings.HasSuffix(rep.Filename, ".json.sz.b64"))

	decoded, derr := DecodePayload(rep.Payload)
	require.NoError(t, derr)

	var doc reportDocument
	require.NoError(t, json.Unmarshal(decoded, &doc))
	assert.Equal(t, "sess-1", doc.Session.ID)
	assert.Len(t, doc.History, 2)
}

func TestReportBelowThresholdNotCompressed(t *testing.T) {
	cfg := testConfig()
	cfg.Output.CompressReports = true
	cfg.Output.CompressThresholdBytes = 1 << 20
	m, _ := newTestManager(t, cfg)
	seedSession(t, m, "sess-1")

	rep, err := m.Report("sess-1", ReportOptions{})
	require.NoError(t, err)
	assert.False(t, rep.Compressed)
	assert.True(t, json.Valid(rep.Payload))
}
