package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Format: "json", Component: ComponentDashboard, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger_ComponentField(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, slog.LevelInfo)

	logger.Info("hello", FieldDataset, "summary_stats")
	logger.WithComponent(ComponentCache).Warn("evicted")
	logger.Debug("suppressed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "dashboard", lines[0][FieldComponent])
	assert.Equal(t, "summary_stats", lines[0][FieldDataset])
	assert.Equal(t, "cache", lines[1][FieldComponent])
	assert.Equal(t, "WARN", lines[1]["level"])
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf})
	logger.Info("started")

	assert.Contains(t, buf.String(), "msg=started")
	assert.Contains(t, buf.String(), "component=app")
}

func TestMiddleware_FromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, slog.LevelInfo)

	var got *Logger
	h := Middleware(logger)(ComponentMiddleware(ComponentHTTP)(
		RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = FromContext(r.Context())
				got.Info("inside")
			}))))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	assert.Equal(t, ComponentHTTP, got.Component())
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0][FieldRequestID])

	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, slog.LevelInfo))
	ctx := context.Background()

	sl.LogRender(ctx, "claim_type", "pmpm_by_claim_type", "2023-01", "", 3, 15*time.Millisecond)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/summary?start=2023", nil)
	sl.LogHTTPEnd(ctx, r, http.StatusBadRequest, 4, "10.0.0.1")
	sl.LogError(ctx, "load failed", errors.New("boom"), OpLoad, NewFields().WithComponent(ComponentLoader))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "claim_type", lines[0][FieldPanel])
	assert.Equal(t, "2023-01", lines[0][FieldRangeStart])
	assert.NotContains(t, lines[0], FieldRangeEnd)
	assert.EqualValues(t, 3, lines[0][FieldGroups])
	assert.Equal(t, OpRender, lines[0][FieldOperation])

	assert.Equal(t, "WARN", lines[1]["level"])
	assert.EqualValues(t, 400, lines[1][FieldStatusCode])
	assert.Equal(t, false, lines[1][FieldSuccess])

	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, "boom", lines[2][FieldError])
	assert.Equal(t, OpLoad, lines[2][FieldOperation])
}
