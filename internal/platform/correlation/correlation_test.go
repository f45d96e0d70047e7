package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewHandler(inner))
}

func TestNewID(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		id := NewID()
		require.Len(t, id, 12)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestFromHeader(t *testing.T) {
	assert.Equal(t, "req-42_a", FromHeader("req-42_a"))

	for name, value := range map[string]string{
		"empty":        "",
		"too long":     strings.Repeat("a", 65),
		"spaces":       "has space",
		"control char": "abc\n123",
		"non ascii":    "réq",
	} {
		t.Run(name, func(t *testing.T) {
			id := FromHeader(value)
			assert.NotEqual(t, value, id)
			assert.Len(t, id, 12)
		})
	}
}

func TestIDRoundTrip(t *testing.T) {
	ctx := WithID(context.Background(), "abc12345")
	id, ok := ID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc12345", id)

	_, ok = ID(context.Background())
	assert.False(t, ok)

	_, ok = ID(WithID(context.Background(), ""))
	assert.False(t, ok)
}

func TestSessionIDRoundTrip(t *testing.T) {
	ctx := WithSessionID(context.Background(), "0b1e8a4c")
	sid, ok := SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "0b1e8a4c", sid)

	_, ok = SessionID(context.Background())
	assert.False(t, ok)
}

func TestHandler_AddsIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	ctx := WithSessionID(WithID(context.Background(), "test1234"), "sess-1")
	logger.InfoContext(ctx, "diffs computed", "view", "metrics")

	out := buf.String()
	assert.Contains(t, out, "correlation_id=test1234")
	assert.Contains(t, out, "session_id=sess-1")
	assert.Contains(t, out, "view=metrics")
}

func TestHandler_OmitsMissingIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).InfoContext(context.Background(), "no ids")

	out := buf.String()
	assert.NotContains(t, out, "correlation_id")
	assert.NotContains(t, out, "session_id")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf).With("component", "catalog").WithGroup("req")

	logger.InfoContext(WithID(context.Background(), "attr1234"), "fetched", "family", "Roboto")

	out := buf.String()
	assert.Contains(t, out, "component=catalog")
	assert.Contains(t, out, "req.family=Roboto")
	assert.Contains(t, out, "attr1234")
}
