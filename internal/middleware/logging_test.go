package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtxHandler_AddsRequestScopedAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(&ctxHandler{slog.NewJSONHandler(&buf, nil)})

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = WithViewer(ctx, "user-7")
	ctx = context.WithValue(ctx, TraceIDKey, "trace-9")

	logger.InfoContext(ctx, "comment created")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "user-7", record["user_id"])
	assert.Equal(t, "trace-9", record["trace_id"])
}

func TestWithViewer_IgnoresAnonymous(t *testing.T) {
	t.Parallel()
	ctx := WithViewer(context.Background(), "")
	assert.Nil(t, ctx.Value(UserIDKey))
}
