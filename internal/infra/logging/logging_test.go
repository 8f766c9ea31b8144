package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWith_AttachesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithOrderID(ctx, "order-9")

	With(ctx, &base).Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"trace_id":"trace-1"`)
	assert.Contains(t, out, `"order_id":"order-9"`)
	assert.NotContains(t, out, "user_id")
	assert.Equal(t, "trace-1", TraceIDFrom(ctx))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "***", Redact("short", false))
	assert.Equal(t, "2a_5...ab", Redact("2a_5xxxxxxab", false))
	assert.Equal(t, "visible", Redact("visible", true))
}
