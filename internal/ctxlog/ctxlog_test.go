package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := With(WithLogger(context.Background(), logger), "sequence", "intro")
	FromContext(ctx).Info("hello")

	assert.Contains(t, buf.String(), "sequence=intro")
	assert.Panics(t, func() { FromContext(context.Background()) })
}
