package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedact(t *testing.T) {
	out := redact([]interface{}{"session_token", "abc.def.ghi", "Authorization", "Bearer x", "product_id", 7, "dangling"})

	assert.Equal(t, []interface{}{
		"session_token", "[REDACTED]",
		"Authorization", "[REDACTED]",
		"product_id", 7,
		"dangling",
	}, out)
}

func TestLogger_WritesRedactedFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("session_id", "s-1").Warn("section unavailable", "section", "stats", "token", "secret")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "s-1", fields["session_id"])
		assert.Equal(t, "stats", fields["section"])
		assert.Equal(t, "[REDACTED]", fields["token"])
	}
}
