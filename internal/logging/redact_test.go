package logging

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/focusd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newTestEncoder(t *testing.T) *RedactingEncoder {
	t.Helper()
	base := zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	enc, err := NewRedactingEncoder(base, NewDefaultConfig().Redaction)
	require.NoError(t, err)
	return enc
}

func TestRedactingEncoder_EncodeEntry(t *testing.T) {
	enc := newTestEncoder(t)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "op", Time: time.Now()}, []zapcore.Field{
		zap.String("Token", "xyz"),
		zap.String("note", "buy milk for grandma"),
		zap.String("header", "Bearer abc.def"),
		zap.String("name", "Buy milk"),
	})
	require.NoError(t, err)
	out := buf.String()

	assert.NotContains(t, out, "xyz")
	assert.NotContains(t, out, "grandma")
	assert.NotContains(t, out, "abc.def")
	assert.Contains(t, out, `"name":"Buy milk"`)
	assert.Contains(t, out, `"header":"[REDACTED:pattern]"`)
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	enc := newTestEncoder(t)
	clone := enc.Clone()
	clone.AddString("password", "hunter2")
	clone.AddString("stage", "execute")

	buf, err := clone.EncodeEntry(zapcore.Entry{Message: "m"}, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"password":"[REDACTED]"`)
	assert.Contains(t, buf.String(), `"stage":"execute"`)
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	base := zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	enc, err := NewRedactingEncoder(base, RedactionConfig{Enabled: false})
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, []zapcore.Field{zap.String("token", "t")})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"token":"t"`)
}

func TestNewRedactingEncoder_RejectsLongPattern(t *testing.T) {
	long := make([]byte, maxPatternLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zapcore.EncoderConfig{}), RedactionConfig{
		Enabled:  true,
		Patterns: []string{string(long)},
	})
	assert.Error(t, err)
}

func TestSecretAndPayloadFields(t *testing.T) {
	tl := NewTestLogger()
	var secret config.Secret
	require.NoError(t, secret.UnmarshalText([]byte("nats-token")))

	tl.Logger.zap.Info("connect",
		Secret("auth", secret),
		RedactedString("nkey", "abcd"),
		PayloadKeys("payload", map[string]any{"name": "x", "note": "private", "flagged": true}),
	)

	ctxMap := tl.FilterMessage("connect").All()[0].ContextMap()
	assert.Equal(t, map[string]interface{}{"auth": "[REDACTED:10]"}, ctxMap["auth"])
	assert.Equal(t, "[REDACTED:4]", ctxMap["nkey"])
	assert.Equal(t, []interface{}{"flagged", "name", "note"}, ctxMap["payload"])
}
