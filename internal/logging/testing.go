package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that keeps every entry, down to trace level, for
// assertions.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger returns a recording logger.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		logs:   logs,
	}
}

// All returns the recorded entries in order.
func (t *TestLogger) All() []observer.LoggedEntry { return t.logs.All() }

// FilterMessage returns the entries whose message is exactly msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.logs.FilterMessage(msg)
}

func (t *TestLogger) find(match func(observer.LoggedEntry) bool) (observer.LoggedEntry, bool) {
	for _, e := range t.logs.All() {
		if match(e) {
			return e, true
		}
	}
	return observer.LoggedEntry{}, false
}

func (t *TestLogger) messages() []string {
	all := t.logs.All()
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.Level.String() + " " + e.Message
	}
	return out
}

// AssertLogged fails tb unless an entry at level has a message containing
// substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if _, ok := t.find(func(e observer.LoggedEntry) bool {
		return e.Level == level && strings.Contains(e.Message, substr)
	}); !ok {
		tb.Errorf("no %s entry containing %q; got %q", level, substr, t.messages())
	}
}

// AssertNotLogged fails tb if an entry at level has a message containing
// substr.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if e, ok := t.find(func(e observer.LoggedEntry) bool {
		return e.Level == level && strings.Contains(e.Message, substr)
	}); ok {
		tb.Errorf("unexpected %s entry %q", level, e.Message)
	}
}

// AssertField fails tb unless some entry with message msg carries key with
// the expected value. Values compare as they appear in the entry's
// ContextMap, so integers are int64 and durations time.Duration.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	for _, e := range t.logs.FilterMessage(msg).All() {
		if v, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(v, expected) {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v", msg, key, expected)
}

// AssertNoField fails tb if any entry carries key.
func (t *TestLogger) AssertNoField(tb testing.TB, key string) {
	tb.Helper()
	if e, ok := t.find(func(e observer.LoggedEntry) bool {
		_, has := e.ContextMap()[key]
		return has
	}); ok {
		tb.Errorf("entry %q carries unexpected field %q", e.Message, key)
	}
}
