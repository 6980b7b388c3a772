package logging

import "go.uber.org/zap/zapcore"

// newSampledCore samples entries below error level. Errors, such as a
// scheduling invariant violation, always pass through.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	errorsOnly := &gatedCore{Core: core, allow: func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel
	}}
	routine := &gatedCore{Core: core, allow: func(l zapcore.Level) bool {
		return l < zapcore.ErrorLevel
	}}
	sampled := zapcore.NewSamplerWithOptions(routine, cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter)
	return zapcore.NewTee(errorsOnly, sampled)
}

// gatedCore forwards only the levels allow accepts.
type gatedCore struct {
	zapcore.Core
	allow func(zapcore.Level) bool
}

func (c *gatedCore) Enabled(l zapcore.Level) bool {
	return c.allow(l) && c.Core.Enabled(l)
}

func (c *gatedCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.allow(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *gatedCore) With(fields []zapcore.Field) zapcore.Core {
	return &gatedCore{Core: c.Core.With(fields), allow: c.allow}
}
