package bridge

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/focusd/internal/logging"
)

//go:embed scripts/mutate.js
var mutateScript string

//go:embed scripts/status.js
var statusScript string

// Runner runs an external program and returns its stdout and stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// OSAScriptConfig configures the osascript bridge.
type OSAScriptConfig struct {
	Path        string
	Application string
	CallTimeout time.Duration
}

// OSAScript drives OmniFocus through JXA scripts run by osascript.
type OSAScript struct {
	cfg    OSAScriptConfig
	runner Runner
	logger *logging.Logger
	calls  atomic.Int64
}

// NewOSAScript creates an osascript bridge. A nil runner uses ExecRunner.
func NewOSAScript(cfg OSAScriptConfig, runner Runner, logger *logging.Logger) *OSAScript {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &OSAScript{cfg: cfg, runner: runner, logger: logger.Named("bridge.osascript")}
}

type scriptRequest struct {
	App     string         `json:"app"`
	Kind    string         `json:"kind"`
	Target  string         `json:"target"`
	Payload map[string]any `json:"payload"`
}

type scriptResponse struct {
	OK      bool           `json:"ok"`
	ID      string         `json:"id"`
	Fields  map[string]any `json:"fields"`
	Code    Code           `json:"code"`
	Message string         `json:"message"`
}

// Execute runs the mutate script for cmd.
func (o *OSAScript) Execute(ctx context.Context, cmd Command) (Response, error) {
	o.calls.Add(1)

	arg, err := json.Marshal(scriptRequest{
		App:     o.cfg.Application,
		Kind:    cmd.Kind,
		Target:  cmd.Target,
		Payload: cmd.Payload,
	})
	if err != nil {
		return Response{}, NewError(CodeValidationFailed, fmt.Sprintf("payload is not serializable: %v", err), "")
	}

	out, err := o.run(ctx, mutateScript, string(arg))
	if err != nil {
		return Response{}, err
	}

	var resp scriptResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return Response{}, NewError(CodeInvalidResponse, fmt.Sprintf("unparseable script output: %v", err), "")
	}
	if !resp.OK {
		code := resp.Code
		if code == "" {
			code = CodeScriptError
		}
		return Response{}, NewError(code, resp.Message, suggestionFor(code))
	}
	if resp.ID == "" {
		return Response{}, NewError(CodeInvalidResponse, "script reported success without an id", "")
	}
	return Response{RealID: resp.ID, Fields: resp.Fields}, nil
}

type statusResponse struct {
	Running  bool           `json:"running"`
	Version  string         `json:"version"`
	Entities map[string]int `json:"entities"`
}

// Status runs the status script.
func (o *OSAScript) Status(ctx context.Context) (Status, error) {
	st := Status{Kind: "osascript", Calls: o.calls.Load()}

	out, err := o.run(ctx, statusScript, o.cfg.Application)
	if err != nil {
		st.Detail = err.Error()
		return st, nil
	}

	var resp statusResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return st, NewError(CodeInvalidResponse, fmt.Sprintf("unparseable status output: %v", err), "")
	}
	st.Available = resp.Running
	st.Entities = resp.Entities
	if resp.Running {
		st.Detail = fmt.Sprintf("%s %s", o.cfg.Application, resp.Version)
	} else {
		st.Detail = fmt.Sprintf("%s is not running", o.cfg.Application)
	}
	return st, nil
}

// run executes script with a per-call timeout and maps process failures to
// bridge errors.
func (o *OSAScript) run(ctx context.Context, script, arg string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	o.logger.Trace(ctx, "osascript request", zap.Int("arg.bytes", len(arg)))
	start := time.Now()
	stdout, stderr, err := o.runner.Run(callCtx, o.cfg.Path, "-l", "JavaScript", "-e", script, arg)
	o.logger.Trace(ctx, "osascript response",
		zap.Duration("duration", time.Since(start)),
		zap.Int("stdout.bytes", len(stdout)),
		zap.Error(err),
	)

	if err == nil {
		return bytes.TrimSpace(stdout), nil
	}

	switch {
	case ctx.Err() != nil:
		return nil, NewError(CodeCancelled, "request cancelled while waiting for osascript", "")
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return nil, NewError(CodeTimeout,
			fmt.Sprintf("osascript did not respond within %s", o.cfg.CallTimeout),
			suggestionFor(CodeTimeout))
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return nil, NewError(CodeUnavailable, fmt.Sprintf("cannot run %s: %v", o.cfg.Path, execErr.Err),
			"focusd needs macOS with osascript; use bridge.kind=memory elsewhere")
	}

	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		msg = err.Error()
	}
	return nil, classifyStderr(msg)
}

// classifyStderr maps well-known AppleScript error numbers in stderr.
func classifyStderr(msg string) *Error {
	switch {
	case strings.Contains(msg, "-1743"):
		return NewError(CodeUnavailable, msg,
			"Allow automation of OmniFocus in System Settings > Privacy & Security > Automation")
	case strings.Contains(msg, "-600"), strings.Contains(msg, "-609"):
		return NewError(CodeUnavailable, msg, suggestionFor(CodeUnavailable))
	case strings.Contains(msg, "-1712"):
		return NewError(CodeTimeout, msg, suggestionFor(CodeTimeout))
	case strings.Contains(msg, "-1728"):
		return NewError(CodeTargetNotFound, msg, suggestionFor(CodeTargetNotFound))
	}
	return NewError(CodeScriptError, msg, "")
}

func suggestionFor(code Code) string {
	switch code {
	case CodeUnavailable:
		return "Make sure OmniFocus is running and responsive"
	case CodeTimeout:
		return "OmniFocus may be busy syncing; retry with fewer operations"
	case CodeTargetNotFound:
		return "Look the entity up again; it may have been deleted or moved"
	case CodeValidationFailed:
		return "Check the payload fields for this target type"
	}
	return ""
}
