package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout string
	stderr string
	err    error
	block  bool

	name string
	args []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	if f.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func newTestOSAScript(r Runner) *OSAScript {
	return NewOSAScript(OSAScriptConfig{
		Path:        "/usr/bin/osascript",
		Application: "OmniFocus",
		CallTimeout: time.Second,
	}, r, nil)
}

func TestOSAScript_ExecuteSuccess(t *testing.T) {
	r := &fakeRunner{stdout: `{"ok":true,"id":"kXp3","fields":{"name":"Plan trip"}}` + "\n"}
	b := newTestOSAScript(r)

	resp, err := b.Execute(context.Background(), Command{
		Kind:    "create",
		Target:  "project",
		Payload: map[string]any{"name": "Plan trip"},
	})
	require.NoError(t, err)
	assert.Equal(t, "kXp3", resp.RealID)
	assert.Equal(t, "Plan trip", resp.Fields["name"])

	assert.Equal(t, "/usr/bin/osascript", r.name)
	require.Len(t, r.args, 5)
	assert.Equal(t, []string{"-l", "JavaScript", "-e"}, r.args[:3])
	assert.Equal(t, mutateScript, r.args[3])

	var sent scriptRequest
	require.NoError(t, json.Unmarshal([]byte(r.args[4]), &sent))
	assert.Equal(t, scriptRequest{App: "OmniFocus", Kind: "create", Target: "project", Payload: map[string]any{"name": "Plan trip"}}, sent)
}

func TestOSAScript_ExecuteErrors(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
		code   Code
	}{
		{"script failure", &fakeRunner{stdout: `{"ok":false,"code":"target_not_found","message":"project p1 not found"}`}, CodeTargetNotFound},
		{"failure without code", &fakeRunner{stdout: `{"ok":false,"message":"odd"}`}, CodeScriptError},
		{"garbage output", &fakeRunner{stdout: `not json`}, CodeInvalidResponse},
		{"success without id", &fakeRunner{stdout: `{"ok":true}`}, CodeInvalidResponse},
		{"not authorized", &fakeRunner{stderr: "execution error: Not authorized to send Apple events to OmniFocus. (-1743)", err: errors.New("exit status 1")}, CodeUnavailable},
		{"app not running", &fakeRunner{stderr: "execution error: Application isn't running. (-600)", err: errors.New("exit status 1")}, CodeUnavailable},
		{"apple event timeout", &fakeRunner{stderr: "execution error: AppleEvent timed out. (-1712)", err: errors.New("exit status 1")}, CodeTimeout},
		{"other stderr", &fakeRunner{stderr: "SyntaxError", err: errors.New("exit status 1")}, CodeScriptError},
		{"missing binary", &fakeRunner{err: &exec.Error{Name: "osascript", Err: exec.ErrNotFound}}, CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestOSAScript(tt.runner).Execute(context.Background(), Command{Kind: "create", Target: "task"})
			require.Error(t, err)
			assert.True(t, IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestOSAScript_CallTimeout(t *testing.T) {
	b := NewOSAScript(OSAScriptConfig{Path: "osascript", Application: "OmniFocus", CallTimeout: 20 * time.Millisecond}, &fakeRunner{block: true}, nil)

	_, err := b.Execute(context.Background(), Command{Kind: "delete", Target: "task"})
	assert.True(t, IsCode(err, CodeTimeout), "got %v", err)
}

func TestOSAScript_ParentCancelled(t *testing.T) {
	b := newTestOSAScript(&fakeRunner{block: true})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := b.Execute(ctx, Command{Kind: "delete", Target: "task"})
	assert.True(t, IsCode(err, CodeCancelled), "got %v", err)
}

func TestOSAScript_Status(t *testing.T) {
	b := newTestOSAScript(&fakeRunner{stdout: `{"running":true,"version":"4.3","entities":{"task":12,"project":3}}`})

	st, err := b.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Available)
	assert.Equal(t, "OmniFocus 4.3", st.Detail)
	assert.Equal(t, 12, st.Entities["task"])

	b = newTestOSAScript(&fakeRunner{stdout: `{"running":false}`})
	st, err = b.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Available)
	assert.Equal(t, "OmniFocus is not running", st.Detail)

	b = newTestOSAScript(&fakeRunner{err: &exec.Error{Name: "osascript", Err: exec.ErrNotFound}})
	st, err = b.Status(context.Background())
	require.NoError(t, err, "an unreachable bridge is a status, not an error")
	assert.False(t, st.Available)
	assert.Contains(t, st.Detail, "unavailable")
}
