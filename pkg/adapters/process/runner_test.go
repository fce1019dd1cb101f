package process

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/tickler/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests use sh")
	}
}

func TestRunner_Execute(t *testing.T) {
	requireShell(t)

	runner := NewRunner()
	runner.Register("echo_env", "sh", "-c", "echo $TICKLER_ARG_SUBJECT")
	runner.Register("echo_stdin", "sh", "-c", "cat")
	runner.Register("fail", "sh", "-c", "echo broken >&2; exit 3")

	t.Run("passes parameters via env vars", func(t *testing.T) {
		out, err := runner.Execute(context.Background(), "echo_env", map[string]any{"subject": "Dentist"})
		require.NoError(t, err)
		assert.Equal(t, "Dentist", out)
	})

	t.Run("passes parameters as JSON on stdin", func(t *testing.T) {
		out, err := runner.Execute(context.Background(), "echo_stdin", map[string]any{"subject": "Dentist", "n": 2})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"subject": "Dentist", "n": 2.0}, out)
	})

	t.Run("non-zero exit carries stderr", func(t *testing.T) {
		_, err := runner.Execute(context.Background(), "fail", nil)
		assert.ErrorContains(t, err, "broken")
	})

	t.Run("unregistered tool", func(t *testing.T) {
		_, err := runner.Execute(context.Background(), "hacker_script", nil)
		assert.ErrorContains(t, err, "not registered")
	})
}

func TestRunner_Timeout(t *testing.T) {
	requireShell(t)

	runner := NewRunner(WithTools(map[string]ToolConfig{
		"slow": {Command: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond},
	}))

	_, err := runner.Execute(context.Background(), "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_RegisterAll(t *testing.T) {
	requireShell(t)

	runner := NewRunner(WithTools(map[string]ToolConfig{
		"ok":  {Command: "true"},
		"bad": {Command: "false"},
	}))
	reg := registry.NewRegistry()
	runner.RegisterAll(reg)

	assert.ElementsMatch(t, []string{"ok", "bad"}, reg.Names())
	assert.NoError(t, reg.Execute(context.Background(), "ok", map[string]any{}))
	assert.Error(t, reg.Execute(context.Background(), "bad", map[string]any{}))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "START_DATETIME", envKey("start_datetime"))
	assert.Equal(t, "A_B_C", envKey("a-b.c"))
}

func TestLoadTools(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "tools.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: notify
    command: notify-send
    args: ["tickler"]
    timeout: 5s
    env:
      DISPLAY: ":0"
`), 0o644))

		tools, err := LoadTools(path)
		require.NoError(t, err)
		require.Contains(t, tools, "notify")
		assert.Equal(t, "notify-send", tools["notify"].Command)
		assert.Equal(t, 5*time.Second, tools["notify"].Timeout)
		assert.Equal(t, ":0", tools["notify"].Environment["DISPLAY"])
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "tools.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"tools": [{"name": "log", "command": "logger"}]}`), 0o644))

		tools, err := LoadTools(path)
		require.NoError(t, err)
		assert.Equal(t, "logger", tools["log"].Command)
	})

	t.Run("missing command", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tools:\n  - name: x\n"), 0o644))
		_, err := LoadTools(path)
		assert.ErrorContains(t, err, "needs a name and a command")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTools(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})
}
