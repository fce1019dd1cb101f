package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/aretw0/tickler/internal/config"
	"github.com/aretw0/tickler/pkg/adapters/memory"
	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/ports"
	"github.com/aretw0/tickler/pkg/reminder"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuild_EndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.Reminder.Sender = "bot@example.com"
	cfg.Reminder.Recipient = "me@example.com"
	cfg.Reminder.Timezone = "Europe/Oslo"

	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		return domain.ModelResponse{Body: []byte(`{"summary": "s", "function_calls": [
			{"tool_name": "create-calendar-reminder", "parameters": {"subject": "Dentist", "start_datetime": "2024-03-08T10:00:00"}}
		]}`)}, nil
	})
	mailer := reminder.NewLogMailer(nopLogger())
	store := memory.NewStore()

	app, err := Build(context.Background(), cfg, nopLogger(), WithModelClient(model), WithMailer(mailer), WithStore(store))
	require.NoError(t, err)
	defer app.Close(context.Background())

	result, err := app.Engine.RunText(context.Background(), "Dentist next Friday at 10")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, domain.OutcomeSucceeded, result.Outcomes[0].Status)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"me@example.com"}, sent[0].To)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(app.Metrics.Runs.WithLabelValues(string(domain.StateCompleted))))
}

func TestBuild_ReminderDisabledWithoutAddresses(t *testing.T) {
	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		return domain.ModelResponse{Body: []byte(`{"function_calls": [{"tool_name": "create-calendar-reminder", "parameters": {}}]}`)}, nil
	})

	app, err := Build(context.Background(), config.Default(), nopLogger(), WithModelClient(model))
	require.NoError(t, err)
	defer app.Close(context.Background())

	result, err := app.Engine.RunText(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, result.Outcomes[0].Status)
}

func TestBuild_ProviderErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Provider = config.ProviderAnthropic

	_, err := Build(context.Background(), cfg, nopLogger())
	assert.ErrorContains(t, err, "requires an API key")

	cfg.Model.APIKey = "sk-test"
	app, err := Build(context.Background(), cfg, nopLogger())
	require.NoError(t, err)
	assert.NoError(t, app.Close(context.Background()))
}

func TestBuild_SecureHistory(t *testing.T) {
	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		return domain.ModelResponse{Body: []byte(`{"summary": "s", "function_calls": [
			{"tool_name": "note", "parameters": {"subject": "Dentist", "attendees": "ana@example.com"}}
		]}`)}, nil
	})
	underlying := memory.NewStore()

	cfg := config.Default()
	cfg.History.RedactKeys = []string{"attendees"}
	cfg.History.EncryptionKey = strings.Repeat("ab", 32)

	app, err := Build(context.Background(), cfg, nopLogger(), WithModelClient(model), WithStore(underlying))
	require.NoError(t, err)
	defer app.Close(context.Background())

	result, err := app.Engine.RunText(context.Background(), "Dentist with Ana")
	require.NoError(t, err)

	raw, err := underlying.Load(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw.Input, "enc:v1:"))

	rec, err := app.Store.Load(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "Dentist with Ana", rec.Input)
	require.Len(t, rec.Outcomes, 1)
	assert.Equal(t, "***", rec.Outcomes[0].Item.Parameters["attendees"])
	assert.Equal(t, "Dentist", rec.Outcomes[0].Item.Parameters["subject"])

	t.Run("bad key", func(t *testing.T) {
		cfg.History.EncryptionKey = "short"
		_, err := Build(context.Background(), cfg, nopLogger(), WithModelClient(model), WithStore(memory.NewStore()))
		assert.ErrorContains(t, err, "history encryption key")
	})
}

func TestBuild_CommandTools(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: note
    command: sh
    args: ["-c", "test \"$TICKLER_ARG_SUBJECT\" = Dentist"]
`), 0o644))

	model := ports.ModelClientFunc(func(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
		return domain.ModelResponse{Body: []byte(`{"function_calls": [{"tool_name": "note", "parameters": {"subject": "Dentist"}}]}`)}, nil
	})
	cfg := config.Default()
	cfg.ToolsFile = path

	app, err := Build(context.Background(), cfg, nopLogger(), WithModelClient(model))
	require.NoError(t, err)
	defer app.Close(context.Background())

	result, err := app.Engine.RunText(context.Background(), "note it")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, domain.OutcomeSucceeded, result.Outcomes[0].Status)

	t.Run("reserved name", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("tools:\n  - name: create-calendar-reminder\n    command: \"true\"\n"), 0o644))
		_, err := Build(context.Background(), cfg, nopLogger(), WithModelClient(model))
		assert.ErrorContains(t, err, "reserved")
	})
}

func TestReadInput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(file, []byte("from file"), 0o644))

	tests := []struct {
		name     string
		args     []string
		file     string
		stdin    string
		terminal bool
		want     string
		wantErr  bool
	}{
		{name: "file", file: file, want: "from file"},
		{name: "dash reads stdin", file: "-", stdin: "piped", terminal: true, want: "piped"},
		{name: "args", args: []string{"Dentist", "Friday"}, want: "Dentist Friday"},
		{name: "piped stdin", stdin: "piped", want: "piped"},
		{name: "nothing", terminal: true, wantErr: true},
		{name: "missing file", file: filepath.Join(t.TempDir(), "absent"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadInput(tt.args, tt.file, strings.NewReader(tt.stdin), tt.terminal)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintRecord(t *testing.T) {
	rec := &domain.RunRecord{
		RunID:      "run-1",
		State:      domain.StateCompleted,
		Outcomes:   []domain.ItemOutcome{},
		StartedAt:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 3, 1, 9, 0, 1, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, PrintRecord(&buf, rec, true, nil))
	var decoded domain.RunRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)

	buf.Reset()
	require.NoError(t, PrintRecord(&buf, rec, false, nil))
	assert.Contains(t, buf.String(), "# Run `run-1`")
}

func TestCreateLogger(t *testing.T) {
	_, err := CreateLogger(config.LogConfig{Level: "info", Format: "json"}, "verbose")
	assert.Error(t, err)

	logger, err := CreateLogger(config.LogConfig{Level: "info", Format: "json"}, "debug")
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestSignalContext_CancelWithoutSignal(t *testing.T) {
	sc := NewSignalContext(context.Background())
	sc.Cancel()

	<-sc.Done()
	assert.Nil(t, sc.Signal())
	assert.ErrorIs(t, context.Cause(sc), context.Canceled)
}

func TestSignalContext_RecordsSignal(t *testing.T) {
	sc := NewSignalContext(context.Background())
	defer sc.Cancel()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-sc.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled by SIGTERM")
	}
	assert.Equal(t, syscall.SIGTERM, sc.Signal())
	assert.EqualError(t, context.Cause(sc), "interrupted by terminated")
}
