package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/tickler/internal/config"
	"github.com/aretw0/tickler/internal/logging"
	"github.com/aretw0/tickler/internal/presentation/tui"
	"github.com/aretw0/tickler/pkg/domain"
	"golang.org/x/term"
)

// CreateLogger builds the process logger from the log settings.
// A non-empty override replaces the configured level.
func CreateLogger(cfg config.LogConfig, override string) (*slog.Logger, error) {
	name := cfg.Level
	if override != "" {
		name = override
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return logging.New(level, cfg.Format), nil
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.StateEvent) {
			logger.Debug("State change", "run_id", e.RunID, "from", e.From, "to", e.To)
		},
		OnItemStart: func(ctx context.Context, e *domain.ItemEvent) {
			logger.Debug("Item start", "run_id", e.RunID, "index", e.Index, "tool_name", e.Item.ToolName)
		},
		OnItemFinish: func(ctx context.Context, e *domain.ItemEvent) {
			if e.Outcome != nil {
				logger.Debug("Item finish", "run_id", e.RunID, "index", e.Index, "status", e.Outcome.Status, "duration", e.Duration)
			}
		},
	}
}

// ReadInput picks the run text from a file, the arguments or piped stdin, in that order.
func ReadInput(args []string, file string, stdin io.Reader, stdinIsTerminal bool) (string, error) {
	switch {
	case file == "-":
		return readAll(stdin)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case !stdinIsTerminal:
		return readAll(stdin)
	default:
		return "", errors.New("no input: pass text as arguments, use --file, or pipe it on stdin")
	}
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

// StdinIsTerminal reports whether stdin is interactive.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// PrintRecord writes rec as indented JSON or as a rendered Markdown report.
func PrintRecord(w io.Writer, rec *domain.RunRecord, jsonMode bool, render func(string) (string, error)) error {
	if jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	md := tui.Report(rec)
	if render != nil {
		if out, err := render(md); err == nil {
			md = out
		}
	}
	_, err := io.WriteString(w, md)
	return err
}
