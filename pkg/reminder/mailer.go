package reminder

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/tickler/pkg/ports"
)

// LogMailer logs messages instead of delivering them. It keeps the messages
// it saw, which makes it useful for dry runs and tests.
type LogMailer struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []ports.Email
}

// NewLogMailer creates a LogMailer writing to logger.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg ports.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.logger.Info("Mail not delivered (log mailer)", "from", msg.From, "to", msg.To, "subject", msg.Subject, "bytes", len(msg.Raw))
	return nil
}

// Sent returns a copy of the messages seen so far.
func (m *LogMailer) Sent() []ports.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.Email(nil), m.sent...)
}
