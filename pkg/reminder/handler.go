package reminder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/ports"
	"github.com/aretw0/tickler/pkg/registry"
)

// Config carries the sender, recipient and time zone for invitations.
type Config struct {
	Sender    string
	Recipient string
	// Location is the assistant's time zone; times without an offset are read in it.
	Location *time.Location
	// AlarmBefore adds a display alarm this long before the start. Zero disables it.
	AlarmBefore time.Duration
}

// Handler sends one calendar invitation per item.
type Handler struct {
	cfg    Config
	mailer ports.Mailer
	now    func() time.Time
	logger *slog.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithClock sets the clock used for DTSTAMP and the Date header.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler validates cfg and returns a handler delivering through mailer.
func NewHandler(cfg Config, mailer ports.Mailer, opts ...Option) (*Handler, error) {
	if cfg.Sender == "" {
		return nil, errors.New("reminder: sender is required")
	}
	if cfg.Recipient == "" {
		return nil, errors.New("reminder: recipient is required")
	}
	if mailer == nil {
		return nil, errors.New("reminder: mailer is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	h := &Handler{
		cfg:    cfg,
		mailer: mailer,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register installs the handler under its tool name.
func (h *Handler) Register(reg *registry.Registry) {
	reg.Register(domain.ToolCreateCalendarReminder, h.Handle)
}

// Handle is a registry.Handler.
func (h *Handler) Handle(ctx context.Context, params map[string]any) error {
	p, err := Decode(params)
	if err != nil {
		return h.fail(err)
	}
	r, err := p.Resolve(h.cfg.Location)
	if err != nil {
		return h.fail(err)
	}

	stamp := h.now()
	invite := Invite(r, h.cfg.Sender, h.cfg.Recipient, h.cfg.AlarmBefore, stamp)

	msg, err := Compose(h.cfg.Sender, h.cfg.Recipient, r, invite, stamp)
	if err != nil {
		return h.fail(fmt.Errorf("compose message: %w", err))
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return h.fail(fmt.Errorf("send invitation: %w", err))
	}

	h.logger.Info("Reminder sent",
		"run_id", domain.RunIDFromContext(ctx),
		"subject", r.Subject,
		"start", r.Start.Format(time.RFC3339),
		"recipient", h.cfg.Recipient)
	return nil
}

func (h *Handler) fail(err error) error {
	return &domain.HandlerError{Tool: domain.ToolCreateCalendarReminder, Err: err}
}
