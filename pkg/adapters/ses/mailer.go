// Package ses delivers rendered messages through Amazon SES.
package ses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/tickler/pkg/ports"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// API is the subset of the SES v2 client used by Mailer.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Mailer implements ports.Mailer with raw-message sends.
type Mailer struct {
	api    API
	logger *slog.Logger
}

var _ ports.Mailer = (*Mailer)(nil)

// New wraps an SES client. A nil logger discards logs.
func New(api API, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Mailer{api: api, logger: logger}
}

// NewFromConfig builds the SES client from a loaded AWS config.
func NewFromConfig(cfg aws.Config, logger *slog.Logger) *Mailer {
	return New(sesv2.NewFromConfig(cfg), logger)
}

// Send delivers msg.Raw unchanged; its MIME headers carry the addressing.
func (m *Mailer) Send(ctx context.Context, msg ports.Email) error {
	if len(msg.Raw) == 0 {
		return errors.New("ses: empty message")
	}

	in := &sesv2.SendEmailInput{
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: msg.Raw},
		},
	}
	if msg.From != "" {
		in.FromEmailAddress = aws.String(msg.From)
	}
	if len(msg.To) > 0 {
		in.Destination = &types.Destination{ToAddresses: msg.To}
	}

	out, err := m.api.SendEmail(ctx, in)
	if err != nil {
		return fmt.Errorf("ses: send: %w", err)
	}

	m.logger.Info("email sent", "to", msg.To, "subject", msg.Subject, "message_id", aws.ToString(out.MessageId))
	return nil
}
