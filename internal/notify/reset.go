package notify

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/pkg/queue"
)

// EmailEnqueuer puts an email job on the worker queue.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// ResetMailer hands password-reset tokens to the email worker.
type ResetMailer struct {
	queue    EmailEnqueuer
	linkBase string
	logger   *zap.Logger
}

// NewResetMailer creates a reset notifier. linkBase is the frontend reset page; the token
// is appended as the "token" query parameter.
func NewResetMailer(q EmailEnqueuer, linkBase string, logger *zap.Logger) *ResetMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResetMailer{queue: q, linkBase: linkBase, logger: logger}
}

// ResetLink builds the link sent to the user.
func ResetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse reset link base: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NotifyPasswordReset enqueues the reset email.
func (m *ResetMailer) NotifyPasswordReset(ctx context.Context, email, token string, expires time.Time) error {
	link, err := ResetLink(m.linkBase, token)
	if err != nil {
		return err
	}
	payload := queue.EmailPayload{
		EmailType:      queue.EmailPasswordReset,
		RecipientEmail: email,
		Subject:        "Reset your Invitations password",
		BodyHTML:       resetBody(link, expires),
	}
	if err := m.queue.EnqueueEmail(ctx, payload); err != nil {
		return fmt.Errorf("enqueue reset email: %w", err)
	}
	m.logger.Info("password reset email queued", zap.String("email", email), zap.Time("expires", expires))
	return nil
}

func resetBody(link string, expires time.Time) string {
	link = html.EscapeString(link)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Password reset</h2>
    <p>Someone asked to reset the password of your Invitations account.</p>
    <p><a href="%s">Choose a new password</a></p>
    <p>The link is valid until %s UTC. If it was not you, ignore this email.</p>
  </div>
</body>
</html>`, link, expires.UTC().Format("2006-01-02 15:04"))
}
