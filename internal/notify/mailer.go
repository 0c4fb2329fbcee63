package notify

import (
	"context"
	"fmt"

	"github.com/medassist/medassist-ai-platform/pkg/logging"
)

// Mailer sends account lifecycle emails. All sends are best-effort; a
// failure is logged and never propagated to the registration flow.
type Mailer struct {
	sender      EmailSender
	frontendURL string
	logger      *logging.Logger
}

// NewMailer creates a mailer. A nil sender disables sending.
func NewMailer(sender EmailSender, frontendURL string, logger *logging.Logger) *Mailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Mailer{
		sender:      sender,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// SendVerification emails the account verification link.
func (m *Mailer) SendVerification(ctx context.Context, email, name, token string) {
	if m == nil || m.sender == nil {
		return
	}
	url := fmt.Sprintf("%s/verify-email/%s", m.frontendURL, token)
	err := m.sender.Send(ctx, EmailMessage{
		To:      email,
		ToName:  name,
		Subject: "Email Verification",
		Body:    fmt.Sprintf("Please verify your email by clicking: %s", url),
	})
	if err != nil {
		m.logger.Warn("verification email failed", "to", email, "error", err)
	}
}
