package account

import (
	"context"

	"github.com/mind-engage/learnhub/internal/logger"
)

// LogNotifier stands in for an email sender. Token values are redacted by the
// logger, so only the fact of sending is visible.
type LogNotifier struct{ log *logger.Logger }

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &LogNotifier{log: log.With("component", "Notifier")}
}

func (n *LogNotifier) SendVerification(_ context.Context, u *User, token string) error {
	n.log.Info("verification email queued", "user_id", u.ID, "email", u.Email, "token", token)
	return nil
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, u *User, token string) error {
	n.log.Info("password reset email queued", "user_id", u.ID, "email", u.Email, "token", token)
	return nil
}
