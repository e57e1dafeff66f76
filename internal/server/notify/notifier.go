package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

const (
	verifyPath = "/auth/verify-email"
	resetPath  = "/auth/reset-password"
)

// Notifier composes account emails and hands them to a Sink.
//
// Verification and reset mails are critical: a failed delivery is returned
// as common.ErrNotificationFailed so the caller can report it. The others
// are best effort and only logged.
type Notifier struct {
	sink        Sink
	frontendURL string
	logger      logging.Logger
}

func NewNotifier(sink Sink, frontendURL string, l logging.Logger) *Notifier {
	return &Notifier{
		sink:        sink,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      l.With("module", "notifier"),
	}
}

func (n *Notifier) link(path, token string) string {
	return n.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func greeting(a *models.Account) string {
	if a.Profile.FirstName != "" {
		return "Hi " + a.Profile.FirstName + ","
	}
	return "Hi,"
}

func humanize(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
	return d.String()
}

// SendVerification mails the email verification link, valid for ttl.
func (n *Notifier) SendVerification(ctx context.Context, a *models.Account, token string, ttl time.Duration) error {
	body := fmt.Sprintf("%s\n\nPlease confirm your email address by opening the link below:\n\n%s\n\nThe link expires in %s.\n",
		greeting(a), n.link(verifyPath, token), humanize(ttl))
	return n.critical(ctx, Message{To: a.Email, Subject: "Verify your email address", Body: body})
}

// SendPasswordReset mails the password reset link, valid for ttl.
func (n *Notifier) SendPasswordReset(ctx context.Context, a *models.Account, token string, ttl time.Duration) error {
	body := fmt.Sprintf("%s\n\nA password reset was requested for your account. Open the link below to choose a new password:\n\n%s\n\n"+
		"The link expires in %s. If you did not ask for this, you can ignore this email.\n",
		greeting(a), n.link(resetPath, token), humanize(ttl))
	return n.critical(ctx, Message{To: a.Email, Subject: "Reset your password", Body: body})
}

// SendPasswordChanged confirms a password change.
func (n *Notifier) SendPasswordChanged(ctx context.Context, a *models.Account) {
	body := fmt.Sprintf("%s\n\nYour password was just changed. If this was not you, reset your password immediately.\n", greeting(a))
	n.bestEffort(ctx, Message{To: a.Email, Subject: "Your password was changed", Body: body})
}

// SendPromotionsEnrollment confirms the promotions opt-in.
func (n *Notifier) SendPromotionsEnrollment(ctx context.Context, a *models.Account) {
	body := fmt.Sprintf("%s\n\nYou are now subscribed to promotions and special offers. You can opt out at any time from your profile.\n", greeting(a))
	n.bestEffort(ctx, Message{To: a.Email, Subject: "You're subscribed to promotions", Body: body})
}

func (n *Notifier) critical(ctx context.Context, msg Message) error {
	if err := n.sink.Send(ctx, msg); err != nil {
		n.logger.Error(ctx, "email delivery failed", "subject", msg.Subject, "error", err)
		return fmt.Errorf("%w: %v", common.ErrNotificationFailed, err)
	}
	return nil
}

func (n *Notifier) bestEffort(ctx context.Context, msg Message) {
	if err := n.sink.Send(ctx, msg); err != nil {
		n.logger.Warn(ctx, "non-critical email delivery failed", "subject", msg.Subject, "error", err)
	}
}
