// Package services implements the identity and payment operations on top of
// the repositories: registration and credential checks, single-use email
// tokens, session login and refresh, and the payment card vault.
package services

import (
	"context"
	"time"

	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

// AccountNotifier sends the account emails the services trigger.
type AccountNotifier interface {
	SendVerification(ctx context.Context, a *models.Account, token string, ttl time.Duration) error
	SendPasswordReset(ctx context.Context, a *models.Account, token string, ttl time.Duration) error
	SendPasswordChanged(ctx context.Context, a *models.Account)
	SendPromotionsEnrollment(ctx context.Context, a *models.Account)
}

type options struct {
	now func() time.Time
}

// Option customizes a service.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
