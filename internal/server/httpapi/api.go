// Package httpapi exposes the account, session and payment card operations
// as a JSON API on a chi router.
package httpapi

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/auth"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/authn"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/services"
)

// Accounts is the credential store.
type Accounts interface {
	Register(ctx context.Context, email, rawPassword string, profile models.Profile) (*models.Account, error)
	Authenticate(ctx context.Context, email, rawPassword string) (*models.Account, error)
	ChangePassword(ctx context.Context, accountID int64, newRawPassword string) (*models.Account, error)
	CreateAdmin(ctx context.Context, email, rawPassword string, profile models.Profile) (*models.Account, error)
}

// EphemeralTokens drives the email verification and password reset flows.
type EphemeralTokens interface {
	Issue(ctx context.Context, account *models.Account, kind models.TokenKind) (string, error)
	Redeem(ctx context.Context, token string, kind models.TokenKind) (*models.Account, error)
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newRawPassword string) (*models.Account, error)
}

// Sessions issues and refreshes session tokens.
type Sessions interface {
	Login(ctx context.Context, email, rawPassword string, rememberMe bool) (*auth.TokenPair, *models.Account, error)
	Refresh(ctx context.Context, refreshToken string) (string, time.Time, error)
}

// Vault manages payment cards.
type Vault interface {
	CreateCard(ctx context.Context, accountID int64, d services.CardDetails, addr services.BillingAddress) (*models.PaymentCard, error)
	UpdateCard(ctx context.Context, accountID, cardID int64, d services.CardDetails, addr services.BillingAddress) (*models.PaymentCard, error)
	SetDefault(ctx context.Context, accountID, cardID int64) error
	DeleteCard(ctx context.Context, accountID, cardID int64) error
	ListForAccount(ctx context.Context, accountID int64) ([]*models.PaymentCard, error)
	GetDefault(ctx context.Context, accountID int64) (*models.PaymentCard, error)
}

// Pinger reports database reachability for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Instrumentation is satisfied by *metrics.Metrics.
type Instrumentation interface {
	Instrument(next http.Handler) http.Handler
	Handler() http.Handler
	RecordLogin(outcome string)
}

type API struct {
	accounts Accounts
	tokens   EphemeralTokens
	sessions Sessions
	vault    Vault
	authn    *authn.Authenticator
	metrics  Instrumentation
	db       Pinger
	validate *validator.Validate
	logger   logging.Logger
}

type Deps struct {
	Accounts      Accounts
	Tokens        EphemeralTokens
	Sessions      Sessions
	Vault         Vault
	Authenticator *authn.Authenticator
	Metrics       Instrumentation
	DB            Pinger
	Logger        logging.Logger
}

func New(d Deps) *API {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &API{
		accounts: d.Accounts,
		tokens:   d.Tokens,
		sessions: d.Sessions,
		vault:    d.Vault,
		authn:    d.Authenticator,
		metrics:  d.Metrics,
		db:       d.DB,
		validate: v,
		logger:   d.Logger.With("module", "http_api"),
	}
}

// Routes builds the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.recoverer)
	r.Use(a.metrics.Instrument)
	r.Use(a.requestLogger)
	r.Use(a.authn.Middleware)

	r.Get("/healthz", a.healthz)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", a.register)
		r.Post("/login", a.login)
		r.Post("/refresh", a.refresh)
		r.Post("/logout", a.logout)
		r.Post("/verify-email", a.verifyEmail)
		r.Post("/resend-verification", a.resendVerification)
		r.Post("/forgot-password", a.forgotPassword)
		r.Post("/reset-password", a.resetPassword)
		r.With(authn.RequireAuthority(authn.AuthorityUser)).Post("/change-password", a.changePassword)
	})

	r.Route("/api/payment-cards", func(r chi.Router) {
		r.Use(authn.RequireAuthority(authn.AuthorityUser))
		r.Get("/", a.listCards)
		r.Post("/", a.createCard)
		r.Get("/default", a.getDefaultCard)
		r.Put("/{id}", a.updateCard)
		r.Put("/{id}/default", a.setDefaultCard)
		r.Delete("/{id}", a.deleteCard)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authn.RequireAuthority(authn.AuthorityAdmin))
		r.Post("/accounts", a.createAdmin)
		r.Get("/accounts/{id}/payment-cards", a.adminListCards)
	})

	return r
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.PingContext(ctx); err != nil {
			a.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				a.logger.Error(r.Context(), "handler panic", "panic", p)
				writeError(w, http.StatusInternalServerError, "internal", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
