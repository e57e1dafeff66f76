package httpapi

import (
	"errors"
	"net/http"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/authn"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
)

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.bind(w, r, &req) {
		return
	}

	account, err := a.accounts.Register(r.Context(), req.Email, req.Password, models.Profile{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		PhoneNumber:     req.PhoneNumber,
		PromotionsOptIn: req.PromotionsOptIn,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	// The account exists either way; a failed email is reported so the
	// client can offer a resend.
	sent := true
	if _, err := a.tokens.Issue(r.Context(), account, models.TokenKindVerification); err != nil {
		if !errors.Is(err, common.ErrNotificationFailed) {
			a.fail(w, r, err)
			return
		}
		sent = false
	}

	writeJSON(w, http.StatusCreated, registerResponse{Account: newAccountResponse(account), VerificationSent: sent})
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrAccountNotActive):
		return "not_active"
	default:
		return "error"
	}
}

func (a *API) createAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if !a.bind(w, r, &req) {
		return
	}

	account, err := a.accounts.CreateAdmin(r.Context(), req.Email, req.Password, models.Profile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.logger.Info(r.Context(), "admin provisioned", "admin_account_id", principal(r).AccountID, "account_id", account.ID)
	writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.bind(w, r, &req) {
		return
	}

	pair, account, err := a.sessions.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	a.metrics.RecordLogin(loginOutcome(err))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		TokenType:        "Bearer",
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		ExpiresAt:        pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Account:          newAccountResponse(account),
	})
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !a.bind(w, r, &req) {
		return
	}

	token, exp, err := a.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{TokenType: "Bearer", AccessToken: token, ExpiresAt: exp})
}

// logout only acknowledges. Session tokens are stateless and stay valid
// until they expire; the client discards them.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !a.bind(w, r, &req) {
		return
	}

	account, err := a.tokens.Redeem(r.Context(), req.Token, models.TokenKindVerification)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

// resendVerification and forgotPassword answer 202 whether or not the
// email is registered.
func (a *API) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !a.bind(w, r, &req) {
		return
	}
	if err := a.tokens.ResendVerification(r.Context(), req.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !a.bind(w, r, &req) {
		return
	}
	if err := a.tokens.RequestPasswordReset(r.Context(), req.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !a.bind(w, r, &req) {
		return
	}
	if _, err := a.tokens.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	p, _ := authn.PrincipalFrom(r.Context())

	var req changePasswordRequest
	if !a.bind(w, r, &req) {
		return
	}

	account, err := a.accounts.Authenticate(r.Context(), p.Subject, req.CurrentPassword)
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			err = common.ErrInvalidCredentials
		}
		a.fail(w, r, err)
		return
	}
	if account.ID != p.AccountID {
		a.fail(w, r, common.ErrInvalidCredentials)
		return
	}

	if _, err := a.accounts.ChangePassword(r.Context(), account.ID, req.NewPassword); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
