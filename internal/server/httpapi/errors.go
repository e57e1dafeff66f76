package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ttn64681/SWE-Final-Proj/internal/common"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorCodes names the specific errors clients are expected to branch on.
var errorCodes = []struct {
	err  error
	code string
}{
	{common.ErrDuplicateAccount, "duplicate_account"},
	{common.ErrInvalidCredentials, "invalid_credentials"},
	{common.ErrAccountNotActive, "account_not_active"},
	{common.ErrAccountNotFound, "account_not_found"},
	{common.ErrTokenExpired, "token_expired"},
	{common.ErrInvalidSignature, "invalid_token"},
	{common.ErrWrongTokenKind, "invalid_token"},
	{common.ErrInvalidToken, "invalid_token"},
	{common.ErrTokenNotFound, "token_not_found"},
	{common.ErrEphemeralTokenExpired, "token_expired"},
	{common.ErrCardNotFound, "card_not_found"},
	{common.ErrCardLimitReached, "card_limit_reached"},
	{common.ErrNotificationFailed, "notification_failed"},
	{common.ErrInvalidInput, "invalid_input"},
}

// statusFor maps an error's category to an HTTP status. Validation is
// checked first so wrapped input errors never leak as 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorExpired):
		return http.StatusGone
	case errors.Is(err, common.ErrorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// fail writes err as a JSON error. Internal errors are logged and replaced
// by a generic message.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, status, "internal", "internal error")
		return
	}
	msg := err.Error()
	if errors.Is(err, common.ErrorUnauthorized) {
		// Refused credentials are described by the code alone.
		msg = "unauthorized"
		if errors.Is(err, common.ErrAccountNotActive) {
			msg = "account is not active"
		}
	}
	writeError(w, status, codeFor(err), msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
