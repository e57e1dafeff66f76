package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ttn64681/SWE-Final-Proj/internal/common"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/models"
	"github.com/ttn64681/SWE-Final-Proj/internal/server/services"
)

const maxBodyBytes = 1 << 20

type registerRequest struct {
	Email           string `json:"email"            validate:"required,email,max=254"`
	Password        string `json:"password"         validate:"required,min=8,max=72"`
	FirstName       string `json:"first_name"       validate:"max=100"`
	LastName        string `json:"last_name"        validate:"max=100"`
	PhoneNumber     string `json:"phone_number"     validate:"omitempty,max=30"`
	PromotionsOptIn bool   `json:"promotions_opt_in"`
}

type createAdminRequest struct {
	Email     string `json:"email"      validate:"required,email,max=254"`
	Password  string `json:"password"   validate:"required,min=12,max=72"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name"  validate:"max=100"`
}

type loginRequest struct {
	Email      string `json:"email"       validate:"required,email"`
	Password   string `json:"password"    validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"        validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

type addressRequest struct {
	Street  string `json:"street"  validate:"required,max=200"`
	City    string `json:"city"    validate:"required,max=100"`
	State   string `json:"state"   validate:"max=100"`
	Country string `json:"country" validate:"max=100"`
	Zip     string `json:"zip"     validate:"max=20"`
}

// cardRequest is the body for creating and for updating a card.
type cardRequest struct {
	CardNumber     string         `json:"card_number"     validate:"required"`
	CardholderName string         `json:"cardholder_name" validate:"required,max=100"`
	CardType       string         `json:"card_type"       validate:"required,oneof=visa mastercard amex discover"`
	ExpirationDate string         `json:"expiration_date" validate:"required,len=7"`
	MakeDefault    bool           `json:"make_default"`
	BillingAddress addressRequest `json:"billing_address" validate:"required"`
}

func (c cardRequest) details() services.CardDetails {
	return services.CardDetails{
		Number:         c.CardNumber,
		CardholderName: c.CardholderName,
		Type:           models.CardType(c.CardType),
		ExpirationDate: c.ExpirationDate,
		MakeDefault:    c.MakeDefault,
	}
}

func (c cardRequest) address() services.BillingAddress {
	return services.BillingAddress{
		Street:  c.BillingAddress.Street,
		City:    c.BillingAddress.City,
		State:   c.BillingAddress.State,
		Country: c.BillingAddress.Country,
		Zip:     c.BillingAddress.Zip,
	}
}

type accountResponse struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	Status          string    `json:"status"`
	FirstName       string    `json:"first_name,omitempty"`
	LastName        string    `json:"last_name,omitempty"`
	PhoneNumber     string    `json:"phone_number,omitempty"`
	PromotionsOptIn bool      `json:"promotions_opt_in"`
	CreatedAt       time.Time `json:"created_at"`
}

func newAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		ID:              a.ID,
		Email:           a.Email,
		Role:            string(a.Role),
		Status:          string(a.Status),
		FirstName:       a.Profile.FirstName,
		LastName:        a.Profile.LastName,
		PhoneNumber:     a.Profile.PhoneNumber,
		PromotionsOptIn: a.Profile.PromotionsOptIn,
		CreatedAt:       a.CreatedAt,
	}
}

type registerResponse struct {
	Account          accountResponse `json:"account"`
	VerificationSent bool            `json:"verification_sent"`
}

type loginResponse struct {
	TokenType        string          `json:"token_type"`
	AccessToken      string          `json:"access_token"`
	RefreshToken     string          `json:"refresh_token"`
	ExpiresAt        time.Time       `json:"expires_at"`
	RefreshExpiresAt time.Time       `json:"refresh_expires_at"`
	Account          accountResponse `json:"account"`
}

type refreshResponse struct {
	TokenType   string    `json:"token_type"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type addressResponse struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Zip     string `json:"zip"`
}

// cardResponse never carries the full number.
type cardResponse struct {
	ID             int64            `json:"id"`
	MaskedNumber   string           `json:"masked_number"`
	CardholderName string           `json:"cardholder_name"`
	CardType       string           `json:"card_type"`
	ExpirationDate string           `json:"expiration_date"`
	IsDefault      bool             `json:"is_default"`
	BillingAddress *addressResponse `json:"billing_address,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func newCardResponse(c *models.PaymentCard) cardResponse {
	out := cardResponse{
		ID:             c.ID,
		MaskedNumber:   c.MaskedNumber(),
		CardholderName: c.CardholderName,
		CardType:       string(c.Type),
		ExpirationDate: c.ExpirationDate,
		IsDefault:      c.IsDefault,
		CreatedAt:      c.CreatedAt,
	}
	if b := c.BillingAddress; b != nil {
		out.BillingAddress = &addressResponse{Street: b.Street, City: b.City, State: b.State, Country: b.Country, Zip: b.Zip}
	}
	return out
}

func newCardList(list []*models.PaymentCard) []cardResponse {
	out := make([]cardResponse, 0, len(list))
	for _, c := range list {
		out = append(out, newCardResponse(c))
	}
	return out
}

var errMalformedBody = errors.New("malformed request body")

// decode reads a JSON body into dst and validates it. Syntax errors come
// back as errMalformedBody, validation failures as common.ErrInvalidInput.
func (a *API) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}

	if err := a.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", common.ErrInvalidInput, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return nil
}

// bind decodes and, on failure, writes the error response. It reports
// whether the handler should continue.
func (a *API) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := a.decode(r, dst)
	if err == nil {
		return true
	}
	if errors.Is(err, errMalformedBody) {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return false
	}
	a.fail(w, r, err)
	return false
}
