package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ttn64681/SWE-Final-Proj/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration,
// so both "15m" and integer nanoseconds are accepted. Zero values mean
// "not set" and keep whatever Config already holds.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	GRPCAddr                     string         `json:"grpc_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	Issuer                       string         `json:"issuer"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	RememberMeMultiplier         int            `json:"remember_me_multiplier"`
	VerificationTokenTTL         timex.Duration `json:"verification_token_ttl"`
	PasswordResetTokenTTL        timex.Duration `json:"password_reset_token_ttl"`
	CardEncryptionKey            string         `json:"card_encryption_key"`
	CardKeySalt                  string         `json:"card_key_salt"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	MaxCardsPerAccount           int            `json:"max_cards_per_account"`
	FrontendURL                  string         `json:"frontend_url"`
	SMTPHost                     string         `json:"smtp_host"`
	SMTPPort                     int            `json:"smtp_port"`
	SMTPUsername                 string         `json:"smtp_username"`
	SMTPPassword                 string         `json:"smtp_password"`
	SMTPFrom                     string         `json:"smtp_from"`
	AdminEmail                   string         `json:"admin_email"`
	AdminPassword                string         `json:"admin_password"`
	LogLevel                     string         `json:"log_level"`
	LogFormat                    string         `json:"log_format"`
}

// parseJSON reads path and overlays every non-zero field onto config.
func parseJSON(config *Config, path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.CardEncryptionKey, c.CardEncryptionKey)
	setString(&config.CardKeySalt, c.CardKeySalt)
	setString(&config.FrontendURL, c.FrontendURL)
	setString(&config.SMTPHost, c.SMTPHost)
	setString(&config.SMTPUsername, c.SMTPUsername)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	setInt(&config.RememberMeMultiplier, c.RememberMeMultiplier)
	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.MaxCardsPerAccount, c.MaxCardsPerAccount)
	setInt(&config.SMTPPort, c.SMTPPort)

	if !c.AccessTokenValidityDuration.IsZero() {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if !c.RefreshTokenValidityDuration.IsZero() {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if !c.VerificationTokenTTL.IsZero() {
		config.VerificationTokenTTL = c.VerificationTokenTTL.Duration
	}
	if !c.PasswordResetTokenTTL.IsZero() {
		config.PasswordResetTokenTTL = c.PasswordResetTokenTTL.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
