package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// flagValues holds what was parsed from the command line. Only flags the
// user actually passed are applied, so unset flags never clobber values
// coming from the JSON file or the environment.
type flagValues struct {
	fs         *pflag.FlagSet
	v          Config
	configPath string
}

// parseFlags parses args (without the program name).
//
//	-c, --config string           JSON config file
//	-a, --http-addr string        HTTP listen address
//	-g, --grpc-addr string        gRPC listen address
//	-d, --database-dsn string     PostgreSQL DSN
//	-s, --secret-key string       HS256 signing secret
//	-t, --access-ttl duration     access token lifetime
//	-r, --refresh-ttl duration    refresh token lifetime
//	-k, --card-key string         hex AES-256 key for card numbers
//	    --admin-email string      bootstrap administrator email
//	    --admin-password string   bootstrap administrator password
func parseFlags(args []string, defaults Config) (*flagValues, error) {
	f := &flagValues{v: defaults}
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)

	fs.StringVarP(&f.configPath, "config", "c", "", "path to JSON config file")
	fs.StringVarP(&f.v.HTTPAddr, "http-addr", "a", defaults.HTTPAddr, "HTTP listen address")
	fs.StringVarP(&f.v.GRPCAddr, "grpc-addr", "g", defaults.GRPCAddr, "gRPC listen address")
	fs.StringVarP(&f.v.DatabaseDSN, "database-dsn", "d", defaults.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVarP(&f.v.SecretKey, "secret-key", "s", defaults.SecretKey, "session token signing secret")
	fs.StringVar(&f.v.Issuer, "issuer", defaults.Issuer, "session token issuer")
	fs.DurationVarP(&f.v.AccessTokenValidityDuration, "access-ttl", "t", defaults.AccessTokenValidityDuration, "access token lifetime")
	fs.DurationVarP(&f.v.RefreshTokenValidityDuration, "refresh-ttl", "r", defaults.RefreshTokenValidityDuration, "refresh token lifetime")
	fs.IntVar(&f.v.RememberMeMultiplier, "remember-me-multiplier", defaults.RememberMeMultiplier, "refresh lifetime multiplier for extended sessions")
	fs.DurationVar(&f.v.VerificationTokenTTL, "verification-ttl", defaults.VerificationTokenTTL, "email verification token lifetime")
	fs.DurationVar(&f.v.PasswordResetTokenTTL, "reset-ttl", defaults.PasswordResetTokenTTL, "password reset token lifetime")
	fs.StringVarP(&f.v.CardEncryptionKey, "card-key", "k", defaults.CardEncryptionKey, "hex AES-256 key for card numbers")
	fs.StringVar(&f.v.CardKeySalt, "card-key-salt", defaults.CardKeySalt, "salt for deriving the card key from a passphrase")
	fs.IntVar(&f.v.BcryptCost, "bcrypt-cost", defaults.BcryptCost, "bcrypt work factor")
	fs.IntVar(&f.v.MaxCardsPerAccount, "max-cards", defaults.MaxCardsPerAccount, "payment cards allowed per account")
	fs.StringVar(&f.v.FrontendURL, "frontend-url", defaults.FrontendURL, "base URL for links in emails")
	fs.StringVar(&f.v.SMTPHost, "smtp-host", defaults.SMTPHost, "SMTP host (empty logs emails instead)")
	fs.IntVar(&f.v.SMTPPort, "smtp-port", defaults.SMTPPort, "SMTP port")
	fs.StringVar(&f.v.SMTPUsername, "smtp-username", defaults.SMTPUsername, "SMTP username")
	fs.StringVar(&f.v.SMTPPassword, "smtp-password", defaults.SMTPPassword, "SMTP password")
	fs.StringVar(&f.v.SMTPFrom, "smtp-from", defaults.SMTPFrom, "sender address")
	fs.StringVar(&f.v.AdminEmail, "admin-email", defaults.AdminEmail, "email of the administrator created at startup")
	fs.StringVar(&f.v.AdminPassword, "admin-password", defaults.AdminPassword, "password of the administrator created at startup")
	fs.StringVar(&f.v.LogLevel, "log-level", defaults.LogLevel, "debug, info, warn or error")
	fs.StringVar(&f.v.LogFormat, "log-format", defaults.LogFormat, "json or text")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	f.fs = fs
	return f, nil
}

// apply copies explicitly set flags onto cfg.
func (f *flagValues) apply(cfg *Config) {
	f.fs.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "http-addr":
			cfg.HTTPAddr = f.v.HTTPAddr
		case "grpc-addr":
			cfg.GRPCAddr = f.v.GRPCAddr
		case "database-dsn":
			cfg.DatabaseDSN = f.v.DatabaseDSN
		case "secret-key":
			cfg.SecretKey = f.v.SecretKey
		case "issuer":
			cfg.Issuer = f.v.Issuer
		case "access-ttl":
			cfg.AccessTokenValidityDuration = f.v.AccessTokenValidityDuration
		case "refresh-ttl":
			cfg.RefreshTokenValidityDuration = f.v.RefreshTokenValidityDuration
		case "remember-me-multiplier":
			cfg.RememberMeMultiplier = f.v.RememberMeMultiplier
		case "verification-ttl":
			cfg.VerificationTokenTTL = f.v.VerificationTokenTTL
		case "reset-ttl":
			cfg.PasswordResetTokenTTL = f.v.PasswordResetTokenTTL
		case "card-key":
			cfg.CardEncryptionKey = f.v.CardEncryptionKey
		case "card-key-salt":
			cfg.CardKeySalt = f.v.CardKeySalt
		case "bcrypt-cost":
			cfg.BcryptCost = f.v.BcryptCost
		case "max-cards":
			cfg.MaxCardsPerAccount = f.v.MaxCardsPerAccount
		case "frontend-url":
			cfg.FrontendURL = f.v.FrontendURL
		case "smtp-host":
			cfg.SMTPHost = f.v.SMTPHost
		case "smtp-port":
			cfg.SMTPPort = f.v.SMTPPort
		case "smtp-username":
			cfg.SMTPUsername = f.v.SMTPUsername
		case "smtp-password":
			cfg.SMTPPassword = f.v.SMTPPassword
		case "smtp-from":
			cfg.SMTPFrom = f.v.SMTPFrom
		case "admin-email":
			cfg.AdminEmail = f.v.AdminEmail
		case "admin-password":
			cfg.AdminPassword = f.v.AdminPassword
		case "log-level":
			cfg.LogLevel = f.v.LogLevel
		case "log-format":
			cfg.LogFormat = f.v.LogFormat
		}
	})
}
