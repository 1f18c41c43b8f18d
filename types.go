package accounts

import (
	"context"
	"fmt"
)

// Logger is the minimal logging surface the managers need. Applications
// plug their own implementation in through the WithLogger options.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds session credential options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
}

// MailKind selects the email template used for token delivery.
type MailKind string

const (
	// MailKindVerify is the account verification email.
	MailKindVerify MailKind = "verify"
	// MailKindReset is the password reset email.
	MailKindReset MailKind = "reset"
)

// Mailer delivers a token-bearing email to an account holder. A nil error
// means the transport confirmed delivery.
type Mailer interface {
	Send(ctx context.Context, toAddress string, kind MailKind, code, displayName string) error
}

// ImageStore persists an uploaded image and returns an opaque reference.
type ImageStore interface {
	Store(ctx context.Context, filename string, data []byte) (*ImageRef, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
