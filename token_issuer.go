package accounts

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultMailTimeout bounds a single delivery attempt so a slow mail
// transport cannot stall the triggering request.
var DefaultMailTimeout = 10 * time.Second

var codeSpan = big.NewInt(900_000)

// GenerateCode returns a 6 digit numeric code uniformly distributed over
// [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token code")
	}
	return fmt.Sprintf("%d", n.Int64()+100_000), nil
}

// TokenIssuer creates single-use codes and hands them to the mailer.
// It never creates a second live token for an account: issuing against an
// account that already holds one re-delivers the existing code.
type TokenIssuer struct {
	tokens      TokenStore
	mailer      Mailer
	logger      Logger
	mailTimeout time.Duration
}

// NewTokenIssuer creates an issuer with sane defaults.
func NewTokenIssuer(tokens TokenStore, mailer Mailer) *TokenIssuer {
	if mailer == nil {
		mailer = LogMailer{logger: defLogger{}}
	}
	return &TokenIssuer{
		tokens:      tokens,
		mailer:      mailer,
		logger:      defLogger{},
		mailTimeout: DefaultMailTimeout,
	}
}

// WithLogger overrides the logger used by the issuer.
func (i *TokenIssuer) WithLogger(logger Logger) *TokenIssuer {
	if logger != nil {
		i.logger = logger
	}
	return i
}

// WithMailTimeout overrides the per-delivery timeout.
func (i *TokenIssuer) WithMailTimeout(d time.Duration) *TokenIssuer {
	if d > 0 {
		i.mailTimeout = d
	}
	return i
}

// Issue returns the account's live token, creating one when none exists.
// The store upsert keeps concurrent calls from producing duplicates.
func (i *TokenIssuer) Issue(ctx context.Context, userID uuid.UUID) (*Token, error) {
	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	token, err := i.tokens.Put(ctx, &Token{
		UserID: userID,
		Code:   code,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist token")
	}

	return token, nil
}

// Dispatch delivers the code and reports delivery failures to the caller.
// Use it when the operation's success message depends on the email
// actually going out (password reset).
func (i *TokenIssuer) Dispatch(ctx context.Context, user *User, token *Token, kind MailKind) error {
	ctx, cancel := context.WithTimeout(ctx, i.mailTimeout)
	defer cancel()

	if err := i.mailer.Send(ctx, user.Email, kind, token.Code, user.Name); err != nil {
		return newUpstreamError(err, "failed to deliver token email")
	}

	return nil
}

// DispatchAsync delivers the code in the background, logging failures.
// Use it when the triggering operation succeeds regardless of delivery
// (registration, unverified login re-send).
func (i *TokenIssuer) DispatchAsync(user *User, token *Token, kind MailKind) {
	email, name, code := user.Email, user.Name, token.Code

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), i.mailTimeout)
		defer cancel()

		if err := i.mailer.Send(ctx, email, kind, code, name); err != nil {
			i.logger.Error("token email delivery failed", "kind", kind, "to", email, "error", err)
		}
	}()
}
