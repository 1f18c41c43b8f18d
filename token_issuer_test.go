package accounts_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/converse-im/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 64; i++ {
		code, err := accounts.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100_000)
		assert.LessOrEqual(t, n, 999_999)
	}
}

func TestTokenIssuerIssue(t *testing.T) {
	tokens := newMemTokenStore()
	issuer := accounts.NewTokenIssuer(tokens, &recordingMailer{})
	userID := uuid.New()

	token, err := issuer.Issue(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, userID, token.UserID)
	assert.Len(t, token.Code, 6)
	assert.WithinDuration(t, token.CreatedAt.Add(accounts.TokenTTL), token.ExpiresAt, time.Second)
}

func TestTokenIssuerReusesLiveToken(t *testing.T) {
	tokens := newMemTokenStore()
	issuer := accounts.NewTokenIssuer(tokens, &recordingMailer{})
	userID := uuid.New()

	first, err := issuer.Issue(context.Background(), userID)
	require.NoError(t, err)

	second, err := issuer.Issue(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Code, second.Code)
}

func TestTokenIssuerReplacesExpiredToken(t *testing.T) {
	tokens := newMemTokenStore()
	issuer := accounts.NewTokenIssuer(tokens, &recordingMailer{})
	userID := uuid.New()

	first, err := issuer.Issue(context.Background(), userID)
	require.NoError(t, err)

	tokens.expire(userID)

	// The expired code is no longer redeemable.
	_, err = tokens.GetLiveByCode(context.Background(), first.Code)
	assert.True(t, accounts.IsNotFound(err))

	second, err := issuer.Issue(context.Background(), userID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestTokenIssuerDispatch(t *testing.T) {
	tokens := newMemTokenStore()
	mailer := &recordingMailer{}
	issuer := accounts.NewTokenIssuer(tokens, mailer)

	user := &accounts.User{ID: uuid.New(), Name: "Jane", Email: "jane@example.com"}
	token, err := issuer.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	require.NoError(t, issuer.Dispatch(context.Background(), user, token, accounts.MailKindReset))

	sent := mailer.deliveries()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@example.com", sent[0].To)
	assert.Equal(t, accounts.MailKindReset, sent[0].Kind)
	assert.Equal(t, token.Code, sent[0].Code)
	assert.Equal(t, "Jane", sent[0].Name)
}

func TestTokenIssuerDispatchFailure(t *testing.T) {
	tokens := newMemTokenStore()
	mailer := &recordingMailer{err: errors.New("smtp unavailable")}
	issuer := accounts.NewTokenIssuer(tokens, mailer)

	user := &accounts.User{ID: uuid.New(), Email: "jane@example.com"}
	token, err := issuer.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	err = issuer.Dispatch(context.Background(), user, token, accounts.MailKindVerify)
	require.Error(t, err)
	assert.True(t, accounts.IsUpstream(err))
}

func TestTokenIssuerDispatchAsync(t *testing.T) {
	tokens := newMemTokenStore()
	mailer := &recordingMailer{}
	issuer := accounts.NewTokenIssuer(tokens, mailer)

	user := &accounts.User{ID: uuid.New(), Email: "jane@example.com"}
	token, err := issuer.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	issuer.DispatchAsync(user, token, accounts.MailKindVerify)

	require.Eventually(t, func() bool {
		return len(mailer.deliveries()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, accounts.MailKindVerify, mailer.deliveries()[0].Kind)
}
