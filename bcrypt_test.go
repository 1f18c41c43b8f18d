package accounts_test

import (
	"testing"

	"github.com/converse-im/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := accounts.HashPassword("Password1!")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "Password1!", hash)

	_, err = accounts.HashPassword("")
	assert.ErrorIs(t, err, accounts.ErrNoEmptyString)
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := accounts.HashPassword("Password1!")
	require.NoError(t, err)

	assert.NoError(t, accounts.ComparePasswordAndHash("Password1!", hash))
	assert.Error(t, accounts.ComparePasswordAndHash("Password2!", hash))
	assert.Error(t, accounts.ComparePasswordAndHash("", hash))
}

func TestBcryptHasher(t *testing.T) {
	var hasher accounts.PasswordAuthenticator = accounts.BcryptHasher{}

	hash, err := hasher.HashPassword("Password1!")
	require.NoError(t, err)
	assert.NoError(t, hasher.ComparePasswordAndHash("Password1!", hash))
	assert.Error(t, hasher.ComparePasswordAndHash("wrong", hash))
}
