package accounts

import (
	"context"

	"github.com/google/uuid"
)

// CredentialStore is what the lifecycle and relationship managers need
// from account persistence. The bun-backed Users repository implements it;
// tests substitute an in-memory fake.
type CredentialStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, record *User) (*User, error)
	SetVerified(ctx context.Context, id uuid.UUID) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error

	// SavePair persists both sides of a relationship transition, all or
	// nothing. Each record must still carry the version it was read at;
	// a stale version fails the whole write with ErrStaleRecord.
	SavePair(ctx context.Context, a, b *User) error

	ListProfiles(ctx context.Context, ids []uuid.UUID) ([]*PublicProfile, error)
	ListProfilesExcept(ctx context.Context, exclude uuid.UUID) ([]*PublicProfile, error)
}

// TokenStore persists the single-use codes. Liveness (expiry) is a read
// side concern: nothing here ever returns an expired token.
type TokenStore interface {
	GetLiveByCode(ctx context.Context, code string) (*Token, error)
	GetLiveByUser(ctx context.Context, userID uuid.UUID) (*Token, error)

	// Put inserts candidate unless the account already has a live token,
	// in which case the existing one is returned. The
	// exists-check and insert are a single atomic upsert.
	Put(ctx context.Context, candidate *Token) (*Token, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
