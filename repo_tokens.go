package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tokens exposes token persistence: the TokenStore contract the issuer
// and managers consume.
type Tokens interface {
	TokenStore
}

type tokens struct {
	repository.Repository[*Token]
	db *bun.DB
}

var (
	_ Tokens     = (*tokens)(nil)
	_ TokenStore = (*tokens)(nil)
)

func NewTokensRepository(db *bun.DB) Tokens {
	repo := repository.NewRepository[*Token](db, repository.ModelHandlers[*Token]{
		NewRecord: func() *Token { return &Token{} },
		GetID: func(t *Token) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Token, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "code"
		},
	})

	return &tokens{
		Repository: repo,
		db:         db,
	}
}

func (a *tokens) GetLiveByCode(ctx context.Context, code string) (*Token, error) {
	return a.getLive(ctx, "?TableAlias.code = ?", code)
}

func (a *tokens) GetLiveByUser(ctx context.Context, userID uuid.UUID) (*Token, error) {
	return a.getLive(ctx, "?TableAlias.user_id = ?", userID)
}

// getLive filters expiry in the query itself: an expired row is
// indistinguishable from a missing one.
func (a *tokens) getLive(ctx context.Context, where string, arg any) (*Token, error) {
	record := &Token{}
	err := a.db.NewSelect().
		Model(record).
		Where(where, arg).
		Where("?TableAlias.expires_at > ?", time.Now()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

// Put inserts candidate unless the account already holds a live token.
// The unique index on user_id makes the exists-check and insert a single
// atomic step: concurrent callers converge on one surviving row.
func (a *tokens) Put(ctx context.Context, candidate *Token) (*Token, error) {
	prepareTokenDefaults(candidate)

	// Clear any expired leftover first so the conflict target only ever
	// holds live rows.
	_, err := a.db.NewDelete().
		Model((*Token)(nil)).
		Where("?TableAlias.user_id = ?", candidate.UserID).
		Where("?TableAlias.expires_at <= ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	_, err = a.db.NewInsert().
		Model(candidate).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return a.GetLiveByUser(ctx, candidate.UserID)
}

func (a *tokens) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*Token)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func prepareTokenDefaults(record *Token) {
	if record == nil {
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(TokenTTL)
	}
}
