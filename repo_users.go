package accounts

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var setVerifiedSQL = `UPDATE "users" AS "usr"
SET
	"is_verified" = TRUE,
	"updated_at" = current_timestamp
WHERE
	"usr"."id" = ?
RETURNING *;`

var setPasswordHashSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"updated_at" = current_timestamp
WHERE
	"usr"."id" = ?
RETURNING *;`

// Users exposes account persistence: the CredentialStore contract the
// managers consume plus the transaction-aware variants.
type Users interface {
	CredentialStore

	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	SavePairTx(ctx context.Context, tx bun.IDB, a, b *User) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users           = (*users)(nil)
	_ CredentialStore = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) SetVerified(ctx context.Context, id uuid.UUID) error {
	res, err := a.Repository.RawTx(ctx, a.db, setVerifiedSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *users) SetPasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, a.db, setPasswordHashSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *users) SavePair(ctx context.Context, x, y *User) error {
	return a.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return a.SavePairTx(ctx, tx, x, y)
	})
}

// SavePairTx writes both records with version guards. Run it inside a
// transaction so a stale side rolls the other back.
func (a *users) SavePairTx(ctx context.Context, tx bun.IDB, x, y *User) error {
	for _, record := range []*User{x, y} {
		if err := a.saveGuarded(ctx, tx, record); err != nil {
			return err
		}
	}
	return nil
}

func (a *users) saveGuarded(ctx context.Context, tx bun.IDB, record *User) error {
	res, err := tx.NewUpdate().
		Model(record).
		Column("incoming_requests", "outgoing_requests", "friends").
		Set("version = version + 1").
		Set("updated_at = current_timestamp").
		Where("?TableAlias.id = ?", record.ID).
		Where("?TableAlias.version = ?", record.Version).
		Exec(ctx)

	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return goerrors.New("record was modified concurrently", goerrors.CategoryConflict).
			WithTextCode(TextCodeStaleRecord).
			WithCode(goerrors.CodeConflict).
			WithMetadata(map[string]any{
				"id":      record.ID.String(),
				"version": record.Version,
			})
	}

	record.Version++
	return nil
}

func (a *users) ListProfiles(ctx context.Context, ids []uuid.UUID) ([]*PublicProfile, error) {
	if len(ids) == 0 {
		return []*PublicProfile{}, nil
	}

	var records []*User
	err := a.db.NewSelect().
		Model(&records).
		Column("id", "name", "email", "image_url").
		Where("?TableAlias.id IN (?)", bun.In(ids)).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return profilesOf(records), nil
}

func (a *users) ListProfilesExcept(ctx context.Context, exclude uuid.UUID) ([]*PublicProfile, error) {
	var records []*User
	err := a.db.NewSelect().
		Model(&records).
		Column("id", "name", "email", "image_url").
		Where("?TableAlias.id != ?", exclude).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return profilesOf(records), nil
}

func profilesOf(records []*User) []*PublicProfile {
	profiles := make([]*PublicProfile, 0, len(records))
	for _, record := range records {
		profiles = append(profiles, record.PublicProfile())
	}
	return profiles
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.IncomingRequests == nil {
		record.IncomingRequests = []uuid.UUID{}
	}
	if record.OutgoingRequests == nil {
		record.OutgoingRequests = []uuid.UUID{}
	}
	if record.Friends == nil {
		record.Friends = []uuid.UUID{}
	}
}
