package accounts

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Store owns the database handle for the process: open it once at
// startup, inject its repository manager into the managers, close it at
// shutdown. Nothing in this package keeps global connection state.
type Store struct {
	client *persistence.Client
	db     *bun.DB
	repos  RepositoryManager
}

// OpenStore opens a sqlite-backed store at the given DSN, runs the
// embedded migrations and wires the repositories.
func OpenStore(ctx context.Context, cfg persistence.Config, dsn string) (*Store, error) {
	db, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*Token)(nil))

	client, err := persistence.New(cfg, db, sqlitedialect.New())
	if err != nil {
		return nil, err
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, err
	}

	store := &Store{
		client: client,
		db:     client.DB(),
	}
	store.repos = NewRepositoryManager(store.db)

	return store, nil
}

// DB returns the underlying bun handle.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Repos returns the repository manager bound to this store.
func (s *Store) Repos() RepositoryManager {
	return s.repos
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
