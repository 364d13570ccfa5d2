package repomanager

import (
	"context"
	"database/sql"

	"github.com/dkurganov/passvault/internal/dbx"
	"github.com/dkurganov/passvault/internal/server/migrations"
	"github.com/dkurganov/passvault/internal/server/repositories/refreshtokens"
	"github.com/dkurganov/passvault/internal/server/repositories/twofactor"
	"github.com/dkurganov/passvault/internal/server/repositories/users"
	"github.com/dkurganov/passvault/internal/server/repositories/vaultitems"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) TwoFactor(db dbx.DBTX) twofactor.Repository {
	return twofactor.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) VaultItems(db dbx.DBTX) vaultitems.Repository {
	return vaultitems.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}
