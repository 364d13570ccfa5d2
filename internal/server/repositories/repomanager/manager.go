package repomanager

import (
	"context"
	"database/sql"

	"github.com/dkurganov/passvault/internal/dbx"
	"github.com/dkurganov/passvault/internal/server/repositories/refreshtokens"
	"github.com/dkurganov/passvault/internal/server/repositories/twofactor"
	"github.com/dkurganov/passvault/internal/server/repositories/users"
	"github.com/dkurganov/passvault/internal/server/repositories/vaultitems"
)

// RepositoryManager hands out repositories bound to a connection or a
// transaction, so services can run several repository calls atomically.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	TwoFactor(db dbx.DBTX) twofactor.Repository
	VaultItems(db dbx.DBTX) vaultitems.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
