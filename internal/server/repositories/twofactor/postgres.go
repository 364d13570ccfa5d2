package twofactor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkurganov/passvault/internal/common"
	"github.com/dkurganov/passvault/internal/dbx"
	"github.com/dkurganov/passvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ProvisionSecret uses a no-op conflict update so RETURNING always yields
// the surviving row: the fresh secret on first insert, the stored one on
// every later call. Concurrent provisioning requests therefore agree on a
// single secret, and an enabled credential is never overwritten.
func (r *PostgresRepository) ProvisionSecret(ctx context.Context, ownerID, secret string) (*models.TwoFactorCredential, error) {

	query :=
		`INSERT INTO two_factor_credentials (owner_id, secret, enabled)
		 VALUES ($1, $2, false)
		 ON CONFLICT (owner_id) DO UPDATE SET owner_id = excluded.owner_id
		 RETURNING secret, enabled
		 `

	cred := &models.TwoFactorCredential{OwnerID: ownerID}
	err := r.db.QueryRowContext(ctx, query, ownerID, secret).Scan(&cred.Secret, &cred.Enabled)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return cred, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID string) (*models.TwoFactorCredential, error) {
	query :=
		`SELECT owner_id, secret, enabled FROM two_factor_credentials
		 WHERE owner_id = $1
		 `

	cred := &models.TwoFactorCredential{}
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&cred.OwnerID, &cred.Secret, &cred.Enabled)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return cred, nil
}

func (r *PostgresRepository) Enable(ctx context.Context, ownerID string) error {
	query :=
		`UPDATE two_factor_credentials
		 SET enabled = true, updated_at = now()
		 WHERE owner_id = $1 AND enabled = false
		 `

	// Zero affected rows means a concurrent confirmation already enabled
	// the credential; the end state is the same either way.
	if _, err := r.db.ExecContext(ctx, query, ownerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
