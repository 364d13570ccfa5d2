package vaultitems

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

func (r *PostgresRepository) Create(ctx context.Context, item *models.VaultItem) (*models.VaultItem, error) {

	query :=
		`INSERT INTO vault_items (id, owner_id, title, username, secret, url, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		item.ID, item.OwnerID, item.Title, item.Username, item.Secret, item.URL, item.Notes).Scan(&item.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return item, nil
}

func (r *PostgresRepository) SelectByOwner(ctx context.Context, ownerID string) ([]*models.VaultItem, error) {
	query :=
		`SELECT id, owner_id, title, username, secret, url, notes FROM vault_items
		 WHERE owner_id = $1
		 ORDER BY created_at
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := make([]*models.VaultItem, 0)
	for rows.Next() {
		item := &models.VaultItem{}
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Title, &item.Username,
			&item.Secret, &item.URL, &item.Notes); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return items, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id, ownerID string) (*models.VaultItem, error) {
	query :=
		`SELECT id, owner_id, title, username, secret, url, notes FROM vault_items
		 WHERE id = $1 AND owner_id = $2
		 `

	item := &models.VaultItem{}
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(&item.ID, &item.OwnerID,
		&item.Title, &item.Username, &item.Secret, &item.URL, &item.Notes)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return item, nil
}

// Update writes the whitelisted fields in one owner-filtered statement.
// A wrong id and a foreign owner are indistinguishable: both scan zero rows.
func (r *PostgresRepository) Update(ctx context.Context, id, ownerID string, upd *models.VaultItemUpdate) (*models.VaultItem, error) {

	query :=
		`UPDATE vault_items
		 SET title = $3, username = $4, secret = $5, url = $6, notes = $7, updated_at = now()
		 WHERE id = $1 AND owner_id = $2
		 RETURNING id, owner_id, title, username, secret, url, notes
		 `

	item := &models.VaultItem{}
	err := r.db.QueryRowContext(ctx, query, id, ownerID,
		upd.Title, upd.Username, upd.Secret, upd.URL, upd.Notes).Scan(&item.ID, &item.OwnerID,
		&item.Title, &item.Username, &item.Secret, &item.URL, &item.Notes)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return item, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	query :=
		`DELETE FROM vault_items
		 WHERE id = $1 AND owner_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}

	return nil
}
