package vaultitems

import (
	"context"

	"github.com/dkurganov/passvault/internal/server/models"
)

// Repository persists vault items. Every lookup and mutation carries the
// owner filter inside the single SQL statement; there is deliberately no
// way to address an item by id alone.
type Repository interface {
	Create(ctx context.Context, item *models.VaultItem) (*models.VaultItem, error)
	SelectByOwner(ctx context.Context, ownerID string) ([]*models.VaultItem, error)
	Get(ctx context.Context, id, ownerID string) (*models.VaultItem, error)
	Update(ctx context.Context, id, ownerID string, upd *models.VaultItemUpdate) (*models.VaultItem, error)
	Delete(ctx context.Context, id, ownerID string) error
}
