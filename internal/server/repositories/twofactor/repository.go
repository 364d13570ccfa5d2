package twofactor

import (
	"context"

	"github.com/dkurganov/passvault/internal/server/models"
)

type Repository interface {
	// ProvisionSecret inserts a pending credential with the given secret,
	// or returns the existing record untouched when one is already there.
	// The whole check-or-create step is one atomic statement.
	ProvisionSecret(ctx context.Context, ownerID, secret string) (*models.TwoFactorCredential, error)
	Get(ctx context.Context, ownerID string) (*models.TwoFactorCredential, error)
	// Enable flips a pending credential to enabled. Losing the race to a
	// concurrent confirmation still counts as success.
	Enable(ctx context.Context, ownerID string) error
}
