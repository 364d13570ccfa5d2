package users

import (
	"context"

	"github.com/dkurganov/passvault/internal/server/models"
)

type Repository interface {
	// Create inserts the user atomically, failing with
	// common.ErrorUserExists when the email is already taken.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
