// Package inmemory provides map-backed repositories with the same atomicity
// guarantees as the Postgres ones. Used by service and handler tests.
package inmemory

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dkurganov/passvault/internal/common"
	"github.com/dkurganov/passvault/internal/dbx"
	"github.com/dkurganov/passvault/internal/server/models"
	"github.com/dkurganov/passvault/internal/server/repositories/refreshtokens"
	"github.com/dkurganov/passvault/internal/server/repositories/twofactor"
	"github.com/dkurganov/passvault/internal/server/repositories/users"
	"github.com/dkurganov/passvault/internal/server/repositories/vaultitems"
)

type RepositoryManager struct {
	users         *UserRepository
	twoFactor     *TwoFactorRepository
	vaultItems    *VaultItemRepository
	refreshTokens *RefreshTokenRepository
}

func NewRepositoryManager() *RepositoryManager {
	return &RepositoryManager{
		users:         &UserRepository{byEmail: map[string]*models.User{}},
		twoFactor:     &TwoFactorRepository{byOwner: map[string]*models.TwoFactorCredential{}},
		vaultItems:    &VaultItemRepository{byID: map[string]*models.VaultItem{}},
		refreshTokens: &RefreshTokenRepository{byToken: map[string]*models.RefreshToken{}},
	}
}

func (m *RepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *RepositoryManager) Users(dbx.DBTX) users.Repository                 { return m.users }
func (m *RepositoryManager) TwoFactor(dbx.DBTX) twofactor.Repository         { return m.twoFactor }
func (m *RepositoryManager) VaultItems(dbx.DBTX) vaultitems.Repository       { return m.vaultItems }
func (m *RepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.refreshTokens }

// --- users ---

type UserRepository struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return nil, common.ErrorUserExists
	}
	u := *user
	r.byEmail[user.Email] = &u
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

// --- two-factor credentials ---

type TwoFactorRepository struct {
	mu      sync.Mutex
	byOwner map[string]*models.TwoFactorCredential
}

func (r *TwoFactorRepository) ProvisionSecret(ctx context.Context, ownerID, secret string) (*models.TwoFactorCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byOwner[ownerID]; ok {
		c := *existing
		return &c, nil
	}
	cred := &models.TwoFactorCredential{OwnerID: ownerID, Secret: secret, CreatedAt: time.Now()}
	r.byOwner[ownerID] = cred
	c := *cred
	return &c, nil
}

func (r *TwoFactorRepository) Get(ctx context.Context, ownerID string) (*models.TwoFactorCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.byOwner[ownerID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *cred
	return &c, nil
}

func (r *TwoFactorRepository) Enable(ctx context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cred, ok := r.byOwner[ownerID]; ok && !cred.Enabled {
		cred.Enabled = true
		cred.UpdatedAt = time.Now()
	}
	return nil
}

// --- vault items ---

type VaultItemRepository struct {
	mu   sync.Mutex
	byID map[string]*models.VaultItem
}

func (r *VaultItemRepository) Create(ctx context.Context, item *models.VaultItem) (*models.VaultItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *item
	stored.CreatedAt = time.Now()
	r.byID[item.ID] = &stored
	return item, nil
}

func (r *VaultItemRepository) SelectByOwner(ctx context.Context, ownerID string) ([]*models.VaultItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]*models.VaultItem, 0)
	for _, it := range r.byID {
		if it.OwnerID == ownerID {
			c := *it
			items = append(items, &c)
		}
	}
	return items, nil
}

func (r *VaultItemRepository) Get(ctx context.Context, id, ownerID string) (*models.VaultItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.byID[id]
	if !ok || it.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	c := *it
	return &c, nil
}

func (r *VaultItemRepository) Update(ctx context.Context, id, ownerID string, upd *models.VaultItemUpdate) (*models.VaultItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.byID[id]
	if !ok || it.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	it.Title = upd.Title
	it.Username = upd.Username
	it.Secret = upd.Secret
	it.URL = upd.URL
	it.Notes = upd.Notes
	it.UpdatedAt = time.Now()
	c := *it
	return &c, nil
}

func (r *VaultItemRepository) Delete(ctx context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.byID[id]
	if !ok || it.OwnerID != ownerID {
		return common.ErrorNotFound
	}
	delete(r.byID, id)
	return nil
}

// --- refresh tokens ---

type RefreshTokenRepository struct {
	mu      sync.Mutex
	byToken map[string]*models.RefreshToken
}

func (r *RefreshTokenRepository) Create(ctx context.Context, ownerID string, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byToken[token] = &models.RefreshToken{
		OwnerID:   ownerID,
		Token:     token,
		Expires:   time.Now().Add(validity),
		CreatedAt: time.Now(),
	}
	return nil
}

func (r *RefreshTokenRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.byToken[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *rt
	return &c, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byToken, token)
	return nil
}
