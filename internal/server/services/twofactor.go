package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkurganov/passvault/internal/common"
	"github.com/dkurganov/passvault/internal/server/repositories/repomanager"
	"github.com/dkurganov/passvault/internal/totpx"
)

// TwoFactorService runs the TOTP enrollment workflow. Per owner the
// credential moves through none -> pending -> enabled; the shared secret is
// fixed from the moment a client may have scanned it.
type TwoFactorService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager

	// test seam for the verification clock
	now func() time.Time
}

func NewTwoFactorService(db *sql.DB, m repomanager.RepositoryManager) *TwoFactorService {
	return &TwoFactorService{db: db, repomanager: m, now: time.Now}
}

// Provision creates a pending credential for the owner, or returns the one
// already there. The existence check and the insert are a single
// conditional upsert, so concurrent provisioning requests cannot mint two
// different secrets. An enabled credential is rejected: re-enrollment
// requires an explicit reset, never a silent secret change.
func (s *TwoFactorService) Provision(ctx context.Context, ownerID string) (string, error) {
	ownerID = NormalizeEmail(ownerID)
	if ownerID == "" {
		return "", fmt.Errorf("%w: owner is required", common.ErrorValidation)
	}

	repo := s.repomanager.TwoFactor(s.db)

	cred, err := repo.ProvisionSecret(ctx, ownerID, totpx.GenerateSecret())
	if err != nil {
		return "", common.ErrorInternal
	}
	if cred.Enabled {
		return "", common.ErrorTwoFactorAlreadyEnabled
	}

	uri, err := totpx.ProvisioningURI(cred.Secret, ownerID)
	if err != nil {
		return "", common.ErrorInternal
	}
	return uri, nil
}

// Confirm verifies the first code against a pending credential and enables
// it. Confirming an already-enabled credential is a no-op success.
func (s *TwoFactorService) Confirm(ctx context.Context, ownerID, code string) error {
	ownerID = NormalizeEmail(ownerID)
	repo := s.repomanager.TwoFactor(s.db)

	cred, err := repo.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorTwoFactorNotProvisioned
		}
		return common.ErrorInternal
	}

	if cred.Enabled {
		return nil
	}

	if !totpx.Verify(cred.Secret, code, s.now()) {
		return common.ErrorInvalidTwoFactorCode
	}

	if err := repo.Enable(ctx, ownerID); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// VerifyCode checks a login code against the owner's enabled credential.
// A missing or still-pending credential yields false without an error, so
// callers distinguish "not configured" only through their own Enabled check.
// Never mutates state.
func (s *TwoFactorService) VerifyCode(ctx context.Context, ownerID, code string) (bool, error) {
	ownerID = NormalizeEmail(ownerID)
	repo := s.repomanager.TwoFactor(s.db)

	cred, err := repo.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, common.ErrorInternal
	}
	if !cred.Enabled {
		return false, nil
	}

	return totpx.Verify(cred.Secret, code, s.now()), nil
}

// Enabled reports whether the owner has a confirmed credential.
func (s *TwoFactorService) Enabled(ctx context.Context, ownerID string) (bool, error) {
	ownerID = NormalizeEmail(ownerID)
	repo := s.repomanager.TwoFactor(s.db)

	cred, err := repo.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, common.ErrorInternal
	}
	return cred.Enabled, nil
}
