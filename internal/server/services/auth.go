// Package services contains server-side business logic: the authentication
// state machine, the two-factor enrollment workflow and owner-scoped vault
// operations.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkurganov/passvault/internal/common"
	"github.com/dkurganov/passvault/internal/cryptox"
	"github.com/dkurganov/passvault/internal/dbx"
	"github.com/dkurganov/passvault/internal/server/auth"
	"github.com/dkurganov/passvault/internal/server/config"
	"github.com/dkurganov/passvault/internal/server/models"
	"github.com/dkurganov/passvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService provides account operations:
// - SignUp: create users
// - Login: password check plus the optional two-factor gate
// - Refresh: rotate refresh tokens and mint new access tokens
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	twoFactor                    *TwoFactorService
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, twoFactor *TwoFactorService, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		twoFactor:                    twoFactor,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// SignUp creates a new user. The email is case-folded before uniqueness is
// checked, so a@x.com and A@X.com are the same account.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	hash, err := cryptox.HashPassword([]byte(password))
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{ID: uuid.NewString(), Email: email, PasswordHash: hash}
	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorUserExists) {
			return nil, common.ErrorUserExists
		}
		return nil, common.ErrorInternal
	}
	return u, nil
}

// Login runs the authentication state machine:
//
//	password wrong or user missing          -> ErrorInvalidCredentials
//	password ok, 2FA off                    -> token pair
//	password ok, 2FA on, no code            -> ErrorTwoFactorRequired
//	password ok, 2FA on, wrong code         -> ErrorInvalidTwoFactorCode
//	password ok, 2FA on, current-window code -> token pair
//
// An unknown email and a wrong password are indistinguishable to the
// caller; anything else would let an attacker enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email, password, totpCode string) (*TokenPair, error) {
	email = NormalizeEmail(email)

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorInvalidCredentials
		}
		return nil, common.ErrorInternal
	}

	if !cryptox.VerifyPassword(user.PasswordHash, []byte(password)) {
		return nil, common.ErrorInvalidCredentials
	}

	enabled, err := s.twoFactor.Enabled(ctx, email)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if enabled {
		if totpCode == "" {
			return nil, common.ErrorTwoFactorRequired
		}
		ok, err := s.twoFactor.VerifyCode(ctx, email, totpCode)
		if err != nil {
			return nil, common.ErrorInternal
		}
		if !ok {
			return nil, common.ErrorInvalidTwoFactorCode
		}
	}

	return s.generateTokenPair(ctx, user.Email, s.db)
}

// Refresh validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorInvalidToken
		}
		return nil, common.ErrorInternal
	}
	if token.Expires.Before(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)
		if err := repoTx.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.OwnerID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// --- helpers below ---

func (s *AuthService) generateAccessToken(owner string) (string, error) {
	return auth.GenerateToken(owner, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *AuthService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *AuthService) generateTokenPair(ctx context.Context, owner string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(owner)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	refreshRepo := s.repomanager.RefreshTokens(tx)
	if err := refreshRepo.Create(ctx, owner, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
