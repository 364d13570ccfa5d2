// Package common contains shared constants, sentinel errors and small
// helpers used across PassVault components.
package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// service specific errors
	ErrorInternal   = errors.New("internal error")
	ErrorValidation = errors.New("validation error")

	// authentication errors; a missing user and a wrong password both
	// surface as ErrorInvalidCredentials
	ErrorInvalidCredentials   = errors.New("invalid credentials")
	ErrorTwoFactorRequired    = errors.New("two-factor code required")
	ErrorInvalidTwoFactorCode = errors.New("invalid two-factor code")
	ErrorUserExists           = errors.New("user already exists")

	// two-factor enrollment errors
	ErrorTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrorTwoFactorNotProvisioned = errors.New("two-factor authentication not provisioned")

	// token errors
	ErrorInvalidToken      = errors.New("invalid token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// crypto errors
	ErrorDecryptFailed = errors.New("decrypt failed")
)
