package models

import "time"

// TwoFactorCredential is the single TOTP enrollment record for an owner.
// OwnerID is the case-folded account email; at most one record exists per
// owner. Enabled flips to true only after the first verified confirmation,
// and the secret never changes while Enabled is true.
type TwoFactorCredential struct {
	OwnerID   string
	Secret    string // base32 shared secret
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
