package models

import "time"

// User is an account record. Email is stored case-folded and is globally
// unique; it doubles as the ownership key for vault items and the
// two-factor credential.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
