package models

import "time"

type RefreshToken struct {
	ID        string
	OwnerID   string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
