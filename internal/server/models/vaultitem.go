package models

import "time"

// VaultItem is one stored credential. Secret holds ciphertext produced at
// the edge; the persistence and service layers treat it as opaque text.
type VaultItem struct {
	ID        string
	OwnerID   string
	Title     string
	Username  string
	Secret    string
	URL       string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VaultItemUpdate enumerates exactly the client-mutable fields of an item.
// ID and OwnerID are never client-settable on update.
type VaultItemUpdate struct {
	Title    string
	Username string
	Secret   string
	URL      string
	Notes    string
}
