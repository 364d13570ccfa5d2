package services

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeEmail case-folds and trims an email so that every lookup and
// ownership key uses the same form. User, TwoFactorCredential and VaultItem
// records are all keyed on this normalization; applying a different one
// anywhere would make cross-component lookups silently miss.
func NormalizeEmail(email string) string {
	// cases.Caser is stateful, so a fresh one per call
	return cases.Fold().String(strings.TrimSpace(email))
}
