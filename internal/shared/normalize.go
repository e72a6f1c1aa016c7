package shared

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// CanonicalStatus folds status strings (account state, dealer verification) to a
// single lowercase form before they are written or compared. Rows written through
// this package never need case-variant lookups.
func CanonicalStatus(s string) string {
	return lowerCaser.String(strings.TrimSpace(s))
}

// KnownStatuses for profile accounts.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusPending   = "pending"
)

// ValidStatus reports whether the canonical form of s is a known account status.
func ValidStatus(s string) bool {
	switch CanonicalStatus(s) {
	case StatusActive, StatusSuspended, StatusPending:
		return true
	}
	return false
}
