package rbac

import (
	"strings"
	"time"
)

// Role represents a named permission grouping. System roles keep their name for
// the lifetime of the installation; only the description may change.
type Role struct {
	ID           int64
	Name         string
	Description  string
	IsSystemRole bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Permission represents an atomic capability stored in the catalog.
type Permission struct {
	ID       int64
	Resource string
	Action   string
}

// String renders the boundary form "resource.action".
func (p Permission) String() string {
	return p.Resource + "." + p.Action
}

// IsWildcard reports whether this is the superuser permission.
func (p Permission) IsWildcard() bool {
	return p.Resource == WildcardResource && p.Action == WildcardAction
}

// Wildcard components. A role holding ("all","all") passes every check.
const (
	WildcardResource = "all"
	WildcardAction   = "all"
)

// Capability is the parsed form of a required "resource.action" string. Parse
// once at the boundary; internal code never re-splits raw strings.
type Capability struct {
	Resource string
	Action   string
}

// String renders the boundary form.
func (c Capability) String() string {
	return c.Resource + "." + c.Action
}

// ParseCapability validates and normalises a "resource.action" string.
// Malformed input is a validation failure, never a silent deny.
func ParseCapability(s string) (Capability, error) {
	raw := strings.TrimSpace(strings.ToLower(s))
	resource, action, ok := strings.Cut(raw, ".")
	if !ok || resource == "" || action == "" {
		return Capability{}, &ValidationError{Field: "capability", Reason: "must be of the form resource.action"}
	}
	return Capability{Resource: resource, Action: action}, nil
}

// ParseCapabilities parses a list, failing on the first malformed entry.
func ParseCapabilities(raw []string) ([]Capability, error) {
	caps := make([]Capability, 0, len(raw))
	for _, s := range raw {
		c, err := ParseCapability(s)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// Subject is the read-mostly authorization view of a principal, consumed by the
// route guard. Callers rebuild it after any role or permission mutation.
type Subject struct {
	UserID      int64
	RoleName    string
	Permissions []string
}

// Holds reports whether the subject's snapshot grants the capability, honouring
// the wildcard permission.
func (s *Subject) Holds(c Capability) bool {
	if s == nil {
		return false
	}
	wildcard := Capability{Resource: WildcardResource, Action: WildcardAction}.String()
	want := c.String()
	for _, p := range s.Permissions {
		if p == want || p == wildcard {
			return true
		}
	}
	return false
}
