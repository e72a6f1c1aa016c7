package rbac

// Decision is the terminal outcome of a route guard evaluation. Checking is the
// only non-terminal state; a guard always resolves to one of the other three.
type Decision int

const (
	// DecisionChecking is the initial state while the principal resolves.
	DecisionChecking Decision = iota
	// DecisionAuthorized grants access.
	DecisionAuthorized
	// DecisionUnauthorized denies access for a resolved principal.
	DecisionUnauthorized
	// DecisionUnauthenticated means no principal resolved; callers route to a
	// sign-in path rather than an access-denied one.
	DecisionUnauthenticated
)

func (d Decision) String() string {
	switch d {
	case DecisionAuthorized:
		return "authorized"
	case DecisionUnauthorized:
		return "unauthorized"
	case DecisionUnauthenticated:
		return "unauthenticated"
	default:
		return "checking"
	}
}

// Guard gates access to a protected operation given a required capability set.
// It is a pure control-flow decision over a principal snapshot; rendering or
// redirecting on the outcome belongs to the consuming layer.
type Guard struct {
	adminRole string
}

// NewGuard constructs a Guard. adminRole names the distinguished administrator
// role that short-circuits to Authorized; pass "" to disable the shortcut and
// rely on the seeded wildcard permission instead.
func NewGuard(adminRole string) *Guard {
	return &Guard{adminRole: adminRole}
}

// Evaluate resolves the guard for the subject. A nil subject is
// Unauthenticated. An empty requirement list is Authorized for any resolved
// subject. Requirements are checked in order against the subject's snapshot;
// the first missing capability decides Unauthorized.
func (g *Guard) Evaluate(subject *Subject, required []Capability) Decision {
	if subject == nil {
		return DecisionUnauthenticated
	}
	if g.adminRole != "" && subject.RoleName == g.adminRole {
		return DecisionAuthorized
	}
	for _, c := range required {
		if !subject.Holds(c) {
			return DecisionUnauthorized
		}
	}
	return DecisionAuthorized
}
