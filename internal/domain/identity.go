package domain

// Role is the capability class of a caller.
type Role string

const (
	RoleGuest     Role = "guest"
	RoleCustomer  Role = "customer"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleDelivery  Role = "delivery"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleCustomer, RoleModerator, RoleAdmin, RoleDelivery:
		return true
	}
	return false
}

// IsStaff reports whether r is an operator role.
func (r Role) IsStaff() bool {
	return r == RoleModerator || r == RoleAdmin || r == RoleDelivery
}

// Identity is what the identity provider yields for the current caller.
// AccountID is empty for guests; for operators it is the staff subject.
type Identity struct {
	AccountID string `json:"accountId,omitempty"`
	Role      Role   `json:"role"`
}

// Guest is the identity of an unauthenticated caller.
func Guest() Identity {
	return Identity{Role: RoleGuest}
}

// IsGuest reports whether the caller has no account.
func (i Identity) IsGuest() bool {
	return i.AccountID == "" || i.Role == RoleGuest
}
