package model

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Identity is the caller as resolved by the identity provider.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// SystemIdentity acts for background sweeps.
var SystemIdentity = Identity{UserID: "system", Role: RoleAdmin}

func (i Identity) IsOperator() bool {
	return i.Role == RoleStaff || i.Role == RoleAdmin
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanActOn reports whether the identity owns the resource or operates the venue.
func (i Identity) CanActOn(ownerID string) bool {
	return i.IsOperator() || (i.UserID != "" && i.UserID == ownerID)
}
