package domain

// Role describes what a participant may do inside a conversation.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleWriter, RoleReader:
		return true
	}
	return false
}

// Participant describes a member of a conversation. The creator is always a
// participant with RoleOwner.
type Participant struct {
	UserID      string
	DisplayName string
	Role        Role
}
