package models

// Role is a participant's privilege level inside a chat.
type Role string

const (
	RoleMember  Role = "MEMBER"
	RoleAdmin   Role = "ADMIN"
	RoleCreator Role = "CREATOR"
)

func (r Role) rank() int {
	switch r {
	case RoleCreator:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r is as privileged as other.
func (r Role) AtLeast(other Role) bool {
	return r.rank() >= other.rank()
}

// CanKick reports whether the role may remove other participants.
func (r Role) CanKick() bool {
	return r.AtLeast(RoleAdmin)
}

// CanManageAdmins reports whether the role may assign or remove the admin role.
func (r Role) CanManageAdmins() bool {
	return r == RoleCreator
}

// User is the public profile of an account.
type User struct {
	ID       int     `json:"id"`
	Username string  `json:"username"`
	FullName string  `json:"fullName"`
	Picture  *string `json:"picture,omitempty"`
}

// ChatParticipant pairs a user with their role in a chat.
type ChatParticipant struct {
	User User `json:"user"`
	Role Role `json:"role"`
}
