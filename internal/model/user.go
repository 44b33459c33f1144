package model

import "time"

// Role enumerates the organization role ladder, lowest first.
type Role string

const (
	RoleCandidate      Role = "CANDIDATE"
	RoleContentManager Role = "CONTENT_MANAGER"
	RoleOrgAdmin       Role = "ORG_ADMIN"
)

// roleRank orders roles so that a higher rank implies every lower privilege.
var roleRank = map[Role]int{
	RoleCandidate:      1,
	RoleContentManager: 2,
	RoleOrgAdmin:       3,
}

// HasMinimumRole reports whether role carries at least the required privilege.
func HasMinimumRole(role, required Role) bool {
	return roleRank[role] >= roleRank[required]
}

// User represents an organization member (candidate or manager).
type User struct {
	ID           int       `json:"id"`
	OrgID        int       `json:"org_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}
