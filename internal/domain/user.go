package domain

import "time"

// Role is the verified role claim attached to a user record. The core only
// reads it for routing decisions; enforcement is the identity provider's job.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ValidRole reports whether r is one of the two known roles.
func ValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleUser
}

// User is the domain model for accounts in the users collection.
type User struct {
	ID           string
	Email        string
	Username     string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// DisplayName prefers the username, falling back to the email address.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
