package model

import "time"

// User represents an application user record as stored in the `users`
// table. The password hash never leaves the repository/handler layer;
// responses use the PublicUser projection instead.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address (stored lower-cased).
//  PasswordHash – bcrypt hashed password.
//  Role         – role name, USER or ADMIN.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}

// PublicUser is the outward-facing projection of a User. It structurally
// excludes the password hash so no handler can leak it by accident.
type PublicUser struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Public converts a stored User into its response projection.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Role names accepted in the users.role column and the JWT role claim.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)
