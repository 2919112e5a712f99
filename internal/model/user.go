package model

import "time"

// Roles stored in users.role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account row in the `users` table.  Email is always
// stored lower-cased.  Users are never hard-deleted; deactivation flips
// IsActive instead.
type User struct {
	ID           uint64     // users.id
	Email        string     // users.email (unique, lower-case)
	PasswordHash string     // users.password_hash (bcrypt)
	Name         *string    // users.name (nullable)
	Role         string     // users.role (user | admin)
	IsActive     bool       // users.is_active
	CreatedAt    time.Time  // users.created_at
	LastLogin    *time.Time // users.last_login (nullable)
}
