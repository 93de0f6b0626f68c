package model

import "time"

// Roles carried in the access token's "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
)

// User is an account in the `users` table.  Customers book tables for
// themselves; staff manage tables, opening hours and every reservation.
//
// Fields:
//
//	ID           – primary key identifier.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hash of the password.
//	Role         – CUSTOMER or STAFF.
//	IsActive     – disabled accounts cannot log in.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken is a row of `refresh_tokens`.  Only the SHA-256 hash of
// the raw token is persisted.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
