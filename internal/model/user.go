package model

import "time"

// User represents an application user record as stored in the
// `users` table.  Every property, culture and activity is owned by
// exactly one user.  The json tags are omitted because handlers build
// their own response types.
//
// Fields:
//  ID           – UUID primary key.
//  Email        – unique, lower-cased email address.
//  Name         – display name (may be empty).
//  PasswordHash – bcrypt hashed password.
//  IsActive     – false once the account has been closed.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           string    // users.id
	Email        string    // users.email
	Name         string    // users.name
	PasswordHash string    // users.password_hash
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The
// plain token is never stored; only its SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
