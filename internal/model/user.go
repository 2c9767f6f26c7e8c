// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Accounts are created either by username/password signup or by the first
// GitHub sign-in. GitHubID is nil for password accounts; PasswordHash is
// empty for GitHub accounts, which therefore can never pass a password login.
//
// WHY int64 IDs?
// IDs are assigned by SQLite AUTOINCREMENT: monotonic and never reused, even
// after a row is deleted. Clients see them as plain numbers ("userId": 3).
type User struct {
	ID           int64     `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // bcrypt hash, never serialised
	GitHubID     *int64    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`
}

// UserSummary is the public projection returned by signup, login and updateMe.
type UserSummary struct {
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary projects u onto its public fields.
func (u *User) Summary() UserSummary {
	return UserSummary{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// UserProfile is the GET /users/me payload. The counts are computed at read
// time from the collection and memory tables.
type UserProfile struct {
	UserID          int64     `json:"userId"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	CollectionCount int       `json:"collectionCount"`
	MemoryCount     int       `json:"memoryCount"`
	CreatedAt       time.Time `json:"createdAt"`
}
