package model

import "time"

// User represents a registered account.
//
// Accounts are created either by username/password registration or by the
// GitHub OAuth callback. GitHubID is zero for password accounts and
// PasswordHash is empty for GitHub-only accounts.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	GitHubID     int64     `json:"githubId,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
