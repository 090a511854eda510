// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in sub-packages (see repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/prompt-library/internal/model"
)

// ListOptions pages a query. A zero Limit means "no limit".
type ListOptions struct {
	Limit  int
	Offset int
}

// VersionRepository holds the prompt/version pair and the current-version
// pointer that links them. Every method that touches both tables runs in a
// single transaction.
type VersionRepository interface {
	// CreateWithSeed inserts prompt and its seed version together and points
	// the prompt at the seed. IDs and timestamps are filled in on both.
	CreateWithSeed(ctx context.Context, prompt *model.Prompt, seed *model.Version) error

	GetPrompt(ctx context.Context, id string) (*model.Prompt, error)
	GetVersion(ctx context.Context, promptID, versionID string) (*model.Version, error)

	// InsertVersion appends a version row. It does not move the pointer.
	InsertVersion(ctx context.Context, v *model.Version) error

	// SetCurrentVersion moves the pointer to versionID and touches the
	// prompt's updated_at. When expectedCurrent is non-empty the move only
	// happens if the pointer still equals it, otherwise ErrConflict.
	SetCurrentVersion(ctx context.Context, promptID, versionID, expectedCurrent string) error

	// UpdateCurrentContent overwrites the content of whichever version the
	// pointer names at write time. expectedCurrent works as above.
	UpdateCurrentContent(ctx context.Context, promptID, expectedCurrent, content string) (*model.Version, error)

	// ListVersions returns every version of the prompt, newest first.
	ListVersions(ctx context.Context, promptID string) ([]model.Version, error)

	// DeletePrompt removes the prompt and all of its versions.
	DeletePrompt(ctx context.Context, id string) error
}

// PromptRepository covers prompt metadata and owner-scoped queries.
type PromptRepository interface {
	// ListPromptViews returns every prompt owned by userID with its current
	// version resolved, most recently updated first.
	ListPromptViews(ctx context.Context, userID string) ([]model.PromptView, error)

	// UpdatePromptMeta writes name, source, notes and tags, and touches
	// updated_at. Pinned belongs to SetPinned and is not written.
	UpdatePromptMeta(ctx context.Context, prompt *model.Prompt) error

	// SetPinned flips only the pinned flag; updated_at is left alone.
	SetPinned(ctx context.Context, id string, pinned bool) error

	CountVersionsByUser(ctx context.Context, userID string) (int, error)

	// ImportPrompt stores a prompt together with an existing history in one
	// transaction. New IDs are assigned and parent links are remapped.
	ImportPrompt(ctx context.Context, prompt *model.Prompt, versions []model.Version, currentIndex int) error
}

// UserRepository persists accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByLogin(ctx context.Context, usernameOrEmail string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateUser(ctx context.Context, user *model.User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// DeleteUser removes the account and everything it owns.
	DeleteUser(ctx context.Context, id string) error
}

// AuditRepository is an append-only log of before/after snapshots.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
	ListAudit(ctx context.Context, userID string, opts ListOptions) ([]model.AuditEntry, error)
}
