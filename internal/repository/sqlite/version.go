package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/repository"
)

var _ repository.VersionRepository = (*DB)(nil)

const versionColumns = `id, prompt_id, version, content, parent_version_id, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(r rowScanner) (*model.Version, error) {
	var v model.Version
	if err := r.Scan(&v.ID, &v.PromptID, &v.Version, &v.Content, &v.ParentVersionID, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateWithSeed inserts the prompt, its seed version and the pointer in one
// transaction. The prompt row is never visible without a pointer.
func (db *DB) CreateWithSeed(ctx context.Context, prompt *model.Prompt, seed *model.Version) error {
	now := db.now()
	prompt.ID = xid.New().String()
	prompt.CreatedAt = now
	prompt.UpdatedAt = now

	seed.ID = xid.New().String()
	seed.PromptID = prompt.ID
	seed.CreatedAt = now
	prompt.CurrentVersionID = seed.ID

	tags, err := encodeTags(prompt.Tags)
	if err != nil {
		return err
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO prompts (id, user_id, name, source, notes, tags, pinned, current_version_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			prompt.ID, prompt.UserID, prompt.Name, prompt.Source, prompt.Notes,
			tags, prompt.Pinned, prompt.CurrentVersionID, prompt.CreatedAt, prompt.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting prompt: %w", err)
		}

		if err := insertVersion(ctx, tx, seed); err != nil {
			return err
		}
		return nil
	})
}

// GetPrompt returns apperror.ErrNotFound if the prompt does not exist.
func (db *DB) GetPrompt(ctx context.Context, id string) (*model.Prompt, error) {
	p, err := scanPrompt(db.conn.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM prompts WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("prompt", id)
		}
		return nil, fmt.Errorf("sqlite: getting prompt %s: %w", id, err)
	}
	return p, nil
}

// GetVersion only finds versionID when it belongs to promptID.
func (db *DB) GetVersion(ctx context.Context, promptID, versionID string) (*model.Version, error) {
	v, err := scanVersion(db.conn.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions WHERE id = ? AND prompt_id = ?`,
		versionID, promptID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("version", versionID)
		}
		return nil, fmt.Errorf("sqlite: getting version %s: %w", versionID, err)
	}
	return v, nil
}

// InsertVersion appends a row without moving the pointer. A duplicate
// version string for the same prompt is an apperror.ErrConflict.
func (db *DB) InsertVersion(ctx context.Context, v *model.Version) error {
	v.ID = xid.New().String()
	v.CreatedAt = db.now()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM prompts WHERE id = ?`, v.PromptID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("prompt", v.PromptID)
		}
		if err != nil {
			return fmt.Errorf("sqlite: checking prompt %s: %w", v.PromptID, err)
		}
		return insertVersion(ctx, tx, v)
	})
	return err
}

func insertVersion(ctx context.Context, tx *sql.Tx, v *model.Version) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO versions (`+versionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.PromptID, v.Version, v.Content, v.ParentVersionID, v.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("version", v.Version)
		}
		return fmt.Errorf("sqlite: inserting version %s: %w", v.Version, err)
	}
	return nil
}

// SetCurrentVersion moves the pointer. versionID must belong to the prompt.
func (db *DB) SetCurrentVersion(ctx context.Context, promptID, versionID, expectedCurrent string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := currentPointer(ctx, tx, promptID)
		if err != nil {
			return err
		}
		if expectedCurrent != "" && current != expectedCurrent {
			return apperror.ConflictMessage("prompt " + promptID + " was modified concurrently")
		}

		var owned int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM versions WHERE id = ? AND prompt_id = ?`, versionID, promptID,
		).Scan(&owned)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("version", versionID)
		}
		if err != nil {
			return fmt.Errorf("sqlite: checking version %s: %w", versionID, err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE prompts SET current_version_id = ?, updated_at = ? WHERE id = ?`,
			versionID, db.now(), promptID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: moving pointer of prompt %s: %w", promptID, err)
		}
		return nil
	})
}

// UpdateCurrentContent overwrites the content of the version the pointer
// names at write time and touches the prompt's updated_at.
func (db *DB) UpdateCurrentContent(ctx context.Context, promptID, expectedCurrent, content string) (*model.Version, error) {
	var updated *model.Version

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := currentPointer(ctx, tx, promptID)
		if err != nil {
			return err
		}
		if expectedCurrent != "" && current != expectedCurrent {
			return apperror.ConflictMessage("prompt " + promptID + " was modified concurrently")
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE versions SET content = ? WHERE id = ? AND prompt_id = ?`,
			content, current, promptID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating version %s: %w", current, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("version", current)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE prompts SET updated_at = ? WHERE id = ?`, db.now(), promptID,
		); err != nil {
			return fmt.Errorf("sqlite: touching prompt %s: %w", promptID, err)
		}

		updated, err = scanVersion(tx.QueryRowContext(ctx,
			`SELECT `+versionColumns+` FROM versions WHERE id = ?`, current,
		))
		if err != nil {
			return fmt.Errorf("sqlite: reading version %s: %w", current, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func currentPointer(ctx context.Context, tx *sql.Tx, promptID string) (string, error) {
	var current string
	err := tx.QueryRowContext(ctx,
		`SELECT current_version_id FROM prompts WHERE id = ?`, promptID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperror.NotFound("prompt", promptID)
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: reading pointer of prompt %s: %w", promptID, err)
	}
	return current, nil
}

// ListVersions returns the history newest first. Rows created in the same
// instant fall back to insertion order.
func (db *DB) ListVersions(ctx context.Context, promptID string) ([]model.Version, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions
		 WHERE prompt_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		promptID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing versions of %s: %w", promptID, err)
	}
	defer rows.Close()

	versions := []model.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning version row: %w", err)
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating version rows: %w", err)
	}
	return versions, nil
}

// DeletePrompt removes the versions and then the prompt in one transaction.
func (db *DB) DeletePrompt(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM versions WHERE prompt_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting versions of %s: %w", id, err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting prompt %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("prompt", id)
		}
		return nil
	})
}
