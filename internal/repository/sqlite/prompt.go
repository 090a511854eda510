package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/repository"
)

var _ repository.PromptRepository = (*DB)(nil)

const promptColumns = `id, user_id, name, source, notes, tags, pinned, current_version_id, created_at, updated_at`

// Tags are stored as a JSON array in a TEXT column. They are only ever
// filtered in Go, so a join table would buy nothing.
func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("sqlite: decoding tags: %w", err)
	}
	return tags, nil
}

func scanPrompt(r rowScanner) (*model.Prompt, error) {
	var (
		p    model.Prompt
		tags string
	)
	err := r.Scan(&p.ID, &p.UserID, &p.Name, &p.Source, &p.Notes, &tags,
		&p.Pinned, &p.CurrentVersionID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPromptViews resolves the current version and history size of every
// prompt the user owns in a single query.
func (db *DB) ListPromptViews(ctx context.Context, userID string) ([]model.PromptView, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.name, p.source, p.notes, p.tags, p.pinned,
		        p.current_version_id, p.created_at, p.updated_at,
		        v.id, v.version, v.content, v.parent_version_id, v.created_at,
		        (SELECT COUNT(*) FROM versions c WHERE c.prompt_id = p.id)
		 FROM prompts p
		 LEFT JOIN versions v ON v.id = p.current_version_id
		 WHERE p.user_id = ?
		 ORDER BY p.updated_at DESC, p.rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing prompts of %s: %w", userID, err)
	}
	defer rows.Close()

	views := []model.PromptView{}
	for rows.Next() {
		var (
			pv      model.PromptView
			tags    string
			vID     sql.NullString
			vVer    sql.NullString
			vBody   sql.NullString
			vParent sql.NullString
			vAt     sql.NullTime
		)
		err := rows.Scan(
			&pv.ID, &pv.UserID, &pv.Name, &pv.Source, &pv.Notes, &tags, &pv.Pinned,
			&pv.CurrentVersionID, &pv.CreatedAt, &pv.UpdatedAt,
			&vID, &vVer, &vBody, &vParent, &vAt,
			&pv.VersionCount,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning prompt row: %w", err)
		}
		if pv.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		if vID.Valid {
			pv.CurrentVersion = &model.Version{
				ID:              vID.String,
				PromptID:        pv.ID,
				Version:         vVer.String,
				Content:         vBody.String,
				ParentVersionID: vParent.String,
				CreatedAt:       vAt.Time,
			}
		}
		views = append(views, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating prompt rows: %w", err)
	}
	return views, nil
}

// UpdatePromptMeta writes the descriptive fields. Content and the pointer
// are owned by the versioning store, and pinned by SetPinned.
func (db *DB) UpdatePromptMeta(ctx context.Context, prompt *model.Prompt) error {
	tags, err := encodeTags(prompt.Tags)
	if err != nil {
		return err
	}
	prompt.UpdatedAt = db.now()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE prompts SET name = ?, source = ?, notes = ?, tags = ?, updated_at = ?
		 WHERE id = ?`,
		prompt.Name, prompt.Source, prompt.Notes, tags, prompt.UpdatedAt, prompt.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating prompt %s: %w", prompt.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("prompt", prompt.ID)
	}
	return nil
}

func (db *DB) SetPinned(ctx context.Context, id string, pinned bool) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE prompts SET pinned = ? WHERE id = ?`, pinned, id)
	if err != nil {
		return fmt.Errorf("sqlite: pinning prompt %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("prompt", id)
	}
	return nil
}

func (db *DB) CountVersionsByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM versions v JOIN prompts p ON p.id = v.prompt_id WHERE p.user_id = ?`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting versions of %s: %w", userID, err)
	}
	return n, nil
}

// ImportPrompt stores prompt with an existing history. versions are given
// in any order; parent links that point outside the set are dropped.
// currentIndex selects which of them becomes current.
func (db *DB) ImportPrompt(ctx context.Context, prompt *model.Prompt, versions []model.Version, currentIndex int) error {
	if len(versions) == 0 {
		return apperror.ValidationFailed("versions", "an imported prompt needs at least one version")
	}
	if currentIndex < 0 || currentIndex >= len(versions) {
		return apperror.ValidationFailed("versions", "current version is not part of the history")
	}

	now := db.now()
	prompt.ID = xid.New().String()
	if prompt.CreatedAt.IsZero() {
		prompt.CreatedAt = now
	}
	prompt.UpdatedAt = now

	// old ID → new ID, so parent links survive the re-keying
	remap := make(map[string]string, len(versions))
	for i := range versions {
		newID := xid.New().String()
		if versions[i].ID != "" {
			remap[versions[i].ID] = newID
		}
		versions[i].ID = newID
	}
	for i := range versions {
		versions[i].PromptID = prompt.ID
		versions[i].ParentVersionID = remap[versions[i].ParentVersionID]
		if versions[i].CreatedAt.IsZero() {
			versions[i].CreatedAt = now
		}
	}
	prompt.CurrentVersionID = versions[currentIndex].ID

	tags, err := encodeTags(prompt.Tags)
	if err != nil {
		return err
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO prompts (`+promptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			prompt.ID, prompt.UserID, prompt.Name, prompt.Source, prompt.Notes,
			tags, prompt.Pinned, prompt.CurrentVersionID, prompt.CreatedAt, prompt.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting imported prompt: %w", err)
		}

		for i := range versions {
			if err := insertVersion(ctx, tx, &versions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
