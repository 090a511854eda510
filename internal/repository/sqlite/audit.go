package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/repository"
)

var _ repository.AuditRepository = (*DB)(nil)

func (db *DB) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	entry.ID = xid.New().String()
	entry.CreatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, entity, entity_id, old_data, new_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Action, entry.Entity, entry.EntityID,
		nullableJSON(entry.OldData), nullableJSON(entry.NewData), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the user's entries newest first.
func (db *DB) ListAudit(ctx context.Context, userID string, opts repository.ListOptions) ([]model.AuditEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, action, entity, entity_id, old_data, new_data, created_at
		 FROM audit_logs
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing audit entries: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var (
			e                model.AuditEntry
			oldData, newData sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Entity, &e.EntityID, &oldData, &newData, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning audit row: %w", err)
		}
		if oldData.Valid {
			e.OldData = []byte(oldData.String)
		}
		if newData.Valid {
			e.NewData = []byte(newData.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating audit rows: %w", err)
	}
	return entries, nil
}

func nullableJSON(raw []byte) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
