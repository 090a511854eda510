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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, name, bio, avatar_url, github_id, password_hash, created_at, updated_at`

func scanUser(r rowScanner) (*model.User, error) {
	var u model.User
	err := r.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.Bio, &u.AvatarURL,
		&u.GitHubID, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new account. A taken username, email or GitHub ID
// is reported as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := db.now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.Name, user.Bio, user.AvatarURL,
		user.GitHubID, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage("username or email already registered")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}
	return nil
}

func (db *DB) getUser(ctx context.Context, what, where string, arg any) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", what, err)
	}
	return u, nil
}

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id", `id = ?`, id)
}

// GetUserByLogin matches either the username or the email, case-insensitively.
func (db *DB) GetUserByLogin(ctx context.Context, usernameOrEmail string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE username = ?1 COLLATE NOCASE OR (email != '' AND email = ?1 COLLATE NOCASE)
		 LIMIT 1`,
		usernameOrEmail,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", usernameOrEmail)
		}
		return nil, fmt.Errorf("sqlite: getting user by login: %w", err)
	}
	return u, nil
}

func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return db.getUser(ctx, "github id", `github_id = ? AND github_id != 0`, githubID)
}

func (db *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	return db.exists(ctx, `SELECT 1 FROM users WHERE username = ? COLLATE NOCASE`, username)
}

func (db *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	return db.exists(ctx, `SELECT 1 FROM users WHERE email = ? COLLATE NOCASE`, email)
}

func (db *DB) exists(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, query, arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking existence: %w", err)
	}
	return true, nil
}

// UpdateUser writes the profile fields (name, email, bio, avatar).
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = db.now()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, bio = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		user.Name, user.Email, user.Bio, user.AvatarURL, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("email", user.Email)
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

func (db *DB) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, db.now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password of %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// DeleteUser removes versions, prompts, audit rows and the user, in that
// order, inside one transaction.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		steps := []struct {
			what  string
			query string
		}{
			{"versions", `DELETE FROM versions WHERE prompt_id IN (SELECT id FROM prompts WHERE user_id = ?)`},
			{"prompts", `DELETE FROM prompts WHERE user_id = ?`},
			{"audit log", `DELETE FROM audit_logs WHERE user_id = ?`},
		}
		for _, s := range steps {
			if _, err := tx.ExecContext(ctx, s.query, id); err != nil {
				return fmt.Errorf("sqlite: deleting %s of user %s: %w", s.what, id, err)
			}
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("user", id)
		}
		return nil
	})
}
