package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/model"
)

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	u := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if u.ID == "" {
		t.Error("CreateUser() did not set ID")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("CreateUser() did not set timestamps")
	}

	got, err := db.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Username != "alice" || got.PasswordHash != "hash" {
		t.Errorf("got %+v", got)
	}
}

func TestCreateUser_Duplicates(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	tests := []struct {
		name string
		user model.User
	}{
		{"same username", model.User{Username: "alice", Email: "other@example.com"}},
		{"username differs only in case", model.User{Username: "ALICE", Email: "other2@example.com"}},
		{"same email", model.User{Username: "alice2", Email: "alice@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.user
			err := db.CreateUser(context.Background(), &u)
			if !errors.Is(err, apperror.ErrConflict) {
				t.Errorf("CreateUser() error = %v, want ErrConflict", err)
			}
		})
	}
}

func TestCreateUser_EmptyEmailsDoNotCollide(t *testing.T) {
	db := newTestDB(t)

	for _, name := range []string{"gh1", "gh2"} {
		u := &model.User{Username: name}
		if err := db.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("CreateUser(%s) error = %v", name, err)
		}
	}
}

func TestGetUserByLogin(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "alice")

	for _, login := range []string{"alice", "Alice", "alice@example.com", "ALICE@example.com"} {
		got, err := db.GetUserByLogin(context.Background(), login)
		if err != nil {
			t.Errorf("GetUserByLogin(%q) error = %v", login, err)
			continue
		}
		if got.ID != created.ID {
			t.Errorf("GetUserByLogin(%q) = %s, want %s", login, got.ID, created.ID)
		}
	}

	if _, err := db.GetUserByLogin(context.Background(), "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByLogin(nobody) error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByLogin(context.Background(), ""); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByLogin(\"\") error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByGitHubID(t *testing.T) {
	db := newTestDB(t)
	u := &model.User{Username: "octo", GitHubID: 778899}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	createTestUser(t, db, "password-user")

	got, err := db.GetUserByGitHubID(context.Background(), 778899)
	if err != nil {
		t.Fatalf("GetUserByGitHubID() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %q, want %q", got.ID, u.ID)
	}

	if _, err := db.GetUserByGitHubID(context.Background(), 0); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByGitHubID(0) error = %v, want ErrNotFound", err)
	}
}

func TestUsernameAndEmailExists(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	tests := []struct {
		name string
		fn   func() (bool, error)
		want bool
	}{
		{"username taken", func() (bool, error) { return db.UsernameExists(context.Background(), "alice") }, true},
		{"username case", func() (bool, error) { return db.UsernameExists(context.Background(), "ALICE") }, true},
		{"username free", func() (bool, error) { return db.UsernameExists(context.Background(), "bob") }, false},
		{"email taken", func() (bool, error) { return db.EmailExists(context.Background(), "alice@example.com") }, true},
		{"email free", func() (bool, error) { return db.EmailExists(context.Background(), "bob@example.com") }, false},
		{"empty email", func() (bool, error) { return db.EmailExists(context.Background(), "") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateUser(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")

	u.Name = "Alice"
	u.Bio = "writes prompts"
	if err := db.UpdateUser(context.Background(), u); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	got, _ := db.GetUserByID(context.Background(), u.ID)
	if got.Name != "Alice" || got.Bio != "writes prompts" {
		t.Errorf("got %+v", got)
	}

	u.Email = "bob@example.com"
	if err := db.UpdateUser(context.Background(), u); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("UpdateUser() with taken email error = %v, want ErrConflict", err)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "alice")

	if err := db.UpdatePasswordHash(context.Background(), u.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePasswordHash() error = %v", err)
	}
	got, _ := db.GetUserByID(context.Background(), u.ID)
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q", got.PasswordHash)
	}

	if err := db.UpdatePasswordHash(context.Background(), "nope", "x"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdatePasswordHash(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteUser_RemovesOwnedData(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	p := createTestPrompt(t, db, alice.ID, "a", "x")
	kept := createTestPrompt(t, db, bob.ID, "b", "y")
	db.AppendAudit(context.Background(), &model.AuditEntry{UserID: alice.ID, Action: model.AuditCreate, Entity: model.AuditEntityPrompt, EntityID: p.ID})

	if err := db.DeleteUser(context.Background(), alice.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := db.GetUserByID(context.Background(), alice.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("user survived: %v", err)
	}
	if _, err := db.GetPrompt(context.Background(), p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("prompt survived: %v", err)
	}

	var versions, audits int
	db.conn.QueryRow(`SELECT COUNT(*) FROM versions WHERE prompt_id = ?`, p.ID).Scan(&versions)
	db.conn.QueryRow(`SELECT COUNT(*) FROM audit_logs WHERE user_id = ?`, alice.ID).Scan(&audits)
	if versions != 0 || audits != 0 {
		t.Errorf("left behind: %d versions, %d audit rows", versions, audits)
	}

	if _, err := db.GetPrompt(context.Background(), kept.ID); err != nil {
		t.Errorf("other user's prompt affected: %v", err)
	}

	if err := db.DeleteUser(context.Background(), alice.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteUser() error = %v, want ErrNotFound", err)
	}
}
