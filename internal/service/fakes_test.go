package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/auth"
	"github.com/sakif/prompt-library/internal/category"
	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/repository"
	"github.com/sakif/prompt-library/internal/search"
	"github.com/sakif/prompt-library/internal/versioning"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore is an in-memory implementation of every repository interface
// the services use. It is guarded by a mutex because the stats methods
// query it from several goroutines.

type fakeStore struct {
	mu       sync.Mutex
	seq      int
	clock    time.Time
	prompts  map[string]*model.Prompt
	versions map[string]*model.Version
	users    map[string]*model.User
	audit    []model.AuditEntry

	auditErr error
	metaErr  error
	// onMeta runs at the start of UpdatePromptMeta, outside the lock.
	onMeta func()
}

var (
	_ repository.VersionRepository = (*fakeStore)(nil)
	_ repository.PromptRepository  = (*fakeStore)(nil)
	_ repository.UserRepository    = (*fakeStore)(nil)
	_ repository.AuditRepository   = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		prompts:  make(map[string]*model.Prompt),
		versions: make(map[string]*model.Version),
		users:    make(map[string]*model.User),
	}
}

// tick advances the fake clock so every write gets a distinct timestamp.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

// --- VersionRepository ---

func (f *fakeStore) CreateWithSeed(_ context.Context, p *model.Prompt, seed *model.Version) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	p.ID = f.nextID("p")
	p.CreatedAt, p.UpdatedAt = now, now
	seed.ID = f.nextID("v")
	seed.PromptID = p.ID
	seed.CreatedAt = now
	p.CurrentVersionID = seed.ID

	sp, sv := *p, *seed
	sp.Tags = append([]string(nil), p.Tags...)
	f.prompts[p.ID] = &sp
	f.versions[seed.ID] = &sv
	return nil
}

func (f *fakeStore) GetPrompt(_ context.Context, id string) (*model.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prompts[id]
	if !ok {
		return nil, apperror.NotFound("prompt", id)
	}
	out := *p
	return &out, nil
}

func (f *fakeStore) GetVersion(_ context.Context, promptID, versionID string) (*model.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[versionID]
	if !ok || v.PromptID != promptID {
		return nil, apperror.NotFound("version", versionID)
	}
	out := *v
	return &out, nil
}

func (f *fakeStore) InsertVersion(_ context.Context, v *model.Version) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prompts[v.PromptID]; !ok {
		return apperror.NotFound("prompt", v.PromptID)
	}
	for _, existing := range f.versions {
		if existing.PromptID == v.PromptID && existing.Version == v.Version {
			return apperror.Conflict("version", v.Version)
		}
	}
	v.ID = f.nextID("v")
	v.CreatedAt = f.tick()
	sv := *v
	f.versions[v.ID] = &sv
	return nil
}

func (f *fakeStore) SetCurrentVersion(_ context.Context, promptID, versionID, expected string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prompts[promptID]
	if !ok {
		return apperror.NotFound("prompt", promptID)
	}
	if expected != "" && p.CurrentVersionID != expected {
		return apperror.Conflict("prompt", promptID)
	}
	p.CurrentVersionID = versionID
	p.UpdatedAt = f.tick()
	return nil
}

func (f *fakeStore) UpdateCurrentContent(_ context.Context, promptID, expected, content string) (*model.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prompts[promptID]
	if !ok {
		return nil, apperror.NotFound("prompt", promptID)
	}
	if expected != "" && p.CurrentVersionID != expected {
		return nil, apperror.Conflict("prompt", promptID)
	}
	v := f.versions[p.CurrentVersionID]
	v.Content = content
	p.UpdatedAt = f.tick()
	out := *v
	return &out, nil
}

func (f *fakeStore) ListVersions(_ context.Context, promptID string) ([]model.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versionsOf(promptID), nil
}

func (f *fakeStore) versionsOf(promptID string) []model.Version {
	out := []model.Version{}
	for _, v := range f.versions {
		if v.PromptID == promptID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeStore) DeletePrompt(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prompts[id]; !ok {
		return apperror.NotFound("prompt", id)
	}
	for vid, v := range f.versions {
		if v.PromptID == id {
			delete(f.versions, vid)
		}
	}
	delete(f.prompts, id)
	return nil
}

// --- PromptRepository ---

func (f *fakeStore) ListPromptViews(_ context.Context, userID string) ([]model.PromptView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	views := []model.PromptView{}
	for _, p := range f.prompts {
		if p.UserID != userID {
			continue
		}
		history := f.versionsOf(p.ID)
		view := model.PromptView{Prompt: *p, VersionCount: len(history)}
		if cur, ok := f.versions[p.CurrentVersionID]; ok {
			c := *cur
			view.CurrentVersion = &c
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].UpdatedAt.After(views[j].UpdatedAt) })
	return views, nil
}

func (f *fakeStore) UpdatePromptMeta(_ context.Context, p *model.Prompt) error {
	if f.onMeta != nil {
		f.onMeta()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metaErr != nil {
		return f.metaErr
	}
	stored, ok := f.prompts[p.ID]
	if !ok {
		return apperror.NotFound("prompt", p.ID)
	}
	stored.Name, stored.Source, stored.Notes = p.Name, p.Source, p.Notes
	stored.Tags = append([]string(nil), p.Tags...)
	stored.UpdatedAt = f.tick()
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (f *fakeStore) SetPinned(_ context.Context, id string, pinned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prompts[id]
	if !ok {
		return apperror.NotFound("prompt", id)
	}
	p.Pinned = pinned
	return nil
}

func (f *fakeStore) CountVersionsByUser(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.versions {
		if p, ok := f.prompts[v.PromptID]; ok && p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ImportPrompt(_ context.Context, p *model.Prompt, versions []model.Version, current int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(versions) == 0 || current < 0 || current >= len(versions) {
		return apperror.ValidationFailed("versions", "bad history")
	}
	now := f.tick()
	p.ID = f.nextID("p")
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	remap := map[string]string{}
	for i := range versions {
		id := f.nextID("v")
		if versions[i].ID != "" {
			remap[versions[i].ID] = id
		}
		versions[i].ID = id
	}
	for i := range versions {
		versions[i].PromptID = p.ID
		versions[i].ParentVersionID = remap[versions[i].ParentVersionID]
		v := versions[i]
		f.versions[v.ID] = &v
	}
	p.CurrentVersionID = versions[current].ID
	sp := *p
	f.prompts[p.ID] = &sp
	return nil
}

// --- UserRepository ---

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Username, u.Username) ||
			(u.Email != "" && strings.EqualFold(existing.Email, u.Email)) ||
			(u.GitHubID != 0 && existing.GitHubID == u.GitHubID) {
			return apperror.ConflictMessage("username or email already registered")
		}
	}
	now := f.tick()
	u.ID = f.nextID("u")
	u.CreatedAt, u.UpdatedAt = now, now
	su := *u
	f.users[u.ID] = &su
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (f *fakeStore) findUser(match func(*model.User) bool) *model.User {
	for _, u := range f.users {
		if match(u) {
			out := *u
			return &out
		}
	}
	return nil
}

func (f *fakeStore) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.findUser(func(u *model.User) bool {
		return strings.EqualFold(u.Username, login) || (u.Email != "" && strings.EqualFold(u.Email, login))
	})
	if u == nil {
		return nil, apperror.NotFound("user", login)
	}
	return u, nil
}

func (f *fakeStore) GetUserByGitHubID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.findUser(func(u *model.User) bool { return id != 0 && u.GitHubID == id })
	if u == nil {
		return nil, apperror.NotFound("user", fmt.Sprint(id))
	}
	return u, nil
}

func (f *fakeStore) UsernameExists(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findUser(func(u *model.User) bool { return strings.EqualFold(u.Username, username) }) != nil, nil
}

func (f *fakeStore) EmailExists(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if email == "" {
		return false, nil
	}
	return f.findUser(func(u *model.User) bool { return strings.EqualFold(u.Email, email) }) != nil, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[u.ID]
	if !ok {
		return apperror.NotFound("user", u.ID)
	}
	u.UpdatedAt = f.tick()
	stored.Name, stored.Email, stored.Bio, stored.AvatarURL, stored.UpdatedAt = u.Name, u.Email, u.Bio, u.AvatarURL, u.UpdatedAt
	return nil
}

func (f *fakeStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	for pid, p := range f.prompts {
		if p.UserID != id {
			continue
		}
		for vid, v := range f.versions {
			if v.PromptID == pid {
				delete(f.versions, vid)
			}
		}
		delete(f.prompts, pid)
	}
	delete(f.users, id)
	return nil
}

// --- AuditRepository ---

func (f *fakeStore) AppendAudit(_ context.Context, e *model.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auditErr != nil {
		return f.auditErr
	}
	e.ID = f.nextID("a")
	e.CreatedAt = f.tick()
	f.audit = append(f.audit, *e)
	return nil
}

func (f *fakeStore) ListAudit(_ context.Context, userID string, _ repository.ListOptions) ([]model.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AuditEntry
	for i := len(f.audit) - 1; i >= 0; i-- {
		if f.audit[i].UserID == userID {
			out = append(out, f.audit[i])
		}
	}
	return out, nil
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServices struct {
	store    *fakeStore
	index    *search.Index
	prompts  *PromptService
	auth     *AuthService
	users    *UserService
	transfer *TransferService
}

func newTestServices(t *testing.T, opts ...versioning.Option) *testServices {
	t.Helper()
	store := newFakeStore()
	logger := discardLogger()

	idx, err := search.Open("")
	if err != nil {
		t.Fatalf("search.Open() error = %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-32-bytes-long!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	passwords := auth.NewPasswordServiceForTest(4)

	prompts := NewPromptService(
		versioning.NewStore(store, logger, opts...),
		store, store, idx,
		category.New(category.DefaultTable()),
		logger,
	)
	return &testServices{
		store:    store,
		index:    idx,
		prompts:  prompts,
		auth:     NewAuthService(store, tokens, passwords, logger),
		users:    NewUserService(store, passwords, prompts, logger),
		transfer: NewTransferService(store, prompts, logger),
	}
}

// mustCreate creates a prompt for userID and fails the test on error.
func (ts *testServices) mustCreate(t *testing.T, userID, name, content string, tags ...string) *model.PromptView {
	t.Helper()
	v, err := ts.prompts.Create(context.Background(), userID, PromptInput{Name: name, Content: content, Tags: tags})
	if err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	return v
}
