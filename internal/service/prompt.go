// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces ownership, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// The version lifecycle itself (create with seed, mutate vs. new version,
// rollback, cascade delete) lives in internal/versioning. PromptService
// wraps it with the rules that depend on who is asking: every prompt
// operation takes the caller's user ID and treats someone else's prompt
// exactly like a missing one.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/category"
	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/repository"
	"github.com/sakif/prompt-library/internal/versioning"
)

const (
	MaxPromptNameLength = 100
	MaxTagLength        = 50
	RecentVersionCount  = 5
	DefaultListLimit    = 20
	MaxListLimit        = 100
)

// PromptIndex is the full-text index the service keeps in step with the
// database. search.Index implements it.
type PromptIndex interface {
	Put(v *model.PromptView) error
	PutAll(views []model.PromptView) error
	Delete(ids ...string) error
	Search(userID, text string) ([]string, error)
}

// PromptInput is the editable part of a prompt.
type PromptInput struct {
	Name    string
	Content string
	Source  string
	Notes   string
	Tags    []string
}

// UpdateInput is PromptInput plus the versioning choice.
type UpdateInput struct {
	PromptInput
	SaveAsVersion bool
	VersionType   string
}

// PromptService handles business logic for prompts.
type PromptService struct {
	store   *versioning.Store
	prompts repository.PromptRepository
	audit   repository.AuditRepository
	index   PromptIndex
	logger  *slog.Logger

	classifier atomic.Pointer[category.Classifier]

	// indexed records which users' prompts have been loaded into the index
	// by this process.
	indexed sync.Map
}

func NewPromptService(
	store *versioning.Store,
	prompts repository.PromptRepository,
	audit repository.AuditRepository,
	index PromptIndex,
	classifier *category.Classifier,
	logger *slog.Logger,
) *PromptService {
	s := &PromptService{
		store:   store,
		prompts: prompts,
		audit:   audit,
		index:   index,
		logger:  logger,
	}
	s.classifier.Store(classifier)
	return s
}

// SetCategories swaps the category table used by every later call.
func (s *PromptService) SetCategories(table []category.Category) {
	s.classifier.Store(category.New(table))
	s.logger.Info("category table replaced", slog.Int("categories", len(table)))
}

func (s *PromptService) Classifier() *category.Classifier {
	return s.classifier.Load()
}

// Create validates input and stores a new prompt with its seed version.
func (s *PromptService) Create(ctx context.Context, userID string, in PromptInput) (*model.PromptView, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	prompt := &model.Prompt{
		UserID: userID,
		Name:   in.Name,
		Source: in.Source,
		Notes:  in.Notes,
		Tags:   in.Tags,
	}
	seed, err := s.store.CreateInitial(ctx, prompt, in.Content)
	if err != nil {
		s.logger.Error("failed to create prompt",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating prompt: %w", err)
	}

	view := &model.PromptView{Prompt: *prompt, CurrentVersion: seed, VersionCount: 1}
	s.record(ctx, userID, model.AuditCreate, model.AuditEntityPrompt, prompt.ID, nil, snapshotOf(view))
	s.reindex(view)

	s.logger.Info("prompt created",
		slog.String("id", prompt.ID),
		slog.String("user_id", userID),
	)
	return view, nil
}

// Get returns the prompt with its current version and the most recent
// versions of its history.
func (s *PromptService) Get(ctx context.Context, userID, id string) (*model.PromptView, error) {
	prompt, current, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, prompt, current, RecentVersionCount)
}

// Update writes new metadata and content. Content is either overwritten in
// place or saved as a new version, depending on in.SaveAsVersion.
func (s *PromptService) Update(ctx context.Context, userID, id string, in UpdateInput) (*model.PromptView, error) {
	pi, err := normalizeInput(in.PromptInput)
	if err != nil {
		return nil, err
	}

	prompt, current, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	before := snapshotOf(&model.PromptView{Prompt: *prompt, CurrentVersion: current})

	// Metadata first, then content.
	meta := *prompt
	meta.Name = pi.Name
	meta.Source = pi.Source
	meta.Notes = pi.Notes
	meta.Tags = pi.Tags
	if err := s.prompts.UpdatePromptMeta(ctx, &meta); err != nil {
		return nil, fmt.Errorf("updating prompt %s: %w", id, err)
	}

	decision := versioning.Decide(*current, versioning.Edit{
		Content:       pi.Content,
		SaveAsVersion: in.SaveAsVersion,
		Bump:          versioning.ParseBumpKind(in.VersionType),
	})
	result, err := s.store.ApplyEdit(ctx, id, *current, decision)
	if err != nil {
		return nil, fmt.Errorf("editing prompt %s: %w", id, err)
	}

	// Re-read so the view carries a pin toggled while this request ran.
	prompt, _, err = s.store.Current(ctx, id)
	if err != nil {
		return nil, err
	}

	view, err := s.view(ctx, prompt, &result.Current, 0)
	if err != nil {
		return nil, err
	}

	after := snapshotOf(view)
	after.Action = result.Action.String()
	s.record(ctx, userID, model.AuditUpdate, model.AuditEntityPrompt, id, before, after)
	s.reindex(view)

	s.logger.Info("prompt updated",
		slog.String("id", id),
		slog.String("action", result.Action.String()),
		slog.String("version", result.Current.Version),
	)
	return view, nil
}

// TogglePin flips the pinned flag.
func (s *PromptService) TogglePin(ctx context.Context, userID, id string) (*model.PromptView, error) {
	prompt, current, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	prompt.Pinned = !prompt.Pinned
	if err := s.prompts.SetPinned(ctx, id, prompt.Pinned); err != nil {
		return nil, fmt.Errorf("pinning prompt %s: %w", id, err)
	}
	return s.view(ctx, prompt, current, 0)
}

// Rollback creates a new version holding the content of versionID.
func (s *PromptService) Rollback(ctx context.Context, userID, id, versionID, versionType string) (*model.PromptView, error) {
	if strings.TrimSpace(versionID) == "" {
		return nil, apperror.ValidationFailed("versionId", "version ID is required")
	}
	prompt, _, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	result, err := s.store.Rollback(ctx, id, versionID, versioning.ParseBumpKind(versionType))
	if err != nil {
		return nil, err
	}
	prompt.CurrentVersionID = result.Current.ID

	view, err := s.view(ctx, prompt, &result.Current, 0)
	if err != nil {
		return nil, err
	}

	s.record(ctx, userID, model.AuditCreate, model.AuditEntityVersion, result.Current.ID,
		versionSnapshot{ID: result.Previous.ID, Version: result.Previous.Version},
		versionSnapshot{ID: result.Current.ID, Version: result.Current.Version, RestoredFrom: versionID},
	)
	s.reindex(view)

	s.logger.Info("prompt rolled back",
		slog.String("id", id),
		slog.String("restored_from", versionID),
		slog.String("version", result.Current.Version),
	)
	return view, nil
}

// Delete removes the prompt and every version of it.
func (s *PromptService) Delete(ctx context.Context, userID, id string) error {
	prompt, current, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.store.DeletePrompt(ctx, id); err != nil {
		return err
	}

	s.record(ctx, userID, model.AuditDelete, model.AuditEntityPrompt, id,
		snapshotOf(&model.PromptView{Prompt: *prompt, CurrentVersion: current}), nil)
	if err := s.index.Delete(id); err != nil {
		s.logger.Warn("failed to remove prompt from index",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("prompt deleted", slog.String("id", id))
	return nil
}

// Versions returns the prompt's full history, newest first.
func (s *PromptService) Versions(ctx context.Context, userID, id string) ([]model.Version, error) {
	if _, _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, id)
}

// Tags returns the distinct tags on the user's prompts, sorted.
func (s *PromptService) Tags(ctx context.Context, userID string) ([]string, error) {
	views, err := s.prompts.ListPromptViews(ctx, userID)
	if err != nil {
		return nil, err
	}
	var tags []string
	for i := range views {
		tags = append(tags, views[i].Tags...)
	}
	return distinctSorted(tags), nil
}

// Sources returns the distinct non-empty sources, sorted.
func (s *PromptService) Sources(ctx context.Context, userID string) ([]string, error) {
	views, err := s.prompts.ListPromptViews(ctx, userID)
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(views))
	for i := range views {
		sources = append(sources, views[i].Source)
	}
	return distinctSorted(sources), nil
}

// Categories counts the user's prompts per category, "all" and "pinned"
// first.
func (s *PromptService) Categories(ctx context.Context, userID string) ([]category.Count, error) {
	views, err := s.prompts.ListPromptViews(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Classifier().OrderedCounts(views), nil
}

// CategoryPrompts returns the user's prompts in the named category.
func (s *PromptService) CategoryPrompts(ctx context.Context, userID, name string) ([]model.PromptView, error) {
	c := s.Classifier()
	if !c.Known(name) {
		return nil, apperror.NotFound("category", name)
	}
	views, err := s.prompts.ListPromptViews(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.Filter(views, name), nil
}

// owned resolves the prompt and its current version, reporting a prompt
// that belongs to someone else as not found.
func (s *PromptService) owned(ctx context.Context, userID, id string) (*model.Prompt, *model.Version, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil, apperror.ValidationFailed("id", "prompt ID is required")
	}

	prompt, current, err := s.store.Current(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if prompt.UserID != userID {
		return nil, nil, apperror.NotFound("prompt", id)
	}
	return prompt, current, nil
}

// view builds the read projection. recent > 0 also attaches that many of
// the newest versions.
func (s *PromptService) view(ctx context.Context, prompt *model.Prompt, current *model.Version, recent int) (*model.PromptView, error) {
	versions, err := s.store.ListVersions(ctx, prompt.ID)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", prompt.ID, err)
	}

	v := &model.PromptView{
		Prompt:         *prompt,
		CurrentVersion: current,
		VersionCount:   len(versions),
	}
	if recent > 0 {
		v.Versions = versions[:min(recent, len(versions))]
	}
	return v, nil
}

func (s *PromptService) reindex(v *model.PromptView) {
	if err := s.index.Put(v); err != nil {
		s.logger.Warn("failed to index prompt",
			slog.String("id", v.ID),
			slog.String("error", err.Error()),
		)
	}
}

// forget drops a user's documents from the index after their account is
// deleted.
func (s *PromptService) forget(userID string, ids []string) {
	s.indexed.Delete(userID)
	if len(ids) == 0 {
		return
	}
	if err := s.index.Delete(ids...); err != nil {
		s.logger.Warn("failed to remove user's prompts from index",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// record appends an audit entry. A failing audit write is logged and does
// not fail the operation that produced it.
func (s *PromptService) record(ctx context.Context, userID, action, entity, entityID string, oldData, newData any) {
	entry := &model.AuditEntry{
		UserID:   userID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
	}
	var err error
	if entry.OldData, err = marshalSnapshot(oldData); err == nil {
		entry.NewData, err = marshalSnapshot(newData)
	}
	if err == nil {
		err = s.audit.AppendAudit(ctx, entry)
	}
	if err != nil {
		s.logger.Warn("failed to write audit entry",
			slog.String("entity", entity),
			slog.String("entity_id", entityID),
			slog.String("error", err.Error()),
		)
	}
}

type promptSnapshot struct {
	Name    string   `json:"name"`
	Source  string   `json:"source,omitempty"`
	Notes   string   `json:"notes,omitempty"`
	Tags    []string `json:"tags"`
	Content string   `json:"content"`
	Version string   `json:"version"`
	Action  string   `json:"action,omitempty"`
}

type versionSnapshot struct {
	ID           string `json:"id"`
	Version      string `json:"version"`
	RestoredFrom string `json:"restoredFrom,omitempty"`
}

func snapshotOf(v *model.PromptView) *promptSnapshot {
	return &promptSnapshot{
		Name:    v.Name,
		Source:  v.Source,
		Notes:   v.Notes,
		Tags:    v.Tags,
		Content: v.Content(),
		Version: v.VersionString(),
	}
}

func marshalSnapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func normalizeInput(in PromptInput) (PromptInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, apperror.ValidationFailed("name", "prompt name is required")
	}
	if utf8.RuneCountInString(in.Name) > MaxPromptNameLength {
		return in, apperror.ValidationFailed("name",
			fmt.Sprintf("prompt name must be %d characters or less", MaxPromptNameLength))
	}
	if strings.TrimSpace(in.Content) == "" {
		return in, apperror.ValidationFailed("content", "prompt content is required")
	}
	in.Source = strings.TrimSpace(in.Source)
	in.Notes = strings.TrimSpace(in.Notes)

	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return in, err
	}
	in.Tags = tags
	return in, nil
}

// normalizeTags trims, drops blanks and removes exact duplicates while
// keeping the caller's order.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > MaxTagLength {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("tags must be %d characters or less", MaxTagLength))
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

func distinctSorted(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// isNotFound is used where a missing row is an expected outcome.
func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
