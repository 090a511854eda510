package versioning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/repository"
)

// Store carries out policy decisions against a VersionRepository.
//
// ORDERING:
// When a new version is created, the version row is written first and the
// prompt's pointer is moved last. If the second step fails, the history has
// an extra unreferenced row but the pointer still names a version that
// exists.
type Store struct {
	repo   repository.VersionRepository
	logger *slog.Logger
	strict bool
}

// Option configures a Store.
type Option func(*Store)

// WithStrictPointerUpdates makes every pointer move and in-place edit
// conditional on the pointer still naming the version that was read. A
// concurrent writer then gets apperror.ErrConflict instead of silently
// winning.
func WithStrictPointerUpdates(on bool) Option {
	return func(s *Store) { s.strict = on }
}

func NewStore(repo repository.VersionRepository, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{repo: repo, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EditResult describes what an edit did, with before/after snapshots for
// the audit log.
type EditResult struct {
	Action   Action
	Previous model.Version
	Current  model.Version
}

// CreateInitial stores prompt with a seed version "1.0.0" holding content.
// The prompt, the version and the pointer are written as one unit.
func (s *Store) CreateInitial(ctx context.Context, prompt *model.Prompt, content string) (*model.Version, error) {
	seed := &model.Version{
		Version: InitialVersion,
		Content: content,
	}
	if err := s.repo.CreateWithSeed(ctx, prompt, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// Current resolves the prompt and the version its pointer names.
func (s *Store) Current(ctx context.Context, promptID string) (*model.Prompt, *model.Version, error) {
	prompt, err := s.repo.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, nil, err
	}
	if prompt.CurrentVersionID == "" {
		return nil, nil, apperror.NotFound("version", "current of "+promptID)
	}

	current, err := s.repo.GetVersion(ctx, promptID, prompt.CurrentVersionID)
	if err != nil {
		return nil, nil, err
	}

	s.checkVersionString(current)
	return prompt, current, nil
}

// Edit reads the current version, decides and applies.
func (s *Store) Edit(ctx context.Context, promptID string, edit Edit) (*EditResult, error) {
	_, current, err := s.Current(ctx, promptID)
	if err != nil {
		return nil, err
	}

	return s.ApplyEdit(ctx, promptID, *current, Decide(*current, edit))
}

// Rollback restores the content of targetVersionID as a new version.
func (s *Store) Rollback(ctx context.Context, promptID, targetVersionID string, kind BumpKind) (*EditResult, error) {
	_, current, err := s.Current(ctx, promptID)
	if err != nil {
		return nil, err
	}

	target, err := s.repo.GetVersion(ctx, promptID, targetVersionID)
	if err != nil {
		return nil, err
	}

	return s.ApplyEdit(ctx, promptID, *current, DecideRollback(*current, *target, kind))
}

// ApplyEdit writes decision. current is the version the decision was made
// against; it becomes EditResult.Previous.
func (s *Store) ApplyEdit(ctx context.Context, promptID string, current model.Version, decision Decision) (*EditResult, error) {
	expected := ""
	if s.strict {
		expected = current.ID
	}

	switch decision.Action {
	case Mutate:
		updated, err := s.repo.UpdateCurrentContent(ctx, promptID, expected, decision.Content)
		if err != nil {
			return nil, err
		}
		return &EditResult{Action: Mutate, Previous: current, Current: *updated}, nil

	case Create:
		v := &model.Version{
			PromptID:        promptID,
			Version:         decision.Version,
			Content:         decision.Content,
			ParentVersionID: decision.ParentVersionID,
		}
		if err := s.repo.InsertVersion(ctx, v); err != nil {
			return nil, err
		}

		if err := s.repo.SetCurrentVersion(ctx, promptID, v.ID, expected); err != nil {
			s.logger.Warn("version inserted but pointer not moved",
				slog.String("prompt_id", promptID),
				slog.String("version_id", v.ID),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		return &EditResult{Action: Create, Previous: current, Current: *v}, nil

	default:
		return nil, fmt.Errorf("versioning: unknown action %d", decision.Action)
	}
}

// ListVersions returns the prompt's full history, newest first.
func (s *Store) ListVersions(ctx context.Context, promptID string) ([]model.Version, error) {
	return s.repo.ListVersions(ctx, promptID)
}

// DeletePrompt removes the prompt together with every version.
func (s *Store) DeletePrompt(ctx context.Context, promptID string) error {
	return s.repo.DeletePrompt(ctx, promptID)
}

func (s *Store) checkVersionString(v *model.Version) {
	if _, ok := Parse(v.Version); !ok {
		s.logger.Warn("malformed version string, bumping from "+InitialVersion,
			slog.String("prompt_id", v.PromptID),
			slog.String("version_id", v.ID),
			slog.String("version", v.Version),
		)
	}
}
