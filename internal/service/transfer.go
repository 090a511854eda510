package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/repository"
	"github.com/sakif/prompt-library/internal/versioning"
)

// DumpFormatVersion is written into every export.
const DumpFormatVersion = "1.0"

// Dump is a user's complete library in a portable form.
type Dump struct {
	User          DumpUser     `json:"user" yaml:"user"`
	Prompts       []DumpPrompt `json:"prompts" yaml:"prompts"`
	ExportedAt    time.Time    `json:"exportedAt" yaml:"exportedAt"`
	ExportVersion string       `json:"exportVersion" yaml:"exportVersion"`
}

type DumpUser struct {
	ID        string    `json:"id" yaml:"id"`
	Username  string    `json:"username" yaml:"username"`
	Email     string    `json:"email,omitempty" yaml:"email,omitempty"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Bio       string    `json:"bio,omitempty" yaml:"bio,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

type DumpPrompt struct {
	ID               string        `json:"id" yaml:"id"`
	Name             string        `json:"name" yaml:"name"`
	Source           string        `json:"source,omitempty" yaml:"source,omitempty"`
	Notes            string        `json:"notes,omitempty" yaml:"notes,omitempty"`
	Tags             []string      `json:"tags" yaml:"tags"`
	Pinned           bool          `json:"pinned" yaml:"pinned"`
	CreatedAt        time.Time     `json:"createdAt" yaml:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt" yaml:"updatedAt"`
	CurrentVersionID string        `json:"currentVersionId" yaml:"currentVersionId"`
	Versions         []DumpVersion `json:"versions" yaml:"versions"`
}

type DumpVersion struct {
	ID              string    `json:"id" yaml:"id"`
	Version         string    `json:"version" yaml:"version"`
	Content         string    `json:"content" yaml:"content"`
	ParentVersionID string    `json:"parentVersionId,omitempty" yaml:"parentVersionId,omitempty"`
	CreatedAt       time.Time `json:"createdAt" yaml:"createdAt"`
}

// ImportResult counts what Import stored and what it had to leave out.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// TransferService exports and imports whole libraries.
type TransferService struct {
	users   repository.UserRepository
	prompts *PromptService
	logger  *slog.Logger
}

func NewTransferService(users repository.UserRepository, prompts *PromptService, logger *slog.Logger) *TransferService {
	return &TransferService{users: users, prompts: prompts, logger: logger}
}

// Export collects the user's profile and every prompt with its full history.
func (s *TransferService) Export(ctx context.Context, userID string) (*Dump, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	views, err := s.prompts.prompts.ListPromptViews(ctx, userID)
	if err != nil {
		return nil, err
	}

	dump := &Dump{
		User: DumpUser{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			Name:      user.Name,
			Bio:       user.Bio,
			CreatedAt: user.CreatedAt,
			UpdatedAt: user.UpdatedAt,
		},
		Prompts:       make([]DumpPrompt, 0, len(views)),
		ExportedAt:    time.Now().UTC(),
		ExportVersion: DumpFormatVersion,
	}

	for i := range views {
		v := &views[i]
		history, err := s.prompts.store.ListVersions(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("exporting versions of %s: %w", v.ID, err)
		}

		p := DumpPrompt{
			ID:               v.ID,
			Name:             v.Name,
			Source:           v.Source,
			Notes:            v.Notes,
			Tags:             v.Tags,
			Pinned:           v.Pinned,
			CreatedAt:        v.CreatedAt,
			UpdatedAt:        v.UpdatedAt,
			CurrentVersionID: v.CurrentVersionID,
			Versions:         make([]DumpVersion, len(history)),
		}
		for j, h := range history {
			p.Versions[j] = DumpVersion{
				ID:              h.ID,
				Version:         h.Version,
				Content:         h.Content,
				ParentVersionID: h.ParentVersionID,
				CreatedAt:       h.CreatedAt,
			}
		}
		dump.Prompts = append(dump.Prompts, p)
	}

	s.logger.Info("library exported",
		slog.String("user_id", userID),
		slog.Int("prompts", len(dump.Prompts)),
	)
	return dump, nil
}

// Import adds every prompt in dump to userID's library under new IDs.
// Existing prompts are left alone. Prompts without a name or without any
// version are skipped.
func (s *TransferService) Import(ctx context.Context, userID string, dump *Dump) (*ImportResult, error) {
	if dump == nil {
		return nil, apperror.ValidationFailed("prompts", "import file is empty")
	}

	res := &ImportResult{}
	for i := range dump.Prompts {
		dp := &dump.Prompts[i]
		prompt, versions, current, ok := s.fromDump(userID, dp)
		if !ok {
			res.Skipped++
			s.logger.Warn("skipping prompt in import",
				slog.String("user_id", userID),
				slog.String("name", dp.Name),
			)
			continue
		}

		if err := s.prompts.prompts.ImportPrompt(ctx, prompt, versions, current); err != nil {
			return res, fmt.Errorf("importing prompt %q: %w", dp.Name, err)
		}
		res.Imported++

		view := &model.PromptView{
			Prompt:         *prompt,
			CurrentVersion: &versions[current],
			VersionCount:   len(versions),
		}
		s.prompts.record(ctx, userID, model.AuditCreate, model.AuditEntityPrompt, prompt.ID, nil, snapshotOf(view))
		s.prompts.reindex(view)
	}

	s.logger.Info("library imported",
		slog.String("user_id", userID),
		slog.Int("imported", res.Imported),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (s *TransferService) fromDump(userID string, dp *DumpPrompt) (*model.Prompt, []model.Version, int, bool) {
	name := strings.TrimSpace(dp.Name)
	if name == "" || len(dp.Versions) == 0 {
		return nil, nil, 0, false
	}
	tags, err := normalizeTags(dp.Tags)
	if err != nil {
		return nil, nil, 0, false
	}

	versions := make([]model.Version, len(dp.Versions))
	current := -1
	latest := 0
	for i, dv := range dp.Versions {
		version := dv.Version
		if version == "" {
			version = versioning.InitialVersion
		}
		versions[i] = model.Version{
			ID:              dv.ID,
			Version:         version,
			Content:         dv.Content,
			ParentVersionID: dv.ParentVersionID,
			CreatedAt:       dv.CreatedAt.UTC(),
		}
		if dv.ID != "" && dv.ID == dp.CurrentVersionID {
			current = i
		}
		if dv.CreatedAt.After(dp.Versions[latest].CreatedAt) {
			latest = i
		}
	}
	if current < 0 {
		current = latest
	}

	prompt := &model.Prompt{
		UserID:    userID,
		Name:      name,
		Source:    strings.TrimSpace(dp.Source),
		Notes:     strings.TrimSpace(dp.Notes),
		Tags:      tags,
		Pinned:    dp.Pinned,
		CreatedAt: dp.CreatedAt.UTC(),
	}
	return prompt, versions, current, true
}

// DecodeDump reads a dump in the given format ("json" or "yaml").
func DecodeDump(r io.Reader, format string) (*Dump, error) {
	var dump Dump
	var err error
	switch strings.ToLower(format) {
	case "yaml", "yml":
		err = yaml.NewDecoder(r).Decode(&dump)
	case "", "json":
		err = json.NewDecoder(r).Decode(&dump)
	default:
		return nil, apperror.ValidationFailed("format", "format must be json or yaml")
	}
	if err != nil {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf("import file is not valid %s: %v", format, err))
	}
	return &dump, nil
}

// EncodeDump writes dump in the given format ("json" or "yaml").
func EncodeDump(w io.Writer, dump *Dump, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(dump); err != nil {
			return fmt.Errorf("encoding dump as yaml: %w", err)
		}
		return enc.Close()
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dump); err != nil {
			return fmt.Errorf("encoding dump as json: %w", err)
		}
		return nil
	}
	return apperror.ValidationFailed("format", "format must be json or yaml")
}
