package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/model"
)

// Sort keys accepted by List.
const (
	SortByCreatedAt = "createdAt"
	SortByUpdatedAt = "updatedAt"
	SortByName      = "name"
)

// ListQuery filters and pages a user's prompts. Zero values mean "no
// filter" and the defaults below.
type ListQuery struct {
	Page      int
	Limit     int
	Search    string
	Tags      []string // keep prompts carrying any of these
	Pinned    *bool
	Category  string
	SortBy    string // createdAt, updatedAt (default) or name
	SortOrder string // asc or desc (default)
}

// Pagination mirrors the request window plus totals.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// PromptPage is one page of List results.
type PromptPage struct {
	Prompts    []model.PromptView `json:"prompts"`
	Pagination Pagination         `json:"pagination"`
}

func (q *ListQuery) normalize() error {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		return apperror.ValidationFailed("limit", fmt.Sprintf("limit must be between 1 and %d", MaxListLimit))
	}

	switch q.SortBy {
	case "":
		q.SortBy = SortByUpdatedAt
	case SortByCreatedAt, SortByUpdatedAt, SortByName:
	default:
		return apperror.ValidationFailed("sortBy", "sortBy must be one of createdAt, updatedAt, name")
	}
	switch q.SortOrder {
	case "":
		q.SortOrder = "desc"
	case "asc", "desc":
	default:
		return apperror.ValidationFailed("sortOrder", "sortOrder must be asc or desc")
	}

	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
	return nil
}

// List returns one page of the user's prompts after search, filters and
// sorting have been applied.
func (s *PromptService) List(ctx context.Context, userID string, q ListQuery) (*PromptPage, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}
	classifier := s.Classifier()
	if q.Category != "" && !classifier.Known(q.Category) {
		return nil, apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", q.Category))
	}

	views, err := s.prompts.ListPromptViews(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list prompts",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing prompts: %w", err)
	}

	if q.Search != "" {
		views = s.search(userID, views, q.Search)
	}
	if len(q.Tags) > 0 {
		views = filterViews(views, func(v *model.PromptView) bool {
			for _, t := range q.Tags {
				if v.HasTag(t) {
					return true
				}
			}
			return false
		})
	}
	if q.Pinned != nil {
		views = filterViews(views, func(v *model.PromptView) bool { return v.Pinned == *q.Pinned })
	}
	if q.Category != "" {
		views = classifier.Filter(views, q.Category)
	}

	sortViews(views, q.SortBy, q.SortOrder)

	total := len(views)
	start := min((q.Page-1)*q.Limit, total)
	end := min(start+q.Limit, total)
	page := views[start:end]
	if page == nil {
		page = []model.PromptView{}
	}

	return &PromptPage{
		Prompts: page,
		Pagination: Pagination{
			Page:  q.Page,
			Limit: q.Limit,
			Total: total,
			Pages: (total + q.Limit - 1) / q.Limit,
		},
	}, nil
}

// search narrows views to those the index matches or that contain text as
// a case-insensitive substring. The user's prompts are loaded into the
// index the first time they search; if the index fails only the substring
// match is used.
func (s *PromptService) search(userID string, views []model.PromptView, text string) []model.PromptView {
	if _, done := s.indexed.Load(userID); !done {
		if err := s.index.PutAll(views); err != nil {
			s.logger.Warn("failed to load prompts into index",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return filterViews(views, func(v *model.PromptView) bool { return containsText(v, text) })
		}
		s.indexed.Store(userID, struct{}{})
	}

	ids, err := s.index.Search(userID, text)
	if err != nil {
		s.logger.Warn("index search failed, falling back to substring match",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return filterViews(views, func(v *model.PromptView) bool { return containsText(v, text) })
	}

	hits := make(map[string]bool, len(ids))
	for _, id := range ids {
		hits[id] = true
	}
	return filterViews(views, func(v *model.PromptView) bool { return hits[v.ID] || containsText(v, text) })
}

func containsText(v *model.PromptView, text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, field := range []string{v.Name, v.Notes, v.Source, v.Content(), strings.Join(v.Tags, " ")} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}

func filterViews(views []model.PromptView, keep func(*model.PromptView) bool) []model.PromptView {
	out := make([]model.PromptView, 0, len(views))
	for i := range views {
		if keep(&views[i]) {
			out = append(out, views[i])
		}
	}
	return out
}

func sortViews(views []model.PromptView, by, order string) {
	slices.SortStableFunc(views, func(a, b model.PromptView) int {
		var c int
		switch by {
		case SortByName:
			c = cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortByCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		default:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		}
		if order == "desc" {
			return -c
		}
		return c
	})
}
