package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/service"
)

// PromptHandler exposes a user's prompt library under /api/prompts.
//
// Every route runs behind auth.RequireAuth; the caller's ID comes from the
// request context and is passed to the service, which enforces ownership.
type PromptHandler struct {
	prompts *service.PromptService
	logger  *slog.Logger
	now     func() time.Time
}

func NewPromptHandler(prompts *service.PromptService, logger *slog.Logger) *PromptHandler {
	return &PromptHandler{prompts: prompts, logger: logger, now: time.Now}
}

type promptRequest struct {
	Name    string   `json:"name"`
	Content string   `json:"content"`
	Source  string   `json:"source"`
	Notes   string   `json:"notes"`
	Tags    []string `json:"tags"`
}

func (p promptRequest) input() service.PromptInput {
	return service.PromptInput{
		Name:    p.Name,
		Content: p.Content,
		Source:  p.Source,
		Notes:   p.Notes,
		Tags:    p.Tags,
	}
}

type updatePromptRequest struct {
	promptRequest
	SaveAsVersion bool   `json:"saveAsVersion"`
	VersionType   string `json:"versionType"`
}

type rollbackRequest struct {
	VersionID   string `json:"versionId"`
	VersionType string `json:"versionType"`
}

// HandleList returns one page of the caller's prompts.
//
// HTTP: GET /api/prompts?page=1&limit=20&search=...&tags=a,b&pinned=true
//
//	&category=...&sortBy=updatedAt&sortOrder=desc
func (h *PromptHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	query, err := parseListQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.prompts.List(r.Context(), uid, query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// parseListQuery turns query-string parameters into a ListQuery. Range
// checks happen in the service; this only rejects values that are not
// numbers or booleans at all.
func parseListQuery(r *http.Request) (service.ListQuery, error) {
	q := r.URL.Query()
	out := service.ListQuery{
		Search:    q.Get("search"),
		Category:  q.Get("category"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	var err error
	if out.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return out, err
	}
	if out.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return out, err
	}

	if raw := q.Get("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out.Tags = append(out.Tags, t)
			}
		}
	}

	if raw := q.Get("pinned"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return out, apperror.ValidationFailed("pinned", "pinned must be true or false")
		}
		out.Pinned = &b
	}
	return out, nil
}

func intParam(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.ValidationFailed(field, field+" must be a positive integer")
	}
	return n, nil
}

// HandleCreate saves a new prompt with its seed version 1.0.0.
//
// HTTP: POST /api/prompts
func (h *PromptHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req promptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.prompts.Create(r.Context(), uid, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleGet returns one prompt with its most recent versions.
//
// HTTP: GET /api/prompts/{id}
func (h *PromptHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.prompts.Get(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleUpdate edits a prompt. With saveAsVersion the content goes into a
// new version (versionType picks the bump); otherwise the current version
// is overwritten in place.
//
// HTTP: PUT /api/prompts/{id}
func (h *PromptHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updatePromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.prompts.Update(r.Context(), uid, r.PathValue("id"), service.UpdateInput{
		PromptInput:   req.input(),
		SaveAsVersion: req.SaveAsVersion,
		VersionType:   req.VersionType,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleDelete removes a prompt and its whole history.
//
// HTTP: DELETE /api/prompts/{id}
func (h *PromptHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.prompts.Delete(r.Context(), uid, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTogglePin flips the pinned flag.
//
// HTTP: POST /api/prompts/{id}/pin
func (h *PromptHandler) HandleTogglePin(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.prompts.TogglePin(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleVersions returns the full history, newest first.
//
// HTTP: GET /api/prompts/{id}/versions
func (h *PromptHandler) HandleVersions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	versions, err := h.prompts.Versions(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// HandleRollback restores an earlier version's content as a new version.
//
// HTTP: POST /api/prompts/{id}/rollback
func (h *PromptHandler) HandleRollback(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req rollbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.prompts.Rollback(r.Context(), uid, r.PathValue("id"), req.VersionID, req.VersionType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleTags lists the distinct tags in the caller's library.
//
// HTTP: GET /api/tags
func (h *PromptHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tags, err := h.prompts.Tags(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// HandleSources lists the distinct sources in the caller's library.
//
// HTTP: GET /api/sources
func (h *PromptHandler) HandleSources(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sources, err := h.prompts.Sources(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

// HandleDashboardStats returns the counters on the dashboard.
//
// HTTP: GET /api/dashboard/stats
func (h *PromptHandler) HandleDashboardStats(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.prompts.DashboardStats(r.Context(), uid, h.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
