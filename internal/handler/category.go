package handler

import (
	"net/http"
)

// HandleCategories returns the prompt count of every category, including
// the synthetic "all" and "pinned" entries, in display order.
//
// HTTP: GET /api/categories
func (h *PromptHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	counts, err := h.prompts.Categories(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// HandleCategoryPrompts returns the caller's prompts in one category.
// An unknown category name is 404.
//
// HTTP: GET /api/categories/{name}
func (h *PromptHandler) HandleCategoryPrompts(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	prompts, err := h.prompts.CategoryPrompts(r.Context(), uid, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}
