package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/prompt-library/internal/category"
	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/service"
)

func TestPromptHandler_CreateAndGet(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")

	created := createPrompt(t, e, alice, `{"name":"Translator","content":"translate to French","tags":["translate"]}`)
	assert.NotEmpty(t, created.ID)
	require.NotNil(t, created.CurrentVersion)
	assert.Equal(t, "1.0.0", created.CurrentVersion.Version)
	assert.Equal(t, created.CurrentVersion.ID, created.CurrentVersionID)

	rr := call(e.prompts.HandleGet, http.MethodGet, "/api/prompts/"+created.ID, "", alice, "id", created.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[model.PromptView](t, rr)
	assert.Equal(t, "Translator", got.Name)
	assert.Len(t, got.Versions, 1)

	// Someone else's prompt does not exist as far as bob can tell.
	rr = call(e.prompts.HandleGet, http.MethodGet, "/api/prompts/"+created.ID, "", bob, "id", created.ID)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPromptHandler_CreateValidation(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register(t, "alice")

	for name, body := range map[string]string{
		"missing content": `{"name":"n"}`,
		"missing name":    `{"content":"c"}`,
		"bad json":        `{"name":`,
	} {
		rr := call(e.prompts.HandleCreate, http.MethodPost, "/api/prompts", body, alice)
		assert.Equal(t, http.StatusBadRequest, rr.Code, name)
	}

	rr := call(e.prompts.HandleCreate, http.MethodPost, "/api/prompts", `{"name":"n","content":"c"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPromptHandler_UpdateModes(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register(t, "alice")
	p := createPrompt(t, e, alice, `{"name":"n","content":"v1"}`)

	// In-place edit keeps the version.
	rr := call(e.prompts.HandleUpdate, http.MethodPut, "/api/prompts/"+p.ID,
		`{"name":"n","content":"v1 fixed"}`, alice, "id", p.ID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	view := decode[model.PromptView](t, rr)
	assert.Equal(t, p.CurrentVersionID, view.CurrentVersionID)
	assert.Equal(t, "v1 fixed", view.CurrentVersion.Content)

	// saveAsVersion with a minor bump creates 1.1.0.
	rr = call(e.prompts.HandleUpdate, http.MethodPut, "/api/prompts/"+p.ID,
		`{"name":"n","content":"v2","saveAsVersion":true,"versionType":"minor"}`, alice, "id", p.ID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	view = decode[model.PromptView](t, rr)
	assert.Equal(t, "1.1.0", view.CurrentVersion.Version)
	assert.Equal(t, p.CurrentVersionID, view.CurrentVersion.ParentVersionID)
	assert.Equal(t, 2, view.VersionCount)
}

func TestPromptHandler_VersionsAndRollback(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register(t, "alice")
	p := createPrompt(t, e, alice, `{"name":"n","content":"first"}`)
	rr := call(e.prompts.HandleUpdate, http.MethodPut, "/api/prompts/"+p.ID,
		`{"name":"n","content":"second","saveAsVersion":true}`, alice, "id", p.ID)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = call(e.prompts.HandleVersions, http.MethodGet, "/api/prompts/"+p.ID+"/versions", "", alice, "id", p.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	versions := decode[[]model.Version](t, rr)
	require.Len(t, versions, 2)

	rr = call(e.prompts.HandleRollback, http.MethodPost, "/api/prompts/"+p.ID+"/rollback",
		`{"versionId":"`+p.CurrentVersionID+`"}`, alice, "id", p.ID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	view := decode[model.PromptView](t, rr)
	assert.Equal(t, "first", view.CurrentVersion.Content)
	assert.Equal(t, "1.0.2", view.CurrentVersion.Version)
	assert.Equal(t, p.CurrentVersionID, view.CurrentVersion.ParentVersionID)

	rr = call(e.prompts.HandleRollback, http.MethodPost, "/api/prompts/"+p.ID+"/rollback",
		`{"versionId":""}`, alice, "id", p.ID)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPromptHandler_PinAndDelete(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register(t, "alice")
	p := createPrompt(t, e, alice, `{"name":"n","content":"c"}`)

	rr := call(e.prompts.HandleTogglePin, http.MethodPost, "/api/prompts/"+p.ID+"/pin", "", alice, "id", p.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[model.PromptView](t, rr).Pinned)

	rr = call(e.prompts.HandleDelete, http.MethodDelete, "/api/prompts/"+p.ID, "", alice, "id", p.ID)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = call(e.prompts.HandleGet, http.MethodGet, "/api/prompts/"+p.ID, "", alice, "id", p.ID)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPromptHandler_List(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register(t, "alice")
	createPrompt(t, e, alice, `{"name":"alpha","content":"review Go code","tags":["code"]}`)
	pinned := createPrompt(t, e, alice, `{"name":"beta","content":"translate to French","tags":["translate"]}`)
	call(e.prompts.HandleTogglePin, http.MethodPost, "/", "", alice, "id", pinned.ID)

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"all by name", "/api/prompts?sortBy=name&sortOrder=asc", []string{"alpha", "beta"}},
		{"tags", "/api/prompts?tags=code,%20other", []string{"alpha"}},
		{"pinned", "/api/prompts?pinned=true", []string{"beta"}},
		{"category", "/api/prompts?category=language", []string{"beta"}},
		{"search", "/api/prompts?search=french", []string{"beta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := call(e.prompts.HandleList, http.MethodGet, tt.target, "", alice)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			page := decode[service.PromptPage](t, rr)
			got := make([]string, len(page.Prompts))
			for i, p := range page.Prompts {
				got[i] = p.Name
			}
			assert.Equal(t, tt.want, got)
		})
	}

	for _, target := range []string{
		"/api/prompts?page=zero",
		"/api/prompts?limit=0",
		"/api/prompts?limit=101",
		"/api/prompts?pinned=maybe",
		"/api/prompts?sortBy=stars",
		"/api/prompts?category=nope",
	} {
		rr := call(e.prompts.HandleList, http.MethodGet, target, "", alice)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestPromptHandler_TagsSourcesCategories(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register(t, "alice")
	createPrompt(t, e, alice, `{"name":"a","content":"c","source":"blog","tags":["code","translate"]}`)
	createPrompt(t, e, alice, `{"name":"b","content":"c","source":"book","tags":["code"]}`)

	rr := call(e.prompts.HandleTags, http.MethodGet, "/api/tags", "", alice)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"code", "translate"}, decode[[]string](t, rr))

	rr = call(e.prompts.HandleSources, http.MethodGet, "/api/sources", "", alice)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"blog", "book"}, decode[[]string](t, rr))

	rr = call(e.prompts.HandleCategories, http.MethodGet, "/api/categories", "", alice)
	require.Equal(t, http.StatusOK, rr.Code)
	counts := map[string]int{}
	for _, c := range decode[[]category.Count](t, rr) {
		counts[c.Name] = c.Count
	}
	assert.Equal(t, 2, counts[category.All])
	assert.Equal(t, 2, counts["programming"])
	assert.Equal(t, 1, counts["language"])

	rr = call(e.prompts.HandleCategoryPrompts, http.MethodGet, "/api/categories/language", "", alice, "name", "language")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.PromptView](t, rr), 1)

	rr = call(e.prompts.HandleCategoryPrompts, http.MethodGet, "/api/categories/nope", "", alice, "name", "nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPromptHandler_DashboardStats(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register(t, "alice")
	p := createPrompt(t, e, alice, `{"name":"a","content":"c"}`)
	createPrompt(t, e, alice, `{"name":"b","content":"c"}`)
	call(e.prompts.HandleTogglePin, http.MethodPost, "/", "", alice, "id", p.ID)

	rr := call(e.prompts.HandleDashboardStats, http.MethodGet, "/api/dashboard/stats", "", alice)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.DashboardStats{
		TotalPrompts:   2,
		PinnedPrompts:  1,
		TotalVersions:  2,
		RecentActivity: 2,
	}, decode[service.DashboardStats](t, rr))
}
