package search

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/prompt-library/internal/model"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func promptView(id, user, name, content string, tags ...string) model.PromptView {
	return model.PromptView{
		Prompt:         model.Prompt{ID: id, UserID: user, Name: name, Tags: tags},
		CurrentVersion: &model.Version{ID: id + "-v", Content: content},
	}
}

func TestSearch_ScopesToUser(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.PutAll([]model.PromptView{
		promptView("a1", "alice", "Translator", "translate the text into French"),
		promptView("a2", "alice", "Reviewer", "review this Go code"),
		promptView("b1", "bob", "Translator", "translate anything"),
	}))

	ids, err := idx.Search("alice", "translate")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids)

	ids, err = idx.Search("bob", "translate")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, ids)
}

func TestSearch_Fields(t *testing.T) {
	idx := newTestIndex(t)
	v := promptView("p1", "u", "Daily standup", "summarise yesterday", "meetings")
	v.Notes = "used every morning"
	v.Source = "internal wiki"
	require.NoError(t, idx.Put(&v))

	for _, q := range []string{"standup", "summarise", "meetings", "morning", "wiki", "STANDUP"} {
		ids, err := idx.Search("u", q)
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, ids, "query %q", q)
	}
}

func TestSearch_AllWordsMustMatch(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.PutAll([]model.PromptView{
		promptView("p1", "u", "email writer", "write a polite email"),
		promptView("p2", "u", "poem writer", "write a poem"),
	}))

	ids, err := idx.Search("u", "polite email")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestSearch_Prefix(t *testing.T) {
	idx := newTestIndex(t)
	v := promptView("p1", "u", "Translator", "translate")
	require.NoError(t, idx.Put(&v))

	ids, err := idx.Search("u", "transl")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestSearch_InfixAndStopWords(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.PutAll([]model.PromptView{
		promptView("p1", "u", "hello there", "greet the user", "Greeting"),
		promptView("p2", "u", "translator", "translate this text"),
	}))

	tests := []struct {
		query string
		want  []string
	}{
		{"there", []string{"p1"}},
		{"this", []string{"p2"}},
		{"ell", []string{"p1"}},
		{"slat", []string{"p2"}},
		{"EETING", []string{"p1"}},
		{"hello there", []string{"p1"}},
		{"a*b", []string{}},
	}
	for _, tt := range tests {
		ids, err := idx.Search("u", tt.query)
		require.NoError(t, err)
		assert.ElementsMatch(t, tt.want, ids, "query %q", tt.query)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx := newTestIndex(t)

	ids, err := idx.Search("u", "   ")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPut_ReplacesDocument(t *testing.T) {
	idx := newTestIndex(t)
	v := promptView("p1", "u", "x", "old words")
	require.NoError(t, idx.Put(&v))

	v.CurrentVersion.Content = "fresh words"
	require.NoError(t, idx.Put(&v))

	ids, _ := idx.Search("u", "old")
	assert.Empty(t, ids)
	ids, _ = idx.Search("u", "fresh")
	assert.Equal(t, []string{"p1"}, ids)
}

func TestDelete(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.PutAll([]model.PromptView{
		promptView("p1", "u", "alpha", "x"),
		promptView("p2", "u", "alpha", "y"),
	}))

	require.NoError(t, idx.Delete("p1", "missing"))

	ids, err := idx.Search("u", "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, ids)
}

func TestOpen_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.bleve")

	idx, err := Open(path)
	require.NoError(t, err)
	v := promptView("p1", "u", "persisted", "x")
	require.NoError(t, idx.Put(&v))
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, path, idx.Path())
	ids, err := idx.Search("u", "persisted")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}
