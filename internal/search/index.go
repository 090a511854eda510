// Package search maintains a full-text index over prompts using bleve.
//
// Every prompt is indexed as one document keyed by its ID, with the owning
// user ID stored as a keyword field. Queries are always scoped to one user
// by a term query on that field, so one index serves every account.
package search

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/sakif/prompt-library/internal/model"
)

// maxHits bounds a single search. Results are intersected with the user's
// prompt list afterwards, so this only needs to exceed a realistic library
// size.
const maxHits = 10000

// textAnalyzer lower-cases unicode word tokens and keeps every one of them.
// Stop words such as "there" or "this" stay searchable.
const textAnalyzer = "prompt_text"

// Index is a bleve-backed prompt index. It is safe for concurrent use.
type Index struct {
	index bleve.Index
	path  string
}

// Open opens the index at path, creating it if needed. An empty path gives
// an in-memory index that is rebuilt from the database on demand.
//
// An on-disk index that fails to open is treated as corrupt: it is removed
// and recreated, since every document can be rebuilt from the database.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("search: creating in-memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("search: creating index at %s: %w", path, err)
		}
		return &Index{index: idx, path: path}, nil
	}
	if err != nil {
		if idx != nil {
			idx.Close()
		}
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, fmt.Errorf("search: removing corrupt index at %s: %w", path, rmErr)
		}
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("search: recreating index at %s: %w", path, err)
		}
	}

	return &Index{index: idx, path: path}, nil
}

// Path is "" for an in-memory index.
func (i *Index) Path() string {
	return i.path
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	if err := indexMapping.AddCustomAnalyzer(textAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		// Only fails for an unknown tokenizer or filter name.
		panic(fmt.Sprintf("search: registering analyzer: %v", err))
	}
	indexMapping.DefaultAnalyzer = textAnalyzer
	promptMapping := bleve.NewDocumentMapping()

	userField := bleve.NewTextFieldMapping()
	userField.Analyzer = keyword.Name
	userField.Store = false
	userField.IncludeInAll = false
	promptMapping.AddFieldMappingsAt("user_id", userField)

	for _, name := range []string{"name", "notes", "source", "tags", "content"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = textAnalyzer
		f.Store = false
		f.Index = true
		promptMapping.AddFieldMappingsAt(name, f)
	}

	indexMapping.DefaultMapping = promptMapping
	return indexMapping
}

func document(v *model.PromptView) map[string]any {
	return map[string]any{
		"user_id": v.UserID,
		"name":    v.Name,
		"notes":   v.Notes,
		"source":  v.Source,
		"tags":    strings.Join(v.Tags, " "),
		"content": v.Content(),
	}
}

// Put indexes or re-indexes one prompt.
func (i *Index) Put(v *model.PromptView) error {
	if err := i.index.Index(v.ID, document(v)); err != nil {
		return fmt.Errorf("search: indexing prompt %s: %w", v.ID, err)
	}
	return nil
}

// PutAll indexes a set of prompts in one batch.
func (i *Index) PutAll(views []model.PromptView) error {
	batch := i.index.NewBatch()
	for n := range views {
		if err := batch.Index(views[n].ID, document(&views[n])); err != nil {
			return fmt.Errorf("search: batching prompt %s: %w", views[n].ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("search: applying batch of %d: %w", len(views), err)
	}
	return nil
}

// Delete removes prompts from the index. Unknown IDs are ignored.
func (i *Index) Delete(ids ...string) error {
	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("search: deleting %d documents: %w", len(ids), err)
	}
	return nil
}

// Search returns the IDs of the user's prompts matching text, best match
// first. Every word of text must occur somewhere in the prompt; a single
// word also matches inside a longer word, so "slat" finds "translate".
func (i *Index) Search(userID, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	match := bleve.NewMatchQuery(text)
	match.SetOperator(query.MatchQueryOperatorAnd)

	var textQuery query.Query = match
	// Wildcard syntax has no escape, so text that carries * or ? itself
	// is only matched word by word.
	if !strings.ContainsAny(text, " \t*?") {
		infix := bleve.NewWildcardQuery("*" + strings.ToLower(text) + "*")
		textQuery = bleve.NewDisjunctionQuery(match, infix)
	}

	owner := bleve.NewTermQuery(userID)
	owner.SetField("user_id")

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(textQuery, owner))
	req.Size = maxHits

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: querying: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close closes the underlying bleve index.
func (i *Index) Close() error {
	return i.index.Close()
}
