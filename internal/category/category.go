// Package category assigns prompts to navigation buckets based on their tags.
//
// MATCH RULE:
// A prompt belongs to a bucket when any of its tags and any of the bucket's
// keywords contain one another, compared in lower case. The containment is
// checked in both directions, so the tag "AI" matches the keyword "AI工具"
// and the tag "python code" matches the keyword "code".
//
// Two synthetic buckets exist regardless of the table: "all" matches every
// prompt and "pinned" matches pinned prompts.
package category

import (
	"strings"

	"github.com/sakif/prompt-library/internal/model"
)

const (
	All    = "all"
	Pinned = "pinned"
)

// Category is one named bucket and the keywords that select it.
type Category struct {
	Name     string   `json:"name" mapstructure:"name" yaml:"name"`
	Keywords []string `json:"keywords" mapstructure:"keywords" yaml:"keywords"`
}

// Classifier holds an ordered category table. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	table  []Category
	byName map[string]int

	// lowered keywords, index-aligned with table
	lowered [][]string
}

// New builds a classifier from table. Categories with an empty name or a
// name that collides with a synthetic bucket are skipped; a repeated name
// keeps its first entry.
func New(table []Category) *Classifier {
	c := &Classifier{byName: make(map[string]int, len(table))}

	for _, cat := range table {
		name := strings.TrimSpace(cat.Name)
		if name == "" || name == All || name == Pinned {
			continue
		}
		if _, dup := c.byName[name]; dup {
			continue
		}

		kws := make([]string, 0, len(cat.Keywords))
		low := make([]string, 0, len(cat.Keywords))
		for _, k := range cat.Keywords {
			if strings.TrimSpace(k) == "" {
				continue
			}
			kws = append(kws, k)
			low = append(low, strings.ToLower(k))
		}

		c.byName[name] = len(c.table)
		c.table = append(c.table, Category{Name: name, Keywords: kws})
		c.lowered = append(c.lowered, low)
	}

	return c
}

// Table returns a copy of the configured table, without the synthetic
// buckets.
func (c *Classifier) Table() []Category {
	out := make([]Category, len(c.table))
	for i, cat := range c.table {
		out[i] = Category{Name: cat.Name, Keywords: append([]string(nil), cat.Keywords...)}
	}
	return out
}

// Names returns every bucket name including "all" and "pinned", in table
// order.
func (c *Classifier) Names() []string {
	names := make([]string, 0, len(c.table)+2)
	names = append(names, All, Pinned)
	for _, cat := range c.table {
		names = append(names, cat.Name)
	}
	return names
}

// Known reports whether name is a synthetic or configured bucket.
func (c *Classifier) Known(name string) bool {
	if name == All || name == Pinned {
		return true
	}
	_, ok := c.byName[name]
	return ok
}

// Classify returns the configured buckets p falls into, in table order.
// The synthetic buckets are not included.
func (c *Classifier) Classify(p *model.Prompt) []string {
	tags := lowerTags(p.Tags)
	var out []string
	for i, cat := range c.table {
		if matchAny(tags, c.lowered[i]) {
			out = append(out, cat.Name)
		}
	}
	return out
}

// Matches reports whether p belongs to the named bucket. Unknown names
// never match.
func (c *Classifier) Matches(p *model.Prompt, name string) bool {
	switch name {
	case All:
		return true
	case Pinned:
		return p.Pinned
	}

	i, ok := c.byName[name]
	if !ok {
		return false
	}
	return matchAny(lowerTags(p.Tags), c.lowered[i])
}

// Filter returns the prompts in the named bucket, keeping their order.
func (c *Classifier) Filter(prompts []model.PromptView, name string) []model.PromptView {
	out := make([]model.PromptView, 0, len(prompts))
	for i := range prompts {
		if c.Matches(&prompts[i].Prompt, name) {
			out = append(out, prompts[i])
		}
	}
	return out
}

// Counts tallies prompts per bucket. Every bucket name appears in the
// result, including those with zero prompts.
func (c *Classifier) Counts(prompts []model.PromptView) map[string]int {
	counts := make(map[string]int, len(c.table)+2)
	for _, n := range c.Names() {
		counts[n] = 0
	}

	for i := range prompts {
		p := &prompts[i].Prompt
		counts[All]++
		if p.Pinned {
			counts[Pinned]++
		}
		for _, n := range c.Classify(p) {
			counts[n]++
		}
	}
	return counts
}

// Count is a single bucket tally, used for ordered output.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// OrderedCounts is Counts in Names order.
func (c *Classifier) OrderedCounts(prompts []model.PromptView) []Count {
	m := c.Counts(prompts)
	out := make([]Count, 0, len(m))
	for _, n := range c.Names() {
		out = append(out, Count{Name: n, Count: m[n]})
	}
	return out
}

func lowerTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if strings.TrimSpace(t) == "" {
			continue
		}
		out = append(out, strings.ToLower(t))
	}
	return out
}

func matchAny(tags, keywords []string) bool {
	for _, t := range tags {
		for _, k := range keywords {
			if strings.Contains(t, k) || strings.Contains(k, t) {
				return true
			}
		}
	}
	return false
}

