// Package model defines the data structures used throughout the application.
package model

import "time"

// Prompt is a named, user-owned prompt template.
//
// The content itself lives on Version rows. CurrentVersionID points at the
// authoritative one; it is only empty while the prompt is being constructed
// inside the repository's create transaction.
type Prompt struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	Name             string    `json:"name"`
	Source           string    `json:"source,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	Tags             []string  `json:"tags"`
	Pinned           bool      `json:"pinned"`
	CurrentVersionID string    `json:"currentVersionId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Version is one content snapshot of a Prompt.
//
// ParentVersionID is empty for the seed version. In-place edits overwrite
// Content without touching Version or ParentVersionID.
type Version struct {
	ID              string    `json:"id"`
	PromptID        string    `json:"promptId"`
	Version         string    `json:"version"`
	Content         string    `json:"content"`
	ParentVersionID string    `json:"parentVersionId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PromptView is the single read projection of a prompt: the prompt record,
// its resolved current version and the size of its history.
//
// Everything that needs "the prompt's content" goes through Content() so
// there is exactly one place that answers that question.
type PromptView struct {
	Prompt
	CurrentVersion *Version  `json:"currentVersion"`
	VersionCount   int       `json:"versionCount"`
	Versions       []Version `json:"versions,omitempty"`
}

// Content returns the current version's content, or "" if it is unresolved.
func (v *PromptView) Content() string {
	if v.CurrentVersion == nil {
		return ""
	}
	return v.CurrentVersion.Content
}

// VersionString returns the current semantic version string, or "".
func (v *PromptView) VersionString() string {
	if v.CurrentVersion == nil {
		return ""
	}
	return v.CurrentVersion.Version
}

// HasTag reports whether the prompt carries tag exactly as stored.
func (p *Prompt) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
