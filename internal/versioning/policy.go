package versioning

import "github.com/sakif/prompt-library/internal/model"

// Action is the outcome of the edit policy.
type Action int

const (
	// Mutate overwrites the current version's content in place.
	Mutate Action = iota
	// Create appends a new version and repoints the prompt at it.
	Create
)

func (a Action) String() string {
	if a == Create {
		return "create"
	}
	return "mutate"
}

// Edit is a requested content change. Content must already be validated as
// non-empty by the caller.
type Edit struct {
	Content       string
	SaveAsVersion bool
	Bump          BumpKind
}

// Decision tells the Store what to write.
//
// For Mutate, VersionID is the version whose content is overwritten and
// Version/ParentVersionID are left as they were. For Create, Version is the
// computed version string and ParentVersionID the version it derives from.
type Decision struct {
	Action          Action
	VersionID       string
	Version         string
	ParentVersionID string
	Content         string
}

// Decide applies the edit policy to the prompt's current version.
func Decide(current model.Version, edit Edit) Decision {
	if !edit.SaveAsVersion {
		return Decision{
			Action:          Mutate,
			VersionID:       current.ID,
			Version:         current.Version,
			ParentVersionID: current.ParentVersionID,
			Content:         edit.Content,
		}
	}

	return Decision{
		Action:          Create,
		Version:         Bump(current.Version, edit.Bump),
		ParentVersionID: current.ID,
		Content:         edit.Content,
	}
}

// DecideRollback restores target's content as a new version. The version
// string is bumped from current (not from target) so it stays ahead of the
// history, and the parent is the version being restored.
func DecideRollback(current, target model.Version, kind BumpKind) Decision {
	return Decision{
		Action:          Create,
		Version:         Bump(current.Version, kind),
		ParentVersionID: target.ID,
		Content:         target.Content,
	}
}
