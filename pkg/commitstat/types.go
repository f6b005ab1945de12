// Package commitstat walks git history and summarizes each commit's diff
// against its first parent.
package commitstat

import (
	"time"

	"github.com/Sumatoshi-tech/gitstat/pkg/gitlib"
)

// ChangeKind classifies a single file change within a commit.
type ChangeKind int

// Change kinds in the order libgit2 reports them.
const (
	ChangeAdd ChangeKind = iota
	ChangeModify
	ChangeDelete
	ChangeRename
	ChangeCopy
)

var changeKindNames = [...]string{
	ChangeAdd:    "add",
	ChangeModify: "modify",
	ChangeDelete: "delete",
	ChangeRename: "rename",
	ChangeCopy:   "copy",
}

// String returns the lowercase name used in exports.
func (k ChangeKind) String() string {
	if k < 0 || int(k) >= len(changeKindNames) {
		return "unknown"
	}

	return changeKindNames[k]
}

// Letter returns the one-letter status code git prints for the kind.
func (k ChangeKind) Letter() string {
	switch k {
	case ChangeAdd:
		return "A"
	case ChangeModify:
		return "M"
	case ChangeDelete:
		return "D"
	case ChangeRename:
		return "R"
	case ChangeCopy:
		return "C"
	default:
		return "?"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// DiffEntry is one file-level change. Added has an empty OldPath, Delete has
// an empty NewPath, and Rename and Copy carry both.
type DiffEntry struct {
	OldPath    string     `json:"oldPath,omitempty"`
	NewPath    string     `json:"newPath,omitempty"`
	Kind       ChangeKind `json:"kind"`
	Added      int        `json:"added"`
	Deleted    int        `json:"deleted"`
	Binary     bool       `json:"binary"`
	Similarity int        `json:"similarity,omitempty"`
}

// Path returns the post-change path, or the old path for deletions.
func (e DiffEntry) Path() string {
	if e.NewPath != "" {
		return e.NewPath
	}

	return e.OldPath
}

// CommitStatInfo is the metadata and diff summary of one commit.
type CommitStatInfo struct {
	RepoPath    string      `json:"repoPath"`
	Hash        string      `json:"hash"`
	ShortHash   string      `json:"shortHash"`
	Author      string      `json:"author"`
	AuthorEmail string      `json:"authorEmail"`
	Committer   string      `json:"committer"`
	When        time.Time   `json:"when"`
	Message     string      `json:"message"`
	Parents     []string    `json:"parents"`
	Entries     []DiffEntry `json:"entries"`
}

// IsMerge reports whether the commit has more than one parent.
func (ci *CommitStatInfo) IsMerge() bool {
	return len(ci.Parents) > 1
}

// Totals sums added and deleted lines across all entries.
func (ci *CommitStatInfo) Totals() (added, deleted int) {
	for _, entry := range ci.Entries {
		added += entry.Added
		deleted += entry.Deleted
	}

	return added, deleted
}

func kindFrom(status gitlib.DeltaStatus) ChangeKind {
	switch status {
	case gitlib.DeltaAdded:
		return ChangeAdd
	case gitlib.DeltaDeleted:
		return ChangeDelete
	case gitlib.DeltaRenamed:
		return ChangeRename
	case gitlib.DeltaCopied:
		return ChangeCopy
	case gitlib.DeltaModified, gitlib.DeltaOther:
		return ChangeModify
	default:
		return ChangeModify
	}
}

func entryFrom(stat gitlib.FileStat) DiffEntry {
	entry := DiffEntry{
		OldPath:    stat.OldPath,
		NewPath:    stat.NewPath,
		Kind:       kindFrom(stat.Status),
		Added:      stat.Added,
		Deleted:    stat.Deleted,
		Binary:     stat.Binary,
		Similarity: stat.Similarity,
	}

	switch entry.Kind {
	case ChangeAdd:
		entry.OldPath = ""
	case ChangeDelete:
		entry.NewPath = ""
	case ChangeModify:
		entry.Similarity = 0
	case ChangeRename, ChangeCopy:
	}

	if entry.Binary {
		entry.Added, entry.Deleted = 0, 0
	}

	return entry
}
