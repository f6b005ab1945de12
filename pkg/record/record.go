// Package record turns commit statistics into flat export rows.
package record

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/gitstat/pkg/commitstat"
	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
)

// Granularity selects how many rows a commit produces.
type Granularity string

const (
	// GranularityCommit emits one row per commit with summed totals.
	GranularityCommit Granularity = "commit"
	// GranularityFile emits one row per changed file.
	GranularityFile Granularity = "file"
)

// ErrUnknownGranularity is the cause wrapped by ParseGranularity failures.
var ErrUnknownGranularity = errors.New("unknown granularity")

// ParseGranularity accepts "commit" or "file", case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case GranularityCommit, GranularityFile:
		return g, nil
	default:
		return "", faults.InvalidInput(s, fmt.Errorf("%w: want %q or %q", ErrUnknownGranularity, GranularityCommit, GranularityFile))
	}
}

// StatDetailBean is one export row before it is laid out by a Schema.
// Commit rows fill DiffSummary and FilesChanged; file rows fill Path,
// OldPath, ChangeKind, and Language. Ext holds extension-owned columns.
type StatDetailBean struct {
	RepoID       string         `json:"repoId"`
	CommitID     string         `json:"commitId"`
	Author       string         `json:"author"`
	AuthorEmail  string         `json:"authorEmail"`
	Timestamp    time.Time      `json:"timestamp"`
	Message      string         `json:"message"`
	DiffSummary  string         `json:"diffSummary,omitempty"`
	FilesChanged int            `json:"filesChanged"`
	LinesAdded   int            `json:"linesAdded"`
	LinesDeleted int            `json:"linesDeleted"`
	Path         string         `json:"path,omitempty"`
	OldPath      string         `json:"oldPath,omitempty"`
	ChangeKind   string         `json:"changeKind,omitempty"`
	Language     string         `json:"language,omitempty"`
	Ext          map[string]any `json:"ext,omitempty"`
}

// ToRecords converts one commit into rows. Commit granularity always yields
// exactly one row; file granularity yields one row per entry in diff order,
// and none for a commit without changes.
func ToRecords(ci *commitstat.CommitStatInfo, granularity Granularity) []*StatDetailBean {
	if granularity == GranularityFile {
		beans := make([]*StatDetailBean, 0, len(ci.Entries))

		for _, entry := range ci.Entries {
			bean := base(ci)
			bean.FilesChanged = 1
			bean.LinesAdded = entry.Added
			bean.LinesDeleted = entry.Deleted
			bean.Path = entry.Path()
			bean.ChangeKind = entry.Kind.String()
			bean.Language = DetectLanguage(bean.Path)

			if entry.Kind == commitstat.ChangeRename || entry.Kind == commitstat.ChangeCopy {
				bean.OldPath = entry.OldPath
			}

			beans = append(beans, bean)
		}

		return beans
	}

	bean := base(ci)
	bean.FilesChanged = len(ci.Entries)
	bean.LinesAdded, bean.LinesDeleted = ci.Totals()
	bean.DiffSummary = Summarize(ci.Entries)

	return []*StatDetailBean{bean}
}

func base(ci *commitstat.CommitStatInfo) *StatDetailBean {
	return &StatDetailBean{
		RepoID:      ci.RepoPath,
		CommitID:    ci.Hash,
		Author:      ci.Author,
		AuthorEmail: ci.AuthorEmail,
		Timestamp:   ci.When,
		Message:     strings.TrimSpace(ci.Message),
	}
}

// Summarize renders entries as a compact list, for example
// "M a.go (+3/-1); R a.txt -> b.txt; A logo.png (binary)".
func Summarize(entries []commitstat.DiffEntry) string {
	var sb strings.Builder

	for i, entry := range entries {
		if i > 0 {
			sb.WriteString("; ")
		}

		sb.WriteString(entry.Kind.Letter())
		sb.WriteByte(' ')

		switch entry.Kind {
		case commitstat.ChangeRename, commitstat.ChangeCopy:
			sb.WriteString(entry.OldPath)
			sb.WriteString(" -> ")
			sb.WriteString(entry.NewPath)
		case commitstat.ChangeAdd, commitstat.ChangeModify, commitstat.ChangeDelete:
			sb.WriteString(entry.Path())
		}

		switch {
		case entry.Binary:
			sb.WriteString(" (binary)")
		case entry.Added > 0 || entry.Deleted > 0:
			fmt.Fprintf(&sb, " (+%d/-%d)", entry.Added, entry.Deleted)
		}
	}

	return sb.String()
}

// DetectLanguage guesses a file's language from its name alone. Unknown
// names yield an empty string.
func DetectLanguage(filePath string) string {
	name := path.Base(filePath)

	if lang, ok := enry.GetLanguageByFilename(name); ok {
		return lang
	}

	if lang, ok := enry.GetLanguageByExtension(name); ok {
		return lang
	}

	return ""
}
