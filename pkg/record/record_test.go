package record_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitstat/pkg/commitstat"
	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
	"github.com/Sumatoshi-tech/gitstat/pkg/record"
)

var commitTime = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))

func sampleCommit() *commitstat.CommitStatInfo {
	return &commitstat.CommitStatInfo{
		RepoPath:    "/repos/app",
		Hash:        "0123456789abcdef0123456789abcdef01234567",
		ShortHash:   "0123456789",
		Author:      "Ada",
		AuthorEmail: "ada@example.com",
		When:        commitTime,
		Message:     "Refactor parser\n\nDetails here.\n",
		Entries: []commitstat.DiffEntry{
			{OldPath: "main.go", NewPath: "main.go", Kind: commitstat.ChangeModify, Added: 3, Deleted: 1},
			{OldPath: "a.rb", NewPath: "b.rb", Kind: commitstat.ChangeRename, Similarity: 100},
			{NewPath: "logo.png", Kind: commitstat.ChangeAdd, Binary: true},
			{OldPath: "old.py", Kind: commitstat.ChangeDelete, Deleted: 4},
		},
	}
}

func TestParseGranularity(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]record.Granularity{
		"commit":   record.GranularityCommit,
		"file":     record.GranularityFile,
		" FILE ":   record.GranularityFile,
		"Commit\n": record.GranularityCommit,
	} {
		got, err := record.ParseGranularity(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	for _, input := range []string{"", "line", "files"} {
		_, err := record.ParseGranularity(input)
		require.ErrorIs(t, err, faults.ErrInvalidInput, input)
		assert.ErrorIs(t, err, record.ErrUnknownGranularity)
	}
}

func TestToRecords_CommitGranularity(t *testing.T) {
	t.Parallel()

	beans := record.ToRecords(sampleCommit(), record.GranularityCommit)
	require.Len(t, beans, 1)

	bean := beans[0]
	assert.Equal(t, "/repos/app", bean.RepoID)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", bean.CommitID)
	assert.Equal(t, "Ada", bean.Author)
	assert.Equal(t, "ada@example.com", bean.AuthorEmail)
	assert.Equal(t, commitTime, bean.Timestamp)
	assert.Equal(t, "Refactor parser\n\nDetails here.", bean.Message)
	assert.Equal(t, 4, bean.FilesChanged)
	assert.Equal(t, 3, bean.LinesAdded)
	assert.Equal(t, 5, bean.LinesDeleted)
	assert.Equal(t, "M main.go (+3/-1); R a.rb -> b.rb; A logo.png (binary); D old.py (+0/-4)", bean.DiffSummary)
	assert.Empty(t, bean.Path)
	assert.Nil(t, bean.Ext)
}

func TestToRecords_CommitGranularityEmptyCommit(t *testing.T) {
	t.Parallel()

	ci := sampleCommit()
	ci.Entries = nil

	beans := record.ToRecords(ci, record.GranularityCommit)
	require.Len(t, beans, 1)

	assert.Zero(t, beans[0].FilesChanged)
	assert.Zero(t, beans[0].LinesAdded)
	assert.Zero(t, beans[0].LinesDeleted)
	assert.Empty(t, beans[0].DiffSummary)
}

func TestToRecords_FileGranularity(t *testing.T) {
	t.Parallel()

	beans := record.ToRecords(sampleCommit(), record.GranularityFile)
	require.Len(t, beans, 4)

	assert.Equal(t, "main.go", beans[0].Path)
	assert.Empty(t, beans[0].OldPath)
	assert.Equal(t, "modify", beans[0].ChangeKind)
	assert.Equal(t, "Go", beans[0].Language)
	assert.Equal(t, 3, beans[0].LinesAdded)
	assert.Equal(t, 1, beans[0].LinesDeleted)

	assert.Equal(t, "b.rb", beans[1].Path)
	assert.Equal(t, "a.rb", beans[1].OldPath)
	assert.Equal(t, "rename", beans[1].ChangeKind)
	assert.Equal(t, "Ruby", beans[1].Language)

	assert.Equal(t, "logo.png", beans[2].Path)
	assert.Equal(t, "add", beans[2].ChangeKind)
	assert.Zero(t, beans[2].LinesAdded)

	assert.Equal(t, "old.py", beans[3].Path)
	assert.Equal(t, "delete", beans[3].ChangeKind)
	assert.Equal(t, "Python", beans[3].Language)
	assert.Equal(t, 4, beans[3].LinesDeleted)

	for _, bean := range beans {
		assert.Equal(t, 1, bean.FilesChanged)
		assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", bean.CommitID)
	}
}

func TestToRecords_FileGranularityEmptyCommit(t *testing.T) {
	t.Parallel()

	ci := sampleCommit()
	ci.Entries = nil

	assert.Empty(t, record.ToRecords(ci, record.GranularityFile))
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Go", record.DetectLanguage("cmd/gitstat/main.go"))
	assert.Equal(t, "Dockerfile", record.DetectLanguage("build/Dockerfile"))
	assert.Empty(t, record.DetectLanguage("data/blob.zzzunknown"))
}
