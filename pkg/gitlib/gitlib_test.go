package gitlib_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/gitstat/pkg/gitlib/gitlibtest"
)

func openRepo(t *testing.T, path string) *gitlib.Repository {
	t.Helper()

	repo, err := gitlib.OpenRepository(path)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return repo
}

func collectHashes(t *testing.T, repo *gitlib.Repository) []gitlib.Hash {
	t.Helper()

	iter, err := repo.WalkAll()
	require.NoError(t, err)

	defer iter.Close()

	var hashes []gitlib.Hash

	for {
		commit, nextErr := iter.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		require.NoError(t, nextErr)

		hashes = append(hashes, commit.Hash())
		commit.Free()
	}

	return hashes
}

func fileStats(t *testing.T, repo *gitlib.Repository, hash gitlib.Hash) []gitlib.FileStat {
	t.Helper()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	diff, err := repo.DiffCommit(commit, gitlib.DiffOptions{})
	require.NoError(t, err)

	defer diff.Free()

	stats, err := diff.FileStats()
	require.NoError(t, err)

	return stats
}

func TestOpenRepository(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("test.txt", "content")
	tr.Commit("initial")

	repo := openRepo(t, tr.Path)

	assert.Equal(t, tr.Path, repo.Path())
}

func TestOpenRepositoryNotFound(t *testing.T) {
	t.Parallel()

	repo, err := gitlib.OpenRepository("/nonexistent/path/to/repo")

	assert.Nil(t, repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open repository")
}

func TestRepositoryFreeTwice(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("x.txt", "x")
	tr.Commit("init")

	repo, err := gitlib.OpenRepository(tr.Path)
	require.NoError(t, err)

	repo.Free()
	repo.Free()
}

func TestLookupCommit(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("file.go", "package main\n")
	first := tr.Commit("add file")
	tr.WriteFile("file.go", "package main\n\nfunc main() {}\n")
	second := tr.Commit("add main")

	commit, err := openRepo(t, tr.Path).LookupCommit(second)
	require.NoError(t, err)

	defer commit.Free()

	assert.Equal(t, second, commit.Hash())
	assert.Contains(t, commit.Message(), "add main")
	assert.Equal(t, gitlibtest.AuthorName, commit.Author().Name)
	assert.Equal(t, gitlibtest.AuthorEmail, commit.Committer().Email)
	assert.Equal(t, []gitlib.Hash{first}, commit.ParentHashes())

	parent, err := commit.Parent(0)
	require.NoError(t, err)

	defer parent.Free()

	assert.Equal(t, first, parent.Hash())

	_, err = commit.Parent(1)
	require.ErrorIs(t, err, gitlib.ErrParentNotFound)
}

func TestWalkAllNewestFirst(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("1.txt", "1")
	c1 := tr.Commit("first")
	tr.WriteFile("2.txt", "2")
	c2 := tr.Commit("second")
	tr.WriteFile("3.txt", "3")
	c3 := tr.Commit("third")

	assert.Equal(t, []gitlib.Hash{c3, c2, c1}, collectHashes(t, openRepo(t, tr.Path)))
}

func TestWalkAllVisitsEveryBranchOnce(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("base.txt", "base")
	base := tr.Commit("base")

	tr.WriteFile("feature.txt", "feature")
	feature := tr.CommitOn("refs/heads/feature", "feature work", base)

	tr.Checkout(base)
	tr.WriteFile("main.txt", "main")
	main := tr.Commit("main work")

	hashes := collectHashes(t, openRepo(t, tr.Path))

	assert.Len(t, hashes, 3)
	assert.ElementsMatch(t, []gitlib.Hash{base, feature, main}, hashes)
	assert.Equal(t, base, hashes[len(hashes)-1], "root must come after its children")
}

func TestWalkAllEmptyRepository(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)

	assert.Empty(t, collectHashes(t, openRepo(t, tr.Path)))
}

func TestCommitIterCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("1.txt", "1")
	tr.Commit("first")

	iter, err := openRepo(t, tr.Path).WalkAll()
	require.NoError(t, err)

	commit, err := iter.Next()
	require.NoError(t, err)
	commit.Free()

	_, err = iter.Next()
	require.ErrorIs(t, err, io.EOF)

	iter.Close()
	iter.Close()

	_, err = iter.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestDiffCommitRootAgainstEmptyTree(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("a.txt", "one\ntwo\nthree\n")
	root := tr.Commit("root")

	stats := fileStats(t, openRepo(t, tr.Path), root)

	require.Len(t, stats, 1)
	assert.Equal(t, gitlib.DeltaAdded, stats[0].Status)
	assert.Equal(t, "a.txt", stats[0].NewPath)
	assert.Equal(t, 3, stats[0].Added)
	assert.Equal(t, 0, stats[0].Deleted)
}

func TestDiffCommitEmptyRootTree(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	root := tr.Commit("empty")

	assert.Empty(t, fileStats(t, openRepo(t, tr.Path), root))
}

func TestDiffCommitModifyAndDelete(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("keep.txt", "a\nb\nc\n")
	tr.WriteFile("gone.txt", "x\ny\n")
	tr.Commit("root")

	tr.WriteFile("keep.txt", "a\nB\nc\nd\n")
	tr.Remove("gone.txt")
	second := tr.Commit("edit")

	stats := fileStats(t, openRepo(t, tr.Path), second)
	require.Len(t, stats, 2)

	byPath := map[string]gitlib.FileStat{}
	for _, s := range stats {
		byPath[s.OldPath] = s
	}

	assert.Equal(t, gitlib.DeltaDeleted, byPath["gone.txt"].Status)
	assert.Equal(t, 2, byPath["gone.txt"].Deleted)
	assert.Equal(t, gitlib.DeltaModified, byPath["keep.txt"].Status)
	assert.Equal(t, 2, byPath["keep.txt"].Added)
	assert.Equal(t, 1, byPath["keep.txt"].Deleted)
}

func TestDiffCommitDetectsPureRename(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteFile("a.txt", "line one\nline two\nline three\n")
	tr.Commit("root")

	tr.Rename("a.txt", "b.txt")
	renamed := tr.Commit("rename")

	stats := fileStats(t, openRepo(t, tr.Path), renamed)

	require.Len(t, stats, 1)
	assert.Equal(t, gitlib.DeltaRenamed, stats[0].Status)
	assert.Equal(t, "a.txt", stats[0].OldPath)
	assert.Equal(t, "b.txt", stats[0].NewPath)
	assert.Equal(t, 0, stats[0].Added)
	assert.Equal(t, 0, stats[0].Deleted)
	assert.Equal(t, 100, stats[0].Similarity)
}

func TestDiffCommitBinaryCountsNoLines(t *testing.T) {
	t.Parallel()

	tr := gitlibtest.New(t)
	tr.WriteBytes("blob.bin", []byte{0x00, 0x01, 0x02, '\n', 0x00, 0xff})
	root := tr.Commit("binary")

	stats := fileStats(t, openRepo(t, tr.Path), root)

	require.Len(t, stats, 1)
	assert.True(t, stats[0].Binary)
	assert.Equal(t, 0, stats[0].Added)
	assert.Equal(t, 0, stats[0].Deleted)
}

func TestHashFormatting(t *testing.T) {
	t.Parallel()

	var h gitlib.Hash

	assert.True(t, h.IsZero())
	assert.Equal(t, "0000000000000000000000000000000000000000", h.String())

	h[0] = 0xab
	h[19] = 0x01

	assert.False(t, h.IsZero())
	assert.Equal(t, "ab00000000", h.Short())
	assert.Equal(t, h, gitlib.HashFromOid(h.ToOid()))
	assert.True(t, gitlib.HashFromOid(nil).IsZero())
}
