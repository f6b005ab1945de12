// Package gitlibtest builds throwaway git repositories for tests.
package gitlibtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitstat/pkg/gitlib"
)

// baseTime anchors commit timestamps so histories are reproducible.
var baseTime = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// Author is the signature used for every test commit.
const (
	AuthorName  = "Test User"
	AuthorEmail = "test@example.com"
)

// Repo is a non-bare repository in a temp directory.
type Repo struct {
	t      testing.TB
	Path   string
	native *git2go.Repository
	ticks  int
}

// New initializes an empty repository under t.TempDir().
func New(t testing.TB) *Repo {
	t.Helper()

	return NewAt(t, t.TempDir())
}

// NewAt initializes an empty repository at dir.
func NewAt(t testing.TB, dir string) *Repo {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &Repo{t: t, Path: dir, native: repo}
}

// NewBare initializes an empty bare repository at dir.
func NewBare(t testing.TB, dir string) {
	t.Helper()

	repo, err := git2go.InitRepository(dir, true)
	require.NoError(t, err)

	repo.Free()
}

// WriteFile creates or overwrites a file in the working tree.
func (r *Repo) WriteFile(name, content string) {
	r.t.Helper()

	path := filepath.Join(r.Path, name)

	require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(r.t, os.WriteFile(path, []byte(content), 0o644))
}

// WriteBytes creates or overwrites a file with raw content.
func (r *Repo) WriteBytes(name string, content []byte) {
	r.t.Helper()

	path := filepath.Join(r.Path, name)

	require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(r.t, os.WriteFile(path, content, 0o644))
}

// Remove deletes a file from the working tree.
func (r *Repo) Remove(name string) {
	r.t.Helper()

	require.NoError(r.t, os.Remove(filepath.Join(r.Path, name)))
}

// Rename moves a file within the working tree.
func (r *Repo) Rename(from, to string) {
	r.t.Helper()

	require.NoError(r.t, os.Rename(filepath.Join(r.Path, from), filepath.Join(r.Path, to)))
}

// Commit stages the whole working tree and commits it on HEAD.
func (r *Repo) Commit(message string) gitlib.Hash {
	r.t.Helper()

	return r.CommitOn("HEAD", message, r.headParents()...)
}

// CommitOn stages the whole working tree and commits it on refName with the
// given parents.
func (r *Repo) CommitOn(refName, message string, parents ...gitlib.Hash) gitlib.Hash {
	r.t.Helper()

	return r.commit(refName, message, time.Time{}, parents)
}

// CommitAuthoredAt commits on HEAD with the author time set to authored while
// the committer time keeps advancing with the repository clock.
func (r *Repo) CommitAuthoredAt(message string, authored time.Time) gitlib.Hash {
	r.t.Helper()

	return r.commit("HEAD", message, authored, r.headParents())
}

// DropCommitTree deletes the loose root tree object of the given commit, so
// later reads of that tree fail.
func (r *Repo) DropCommitTree(target gitlib.Hash) {
	r.t.Helper()

	commit, err := r.native.LookupCommit(target.ToOid())
	require.NoError(r.t, err)

	treeHex := commit.TreeId().String()
	commit.Free()

	object := filepath.Join(r.Path, ".git", "objects", treeHex[:2], treeHex[2:])
	require.NoError(r.t, os.Remove(object))
}

func (r *Repo) commit(refName, message string, authored time.Time, parents []gitlib.Hash) gitlib.Hash {
	r.t.Helper()

	treeID := r.stage()

	tree, err := r.native.LookupTree(treeID)
	require.NoError(r.t, err)

	defer tree.Free()

	nativeParents := make([]*git2go.Commit, 0, len(parents))

	for _, hash := range parents {
		parent, lookupErr := r.native.LookupCommit(hash.ToOid())
		require.NoError(r.t, lookupErr)

		nativeParents = append(nativeParents, parent)
	}

	r.ticks++
	committer := &git2go.Signature{
		Name:  AuthorName,
		Email: AuthorEmail,
		When:  baseTime.Add(time.Duration(r.ticks) * time.Minute),
	}

	author := committer
	if !authored.IsZero() {
		author = &git2go.Signature{Name: AuthorName, Email: AuthorEmail, When: authored}
	}

	oid, err := r.native.CreateCommit(refName, author, committer, message, tree, nativeParents...)
	require.NoError(r.t, err)

	for _, parent := range nativeParents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

// Branch points refs/heads/name at the given commit.
func (r *Repo) Branch(name string, target gitlib.Hash) {
	r.t.Helper()

	commit, err := r.native.LookupCommit(target.ToOid())
	require.NoError(r.t, err)

	defer commit.Free()

	branch, err := r.native.CreateBranch(name, commit, true)
	require.NoError(r.t, err)

	branch.Free()
}

// Checkout resets the working tree and index to the given commit.
func (r *Repo) Checkout(target gitlib.Hash) {
	r.t.Helper()

	commit, err := r.native.LookupCommit(target.ToOid())
	require.NoError(r.t, err)

	defer commit.Free()

	err = r.native.ResetToCommit(commit, git2go.ResetHard, &git2go.CheckoutOptions{Strategy: git2go.CheckoutForce})
	require.NoError(r.t, err)
}

func (r *Repo) headParents() []gitlib.Hash {
	head, err := r.native.Head()
	if err != nil {
		return nil
	}
	defer head.Free()

	return []gitlib.Hash{gitlib.HashFromOid(head.Target())}
}

func (r *Repo) stage() *git2go.Oid {
	index, err := r.native.Index()
	require.NoError(r.t, err)

	defer index.Free()

	require.NoError(r.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(r.t, index.UpdateAll([]string{"*"}, nil))
	require.NoError(r.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(r.t, err)

	return treeID
}
