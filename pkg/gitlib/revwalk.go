package gitlib

import (
	"fmt"
	"io"

	git2go "github.com/libgit2/git2go/v34"
)

// allRefsGlob matches every reference under refs/.
const allRefsGlob = "*"

// CommitIter iterates over commits reachable from every reference tip.
type CommitIter struct {
	walk *git2go.RevWalk
	repo *Repository
}

// WalkAll creates an iterator over all commits reachable from any reference
// or from HEAD, in topological newest-first order. Each commit is yielded once
// even when several tips reach it. An empty repository yields nothing.
func (r *Repository) WalkAll() (*CommitIter, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	// Topological order ensures children are visited before their parents;
	// time ordering breaks ties between independent branches.
	walk.Sorting(git2go.SortTopological | git2go.SortTime)

	err = walk.PushGlob(allRefsGlob)
	if err != nil {
		walk.Free()

		return nil, fmt.Errorf("push refs to revwalk: %w", err)
	}

	// A detached HEAD is not covered by refs/*. An unborn HEAD is not an error.
	headRef, headErr := r.repo.Head()
	if headErr == nil {
		pushErr := walk.Push(headRef.Target())
		headRef.Free()

		if pushErr != nil {
			walk.Free()

			return nil, fmt.Errorf("push HEAD to revwalk: %w", pushErr)
		}
	}

	return &CommitIter{walk: walk, repo: r}, nil
}

// Next returns the next commit, or [io.EOF] when the walk is exhausted.
// The caller owns the returned commit and must Free it.
func (ci *CommitIter) Next() (*Commit, error) {
	if ci.walk == nil {
		return nil, io.EOF
	}

	oid := new(git2go.Oid)

	err := ci.walk.Next(oid)
	if git2go.IsErrorCode(err, git2go.ErrorCodeIterOver) {
		ci.Close()

		return nil, io.EOF
	}

	if err != nil {
		return nil, fmt.Errorf("revwalk next: %w", err)
	}

	commit, err := ci.repo.repo.LookupCommit(oid)
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", oid, err)
	}

	return &Commit{commit: commit}, nil
}

// Close releases the walker. Safe to call multiple times.
func (ci *CommitIter) Close() {
	if ci.walk != nil {
		ci.walk.Free()
		ci.walk = nil
	}
}
