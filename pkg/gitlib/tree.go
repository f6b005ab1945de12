package gitlib

import (
	git2go "github.com/libgit2/git2go/v34"
)

// Tree wraps a libgit2 tree.
type Tree struct {
	tree *git2go.Tree
}

// Free releases the tree resources. Safe on a nil tree.
func (t *Tree) Free() {
	if t != nil && t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

// native returns the libgit2 tree, or nil for the empty tree.
func (t *Tree) native() *git2go.Tree {
	if t == nil {
		return nil
	}

	return t.tree
}
