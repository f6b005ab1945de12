package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/gitstat/pkg/safeconv"
)

// DefaultSimilarityThreshold is the rename/copy similarity percentage git uses.
const DefaultSimilarityThreshold = 50

// DeltaStatus is the kind of change a diff delta describes.
type DeltaStatus int

const (
	// DeltaOther covers statuses that carry no content change (type changes, conflicts).
	DeltaOther DeltaStatus = iota
	// DeltaAdded means the path is new.
	DeltaAdded
	// DeltaDeleted means the path was removed.
	DeltaDeleted
	// DeltaModified means the content changed in place.
	DeltaModified
	// DeltaRenamed means the path moved, possibly with edits.
	DeltaRenamed
	// DeltaCopied means the path was copied from another, possibly with edits.
	DeltaCopied
)

// DiffOptions configures how a commit diff is computed.
type DiffOptions struct {
	// SimilarityThreshold is the minimum similarity (1-100) for a
	// delete+add pair to be reported as a rename or copy.
	SimilarityThreshold int
}

func (o DiffOptions) threshold() uint16 {
	if o.SimilarityThreshold <= 0 || o.SimilarityThreshold > 100 {
		return DefaultSimilarityThreshold
	}

	return safeconv.MustIntToUint16(o.SimilarityThreshold)
}

// FileStat is the line-level summary of one diff delta.
type FileStat struct {
	Status     DeltaStatus
	OldPath    string
	NewPath    string
	Binary     bool
	Similarity int
	Added      int
	Deleted    int
}

// Diff wraps a libgit2 diff.
type Diff struct {
	diff *git2go.Diff
}

// DiffCommit diffs the commit's tree against its first parent's tree, or
// against the empty tree when the commit has no parents. Renames and copies
// are detected at the configured similarity threshold.
func (r *Repository) DiffCommit(commit *Commit, opts DiffOptions) (*Diff, error) {
	newTree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer newTree.Free()

	var oldTree *Tree

	if commit.NumParents() > 0 {
		parent, parentErr := commit.Parent(0)
		if parentErr != nil {
			return nil, fmt.Errorf("first parent: %w", parentErr)
		}

		oldTree, err = parent.Tree()
		parent.Free()

		if err != nil {
			return nil, err
		}
		defer oldTree.Free()
	}

	return r.diffTrees(oldTree, newTree, opts)
}

func (r *Repository) diffTrees(oldTree, newTree *Tree, opts DiffOptions) (*Diff, error) {
	diffOpts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToTree(oldTree.native(), newTree.native(), &diffOpts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	findOpts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		freeDiff(diff)

		return nil, fmt.Errorf("get find options: %w", err)
	}

	findOpts.Flags = git2go.DiffFindRenames | git2go.DiffFindCopies
	findOpts.RenameThreshold = opts.threshold()
	findOpts.CopyThreshold = opts.threshold()

	err = diff.FindSimilar(&findOpts)
	if err != nil {
		freeDiff(diff)

		return nil, fmt.Errorf("find similar: %w", err)
	}

	return &Diff{diff: diff}, nil
}

// NumDeltas returns the number of deltas in the diff.
func (d *Diff) NumDeltas() (int, error) {
	n, err := d.diff.NumDeltas()
	if err != nil {
		return 0, fmt.Errorf("get num deltas: %w", err)
	}

	return n, nil
}

// FileStats returns one entry per delta, in diff order, with added and
// deleted line counts. Binary deltas produce no line callbacks and therefore
// report zero lines.
func (d *Diff) FileStats() ([]FileStat, error) {
	n, err := d.NumDeltas()
	if err != nil {
		return nil, err
	}

	stats := make([]FileStat, 0, n)

	var current *FileStat

	lineCallback := func(line git2go.DiffLine) error {
		switch line.Origin { //nolint:exhaustive // only additions and deletions are counted.
		case git2go.DiffLineAddition:
			current.Added++
		case git2go.DiffLineDeletion:
			current.Deleted++
		}

		return nil
	}

	hunkCallback := func(_ git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
		return lineCallback, nil
	}

	fileCallback := func(delta git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
		stats = append(stats, FileStat{
			Status:     statusFrom(delta.Status),
			OldPath:    delta.OldFile.Path,
			NewPath:    delta.NewFile.Path,
			Binary:     delta.Flags&git2go.DiffFlagBinary != 0,
			Similarity: int(delta.Similarity),
		})
		current = &stats[len(stats)-1]

		return hunkCallback, nil
	}

	err = d.diff.ForEach(fileCallback, git2go.DiffDetailLines)
	if err != nil {
		return nil, fmt.Errorf("diff foreach: %w", err)
	}

	// Binary detection happens while content loads; re-read the final flags.
	for i := range stats {
		delta, deltaErr := d.diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("get delta %d: %w", i, deltaErr)
		}

		stats[i].Binary = stats[i].Binary || delta.Flags&git2go.DiffFlagBinary != 0
	}

	return stats, nil
}

// Free releases the diff resources.
func (d *Diff) Free() {
	if d.diff != nil {
		freeDiff(d.diff)
		d.diff = nil
	}
}

// freeDiff releases a native diff; Free errors are non-actionable in cleanup.
func freeDiff(diff *git2go.Diff) {
	_ = diff.Free()
}

func statusFrom(status git2go.Delta) DeltaStatus {
	switch status { //nolint:exhaustive // remaining statuses map to DeltaOther.
	case git2go.DeltaAdded:
		return DeltaAdded
	case git2go.DeltaDeleted:
		return DeltaDeleted
	case git2go.DeltaModified:
		return DeltaModified
	case git2go.DeltaRenamed:
		return DeltaRenamed
	case git2go.DeltaCopied:
		return DeltaCopied
	default:
		return DeltaOther
	}
}
