package commitstat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
	"github.com/Sumatoshi-tech/gitstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/gitstat/pkg/observability"
)

const tracerName = "github.com/Sumatoshi-tech/gitstat/pkg/commitstat"

// Walker produces a CommitStatInfo for every commit reachable from any
// reference tip. The zero value is usable.
type Walker struct {
	// SimilarityThreshold is the rename/copy detection threshold in percent.
	// Zero selects gitlib.DefaultSimilarityThreshold.
	SimilarityThreshold int
	Logger              *slog.Logger
	Tracer              trace.Tracer
}

func (w *Walker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}

	return slog.Default()
}

func (w *Walker) tracer() trace.Tracer {
	if w.Tracer != nil {
		return w.Tracer
	}

	return otel.Tracer(tracerName)
}

// Commits returns a lazy, single-pass sequence over the repository history
// in topological newest-first order. Each commit is visited once. The
// sequence stops after yielding the first error together with a nil info.
// Context cancellation is checked between commits.
func (w *Walker) Commits(ctx context.Context, repo *gitlib.Repository) iter.Seq2[*CommitStatInfo, error] {
	return func(yield func(*CommitStatInfo, error) bool) {
		commits, err := repo.WalkAll()
		if err != nil {
			yield(nil, faults.RepositoryRead(repo.Path(), "", fmt.Errorf("walk: %w", err)))

			return
		}
		defer commits.Close()

		opts := gitlib.DiffOptions{SimilarityThreshold: w.SimilarityThreshold}

		for {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(nil, ctxErr)

				return
			}

			commit, nextErr := commits.Next()
			if errors.Is(nextErr, io.EOF) {
				return
			}

			if nextErr != nil {
				yield(nil, faults.RepositoryRead(repo.Path(), "", fmt.Errorf("walk: %w", nextErr)))

				return
			}

			info, statErr := summarize(repo, commit, opts)
			commit.Free()

			if !yield(info, statErr) || statErr != nil {
				return
			}
		}
	}
}

// AnalyseRepoCommits opens the repository at repoPath and calls visit for each
// commit. The repository handle is released on every exit path. An error
// returned by visit aborts the walk and is returned unchanged.
func (w *Walker) AnalyseRepoCommits(ctx context.Context, repoPath string, visit func(*CommitStatInfo) error) error {
	ctx, span := w.tracer().Start(ctx, "gitstat.repo",
		trace.WithAttributes(attribute.String("repo.path", repoPath)))
	defer span.End()

	repo, err := gitlib.OpenRepository(repoPath)
	if err != nil {
		err = faults.RepositoryOpen(repoPath, err)
		observability.RecordSpanError(span, err, observability.ErrTypeDependencyUnavailable, observability.ErrSourceDependency)

		return err
	}
	defer repo.Free()

	logger := w.logger()
	logger.DebugContext(ctx, "walking repository", "repo", repoPath)

	var visited int

	for info, walkErr := range w.Commits(ctx, repo) {
		if walkErr != nil {
			observability.RecordSpanError(span, walkErr, observability.ErrTypeInternal, observability.ErrSourceDependency)

			return walkErr
		}

		visitErr := visit(info)
		if visitErr != nil {
			observability.RecordSpanError(span, visitErr, observability.ErrTypeInternal, observability.ErrSourceServer)

			return visitErr
		}

		visited++
	}

	span.SetAttributes(attribute.Int("repo.commits", visited))
	logger.InfoContext(ctx, "repository walked", "repo", repoPath, "commits", visited)

	return nil
}

func summarize(repo *gitlib.Repository, commit *gitlib.Commit, opts gitlib.DiffOptions) (*CommitStatInfo, error) {
	hash := commit.Hash()

	diff, err := repo.DiffCommit(commit, opts)
	if err != nil {
		return nil, faults.RepositoryRead(repo.Path(), hash.String(), fmt.Errorf("diff: %w", err))
	}
	defer diff.Free()

	stats, err := diff.FileStats()
	if err != nil {
		return nil, faults.RepositoryRead(repo.Path(), hash.String(), fmt.Errorf("diff stats: %w", err))
	}

	author := commit.Author()
	committer := commit.Committer()
	parentHashes := commit.ParentHashes()

	info := &CommitStatInfo{
		RepoPath:    repo.Path(),
		Hash:        hash.String(),
		ShortHash:   hash.Short(),
		Author:      author.Name,
		AuthorEmail: author.Email,
		Committer:   committer.Name,
		When:        committer.When,
		Message:     commit.Message(),
		Parents:     make([]string, 0, len(parentHashes)),
		Entries:     make([]DiffEntry, 0, len(stats)),
	}

	for _, parent := range parentHashes {
		info.Parents = append(info.Parents, parent.String())
	}

	for _, stat := range stats {
		info.Entries = append(info.Entries, entryFrom(stat))
	}

	return info, nil
}
