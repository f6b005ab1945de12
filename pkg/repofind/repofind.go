// Package repofind locates git repositories below a set of filesystem roots.
package repofind

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/monochromegane/go-gitignore"

	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
)

const gitDirName = ".git"

// Sentinel errors.
var (
	ErrNoRoots     = errors.New("no root paths given")
	ErrBlankRoot   = errors.New("blank root path")
	ErrRootMissing = errors.New("root path does not exist")
	ErrRootNotDir  = errors.New("root path is not a directory")
)

type options struct {
	ignore   []string
	maxDepth int
	logger   *slog.Logger
}

// Option configures FindAllGitRepos.
type Option func(*options)

// WithIgnorePatterns skips directories matching patterns. Patterns use
// gitignore syntax and are matched relative to each root. Nothing is
// skipped by default.
func WithIgnorePatterns(patterns []string) Option {
	return func(o *options) {
		o.ignore = patterns
	}
}

// WithMaxDepth limits how many directory levels below a root are scanned.
// Zero means unlimited.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithLogger sets the logger used to report skipped directories.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// FindAllGitRepos recursively scans each root and returns the canonical paths
// of every git repository found: working trees holding a .git entry and bare
// repositories. Results keep input root order, then pre-order traversal order
// within each root, with duplicates removed. Symlinked directories are
// followed; cycles are cut by tracking canonical paths.
func FindAllGitRepos(roots []string, opts ...Option) ([]string, error) {
	cfg := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(roots) == 0 {
		return nil, faults.InvalidInput("", ErrNoRoots)
	}

	canonicalRoots := make([]string, 0, len(roots))

	for _, root := range roots {
		canonical, err := canonicalRoot(root)
		if err != nil {
			return nil, err
		}

		canonicalRoots = append(canonicalRoots, canonical)
	}

	s := &scanner{
		opts:    cfg,
		visited: make(map[string]struct{}),
		found:   make(map[string]struct{}),
	}

	for _, root := range canonicalRoots {
		s.matcher = newMatcher(root, cfg.ignore)

		err := s.walk(root, 0)
		if err != nil {
			return nil, err
		}
	}

	return s.repos, nil
}

// ParsePathLines splits a block of newline or CR separated paths and drops
// empty lines. Surrounding whitespace is trimmed from each path.
func ParsePathLines(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r'
	})

	paths := make([]string, 0, len(fields))

	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			paths = append(paths, trimmed)
		}
	}

	return paths
}

// hasGitEntry reports whether dir is a working tree holding a .git entry.
func hasGitEntry(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, gitDirName))

	return err == nil
}

func canonicalRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", faults.InvalidInput(root, ErrBlankRoot)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", faults.InvalidInput(root, err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", faults.InvalidInput(root, ErrRootMissing)
		}

		return "", faults.InvalidInput(root, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return "", faults.InvalidInput(root, err)
	}

	if !info.IsDir() {
		return "", faults.InvalidInput(root, ErrRootNotDir)
	}

	return canonical, nil
}

// isBare detects a bare repository layout: HEAD file plus objects/ and refs/.
func isBare(dir string) bool {
	head, err := os.Stat(filepath.Join(dir, "HEAD"))
	if err != nil || head.IsDir() {
		return false
	}

	for _, sub := range []string{"objects", "refs"} {
		info, statErr := os.Stat(filepath.Join(dir, sub))
		if statErr != nil || !info.IsDir() {
			return false
		}
	}

	return true
}

func newMatcher(root string, patterns []string) gitignore.IgnoreMatcher {
	if len(patterns) == 0 {
		return nil
	}

	return gitignore.NewGitIgnoreFromReader(root, strings.NewReader(strings.Join(patterns, "\n")))
}

type scanner struct {
	opts    options
	matcher gitignore.IgnoreMatcher
	visited map[string]struct{}
	found   map[string]struct{}
	repos   []string
}

func (s *scanner) walk(dir string, depth int) error {
	if _, seen := s.visited[dir]; seen {
		return nil
	}

	s.visited[dir] = struct{}{}

	if isBare(dir) {
		s.add(dir)

		return nil
	}

	if hasGitEntry(dir) {
		s.add(dir)
	}

	if s.opts.maxDepth > 0 && depth >= s.opts.maxDepth {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if depth == 0 {
			return faults.InvalidInput(dir, fmt.Errorf("read root: %w", err))
		}

		s.opts.logger.Warn("skipping unreadable directory", "path", dir, "error", err)

		return nil
	}

	for _, entry := range entries {
		if entry.Name() == gitDirName {
			continue
		}

		child, ok := s.resolveDir(dir, entry)
		if !ok {
			continue
		}

		err = s.walk(child, depth+1)
		if err != nil {
			return err
		}
	}

	return nil
}

// resolveDir returns the canonical path of a directory entry, following
// symlinks. Non-directories and ignored paths report false.
func (s *scanner) resolveDir(parent string, entry fs.DirEntry) (string, bool) {
	path := filepath.Join(parent, entry.Name())

	if s.matcher != nil && s.matcher.Match(path, true) {
		return "", false
	}

	if entry.IsDir() {
		return path, true
	}

	if entry.Type()&fs.ModeSymlink == 0 {
		return "", false
	}

	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		s.opts.logger.Debug("skipping dangling symlink", "path", path, "error", err)

		return "", false
	}

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return "", false
	}

	return target, true
}

func (s *scanner) add(dir string) {
	if _, dup := s.found[dir]; dup {
		return
	}

	s.found[dir] = struct{}{}
	s.repos = append(s.repos, dir)
}
