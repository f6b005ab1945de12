// Package faults defines the error taxonomy shared by every export stage.
//
// Each failure carries a Kind sentinel and the context needed to diagnose it
// without re-running the export (repository, commit, output path, offending
// input value). Both the kind and the underlying cause are reachable through
// [errors.Is] and [errors.As].
package faults

import (
	"errors"
	"strconv"
	"strings"
)

// Kind sentinels.
var (
	// ErrInvalidInput marks a malformed selector or root path list.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRepositoryOpen marks a path that cannot be opened as a git repository.
	ErrRepositoryOpen = errors.New("repository open failure")
	// ErrRepositoryRead marks a history walk or diff that fails inside an open repository.
	ErrRepositoryRead = errors.New("repository read failure")
	// ErrExtensionLoad marks an extension script that fails to compile or initialize.
	ErrExtensionLoad = errors.New("extension load failure")
	// ErrExtensionRuntime marks an exception raised by the extension entry point.
	ErrExtensionRuntime = errors.New("extension runtime failure")
	// ErrWrite marks an output sink that cannot be opened, flushed or closed.
	ErrWrite = errors.New("write failure")
)

// Error is a typed export failure.
type Error struct {
	Kind   error
	Value  string
	Repo   string
	Commit string
	Path   string
	Err    error
}

// Error renders the kind followed by whatever context is set.
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Kind.Error())

	if e.Kind == ErrInvalidInput {
		sb.WriteString(" value=" + strconv.Quote(e.Value))
	}

	appendField(&sb, "repo", e.Repo)
	appendField(&sb, "commit", e.Commit)
	appendField(&sb, "path", e.Path)

	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

func appendField(sb *strings.Builder, name, value string) {
	if value == "" {
		return
	}

	sb.WriteString(" " + name + "=" + value)
}

// InvalidInput reports a rejected input value.
func InvalidInput(value string, cause error) *Error {
	return &Error{Kind: ErrInvalidInput, Value: value, Err: cause}
}

// RepositoryOpen reports a repository that could not be opened.
func RepositoryOpen(repo string, cause error) *Error {
	return &Error{Kind: ErrRepositoryOpen, Repo: repo, Err: cause}
}

// RepositoryRead reports a failure reading history from an open repository.
// commit is empty when the failure is not tied to one commit.
func RepositoryRead(repo, commit string, cause error) *Error {
	return &Error{Kind: ErrRepositoryRead, Repo: repo, Commit: commit, Err: cause}
}

// ExtensionLoad reports an extension script that could not be loaded.
func ExtensionLoad(path string, cause error) *Error {
	return &Error{Kind: ErrExtensionLoad, Path: path, Err: cause}
}

// ExtensionRuntime reports an extension failure for one record.
func ExtensionRuntime(repo, commit string, cause error) *Error {
	return &Error{Kind: ErrExtensionRuntime, Repo: repo, Commit: commit, Err: cause}
}

// Write reports a sink failure for the given output path.
func Write(path string, cause error) *Error {
	return &Error{Kind: ErrWrite, Path: path, Err: cause}
}

// Is reports whether err is a faults.Error of the given kind.
func Is(err, kind error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}

	return fe.Kind == kind
}
