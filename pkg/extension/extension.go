// Package extension runs user JavaScript over every export row.
//
// A script defines run(ci, bean) and may declare extra columns with a
// top-level `var fields = ["team", ...]`. run receives the commit (ci) and a
// copy of the row's core fields (bean); only values assigned under bean.ext
// are kept, and declared fields become trailing export columns.
//
// Scripts execute in-process with the privileges of the host and are not
// sandboxed. Only load scripts you trust.
package extension

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/Sumatoshi-tech/gitstat/pkg/commitstat"
	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
	"github.com/Sumatoshi-tech/gitstat/pkg/record"
)

const (
	runFunctionName = "run"
	fieldsVarName   = "fields"
	extKey          = "ext"
)

// Sentinel errors.
var (
	ErrMissingRun    = errors.New("script does not define a run(ci, bean) function")
	ErrInvalidFields = errors.New("fields must be an array of unique non-empty strings")
	ErrPanic         = errors.New("extension panicked")
)

// Extension is a compiled script bound to one JavaScript runtime.
// It is not safe for concurrent use. A nil *Extension is a no-op hook.
type Extension struct {
	name   string
	rt     *goja.Runtime
	run    goja.Callable
	fields []string
	logger *slog.Logger
}

// Option configures an Extension.
type Option func(*Extension)

// WithLogger routes console.log output from the script to logger at DEBUG.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// Load reads and compiles the script at path.
func Load(path string, opts ...Option) (*Extension, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.ExtensionLoad(path, err)
	}

	return LoadSource(path, string(src), opts...)
}

// LoadSource compiles src, runs its top level once, and resolves run and
// fields. name identifies the script in errors and stack traces.
func LoadSource(name, src string, opts ...Option) (*Extension, error) {
	ext := &Extension{name: name, logger: slog.Default()}
	for _, opt := range opts {
		opt(ext)
	}

	program, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, faults.ExtensionLoad(name, err)
	}

	ext.rt = goja.New()
	ext.rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	err = ext.installConsole()
	if err != nil {
		return nil, faults.ExtensionLoad(name, err)
	}

	_, err = ext.rt.RunProgram(program)
	if err != nil {
		return nil, faults.ExtensionLoad(name, err)
	}

	run, ok := goja.AssertFunction(ext.rt.Get(runFunctionName))
	if !ok {
		return nil, faults.ExtensionLoad(name, ErrMissingRun)
	}

	ext.run = run

	ext.fields, err = exportFields(ext.rt.Get(fieldsVarName))
	if err != nil {
		return nil, faults.ExtensionLoad(name, err)
	}

	return ext, nil
}

// Name returns the script path or name given at load time.
func (e *Extension) Name() string {
	if e == nil {
		return ""
	}

	return e.name
}

// Fields returns the extension-owned column names in declared order.
func (e *Extension) Fields() []string {
	if e == nil {
		return nil
	}

	return slices.Clone(e.fields)
}

// Apply calls run(ci, bean). Values the script assigns under bean.ext are
// stored in bean.Ext; changes to any other bean field are discarded.
func (e *Extension) Apply(ci *commitstat.CommitStatInfo, bean *record.StatDetailBean) (err error) {
	if e == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = faults.ExtensionRuntime(ci.RepoPath, ci.Hash, fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	ext := bean.Ext
	if ext == nil {
		ext = make(map[string]any)
	}

	beanObj := beanObject(bean, ext)

	_, err = e.run(goja.Undefined(), e.rt.ToValue(commitObject(ci)), e.rt.ToValue(beanObj))
	if err != nil {
		return faults.ExtensionRuntime(ci.RepoPath, ci.Hash, err)
	}

	// The script may replace bean.ext wholesale instead of mutating it.
	if replaced, ok := beanObj[extKey].(map[string]any); ok {
		ext = replaced
	}

	if len(ext) > 0 {
		bean.Ext = ext
	}

	return nil
}

func (e *Extension) installConsole() error {
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}

		e.logger.Debug("extension log", "script", e.name, "message", strings.Join(parts, " "))

		return goja.Undefined()
	}

	return e.rt.Set("console", map[string]any{"log": logFn})
}

func exportFields(value goja.Value) ([]string, error) {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}

	items, ok := value.Export().([]any)
	if !ok {
		return nil, ErrInvalidFields
	}

	fields := make([]string, 0, len(items))

	for _, item := range items {
		name, isString := item.(string)
		if !isString || strings.TrimSpace(name) == "" || slices.Contains(fields, name) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFields, item)
		}

		fields = append(fields, name)
	}

	return fields, nil
}

func commitObject(ci *commitstat.CommitStatInfo) map[string]any {
	entries := make([]any, 0, len(ci.Entries))

	for _, entry := range ci.Entries {
		entries = append(entries, map[string]any{
			"oldPath":    entry.OldPath,
			"newPath":    entry.NewPath,
			"path":       entry.Path(),
			"kind":       entry.Kind.String(),
			"added":      entry.Added,
			"deleted":    entry.Deleted,
			"binary":     entry.Binary,
			"similarity": entry.Similarity,
		})
	}

	parents := make([]any, 0, len(ci.Parents))
	for _, parent := range ci.Parents {
		parents = append(parents, parent)
	}

	return map[string]any{
		"repoPath":    ci.RepoPath,
		"hash":        ci.Hash,
		"shortHash":   ci.ShortHash,
		"author":      ci.Author,
		"authorEmail": ci.AuthorEmail,
		"committer":   ci.Committer,
		"when":        ci.When.Format(time.RFC3339),
		"timestamp":   ci.When.Unix(),
		"message":     ci.Message,
		"parents":     parents,
		"entries":     entries,
	}
}

func beanObject(bean *record.StatDetailBean, ext map[string]any) map[string]any {
	return map[string]any{
		"repoId":       bean.RepoID,
		"commitId":     bean.CommitID,
		"author":       bean.Author,
		"authorEmail":  bean.AuthorEmail,
		"timestamp":    bean.Timestamp.Format(record.TimestampLayout),
		"message":      bean.Message,
		"diffSummary":  bean.DiffSummary,
		"filesChanged": bean.FilesChanged,
		"linesAdded":   bean.LinesAdded,
		"linesDeleted": bean.LinesDeleted,
		"path":         bean.Path,
		"oldPath":      bean.OldPath,
		"changeKind":   bean.ChangeKind,
		"language":     bean.Language,
		extKey:         ext,
	}
}
