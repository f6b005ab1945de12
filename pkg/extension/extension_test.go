package extension_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitstat/pkg/commitstat"
	"github.com/Sumatoshi-tech/gitstat/pkg/extension"
	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
	"github.com/Sumatoshi-tech/gitstat/pkg/record"
)

const teamScript = `
var fields = ["team", "touchesGo", "entryCount"];

function run(ci, bean) {
	bean.ext.team = ci.authorEmail.split("@")[1] === "example.com" ? "core" : "guest";
	bean.ext.touchesGo = ci.entries.some(function (e) { return e.path.endsWith(".go"); });
	bean.ext.entryCount = ci.entries.length;
	bean.author = "overwritten";
	bean.linesAdded = 9999;
}
`

func sample() (*commitstat.CommitStatInfo, *record.StatDetailBean) {
	ci := &commitstat.CommitStatInfo{
		RepoPath:    "/repos/app",
		Hash:        "abc123",
		Author:      "Ada",
		AuthorEmail: "ada@example.com",
		When:        time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC),
		Message:     "init",
		Entries: []commitstat.DiffEntry{
			{NewPath: "main.go", Kind: commitstat.ChangeAdd, Added: 3},
			{NewPath: "README.md", Kind: commitstat.ChangeAdd, Added: 1},
		},
	}

	return ci, record.ToRecords(ci, record.GranularityCommit)[0]
}

func writeScript(t *testing.T, src string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hook.js")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))

	return path
}

func TestLoad_FieldsAndApply(t *testing.T) {
	t.Parallel()

	ext, err := extension.Load(writeScript(t, teamScript))
	require.NoError(t, err)

	assert.Equal(t, []string{"team", "touchesGo", "entryCount"}, ext.Fields())

	ci, bean := sample()
	require.NoError(t, ext.Apply(ci, bean))

	assert.Equal(t, "core", bean.Ext["team"])
	assert.Equal(t, true, bean.Ext["touchesGo"])
	assert.Equal(t, int64(2), bean.Ext["entryCount"])

	assert.Equal(t, "Ada", bean.Author, "core fields are copies")
	assert.Equal(t, 4, bean.LinesAdded)
}

func TestApply_RunsPerRowWithFreshExt(t *testing.T) {
	t.Parallel()

	ext, err := extension.LoadSource("counter.js", `
var calls = 0;
function run(ci, bean) {
	calls++;
	bean.ext.call = calls;
}
`)
	require.NoError(t, err)
	assert.Empty(t, ext.Fields())

	for want := int64(1); want <= 3; want++ {
		ci, bean := sample()
		require.NoError(t, ext.Apply(ci, bean))
		assert.Equal(t, want, bean.Ext["call"])
	}
}

func TestApply_ReplacedExtObject(t *testing.T) {
	t.Parallel()

	ext, err := extension.LoadSource("replace.js", `
var fields = ["kind"];
function run(ci, bean) { bean.ext = { kind: ci.entries[0].kind }; }
`)
	require.NoError(t, err)

	ci, bean := sample()
	require.NoError(t, ext.Apply(ci, bean))
	assert.Equal(t, map[string]any{"kind": "add"}, bean.Ext)
}

func TestApply_NoWritesLeavesExtNil(t *testing.T) {
	t.Parallel()

	ext, err := extension.LoadSource("noop.js", `function run(ci, bean) {}`)
	require.NoError(t, err)

	ci, bean := sample()
	require.NoError(t, ext.Apply(ci, bean))
	assert.Nil(t, bean.Ext)
}

func TestApply_RuntimeException(t *testing.T) {
	t.Parallel()

	ext, err := extension.LoadSource("throw.js", `function run(ci, bean) { throw new Error("boom"); }`)
	require.NoError(t, err)

	ci, bean := sample()

	err = ext.Apply(ci, bean)
	require.ErrorIs(t, err, faults.ErrExtensionRuntime)
	assert.Contains(t, err.Error(), "repo=/repos/app")
	assert.Contains(t, err.Error(), "commit=abc123")
	assert.Contains(t, err.Error(), "boom")
}

func TestApply_NilExtensionIsNoop(t *testing.T) {
	t.Parallel()

	var ext *extension.Extension

	ci, bean := sample()
	require.NoError(t, ext.Apply(ci, bean))
	assert.Nil(t, ext.Fields())
	assert.Empty(t, ext.Name())
	assert.Nil(t, bean.Ext)
}

func TestLoad_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   string
		cause error
	}{
		{name: "syntax error", src: `function run(ci, bean) {`},
		{name: "top level throw", src: `throw new Error("init failed");`},
		{name: "missing run", src: `var fields = ["a"];`, cause: extension.ErrMissingRun},
		{name: "run not a function", src: `var run = 42;`, cause: extension.ErrMissingRun},
		{name: "fields not array", src: `var fields = "team"; function run() {}`, cause: extension.ErrInvalidFields},
		{name: "fields with number", src: `var fields = ["a", 1]; function run() {}`, cause: extension.ErrInvalidFields},
		{name: "duplicate fields", src: `var fields = ["a", "a"]; function run() {}`, cause: extension.ErrInvalidFields},
		{name: "blank field", src: `var fields = [" "]; function run() {}`, cause: extension.ErrInvalidFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeScript(t, tt.src)

			ext, err := extension.Load(path)
			require.ErrorIs(t, err, faults.ErrExtensionLoad)
			assert.Nil(t, ext)
			assert.Contains(t, err.Error(), path)

			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := extension.Load(filepath.Join(t.TempDir(), "absent.js"))
	require.ErrorIs(t, err, faults.ErrExtensionLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
