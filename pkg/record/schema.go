package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// SheetName names the export table.
const SheetName = "GitStatDetail"

// MaxCellRunes is the spreadsheet per-cell text limit. Longer text is cut
// to this many runes in every format so xlsx and csv cells stay identical.
const MaxCellRunes = 32767

// TimestampLayout formats commit times identically in every export format.
const TimestampLayout = "2006-01-02 15:04:05 -0700"

var (
	commitColumns = []string{
		"repoId", "commitId", "author", "authorEmail", "timestamp", "message",
		"diffSummary", "filesChanged", "linesAdded", "linesDeleted",
	}
	fileColumns = []string{
		"repoId", "commitId", "author", "authorEmail", "timestamp", "message",
		"path", "oldPath", "changeKind", "language", "linesAdded", "linesDeleted",
	}
)

// Schema is the column layout of one export: the core columns for the
// granularity followed by extension-declared columns.
type Schema struct {
	Granularity Granularity
	ExtFields   []string
}

// Name returns the sheet and file name prefix.
func (s Schema) Name() string {
	return SheetName
}

// Header returns the column names in order.
func (s Schema) Header() []string {
	core := commitColumns
	if s.Granularity == GranularityFile {
		core = fileColumns
	}

	header := make([]string, 0, len(core)+len(s.ExtFields))
	header = append(header, core...)

	return append(header, s.ExtFields...)
}

// Row lays out a bean in header order. Missing extension values are empty
// strings; composite extension values are rendered as JSON. Text cells are
// capped at MaxCellRunes.
func (s Schema) Row(bean *StatDetailBean) []any {
	row := make([]any, 0, len(commitColumns)+len(s.ExtFields)+2)
	row = append(row,
		bean.RepoID,
		bean.CommitID,
		bean.Author,
		bean.AuthorEmail,
		bean.Timestamp.Format(TimestampLayout),
		bean.Message,
	)

	if s.Granularity == GranularityFile {
		row = append(row, bean.Path, bean.OldPath, bean.ChangeKind, bean.Language)
	} else {
		row = append(row, bean.DiffSummary, bean.FilesChanged)
	}

	row = append(row, bean.LinesAdded, bean.LinesDeleted)

	for _, field := range s.ExtFields {
		row = append(row, cellValue(bean.Ext[field]))
	}

	for i, cell := range row {
		if text, ok := cell.(string); ok {
			row[i] = capText(text)
		}
	}

	return row
}

func capText(text string) string {
	if len(text) <= MaxCellRunes || utf8.RuneCountInString(text) <= MaxCellRunes {
		return text
	}

	return string([]rune(text)[:MaxCellRunes])
}

// StringRow is Row with every cell rendered as text.
func (s Schema) StringRow(bean *StatDetailBean) []string {
	cells := s.Row(bean)
	out := make([]string, len(cells))

	for i, cell := range cells {
		out[i] = FormatCell(cell)
	}

	return out
}

// FormatCell renders a cell value as text.
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(TimestampLayout)
	default:
		return fmt.Sprint(val)
	}
}

// cellValue keeps scalars as they are and flattens everything else to text.
func cellValue(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case string, bool, int, int64, float64:
		return val
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.Format(TimestampLayout)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}

		return string(data)
	}
}
