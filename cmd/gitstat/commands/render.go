package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/gitstat/pkg/gitstat"
	"github.com/Sumatoshi-tech/gitstat/pkg/safeconv"
)

// resultView is the rendered form of an export result.
type resultView struct {
	Message         string  `json:"message"         yaml:"message"`
	Path            string  `json:"path"            yaml:"path"`
	DownloadAddress string  `json:"downloadAddress" yaml:"downloadAddress"`
	SizeBytes       int64   `json:"sizeBytes"       yaml:"sizeBytes"`
	Repositories    int64   `json:"repositories"    yaml:"repositories"`
	Commits         int64   `json:"commits"         yaml:"commits"`
	Rows            int64   `json:"rows"            yaml:"rows"`
	ElapsedSeconds  float64 `json:"elapsedSeconds"  yaml:"elapsedSeconds"`
}

func newResultView(result *gitstat.Result) resultView {
	view := resultView{
		Message:         result.Message,
		Path:            result.Path,
		DownloadAddress: result.DownloadAddress,
		Repositories:    result.Repositories,
		Commits:         result.Commits,
		Rows:            result.Rows,
		ElapsedSeconds:  result.Elapsed.Seconds(),
	}

	info, err := os.Stat(result.Path)
	if err == nil {
		view.SizeBytes = info.Size()
	}

	return view
}

// renderResult writes the export result in the requested rendering.
func renderResult(w io.Writer, result *gitstat.Result, output string, noColor bool) error {
	view := newResultView(result)

	switch output {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(view)
		if err != nil {
			return fmt.Errorf("encode json result: %w", err)
		}

		return nil
	case OutputYAML:
		data, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("encode yaml result: %w", err)
		}

		_, err = w.Write(data)
		if err != nil {
			return fmt.Errorf("write yaml result: %w", err)
		}

		return nil
	default:
		return renderText(w, view, noColor)
	}
}

func renderText(w io.Writer, view resultView, noColor bool) error {
	status := color.New(color.FgGreen, color.Bold)
	if noColor {
		status.DisableColor()
	}

	_, err := status.Fprintln(w, view.Message)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendRow(table.Row{"File", view.Path})
	tbl.AppendRow(table.Row{"Size", humanize.Bytes(safeconv.Int64ToUint64(view.SizeBytes))})
	tbl.AppendRow(table.Row{"Repositories", humanize.Comma(view.Repositories)})
	tbl.AppendRow(table.Row{"Commits", humanize.Comma(view.Commits)})
	tbl.AppendRow(table.Row{"Rows", humanize.Comma(view.Rows)})
	tbl.AppendRow(table.Row{"Elapsed", fmt.Sprintf("%.2fs", view.ElapsedSeconds)})
	tbl.Render()

	return nil
}
