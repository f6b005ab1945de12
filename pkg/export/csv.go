package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
	"github.com/Sumatoshi-tech/gitstat/pkg/record"
	"github.com/Sumatoshi-tech/gitstat/pkg/spillstore"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter buffers rows and serializes them in one pass on Close. The
// buffer spills to compressed temp files past the configured row budget.
// Fields containing the delimiter, quotes, or line breaks are quoted.
type CSVWriter struct {
	schema  record.Schema
	path    string
	partial *os.File
	rows    *spillstore.List[[]string]
	count   int64
	bom     bool
	closed  bool
}

// NewCSVWriter reserves the output file and prepares the row buffer.
func NewCSVWriter(dir string, schema record.Schema, now time.Time, opts Options) (*CSVWriter, error) {
	partial, target, err := createPartial(dir, schema.Name(), FormatCSV, now)
	if err != nil {
		return nil, err
	}

	return &CSVWriter{
		schema:  schema,
		path:    target,
		partial: partial,
		rows:    spillstore.New[[]string](opts.SpillRows),
		bom:     opts.BOM,
	}, nil
}

// Append buffers one row.
func (w *CSVWriter) Append(bean *record.StatDetailBean) error {
	if w.closed {
		return faults.Write(w.path, ErrClosed)
	}

	err := w.rows.Append(w.schema.StringRow(bean))
	if err != nil {
		return faults.Write(w.path, err)
	}

	w.count++

	return nil
}

// Close writes the header and all buffered rows, then publishes the file.
func (w *CSVWriter) Close() error {
	if w.closed {
		return nil
	}

	err := w.finish()
	if err != nil {
		return err
	}

	return publish(w.path)
}

// Abort writes the rows buffered so far to the partial file.
func (w *CSVWriter) Abort() error {
	if w.closed {
		return nil
	}

	return w.finish()
}

func (w *CSVWriter) finish() error {
	w.closed = true

	writeErr := w.writeAll()
	closeErr := w.partial.Close()
	cleanupErr := w.rows.Cleanup()

	if writeErr != nil {
		return faults.Write(w.path, writeErr)
	}

	if closeErr != nil {
		return faults.Write(w.path, closeErr)
	}

	if cleanupErr != nil {
		return faults.Write(w.path, cleanupErr)
	}

	return nil
}

func (w *CSVWriter) writeAll() error {
	buf := bufio.NewWriter(w.partial)

	if w.bom {
		if _, err := buf.Write(utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}

	out := csv.NewWriter(buf)

	err := out.Write(w.schema.Header())
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	err = w.rows.Each(out.Write)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	out.Flush()

	return errors.Join(out.Error(), buf.Flush())
}

// Path returns the final output path.
func (w *CSVWriter) Path() string {
	return w.path
}

// Rows returns the number of rows appended.
func (w *CSVWriter) Rows() int64 {
	return w.count
}
