package export

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
	"github.com/Sumatoshi-tech/gitstat/pkg/record"
)

const defaultSheet = "Sheet1"

// XLSXWriter streams rows into a single-sheet workbook. Each Append goes
// straight to the excelize stream writer; no rows are retained.
type XLSXWriter struct {
	schema  record.Schema
	path    string
	partial *os.File
	book    *excelize.File
	stream  *excelize.StreamWriter
	rows    int64
	closed  bool
}

// NewXLSXWriter creates the workbook and writes the header row.
func NewXLSXWriter(dir string, schema record.Schema, now time.Time) (*XLSXWriter, error) {
	partial, target, err := createPartial(dir, schema.Name(), FormatXLSX, now)
	if err != nil {
		return nil, err
	}

	w := &XLSXWriter{schema: schema, path: target, partial: partial, book: excelize.NewFile()}

	err = w.start()
	if err != nil {
		return nil, errors.Join(faults.Write(target, err), w.release())
	}

	return w, nil
}

func (w *XLSXWriter) start() error {
	err := w.book.SetSheetName(defaultSheet, w.schema.Name())
	if err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	w.stream, err = w.book.NewStreamWriter(w.schema.Name())
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	header := w.schema.Header()
	cells := make([]any, len(header))

	for i, name := range header {
		cells[i] = name
	}

	return w.setRow(1, cells)
}

func (w *XLSXWriter) setRow(rowNum int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}

	err = w.stream.SetRow(cell, cells)
	if err != nil {
		return fmt.Errorf("set row %d: %w", rowNum, err)
	}

	return nil
}

// Append writes one row below the previous one.
func (w *XLSXWriter) Append(bean *record.StatDetailBean) error {
	if w.closed {
		return faults.Write(w.path, ErrClosed)
	}

	// Row 1 holds the header.
	err := w.setRow(int(w.rows)+2, w.schema.Row(bean))
	if err != nil {
		return faults.Write(w.path, err)
	}

	w.rows++

	return nil
}

// Close flushes the stream, writes the workbook, and publishes the file.
func (w *XLSXWriter) Close() error {
	if w.closed {
		return nil
	}

	err := w.finish()
	if err != nil {
		return err
	}

	return publish(w.path)
}

// Abort writes what has been streamed so far to the partial file.
func (w *XLSXWriter) Abort() error {
	if w.closed {
		return nil
	}

	return w.finish()
}

func (w *XLSXWriter) finish() error {
	w.closed = true

	err := w.stream.Flush()
	if err != nil {
		return errors.Join(faults.Write(w.path, fmt.Errorf("flush stream: %w", err)), w.release())
	}

	err = w.book.Write(w.partial)
	if err != nil {
		return errors.Join(faults.Write(w.path, fmt.Errorf("write workbook: %w", err)), w.release())
	}

	return w.release()
}

func (w *XLSXWriter) release() error {
	var errs []error

	if err := w.book.Close(); err != nil {
		errs = append(errs, faults.Write(w.path, fmt.Errorf("close workbook: %w", err)))
	}

	if err := w.partial.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, faults.Write(w.path, err))
	}

	return errors.Join(errs...)
}

// Path returns the final output path.
func (w *XLSXWriter) Path() string {
	return w.path
}

// Rows returns the number of data rows written.
func (w *XLSXWriter) Rows() int64 {
	return w.rows
}
