// Package export writes export rows to xlsx or csv files.
//
// Both formats write to "<name>.partial" and rename into place on a
// successful Close. Abort leaves the partial file behind for inspection.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/gitstat/pkg/faults"
	"github.com/Sumatoshi-tech/gitstat/pkg/record"
)

// Format is an output file format.
type Format string

// Supported formats.
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

const (
	partialSuffix   = ".partial"
	timestampLayout = "20060102-150405"
	maxNameAttempts = 100
)

// Sentinel errors.
var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrNotDirectory  = errors.New("output path is not a directory")
	ErrClosed        = errors.New("sink already closed")
	ErrNameTaken     = errors.New("no free output file name")
)

// ParseFormat accepts "xlsx" or "csv", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatCSV:
		return f, nil
	default:
		return "", faults.InvalidInput(s, fmt.Errorf("%w: want %q or %q", ErrUnknownFormat, FormatXLSX, FormatCSV))
	}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	return string(f)
}

// FileName builds "{schemaName}.{yyyyMMdd-HHmmss}.{ext}".
func FileName(schemaName string, format Format, now time.Time) string {
	return schemaName + "." + now.Format(timestampLayout) + "." + format.Extension()
}

// Sink consumes rows for one export file.
type Sink interface {
	// Append adds one row.
	Append(bean *record.StatDetailBean) error
	// Close finishes the file and moves it to Path.
	Close() error
	// Abort releases resources and leaves only the partial file.
	Abort() error
	// Path returns the final output path.
	Path() string
	// Rows returns the number of rows appended so far.
	Rows() int64
}

// Options tunes sink behaviour.
type Options struct {
	// BOM prefixes csv output with a UTF-8 byte order mark.
	BOM bool
	// SpillRows is the csv in-memory row budget before spilling to disk.
	// Zero keeps every row in memory.
	SpillRows int
}

// Open creates a sink of the given format in dir. The directory must exist.
func Open(format Format, dir string, schema record.Schema, now time.Time, opts Options) (Sink, error) {
	switch format {
	case FormatXLSX:
		return NewXLSXWriter(dir, schema, now)
	case FormatCSV:
		return NewCSVWriter(dir, schema, now, opts)
	default:
		return nil, faults.InvalidInput(string(format), ErrUnknownFormat)
	}
}

// createPartial reserves a fresh output name in dir and creates its partial
// file. A "-N" suffix is added before the extension when the name is taken.
func createPartial(dir, schemaName string, format Format, now time.Time) (*os.File, string, error) {
	name := FileName(schemaName, format, now)
	target := filepath.Join(dir, name)

	info, err := os.Stat(dir)
	if err != nil {
		return nil, target, faults.Write(target, err)
	}

	if !info.IsDir() {
		return nil, target, faults.Write(target, ErrNotDirectory)
	}

	stem := strings.TrimSuffix(name, "."+format.Extension())

	for attempt := range maxNameAttempts {
		if attempt > 0 {
			target = filepath.Join(dir, stem+"-"+strconv.Itoa(attempt)+"."+format.Extension())
		}

		if _, statErr := os.Stat(target); statErr == nil {
			continue
		}

		file, createErr := os.OpenFile(target+partialSuffix, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(createErr, fs.ErrExist) {
			continue
		}

		if createErr != nil {
			return nil, target, faults.Write(target, createErr)
		}

		return file, target, nil
	}

	return nil, target, faults.Write(target, ErrNameTaken)
}

// publish moves the finished partial file to its final name.
func publish(target string) error {
	err := os.Rename(target+partialSuffix, target)
	if err != nil {
		return faults.Write(target, err)
	}

	return nil
}
