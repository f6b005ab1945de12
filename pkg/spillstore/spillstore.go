// Package spillstore provides an append-only list that spills to compressed
// temporary files once its in-memory buffer reaches a row budget, keeping
// memory bounded while preserving every appended value for a final replay.
package spillstore

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// List is an append-only sequence with transparent disk spilling.
//
// With a zero budget it behaves as a plain slice. Otherwise, whenever the
// in-memory buffer holds budget values it is gob-encoded through an LZ4 frame
// into a numbered chunk file and cleared. Each replays chunks then the tail.
// A List is not safe for concurrent use.
type List[T any] struct {
	current []T
	budget  int
	dir     string // created lazily on first spill.
	spillN  int
	length  int
}

// New creates a List that spills every budget values. Zero never spills.
func New[T any](budget int) *List[T] {
	return &List[T]{budget: max(budget, 0)}
}

// Append adds a value, spilling the buffer first when it is full.
func (l *List[T]) Append(value T) error {
	if l.budget > 0 && len(l.current) >= l.budget {
		err := l.Spill()
		if err != nil {
			return err
		}
	}

	l.current = append(l.current, value)
	l.length++

	return nil
}

// Len returns the total number of appended values, spilled or not.
// Safe on a nil receiver.
func (l *List[T]) Len() int {
	if l == nil {
		return 0
	}

	return l.length
}

// SpillCount returns the number of chunk files written. Safe on a nil receiver.
func (l *List[T]) SpillCount() int {
	if l == nil {
		return 0
	}

	return l.spillN
}

// SpillDir returns the temp directory, or empty when nothing was spilled.
func (l *List[T]) SpillDir() string {
	if l == nil {
		return ""
	}

	return l.dir
}

// Spill writes the in-memory buffer to the next chunk file. No-op when empty.
func (l *List[T]) Spill() error {
	if l == nil || len(l.current) == 0 {
		return nil
	}

	if l.dir == "" {
		dir, err := os.MkdirTemp("", "gitstat-spill-*")
		if err != nil {
			return fmt.Errorf("spillstore: create temp dir: %w", err)
		}

		l.dir = dir
	}

	err := writeChunk(l.chunkPath(l.spillN), l.current)
	if err != nil {
		return fmt.Errorf("spillstore: spill %d: %w", l.spillN, err)
	}

	l.spillN++
	l.current = make([]T, 0, l.budget)

	return nil
}

// Each calls fn for every value in append order, stopping at the first error.
// The list is left intact and can be replayed again.
func (l *List[T]) Each(fn func(T) error) error {
	if l == nil {
		return nil
	}

	for i := range l.spillN {
		chunk, err := readChunk[T](l.chunkPath(i))
		if err != nil {
			return fmt.Errorf("spillstore: read spill %d: %w", i, err)
		}

		for _, value := range chunk {
			err = fn(value)
			if err != nil {
				return err
			}
		}
	}

	for _, value := range l.current {
		err := fn(value)
		if err != nil {
			return err
		}
	}

	return nil
}

// Cleanup removes spilled chunks and drops the buffer. Safe to call multiple
// times.
func (l *List[T]) Cleanup() error {
	if l == nil {
		return nil
	}

	var err error

	if l.dir != "" {
		err = os.RemoveAll(l.dir)
		l.dir = ""
	}

	l.current = nil
	l.spillN = 0
	l.length = 0

	if err != nil {
		return fmt.Errorf("spillstore: cleanup: %w", err)
	}

	return nil
}

func (l *List[T]) chunkPath(index int) string {
	return filepath.Join(l.dir, fmt.Sprintf("chunk_%04d.gob.lz4", index))
}

func writeChunk[T any](path string, values []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	zw := lz4.NewWriter(f)

	err = gob.NewEncoder(zw).Encode(values)

	return errors.Join(err, zw.Close(), f.Close())
}

func readChunk[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var chunk []T

	err = gob.NewDecoder(lz4.NewReader(f)).Decode(&chunk)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	return chunk, nil
}
