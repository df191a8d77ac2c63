// Package jsonldb stores a whole collection of rows as a JSONL file.
//
// # File Format
//
// Line 1 is a schema header describing the row type, subsequent lines are
// JSON rows in collection order. Writes replace the file atomically through a
// temporary file and a rename, so a reader sees either the previous or the new
// collection, never a mix.
//
// # Corruption
//
// A file that cannot be decoded, including one written by an incompatible
// format version, is reported with an error wrapping [ErrCorrupt]. Callers
// decide whether to fail or to start over; [File.Quarantine] moves the file
// aside so that it is kept for diagnosis but no longer read.
package jsonldb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrCorrupt is returned when the file exists but cannot be decoded.
	ErrCorrupt = errors.New("corrupt file")
	// ErrVersion is returned when the file was written by an unsupported
	// format version. It is always wrapped along with ErrCorrupt.
	ErrVersion = errors.New("unsupported format version")
)

// maxLineSize bounds a single JSONL line.
const maxLineSize = 16 * 1024 * 1024

// File reads and writes a collection of T to a single JSONL file.
//
// File is safe for concurrent use; writes are serialized.
type File[T any] struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a File for path, creating its parent directory.
func NewFile[T any](path string) (*File[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return &File[T]{path: path}, nil
}

// Path returns the file path.
func (f *File[T]) Path() string {
	return f.path
}

// Load reads all rows in stored order.
//
// A missing file returns an error satisfying errors.Is(err, os.ErrNotExist).
// Once the file is open, any failure to read it, including a line longer than
// maxLineSize, wraps ErrCorrupt.
func (f *File[T]) Load() ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer func() {
		_ = fh.Close()
	}()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s: failed to read schema header: %w", ErrCorrupt, f.path, err)
		}
		return nil, fmt.Errorf("%w: %s: missing schema header", ErrCorrupt, f.path)
	}
	var header schemaHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("%w: %s: invalid schema header: %w", ErrCorrupt, f.path, err)
	}
	if err := header.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, f.path, err)
	}

	var rows []T
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %w", ErrCorrupt, f.path, lineNo, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s line %d: %w", ErrCorrupt, f.path, lineNo+1, err)
	}
	return rows, nil
}

// Save replaces the file content with rows.
func (f *File[T]) Save(rows []T) error {
	columns, err := schemaFromType[T]()
	if err != nil {
		return err
	}
	header, err := json.Marshal(schemaHeader{Version: currentVersion, Columns: columns})
	if err != nil {
		return fmt.Errorf("failed to marshal schema header: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := writeRows(tmp, header, rows); err != nil {
		_ = tmp.Close()
		return errors.Join(err, os.Remove(tmpPath))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return errors.Join(fmt.Errorf("failed to replace %s: %w", f.path, err), os.Remove(tmpPath))
	}
	return nil
}

func writeRows[T any](fh *os.File, header []byte, rows []T) error {
	w := bufio.NewWriter(fh)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write schema header: %w", err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return fh.Sync()
}

// Quarantine renames the file to <path>.corrupt-<unix-ms> and returns the new
// path. The next Save starts a fresh file.
func (f *File[T]) Quarantine() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dst := f.path + ".corrupt-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := os.Rename(f.path, dst); err != nil {
		return "", fmt.Errorf("failed to quarantine %s: %w", f.path, err)
	}
	return dst, nil
}
