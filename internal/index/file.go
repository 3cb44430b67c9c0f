package index

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Serialized rows are "course_id|word", one per membership, in Entries order.
const separator = '|'

// Serialize writes one row per membership and returns the row count. Output
// is deterministic for a given index.
func (x *Index) Serialize(w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	cw.Comma = separator

	var rows int
	for _, e := range x.Entries() {
		if err := cw.Write([]string{strconv.Itoa(e.CourseID), e.Word}); err != nil {
			return rows, fmt.Errorf("failed to write index row: %w", err)
		}
		rows++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("failed to flush index: %w", err)
	}
	return rows, nil
}

// Read loads a serialized index.
func Read(r io.Reader) (*Index, error) {
	cr := csv.NewReader(r)
	cr.Comma = separator
	cr.FieldsPerRecord = 2

	x := New()
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return x, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read index row: %w", err)
		}
		id, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid course id %q: %w", record[0], err)
		}
		x.Merge(record[1], id)
	}
}

// WriteFile atomically writes the index to path. It writes to a .tmp file
// first and renames on success.
func (x *Index) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if _, err := x.Serialize(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename index file: %w", err)
	}
	return nil
}

// ReadFile loads an index written by WriteFile.
func ReadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()
	return Read(f)
}
