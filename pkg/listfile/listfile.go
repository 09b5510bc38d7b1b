// Package listfile reads and writes list files: a single JSON array of
// records, as produced by a collection and consumed by a batch run. Field
// order inside each record is preserved both ways. A null element reads as an
// empty record.
package listfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Sternrassler/ajaxctl/pkg/record"
)

// ErrNotList is returned when a file does not hold a JSON array of objects.
var ErrNotList = errors.New("list file must hold a JSON array of objects")

// Read loads all records of a list file.
func Read(path string) ([]record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a JSON array of records from r.
func Decode(r io.Reader) ([]record.Record, error) {
	var records []record.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotList, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: got null", ErrNotList)
	}
	return records, nil
}

// Encode writes records to w as one compact JSON array.
func Encode(w io.Writer, records []record.Record) error {
	if records == nil {
		records = []record.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// Write stores records at path. The file is written to a temporary file in
// the same directory and renamed into place, so readers never see a partial
// list.
func Write(path string, records []record.Record) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if err := Encode(tempFile, records); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move list file into place: %w", err)
	}
	return nil
}
