package parquetread

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// Reader wraps a parquet GenericReader for streaming typed rows.
type Reader[T any] struct {
	file   *os.File
	reader *parquet.GenericReader[T]
}

// Open opens a Parquet file and returns a streaming Reader.
func Open[T any](path string) (*Reader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	r := parquet.NewGenericReader[T](pf)
	return &Reader[T]{file: f, reader: r}, nil
}

// NumRows returns the total number of rows in the Parquet file.
func (r *Reader[T]) NumRows() int64 {
	return r.reader.NumRows()
}

// Read reads up to len(rows) records into the provided slice.
// Returns the number of rows read and io.EOF when done.
func (r *Reader[T]) Read(rows []T) (int, error) {
	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read parquet rows: %w", err)
	}
	return n, err
}

// Schema returns the Parquet schema for validation.
func (r *Reader[T]) Schema() *parquet.Schema {
	return r.reader.Schema()
}

// Close releases all resources.
func (r *Reader[T]) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// ReadAll opens path, validates that the required columns exist and reads
// every row. Extracts loaded this way are small reference tables.
func ReadAll[T any](path string, required ...string) ([]T, error) {
	r, err := Open[T](path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := ValidateSchema(r.Schema(), required...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	all := make([]T, 0, r.NumRows())
	buf := make([]T, 256)
	for {
		n, readErr := r.Read(buf)
		all = append(all, buf[:n]...)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
	}
	return all, nil
}
