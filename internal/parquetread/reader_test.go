package parquetread

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

type sampleRow struct {
	Code  string `parquet:"code"`
	Cents int64  `parquet:"cents"`
}

type otherRow struct {
	Name string `parquet:"name"`
}

func writeRows[T any](t *testing.T, rows []T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := parquet.NewGenericWriter[T](f)
	if _, err := w.Write(rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadAll(t *testing.T) {
	var rows []sampleRow
	for i := 0; i < 600; i++ {
		rows = append(rows, sampleRow{Code: "99490", Cents: int64(i)})
	}
	path := writeRows(t, rows)

	got, err := ReadAll[sampleRow](path, "code", "cents")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	if got[599].Cents != 599 {
		t.Errorf("last row cents = %d", got[599].Cents)
	}
}

func TestReadAll_MissingColumn(t *testing.T) {
	path := writeRows(t, []otherRow{{Name: "x"}})
	if _, err := ReadAll[otherRow](path, "name", "cents"); err == nil {
		t.Fatal("expected schema validation error")
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open[sampleRow]("/nonexistent/rows.parquet"); err == nil {
		t.Fatal("expected error")
	}
}
