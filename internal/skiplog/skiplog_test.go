package skiplog

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"retailetl/internal/stage"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("readall: %v", err)
	}
	return rows
}

// TestCreate_DirFileAndHeader verifies that Create makes missing parent
// directories and writes the header immediately.
func TestCreate_DirFileAndHeader(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "skipped", "bad.csv")
	l, err := Create(target)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := readAll(t, target)
	if len(rows) != 1 || !reflect.DeepEqual(rows[0], Header) {
		t.Fatalf("rows = %#v, want header only", rows)
	}
}

// TestWriteReport writes a report and checks quoting and the numeric column.
func TestWriteReport(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "bad.csv")
	rep := stage.BadRowReport{Rows: []stage.BadRow{
		{
			Index: 3, SourceFile: "sales_a.csv", Line: 5,
			Err:     errors.New(`conversion failed, "x"`),
			Numeric: map[string]string{"UnitPrice": "NULL", "Quantity": "-1"},
		},
		{Index: 9, SourceFile: "sales_b.csv", Line: 4},
	}}
	if err := WriteReport(target, rep); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	rows := readAll(t, target)
	if len(rows) != 3 {
		t.Fatalf("want header + 2 rows, got %d: %#v", len(rows), rows)
	}
	want := []string{ReasonRowIsolation, "3", "sales_a.csv", "5", `conversion failed, "x"`, "Quantity=-1;UnitPrice=NULL"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Fatalf("row mismatch\ngot : %#v\nwant: %#v", rows[1], want)
	}
	if rows[2][4] != "" || rows[2][5] != "" {
		t.Fatalf("empty error/numeric not preserved: %#v", rows[2])
	}
}

func TestCounts(t *testing.T) {
	t.Parallel()

	l, err := Create(filepath.Join(t.TempDir(), "bad.csv"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer l.Close()

	_ = l.Add("a", stage.BadRow{})
	_ = l.Add("a", stage.BadRow{})
	_ = l.Add("b", stage.BadRow{})
	if got := l.Counts(); got["a"] != 2 || got["b"] != 1 {
		t.Fatalf("Counts = %v", got)
	}
}

func TestCreate_Unwritable(t *testing.T) {
	t.Parallel()

	// A regular file used as a parent directory cannot be created into.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Create(filepath.Join(blocker, "bad.csv")); err == nil {
		t.Fatal("Create under a file: error = nil")
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 4, 3, 10, 5, 6, 0, time.UTC)
	if got := FileName(ts); got != "bad_rows_20240403T100506Z.csv" {
		t.Fatalf("FileName = %s", got)
	}
}
