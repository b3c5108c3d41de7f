package dataset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/pronyfit/internal/model"
)

func TestParseWithHeader(t *testing.T) {
	in := "# creep test at 40C\ntr,J\n5,50\n1,10\n3,30\n"
	tbl, err := Parse(strings.NewReader(in), ',')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Len() != 3 || tbl.Width() != 2 {
		t.Fatalf("unexpected shape %dx%d", tbl.Len(), tbl.Width())
	}
	col, err := tbl.Column("j")
	if err != nil {
		t.Fatalf("column by name: %v", err)
	}
	if col[0] != 50 || col[2] != 30 {
		t.Fatalf("unexpected column: %v", col)
	}
	col, err = tbl.Column("0")
	if err != nil {
		t.Fatalf("column by index: %v", err)
	}
	if col[1] != 1 {
		t.Fatalf("unexpected column: %v", col)
	}
	if _, err := tbl.Column("E"); !errors.Is(err, ErrNoColumn) {
		t.Fatalf("expected ErrNoColumn, got %v", err)
	}
	if _, err := tbl.Column("2"); !errors.Is(err, ErrNoColumn) {
		t.Fatalf("expected ErrNoColumn for out-of-range index, got %v", err)
	}
}

func TestParseWhitespaceWithoutHeader(t *testing.T) {
	tbl, err := Parse(strings.NewReader("0.1  1.02\n1\t1.19\n\n"), ' ')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Header != nil {
		t.Fatalf("expected no header, got %v", tbl.Header)
	}
	col, err := tbl.Column("1")
	if err != nil {
		t.Fatalf("column: %v", err)
	}
	if len(col) != 2 || col[1] != 1.19 {
		t.Fatalf("unexpected column: %v", col)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse(strings.NewReader(""), ','); !errors.Is(err, model.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := Parse(strings.NewReader("t,J\n1,2\n3\n"), ','); err == nil {
		t.Fatalf("expected ragged row error")
	}
	if _, err := Parse(strings.NewReader("t,J\n1,abc\n"), ','); err == nil {
		t.Fatalf("expected number parse error")
	}
}

func TestColumnReturnsCopy(t *testing.T) {
	tbl, err := Parse(strings.NewReader("1,2\n3,4\n"), ',')
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	col, _ := tbl.Column("0")
	col[0] = 99
	again, _ := tbl.Column("0")
	if again[0] != 1 {
		t.Fatalf("column mutation leaked into table")
	}
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	samples := []model.Sample{{ReducedTime: 0.001, Response: 1.5}, {ReducedTime: 1e4, Response: 3.25}}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, "tr", "D", samples); err != nil {
		t.Fatalf("write: %v", err)
	}
	path := filepath.Join(t.TempDir(), "synth.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tr, _ := tbl.Column("tr")
	d, _ := tbl.Column("D")
	if tr[1] != 1e4 || d[0] != 1.5 {
		t.Fatalf("unexpected round trip: %v %v", tr, d)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]float64{1, 2}, []float64{3, 4})
	b := Fingerprint([]float64{1, 2}, []float64{3, 4})
	c := Fingerprint([]float64{1, 2, 3}, []float64{4})
	if a != b {
		t.Fatalf("fingerprint not stable: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("fingerprint ignores column boundaries")
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex digits, got %q", a)
	}
}
