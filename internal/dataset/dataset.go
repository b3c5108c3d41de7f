// Package dataset loads numeric measurement tables and writes sample files.
package dataset

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/verte-zerg/pronyfit/internal/model"
)

// ErrNoColumn is returned when a column reference does not resolve.
var ErrNoColumn = errors.New("no such column")

// Table is a column-oriented numeric table.
type Table struct {
	Header []string
	cols   [][]float64
}

// Load reads a table from path. Files ending in .tsv are tab separated,
// .txt and .dat are whitespace separated, everything else is comma separated.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close for read-only file.
			_ = cerr
		}
	}()
	tbl, err := Parse(f, delimiterFor(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return tbl, nil
}

func delimiterFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv":
		return '\t'
	case ".txt", ".dat":
		return ' '
	default:
		return ','
	}
}

// Parse reads a table. A delimiter of ' ' splits on any run of whitespace.
// Lines starting with '#' are ignored. A first row that is not entirely
// numeric is taken as the header.
func Parse(r io.Reader, delimiter rune) (*Table, error) {
	rows, err := readRows(r, delimiter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, model.ErrEmptyInput
	}

	tbl := &Table{}
	if !numericRow(rows[0]) {
		tbl.Header = trimAll(rows[0])
		rows = rows[1:]
	}
	width := len(tbl.Header)
	if width == 0 && len(rows) > 0 {
		width = len(rows[0])
	}
	tbl.cols = make([][]float64, width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d fields, want %d", i+1, len(row), width)
		}
		for j, field := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j, err)
			}
			tbl.cols[j] = append(tbl.cols[j], v)
		}
	}
	return tbl, nil
}

func readRows(r io.Reader, delimiter rune) ([][]string, error) {
	if delimiter == ' ' {
		var rows [][]string
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			rows = append(rows, strings.Fields(line))
		}
		return rows, scanner.Err()
	}
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func numericRow(row []string) bool {
	for _, field := range row {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return false
		}
	}
	return true
}

func trimAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0])
}

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Column resolves ref as a header name (case-insensitive) or a zero-based
// index and returns a copy of that column.
func (t *Table) Column(ref string) ([]float64, error) {
	ref = strings.TrimSpace(ref)
	for i, name := range t.Header {
		if strings.EqualFold(name, ref) {
			return append([]float64(nil), t.cols[i]...), nil
		}
	}
	idx, err := strconv.Atoi(ref)
	if err != nil || idx < 0 || idx >= len(t.cols) {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, ref)
	}
	out := make([]float64, t.Len())
	copy(out, t.cols[idx])
	return out, nil
}

// WriteCSV writes samples as a two-column CSV with a header row.
func WriteCSV(w io.Writer, timeHeader, responseHeader string, samples []model.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{timeHeader, responseHeader}); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.ReducedTime, 'g', -1, 64),
			strconv.FormatFloat(s.Response, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Fingerprint hashes the aligned arrays so identical inputs can be matched
// across stored fits.
func Fingerprint(tr, response []float64) string {
	d := xxhash.New()
	var buf [8]byte
	for _, col := range [][]float64{tr, response} {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(col)))
		_, _ = d.Write(buf[:])
		for _, v := range col {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = d.Write(buf[:])
		}
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
