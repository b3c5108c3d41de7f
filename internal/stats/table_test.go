package stats

import (
	"strings"
	"testing"
)

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Param", "Value", "Std Error"}
	rows := [][]string{
		{"D0", "1.0000", "0.0021"},
		{"flow", "-0.0003", "1.2e-05"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Param   Value Std Error" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "D0     1.0000    0.0021" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "flow  -0.0003   1.2e-05" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestDisplayWidthCountsWideRunes(t *testing.T) {
	if got := displayWidth("tau1"); got != 4 {
		t.Fatalf("expected width 4, got %d", got)
	}
	if got := displayWidth("時間"); got != 4 {
		t.Fatalf("expected width 4, got %d", got)
	}
}

func TestRenderTable(t *testing.T) {
	var buf strings.Builder
	if err := RenderTable(&buf, []string{"Kind", "N"}, [][]string{{"sigmoid", "4"}, {"power-law", "3"}}, 1); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "Kind      N\nsigmoid   4\npower-law 3\n"
	if buf.String() != want {
		t.Fatalf("unexpected table:\n%q", buf.String())
	}
}
