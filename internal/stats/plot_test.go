package stats

import (
	"bytes"
	"strings"
	"testing"
)

func TestPlotSeries(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSeries(&buf, "Test Plot", []Series{
		{Name: "A", Values: []float64{1, 2, 3, 2, 1}},
		{Name: "B", Values: []float64{1, 1, 2, 3, 4}},
	}, 5, 4)
	if err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Test Plot") {
		t.Fatalf("expected title in output")
	}
	if !strings.Contains(out, "Scaled per series") {
		t.Fatalf("expected scale note in output")
	}
	if !strings.Contains(out, "Legend:") {
		t.Fatalf("expected legend in output")
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	expectedMin := 1 + 1 + 2 + 4 + 1
	if len(lines) < expectedMin {
		t.Fatalf("expected at least %d lines of output, got %d", expectedMin, len(lines))
	}
}

func TestPlotLogLog(t *testing.T) {
	var buf bytes.Buffer
	err := PlotLogLog(&buf, "Creep compliance", []XYSeries{
		{Name: "observed", X: []float64{0.1, 1, 10, 100}, Y: []float64{1, 1.2, 2.3, 3}, Scatter: true},
		{Name: "fit", X: []float64{0.01, 1000}, Y: []float64{1, 3}},
	}, 20, 6)
	if err != nil {
		t.Fatalf("PlotLogLog failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Creep compliance", "Log-log axes", "x: 0.01 .. 1e+03", "observed (points)", "fit (solid)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1+2+6+1 {
		t.Fatalf("expected %d lines, got %d:\n%s", 1+2+6+1, len(lines), out)
	}
}

func TestPlotLogLogStylesSkipScatter(t *testing.T) {
	var buf bytes.Buffer
	err := PlotLogLog(&buf, "", []XYSeries{
		{Name: "observed", X: []float64{1, 10}, Y: []float64{1, 2}, Scatter: true},
		{Name: "fitted", X: []float64{1, 10}, Y: []float64{1, 2}, Scatter: true},
		{Name: "fit", X: []float64{0.1, 100}, Y: []float64{1, 3}},
		{Name: "curve", X: []float64{0.1, 100}, Y: []float64{1.5, 2.5}},
	}, 30, 6)
	if err != nil {
		t.Fatalf("PlotLogLog failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"fitted (points)", "fit (solid)", "curve (dashed)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPlotLogLogSkipsNonPositive(t *testing.T) {
	var buf bytes.Buffer
	err := PlotLogLog(&buf, "", []XYSeries{
		{Name: "bad", X: []float64{0, -1}, Y: []float64{1, 2}},
	}, 20, 4)
	if err != nil {
		t.Fatalf("PlotLogLog failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for series without positive points, got %q", buf.String())
	}
}
