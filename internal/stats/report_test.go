package stats

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/pronyfit/internal/model"
	"github.com/verte-zerg/pronyfit/internal/store"
)

func TestRenderFit(t *testing.T) {
	res := model.FitResult{
		Spec:       model.Spec{Kind: model.KindPronyCompliance, Terms: 1},
		Params:     []float64{1, 2, 1, 0},
		StdErrors:  []float64{0.001, 0.002, math.Inf(1), math.NaN()},
		Algorithm:  "trf",
		Iterations: 8,
	}
	ev := Evaluation{Goodness: model.Goodness{RSquared: 0.9999}}
	var buf bytes.Buffer
	if err := RenderFit(&buf, res, ev, []string{"D0", "D1", "rho1", "flow"}); err != nil {
		t.Fatalf("RenderFit failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"prony-compliance/1 (trf, 8 iterations)", "rho1", "inf", "n/a", "R²: 0.999900"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderFitUndefinedRSquared(t *testing.T) {
	res := model.FitResult{Spec: model.Spec{Kind: model.KindPowerLaw}, Params: []float64{1, 0, 0}}
	var buf bytes.Buffer
	if err := RenderFit(&buf, res, Evaluation{Goodness: model.Goodness{RSquared: math.NaN()}}, nil); err != nil {
		t.Fatalf("RenderFit failed: %v", err)
	}
	if !strings.Contains(buf.String(), "undefined") || !strings.Contains(buf.String(), "p2") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestBuildHistory(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "pronyfit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		rec := model.FitRecord{
			FitSummary: model.FitSummary{
				RunID:     "run",
				CreatedAt: time.Unix(0, 0).Add(time.Duration(i) * time.Minute),
				Spec:      model.Spec{Kind: model.KindPronyModulus, Terms: 2},
				Algorithm: "trf",
				Source:    "relax.csv",
				DataHash:  "00ff",
				RSquared:  0.9 + float64(i)/100,
			},
			Params:  []model.Param{{Name: "E0", Value: 3, StdError: 0.1}},
			Samples: []model.Sample{{ReducedTime: 1, Response: 2}},
		}
		id, err := st.InsertFit(ctx, rec)
		if err != nil {
			t.Fatalf("insert fit: %v", err)
		}
		ids = append(ids, id)
	}

	history, err := BuildHistory(ctx, st, model.HistoryConfig{Kind: "modulus", Last: 2})
	if err != nil {
		t.Fatalf("BuildHistory failed: %v", err)
	}
	if len(history.Fits) != 2 {
		t.Fatalf("expected 2 fits, got %d", len(history.Fits))
	}
	if history.Fits[0].ID != ids[1] || history.Fits[1].ID != ids[2] {
		t.Fatalf("unexpected fits: %+v", history.Fits)
	}

	var buf bytes.Buffer
	if err := RenderHistorySummary(&buf, history.Fits); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if err := RenderHistoryTable(&buf, history.Fits); err != nil {
		t.Fatalf("table: %v", err)
	}
	if err := RenderRSquaredTrend(&buf, history.Fits, 40, 4, false); err != nil {
		t.Fatalf("trend: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Fits: 2", "prony-modulus: 2", "Best R²: 0.920000", "relax.csv", "R² Trend"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	rec, err := st.GetFit(ctx, ids[0])
	if err != nil {
		t.Fatalf("get fit: %v", err)
	}
	buf.Reset()
	if err := RenderRecord(&buf, rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !strings.Contains(buf.String(), "prony-modulus/2") || !strings.Contains(buf.String(), "E0") {
		t.Fatalf("unexpected record output:\n%s", buf.String())
	}
}

func TestRenderHistorySummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHistorySummary(&buf, nil); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(buf.String(), "No fits found.") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
