package stats

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/verte-zerg/pronyfit/internal/model"
	"github.com/verte-zerg/pronyfit/internal/store"
)

// History contains stored fits prepared for rendering.
type History struct {
	Fits []model.FitSummary
}

// BuildHistory loads stored fits matching cfg, keeping the most recent cfg.Last.
func BuildHistory(ctx context.Context, st *store.Store, cfg model.HistoryConfig) (History, error) {
	fits, err := st.ListFits(ctx, cfg)
	if err != nil {
		return History{}, err
	}
	if cfg.Last > 0 && len(fits) > cfg.Last {
		fits = fits[len(fits)-cfg.Last:]
	}
	return History{Fits: fits}, nil
}

// RenderHistorySummary prints fit counts per kind and R² statistics.
func RenderHistorySummary(w io.Writer, fits []model.FitSummary) error {
	if len(fits) == 0 {
		_, err := fmt.Fprintln(w, "No fits found.")
		return err
	}
	perKind := map[model.Kind]int{}
	var sum float64
	defined := 0
	best := math.Inf(-1)
	for _, f := range fits {
		perKind[f.Spec.Kind]++
		if math.IsNaN(f.RSquared) {
			continue
		}
		sum += f.RSquared
		defined++
		best = math.Max(best, f.RSquared)
	}

	if _, err := fmt.Fprintln(w, "Summary"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Fits: %d\n", len(fits)); err != nil {
		return err
	}
	kinds := make([]model.Kind, 0, len(perKind))
	for k := range perKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		if _, err := fmt.Fprintf(w, "  %s: %d\n", k, perKind[k]); err != nil {
			return err
		}
	}
	if defined > 0 {
		if _, err := fmt.Fprintf(w, "Avg R²: %.6f\n", sum/float64(defined)); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "Best R²: %.6f\n", best); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderHistoryTable prints one row per stored fit.
func RenderHistoryTable(w io.Writer, fits []model.FitSummary) error {
	if len(fits) == 0 {
		return nil
	}
	headers := []string{"ID", "Created", "Model", "Algorithm", "N", "R²", "Source"}
	rows := make([][]string, 0, len(fits))
	for _, f := range fits {
		rows = append(rows, HistoryRow(f))
	}
	for _, line := range formatTable(headers, rows, map[int]bool{0: true, 4: true, 5: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// HistoryRow formats a fit summary as table cells.
func HistoryRow(f model.FitSummary) []string {
	r2 := "n/a"
	if !math.IsNaN(f.RSquared) {
		r2 = fmt.Sprintf("%.6f", f.RSquared)
	}
	return []string{
		fmt.Sprintf("%d", f.ID),
		f.CreatedAt.Local().Format(time.DateTime),
		f.Spec.String(),
		f.Algorithm,
		fmt.Sprintf("%d", f.NSamples),
		r2,
		f.Source,
	}
}

// RenderRSquaredTrend plots R² across fits in storage order.
func RenderRSquaredTrend(w io.Writer, fits []model.FitSummary, totalWidth, height int, useColor bool) error {
	values := make([]float64, 0, len(fits))
	for _, f := range fits {
		if math.IsNaN(f.RSquared) {
			continue
		}
		values = append(values, f.RSquared)
	}
	if len(values) == 0 {
		return nil
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "R² Trend", []Series{{Name: "R²", Values: values}}, width, height, useColor)
}
