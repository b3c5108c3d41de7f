package stats

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/verte-zerg/pronyfit/internal/model"
)

// Params pairs fitted values and standard errors with their names.
func Params(res model.FitResult, names []string) []model.Param {
	out := make([]model.Param, len(res.Params))
	for i, v := range res.Params {
		p := model.Param{Value: v, StdError: math.NaN()}
		if i < len(names) {
			p.Name = names[i]
		} else {
			p.Name = fmt.Sprintf("p%d", i)
		}
		if i < len(res.StdErrors) {
			p.StdError = res.StdErrors[i]
		}
		out[i] = p
	}
	return out
}

// RenderFit prints the parameter table and the coefficient of determination.
func RenderFit(w io.Writer, res model.FitResult, ev Evaluation, names []string) error {
	if _, err := fmt.Fprintf(w, "Fit: %s (%s, %d iterations)\n", res.Spec, res.Algorithm, res.Iterations); err != nil {
		return err
	}
	if err := renderParams(w, Params(res, names)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "R²: %s\n", formatRSquared(ev.RSquared)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "SSres: %.6g  SStot: %.6g  cost: %.6g\n", ev.SSRes, ev.SSTot, res.Cost); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderRecord prints a stored fit.
func RenderRecord(w io.Writer, rec model.FitRecord) error {
	lines := []string{
		fmt.Sprintf("Fit #%d: %s (%s, %d iterations)", rec.ID, rec.Spec, rec.Algorithm, rec.Iterations),
		fmt.Sprintf("Run: %s", rec.RunID),
		fmt.Sprintf("Created: %s", rec.CreatedAt.Local().Format(time.DateTime)),
		fmt.Sprintf("Source: %s (%d samples, hash %s)", rec.Source, rec.NSamples, rec.DataHash),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if err := renderParams(w, rec.Params); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "R²: %s\n", formatRSquared(rec.RSquared)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func renderParams(w io.Writer, params []model.Param) error {
	headers := []string{"Param", "Value", "Std Error"}
	rows := make([][]string, 0, len(params))
	for _, p := range params {
		rows = append(rows, []string{p.Name, formatFloat(p.Value), formatFloat(p.StdError)})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{1: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.6g", v)
}

func formatRSquared(v float64) string {
	if math.IsNaN(v) {
		return "undefined (constant response)"
	}
	return fmt.Sprintf("%.6f", v)
}
