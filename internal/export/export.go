// Package export writes stored fits as YAML documents.
package export

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/pronyfit/internal/model"
	"github.com/verte-zerg/pronyfit/internal/stats"
)

// Document is the YAML layout of an exported fit.
type Document struct {
	ID         int64     `yaml:"id,omitempty"`
	RunID      string    `yaml:"run_id,omitempty"`
	CreatedAt  time.Time `yaml:"created_at"`
	Kind       string    `yaml:"kind"`
	Terms      int       `yaml:"terms,omitempty"`
	Algorithm  string    `yaml:"algorithm"`
	Iterations int       `yaml:"iterations"`
	Cost       float64   `yaml:"cost"`
	RSquared   float64   `yaml:"r_squared"`
	Source     string    `yaml:"source,omitempty"`
	DataHash   string    `yaml:"data_hash,omitempty"`
	Params     []Param   `yaml:"params"`
	Samples    []Point   `yaml:"samples,omitempty"`
	Curve      []Point   `yaml:"curve,omitempty"`
}

// Param is one named parameter.
type Param struct {
	Name     string  `yaml:"name"`
	Value    float64 `yaml:"value"`
	StdError float64 `yaml:"stderr"`
}

// Point is a (reduced time, response) pair.
type Point struct {
	T float64 `yaml:"t"`
	Y float64 `yaml:"y"`
}

// FromRecord builds a document from rec. When grid has points the fitted
// curve is evaluated over it in response units.
func FromRecord(rec model.FitRecord, grid stats.Grid) (Document, error) {
	doc := Document{
		ID:         rec.ID,
		RunID:      rec.RunID,
		CreatedAt:  rec.CreatedAt.UTC(),
		Kind:       rec.Spec.Kind.String(),
		Algorithm:  rec.Algorithm,
		Iterations: rec.Iterations,
		Cost:       rec.Cost,
		RSquared:   rec.RSquared,
		Source:     rec.Source,
		DataHash:   rec.DataHash,
	}
	if rec.Spec.Kind.UsesTerms() {
		doc.Terms = rec.Spec.Terms
	}
	for _, p := range rec.Params {
		doc.Params = append(doc.Params, Param{Name: p.Name, Value: p.Value, StdError: p.StdError})
	}
	for _, s := range rec.Samples {
		doc.Samples = append(doc.Samples, Point{T: s.ReducedTime, Y: s.Response})
	}
	if grid.Points <= 0 {
		return doc, nil
	}

	times, values, err := stats.ResponseCurve(rec.Spec, stats.ParamValues(rec.Params), grid)
	if err != nil {
		return Document{}, fmt.Errorf("failed to evaluate fit #%d: %w", rec.ID, err)
	}
	for i, t := range times {
		doc.Curve = append(doc.Curve, Point{T: t, Y: values[i]})
	}
	return doc, nil
}

// Write encodes doc as YAML.
func Write(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return nil
}

// WriteFile writes doc to path, replacing any existing file.
func WriteFile(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
