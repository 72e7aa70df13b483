// Package report summarizes the lesion components kept by a run.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when there are no volumes to plot
var ErrNoData = errors.New("no component volumes")

// Summary describes a set of component volumes in mm³
type Summary struct {
	Count  int
	Total  float64
	Mean   float64
	StdDev float64
	Min    float64
	Median float64
	Max    float64
}

// Summarize computes descriptive statistics of volumes.
// An empty input yields a zero Summary.
func Summarize(volumes []float64) Summary {
	if len(volumes) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(volumes))
	copy(sorted, volumes)
	sort.Float64s(sorted)

	s := Summary{
		Count:  len(sorted),
		Total:  floats.Sum(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(sorted, nil)
	} else {
		s.Mean = sorted[0]
	}
	return s
}

// Write prints the summary in a fixed, human-readable layout
func (s Summary) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"Retained components: %d\nTotal volume: %.2f mm³\nMean: %.2f mm³ (sd %.2f)\nMin / median / max: %.2f / %.2f / %.2f mm³\n",
		s.Count, s.Total, s.Mean, s.StdDev, s.Min, s.Median, s.Max)
	return err
}

// PlotVolumes saves a histogram of volumes as an image. The format follows
// the file extension (png, svg, pdf, ...).
func PlotVolumes(path string, volumes []float64, title string) error {
	if len(volumes) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Component volume (mm³)"
	p.Y.Label.Text = "Components"

	bins := len(volumes)
	if bins > 20 {
		bins = 20
	}
	hist, err := plotter.NewHist(plotter.Values(volumes), bins)
	if err != nil {
		return fmt.Errorf("failed to build histogram: %w", err)
	}
	p.Add(hist)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
