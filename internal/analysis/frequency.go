package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
	"github.com/KaramelBytes/tabloom-cli/internal/errors"
)

const (
	// DefaultBins is the histogram width used for numeric columns.
	DefaultBins = 10
	// MaxCategories caps the value counts returned for non-numeric columns.
	MaxCategories = 20
)

// Frequencies is chart-ready frequency data for one column.
type Frequencies struct {
	Column string   `json:"column" yaml:"column"`
	Kind   string   `json:"kind" yaml:"kind"` // numeric|categorical
	Labels []string `json:"labels" yaml:"labels"`
	Counts []int    `json:"counts" yaml:"counts"`
}

// Frequency builds a histogram for numeric columns and top value counts otherwise.
// Missing cells are ignored. bins <= 0 means DefaultBins.
func Frequency(ds *dataset.Dataset, column string, bins int) (*Frequencies, error) {
	col, ok := ds.Column(column)
	if !ok {
		return nil, errors.Validationf("column %q not found in dataset", column)
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	out := &Frequencies{Column: column, Labels: []string{}, Counts: []int{}}
	if col.Kind == dataset.KindNumeric {
		out.Kind = "numeric"
		var vals []float64
		for _, c := range col.Cells {
			if x, ok := c.Float(); ok && finite(x) {
				vals = append(vals, x)
			}
		}
		out.Labels, out.Counts = histogram(vals, bins)
		return out, nil
	}
	out.Kind = "categorical"
	out.Labels, out.Counts = valueCounts(col.Cells, MaxCategories)
	return out, nil
}

// histogram uses equal-width bins over [min, max]; the last bin is closed.
// A constant series spans [v-0.5, v+0.5]. Labels truncate the edges to integers.
func histogram(vals []float64, bins int) ([]string, []int) {
	if len(vals) == 0 {
		return []string{}, []int{}
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi

	// gonum treats the top divider as exclusive.
	dividers := make([]float64, len(edges))
	copy(dividers, edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	weights := stat.Histogram(nil, dividers, sorted, nil)

	labels := make([]string, bins)
	counts := make([]int, bins)
	for i := 0; i < bins; i++ {
		labels[i] = fmt.Sprintf("%d-%d", int64(edges[i]), int64(edges[i+1]))
		counts[i] = int(weights[i])
	}
	return labels, counts
}

// valueCounts orders distinct values by count desc, ties by first occurrence.
func valueCounts(cells []dataset.Cell, limit int) ([]string, []int) {
	type entry struct {
		label string
		count int
	}
	index := map[string]int{}
	var entries []entry
	for _, c := range cells {
		if c.IsMissing() {
			continue
		}
		k := c.String()
		if i, ok := index[k]; ok {
			entries[i].count++
			continue
		}
		index[k] = len(entries)
		entries = append(entries, entry{label: k, count: 1})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].count > entries[j].count })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	labels := make([]string, len(entries))
	counts := make([]int, len(entries))
	for i, e := range entries {
		labels[i], counts[i] = e.label, e.count
	}
	return labels, counts
}
