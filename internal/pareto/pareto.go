// Package pareto ranks the distinct values of a column by frequency and assigns ABC
// tiers from their cumulative share.
package pareto

import (
	"sort"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
	"github.com/KaramelBytes/tabloom-cli/internal/errors"
)

// Tier is an ABC class.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Thresholds are the inclusive cumulative-percentage upper bounds of tiers A and B.
type Thresholds struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
}

// DefaultThresholds is the 80/95 rule.
func DefaultThresholds() Thresholds { return Thresholds{A: 80, B: 95} }

// Validate checks 0 < A <= B <= 100.
func (t Thresholds) Validate() error {
	if t.A <= 0 || t.B < t.A || t.B > 100 {
		return errors.Validationf("invalid tier thresholds A=%g B=%g (need 0 < A <= B <= 100)", t.A, t.B)
	}
	return nil
}

// TierFor classifies a cumulative percentage.
func (t Thresholds) TierFor(cumulative float64) Tier {
	switch {
	case cumulative <= t.A:
		return TierA
	case cumulative <= t.B:
		return TierB
	default:
		return TierC
	}
}

// Row is one distinct value in the ranking.
type Row struct {
	Label      string  `json:"label" yaml:"label"`
	Frequency  int     `json:"frequency" yaml:"frequency"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
	Cumulative float64 `json:"cumulative" yaml:"cumulative"`
	Tier       Tier    `json:"tier" yaml:"tier"`
}

// Result is the ranked frequency table of one column.
type Result struct {
	Column string `json:"column_analyzed" yaml:"column_analyzed"`
	// TotalRecords is the dataset row count, missing values included.
	TotalRecords int `json:"total_records" yaml:"total_records"`
	// ClassifiedRecords is the number of non-missing values, the percentage base.
	ClassifiedRecords int   `json:"classified_records" yaml:"classified_records"`
	Items             []Row `json:"items" yaml:"items"`
}

// Classifier computes Pareto tables.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier validates the thresholds and returns a Classifier.
func NewClassifier(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: t}, nil
}

// Classify counts the non-missing values of column and ranks them by descending
// frequency. Equal frequencies keep the order in which the values first appear.
func (c *Classifier) Classify(ds *dataset.Dataset, column string) (*Result, error) {
	col, ok := ds.Column(column)
	if !ok {
		return nil, errors.Validationf("column %q does not exist in the dataset", column)
	}
	res := &Result{Column: column, TotalRecords: ds.Rows(), Items: []Row{}}

	index := map[string]int{}
	for _, cell := range col.Cells {
		if cell.IsMissing() {
			continue
		}
		label := cell.String()
		i, seen := index[label]
		if !seen {
			i = len(res.Items)
			index[label] = i
			res.Items = append(res.Items, Row{Label: label})
		}
		res.Items[i].Frequency++
		res.ClassifiedRecords++
	}
	if res.ClassifiedRecords == 0 {
		return res, nil
	}

	sortByFrequency(res.Items)

	total := float64(res.ClassifiedRecords)
	var cumulative float64
	for i := range res.Items {
		r := &res.Items[i]
		r.Percentage = float64(r.Frequency) / total * 100
		cumulative += r.Percentage
		r.Cumulative = cumulative
		r.Tier = c.thresholds.TierFor(cumulative)
	}
	return res, nil
}

// sortByFrequency is a stable descending sort; rows arrive in first-occurrence order.
func sortByFrequency(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Frequency > rows[j].Frequency
	})
}

// TierSummary aggregates the rows of one tier.
type TierSummary struct {
	Tier    Tier    `json:"tier" yaml:"tier"`
	Labels  int     `json:"labels" yaml:"labels"`
	Records int     `json:"records" yaml:"records"`
	Share   float64 `json:"share" yaml:"share"`
}

// Summary returns per-tier totals in A, B, C order. Empty tiers are included.
func (r *Result) Summary() []TierSummary {
	out := []TierSummary{{Tier: TierA}, {Tier: TierB}, {Tier: TierC}}
	for _, row := range r.Items {
		var s *TierSummary
		switch row.Tier {
		case TierA:
			s = &out[0]
		case TierB:
			s = &out[1]
		default:
			s = &out[2]
		}
		s.Labels++
		s.Records += row.Frequency
		s.Share += row.Percentage
	}
	return out
}
