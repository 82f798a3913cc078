package normalize

import (
	"regexp"
	"strings"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
)

const (
	DefaultSampleSize = 10
	DefaultMatchRatio = 0.5
)

// Options holds the detection heuristics.
type Options struct {
	// SampleSize is how many leading non-missing values are inspected per column.
	SampleSize int
	// MatchRatio must be strictly exceeded by the share of matching samples.
	MatchRatio float64
	// ApplyScale is passed to the Parser.
	ApplyScale bool
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{SampleSize: DefaultSampleSize, MatchRatio: DefaultMatchRatio}
}

// formattedNumber matches upper-cased text such as "$1,234.5", "€ 12M", "45%".
var formattedNumber = regexp.MustCompile(`^[$€£¥]?\s*\d[\d,]*(\.\d+)?[BMK%]?$`)

// ColumnProfile is the detection verdict for one column.
type ColumnProfile struct {
	SampleSize int     `json:"sample_size" yaml:"sample_size"`
	MatchCount int     `json:"match_count" yaml:"match_count"`
	MatchRatio float64 `json:"match_ratio" yaml:"match_ratio"`
	Decision   bool    `json:"decision" yaml:"decision"`
}

// Detector decides from a sample whether a text column holds formatted numbers.
type Detector struct {
	opt Options
}

// NewDetector builds a detector. Zero-valued thresholds fall back to the defaults.
func NewDetector(opt Options) *Detector {
	if opt.SampleSize <= 0 {
		opt.SampleSize = DefaultSampleSize
	}
	if opt.MatchRatio <= 0 {
		opt.MatchRatio = DefaultMatchRatio
	}
	return &Detector{opt: opt}
}

// Detect profiles a column. Numeric columns are never candidates, and a column without
// any non-missing value yields Decision false.
func (d *Detector) Detect(col *dataset.Column) ColumnProfile {
	var p ColumnProfile
	if col.Kind != dataset.KindText {
		return p
	}
	for _, c := range col.Cells {
		if p.SampleSize == d.opt.SampleSize {
			break
		}
		if c.IsMissing() {
			continue
		}
		p.SampleSize++
		if Matches(c.String()) {
			p.MatchCount++
		}
	}
	if p.SampleSize == 0 {
		return p
	}
	p.MatchRatio = float64(p.MatchCount) / float64(p.SampleSize)
	p.Decision = p.MatchRatio > d.opt.MatchRatio
	return p
}

// Matches reports whether s looks like a formatted number.
func Matches(s string) bool {
	return formattedNumber.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}
