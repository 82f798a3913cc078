// Package normalize detects text columns that hold formatted numbers ("$252.9B",
// "1,234.56", "45%") and rewrites them as numeric columns, keeping the currency and
// magnitude suffix as side columns.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
)

// Currency is a three-letter code derived from a currency symbol. Empty means none.
type Currency string

// Scale is a magnitude suffix: "B", "M" or "K". Empty means none.
type Scale string

// Multiplier returns the factor the suffix stands for, or 1 for no suffix.
func (s Scale) Multiplier() float64 {
	switch s {
	case "B":
		return 1e9
	case "M":
		return 1e6
	case "K":
		return 1e3
	default:
		return 1
	}
}

// currencySymbols is checked in order; the first symbol present wins.
var currencySymbols = []struct {
	symbol string
	code   Currency
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
}

// Outcome tells how a cell was handled by Parse.
type Outcome uint8

const (
	// OutcomeMissing: the input was missing or blank.
	OutcomeMissing Outcome = iota
	// OutcomeParsed: Number holds the value.
	OutcomeParsed
	// OutcomeUnchanged: the text did not parse and Original is kept verbatim.
	OutcomeUnchanged
)

// ParsedValue is the result of parsing one cell.
type ParsedValue struct {
	Outcome  Outcome
	Number   float64
	Original dataset.Cell
	Currency Currency
	Scale    Scale
}

// Cell returns the cell that replaces the input in a normalized column.
func (p ParsedValue) Cell() dataset.Cell {
	switch p.Outcome {
	case OutcomeParsed:
		return dataset.Number(p.Number)
	case OutcomeUnchanged:
		return p.Original
	default:
		return dataset.Missing()
	}
}

// Parser turns formatted numeric text into numbers.
type Parser struct {
	// ApplyScale multiplies the parsed value by the suffix multiplier. Off by default:
	// the suffix is reported as metadata and the stored value is the pre-suffix number.
	ApplyScale bool
}

// Parse parses one cell. It never fails: text that does not parse comes back with
// OutcomeUnchanged and no currency or scale.
func (p Parser) Parse(c dataset.Cell) ParsedValue {
	switch c.Kind() {
	case dataset.CellMissing:
		return ParsedValue{Outcome: OutcomeMissing}
	case dataset.CellNumber:
		v, _ := c.Float()
		return ParsedValue{Outcome: OutcomeParsed, Number: v, Original: c}
	}

	text := strings.TrimSpace(c.String())
	if text == "" {
		return ParsedValue{Outcome: OutcomeMissing, Original: c}
	}

	var cur Currency
	for _, s := range currencySymbols {
		if strings.Contains(text, s.symbol) {
			cur = s.code
			break
		}
	}

	var scale Scale
	switch upper := strings.ToUpper(text); {
	case strings.HasSuffix(upper, "B"):
		scale = "B"
	case strings.HasSuffix(upper, "M"):
		scale = "M"
	case strings.HasSuffix(upper, "K"):
		scale = "K"
	}
	if scale != "" {
		text = text[:len(text)-1]
	}

	v, ok := parseCleaned(text)
	if !ok {
		return ParsedValue{Outcome: OutcomeUnchanged, Original: c}
	}
	if p.ApplyScale {
		v *= scale.Multiplier()
	}
	return ParsedValue{Outcome: OutcomeParsed, Number: v, Original: c, Currency: cur, Scale: scale}
}

var cleaner = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", "%", "", ",", "")

func parseCleaned(text string) (float64, bool) {
	s := strings.Join(strings.Fields(cleaner.Replace(text)), "")
	if s == "" {
		return 0, false
	}
	// strconv also accepts hex floats, digit underscores, "inf" and "nan"; only
	// finite decimal text counts as a number.
	if strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
