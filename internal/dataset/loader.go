package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/tabloom-cli/internal/errors"
)

// DefaultNAValues are the cell texts treated as missing on load.
var DefaultNAValues = []string{
	"NA", "N/A", "n/a", "NaN", "nan", "-NaN", "-nan", "null", "NULL", "None", "#N/A", "<NA>",
}

// Options controls how a file is read into a Dataset.
type Options struct {
	// Delimiter for CSV. If 0, sniffed from the file head.
	Delimiter rune
	// Encoding of CSV input: "utf-8" (default), "latin-1" or "windows-1252".
	Encoding string
	// SheetName selects an XLSX sheet (case-insensitive). Takes precedence over SheetIndex.
	SheetName string
	// SheetIndex is the 1-based XLSX sheet index; <= 0 means the first sheet.
	SheetIndex int
	// NAValues replaces DefaultNAValues when non-nil.
	NAValues []string
}

// DefaultOptions returns loader defaults.
func DefaultOptions() Options {
	return Options{Encoding: "utf-8", SheetIndex: 1}
}

func (o Options) naSet() map[string]struct{} {
	vals := o.NAValues
	if vals == nil {
		vals = DefaultNAValues
	}
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	return set
}

// Loader reads one file format into a Dataset.
type Loader interface {
	CanLoad(filename string) bool
	Load(path string, opt Options) (*Dataset, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// Load selects a loader based on the file extension and reads the file.
func Load(path string, opt Options) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("file %q not found", filepath.Base(path))
		}
		return nil, errors.Wrap(err, "stat dataset")
	}
	for _, l := range registry {
		if l.CanLoad(path) {
			return l.Load(path, opt)
		}
	}
	return nil, errors.Validationf("unsupported format %q (use .csv, .tsv or .xlsx)", filepath.Ext(path))
}

// Supported reports whether some loader accepts the filename.
func Supported(filename string) bool {
	for _, l := range registry {
		if l.CanLoad(filename) {
			return true
		}
	}
	return false
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}

// fromRecords builds a dataset from a header row and data rows. Each column loads as
// numeric when all its non-missing cells parse as floats.
func fromRecords(name string, header []string, rows [][]string, opt Options) *Dataset {
	na := opt.naSet()
	ncol := len(header)
	cols := make([]*Column, ncol)
	seen := map[string]int{}
	for j := 0; j < ncol; j++ {
		cells := make([]Cell, len(rows))
		for i, rec := range rows {
			if j < len(rec) {
				cells[i] = ParseCell(rec[j], na)
			}
		}
		cols[j] = NewColumn(uniqueName(columnName(header, j), seen), inferNumeric(cells))
	}
	return New(name, cols...)
}

func columnName(header []string, j int) string {
	name := strings.TrimSpace(header[j])
	if name == "" {
		return "Unnamed: " + strconv.Itoa(j)
	}
	return name
}

// uniqueName suffixes repeated header names with ".1", ".2", ...
func uniqueName(name string, seen map[string]int) string {
	n, dup := seen[name]
	seen[name] = n + 1
	if !dup {
		return name
	}
	for {
		cand := name + "." + strconv.Itoa(n)
		if _, taken := seen[cand]; !taken {
			seen[cand] = 1
			return cand
		}
		n++
	}
}

func inferNumeric(cells []Cell) []Cell {
	nums := make([]float64, len(cells))
	for i, c := range cells {
		if !c.IsText() {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(c.text), 64)
		// "inf" and "nan" stay text.
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return cells
		}
		nums[i] = v
	}
	for i, c := range cells {
		if c.IsText() {
			cells[i] = Number(nums[i])
		}
	}
	return cells
}
