package normalize

import (
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
)

// Side column suffixes.
const (
	CurrencySuffix = "_moneda"
	ScaleSuffix    = "_escala"
)

// ColumnReport describes what normalization did, or would do, to one text column.
type ColumnReport struct {
	Column     string        `json:"column" yaml:"column"`
	Profile    ColumnProfile `json:"profile" yaml:"profile"`
	Normalized bool          `json:"normalized" yaml:"normalized"`
	// Unparsed counts non-missing cells kept as text.
	Unparsed    int      `json:"unparsed" yaml:"unparsed"`
	Numeric     bool     `json:"numeric" yaml:"numeric"`
	SideColumns []string `json:"side_columns,omitempty" yaml:"side_columns,omitempty"`
}

// Normalizer applies the Detector and Parser to every text column of a dataset.
type Normalizer struct {
	detector *Detector
	parser   Parser
	logger   *zap.Logger
}

// New builds a Normalizer. A nil logger disables logging.
func New(opt Options, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		detector: NewDetector(opt),
		parser:   Parser{ApplyScale: opt.ApplyScale},
		logger:   logger.With(zap.String("component", "normalize")),
	}
}

// Normalize rewrites formatted numeric text columns of ds in place and returns ds.
func (n *Normalizer) Normalize(ds *dataset.Dataset) *dataset.Dataset {
	n.Apply(ds)
	return ds
}

// Apply is Normalize returning a report per text column.
func (n *Normalizer) Apply(ds *dataset.Dataset) []ColumnReport {
	return n.run(ds, true)
}

// Inspect returns the reports Apply would produce without touching ds.
func (n *Normalizer) Inspect(ds *dataset.Dataset) []ColumnReport {
	return n.run(ds, false)
}

func (n *Normalizer) run(ds *dataset.Dataset, mutate bool) []ColumnReport {
	var (
		reports []ColumnReport
		side    []*dataset.Column
	)
	for _, col := range ds.Columns() {
		if col.Kind != dataset.KindText {
			continue
		}
		rep := ColumnReport{Column: col.Name, Profile: n.detector.Detect(col)}
		if !rep.Profile.Decision {
			reports = append(reports, rep)
			continue
		}
		rep.Normalized = true

		values := make([]dataset.Cell, len(col.Cells))
		currencies := make([]dataset.Cell, len(col.Cells))
		scales := make([]dataset.Cell, len(col.Cells))
		var hasCurrency, hasScale bool
		for i, c := range col.Cells {
			pv := n.parser.Parse(c)
			values[i] = pv.Cell()
			if pv.Outcome == OutcomeUnchanged {
				rep.Unparsed++
			}
			if pv.Currency != "" {
				currencies[i] = dataset.Text(string(pv.Currency))
				hasCurrency = true
			}
			if pv.Scale != "" {
				scales[i] = dataset.Text(string(pv.Scale))
				hasScale = true
			}
		}
		if hasCurrency {
			side = append(side, dataset.NewColumn(col.Name+CurrencySuffix, currencies))
			rep.SideColumns = append(rep.SideColumns, col.Name+CurrencySuffix)
		}
		if hasScale {
			side = append(side, dataset.NewColumn(col.Name+ScaleSuffix, scales))
			rep.SideColumns = append(rep.SideColumns, col.Name+ScaleSuffix)
		}

		target := col
		if !mutate {
			target = &dataset.Column{Name: col.Name}
		}
		target.Cells = values
		rep.Numeric = target.Coerce()
		reports = append(reports, rep)

		n.logger.Debug("column normalized",
			zap.String("column", col.Name),
			zap.Int("sample_size", rep.Profile.SampleSize),
			zap.Int("match_count", rep.Profile.MatchCount),
			zap.Bool("numeric", rep.Numeric),
			zap.Int("unparsed", rep.Unparsed),
			zap.Strings("side_columns", rep.SideColumns),
			zap.Bool("dry_run", !mutate),
		)
	}
	if mutate {
		for _, c := range side {
			ds.Set(c)
		}
	}
	return reports
}
