// Package service composes loading, normalization and the analyses behind the CLI
// and the HTTP server.
package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabloom-cli/internal/analysis"
	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
	"github.com/KaramelBytes/tabloom-cli/internal/errors"
	"github.com/KaramelBytes/tabloom-cli/internal/logger"
	"github.com/KaramelBytes/tabloom-cli/internal/normalize"
	"github.com/KaramelBytes/tabloom-cli/internal/pareto"
)

// PreviewRows is the number of rows echoed back by Upload and Normalize.
const PreviewRows = 5

// Source opens a dataset by name.
type Source interface {
	Open(name string, opt dataset.Options) (*dataset.Dataset, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(name string, opt dataset.Options) (*dataset.Dataset, error)

// Open calls f.
func (f SourceFunc) Open(name string, opt dataset.Options) (*dataset.Dataset, error) {
	return f(name, opt)
}

// Files opens paths on the local filesystem.
var Files Source = SourceFunc(dataset.Load)

// Config wires an Analyzer.
type Config struct {
	// Source resolves file names. Defaults to Store when nil.
	Source     Source
	Store      *dataset.Store
	Load       dataset.Options
	Normalize  normalize.Options
	Thresholds pareto.Thresholds
	Profile    analysis.Options
	Logger     *zap.Logger
}

// Analyzer runs the load, normalize and analyze pipeline for one file at a time.
type Analyzer struct {
	source     Source
	store      *dataset.Store
	load       dataset.Options
	normalizer *normalize.Normalizer
	classifier *pareto.Classifier
	profile    analysis.Options
	logger     *zap.Logger
}

// New validates cfg and builds an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Source == nil {
		if cfg.Store == nil {
			return nil, errors.New("service: a source or a store is required")
		}
		cfg.Source = cfg.Store
	}
	if cfg.Thresholds == (pareto.Thresholds{}) {
		cfg.Thresholds = pareto.DefaultThresholds()
	}
	if cfg.Profile == (analysis.Options{}) {
		cfg.Profile = analysis.DefaultOptions()
	}
	cls, err := pareto.NewClassifier(cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger.With(zap.String(logger.FieldComponent, "analyzer"))
	return &Analyzer{
		source:     cfg.Source,
		store:      cfg.Store,
		load:       cfg.Load,
		normalizer: normalize.New(cfg.Normalize, log),
		classifier: cls,
		profile:    cfg.Profile,
		logger:     log,
	}, nil
}

// UploadSummary describes a freshly stored file.
type UploadSummary struct {
	Filename string           `json:"filename" yaml:"filename"`
	Rows     int              `json:"rows" yaml:"rows"`
	Columns  []string         `json:"columns" yaml:"columns"`
	Preview  []map[string]any `json:"preview" yaml:"preview"`
}

// NormalizeResult is a normalized dataset with its per-column reports.
type NormalizeResult struct {
	Filename string                   `json:"filename" yaml:"filename"`
	Rows     int                      `json:"rows" yaml:"rows"`
	Columns  []string                 `json:"columns" yaml:"columns"`
	Reports  []normalize.ColumnReport `json:"reports" yaml:"reports"`
	Preview  []map[string]any         `json:"preview" yaml:"preview"`
	Dataset  *dataset.Dataset         `json:"-" yaml:"-"`
}

// Upload stores r under name and returns a summary of its contents. A file that
// cannot be parsed is discarded and any earlier upload of the same name is kept.
func (a *Analyzer) Upload(ctx context.Context, name string, r io.Reader) (sum *UploadSummary, err error) {
	defer errors.Recover(&err)
	if a.store == nil {
		return nil, errors.New("uploads need a dataset store")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := a.run("upload", name)
	start := time.Now()
	st, err := a.store.Stage(name, r)
	if err != nil {
		return nil, a.fail(log, err)
	}
	ds, err := dataset.Load(st.Path(), a.load)
	if err != nil {
		if dErr := st.Discard(); dErr != nil {
			log.Warn("discard unreadable upload", zap.Error(dErr))
		}
		return nil, a.fail(log, err)
	}
	if _, err := st.Commit(); err != nil {
		return nil, a.fail(log, err)
	}
	sum = &UploadSummary{
		Filename: ds.Name,
		Rows:     ds.Rows(),
		Columns:  ds.Names(),
		Preview:  Preview(ds, PreviewRows),
	}
	log.Info("file uploaded", zap.Int("rows", sum.Rows), zap.Int("columns", len(sum.Columns)), since(start))
	return sum, nil
}

// Normalize loads name and rewrites its formatted numeric columns.
func (a *Analyzer) Normalize(ctx context.Context, name string) (res *NormalizeResult, err error) {
	defer errors.Recover(&err)
	log := a.run("normalize", name)
	start := time.Now()
	ds, err := a.open(ctx, name)
	if err != nil {
		return nil, a.fail(log, err)
	}
	reports := a.normalizer.Apply(ds)
	res = &NormalizeResult{
		Filename: ds.Name,
		Rows:     ds.Rows(),
		Columns:  ds.Names(),
		Reports:  reports,
		Preview:  Preview(ds, PreviewRows),
		Dataset:  ds,
	}
	log.Info("dataset normalized", zap.Int("normalized", Normalized(reports)), since(start))
	return res, nil
}

// Pareto loads and normalizes name, then classifies column.
func (a *Analyzer) Pareto(ctx context.Context, name, column string) (res *pareto.Result, err error) {
	defer errors.Recover(&err)
	log := a.run("pareto", name).With(zap.String(logger.FieldColumn, column))
	start := time.Now()
	ds, err := a.open(ctx, name)
	if err != nil {
		return nil, a.fail(log, err)
	}
	a.normalizer.Normalize(ds)
	res, err = a.classifier.Classify(ds, column)
	if err != nil {
		return nil, a.fail(log, err)
	}
	log.Info("pareto classified", zap.Int("items", len(res.Items)), since(start))
	return res, nil
}

// Profile loads and normalizes name, then summarizes every column.
func (a *Analyzer) Profile(ctx context.Context, name string) (rep *analysis.Report, err error) {
	defer errors.Recover(&err)
	log := a.run("profile", name)
	start := time.Now()
	ds, err := a.open(ctx, name)
	if err != nil {
		return nil, a.fail(log, err)
	}
	a.normalizer.Normalize(ds)
	rep = analysis.Profile(ds, a.profile)
	log.Info("dataset profiled", zap.Int("columns", len(rep.Cols)), since(start))
	return rep, nil
}

// Frequencies loads and normalizes name, then counts the values of column.
func (a *Analyzer) Frequencies(ctx context.Context, name, column string) (f *analysis.Frequencies, err error) {
	defer errors.Recover(&err)
	log := a.run("frequencies", name).With(zap.String(logger.FieldColumn, column))
	start := time.Now()
	ds, err := a.open(ctx, name)
	if err != nil {
		return nil, a.fail(log, err)
	}
	a.normalizer.Normalize(ds)
	f, err = analysis.Frequency(ds, column, analysis.DefaultBins)
	if err != nil {
		return nil, a.fail(log, err)
	}
	log.Info("frequencies computed", zap.String("kind", f.Kind), since(start))
	return f, nil
}

// Files lists stored file names.
func (a *Analyzer) Files() ([]string, error) {
	if a.store == nil {
		return nil, errors.New("no dataset store configured")
	}
	return a.store.List()
}

func (a *Analyzer) open(ctx context.Context, name string) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.source.Open(name, a.load)
}

func (a *Analyzer) run(op, name string) *zap.Logger {
	return a.logger.With(
		zap.String(logger.FieldRunID, uuid.NewString()),
		zap.String("op", op),
		zap.String(logger.FieldFile, name),
	)
}

func (a *Analyzer) fail(log *zap.Logger, err error) error {
	kind := errors.KindOf(err)
	if kind == errors.KindInternal {
		log.Error("operation failed", zap.Error(err))
	} else {
		log.Info("operation rejected", zap.String("kind", string(kind)), zap.Error(err))
	}
	return err
}

func since(start time.Time) zap.Field {
	return zap.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds())
}

// Preview renders the first n rows with missing cells shown as "null".
func Preview(ds *dataset.Dataset, n int) []map[string]any {
	rows := ds.Head(n)
	for _, rec := range rows {
		for k, v := range rec {
			if v == nil {
				rec[k] = "null"
			}
		}
	}
	return rows
}

// Normalized counts the reports whose column was rewritten.
func Normalized(reports []normalize.ColumnReport) int {
	n := 0
	for _, r := range reports {
		if r.Normalized {
			n++
		}
	}
	return n
}
