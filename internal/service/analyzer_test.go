package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
	"github.com/KaramelBytes/tabloom-cli/internal/errors"
	"github.com/KaramelBytes/tabloom-cli/internal/pareto"
)

const salesCSV = "Defect,Revenue,Note\n" +
	"A,$1.2M,\n" +
	"A,$500K,x\n" +
	"A,€3,x\n" +
	"B,$10,y\n" +
	"C,20,y\n"

func newAnalyzer(t *testing.T) (*Analyzer, *observer.ObservedLogs) {
	t.Helper()
	store, err := dataset.NewStore(filepath.Join(t.TempDir(), "data"), 1<<20)
	require.NoError(t, err)
	core, logs := observer.New(zapcore.DebugLevel)
	a, err := New(Config{Store: store, Load: dataset.DefaultOptions(), Logger: zap.New(core)})
	require.NoError(t, err)
	return a, logs
}

func upload(t *testing.T, a *Analyzer) {
	t.Helper()
	_, err := a.Upload(context.Background(), "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)
}

func TestNewNeedsSource(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Source: Files, Thresholds: pareto.Thresholds{A: 90, B: 10}})
	assert.True(t, errors.IsValidation(err))
}

func TestUpload(t *testing.T) {
	a, logs := newAnalyzer(t)
	sum, err := a.Upload(context.Background(), "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	assert.Equal(t, "sales.csv", sum.Filename)
	assert.Equal(t, 5, sum.Rows)
	assert.Equal(t, []string{"Defect", "Revenue", "Note"}, sum.Columns)
	require.Len(t, sum.Preview, PreviewRows)
	assert.Equal(t, "null", sum.Preview[0]["Note"])
	assert.Equal(t, "$1.2M", sum.Preview[0]["Revenue"])
	assert.Equal(t, "20", sum.Preview[4]["Revenue"], "mixed columns load as text")

	entries := logs.FilterMessage("file uploaded").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotEmpty(t, fields["run_id"])
	assert.Equal(t, "sales.csv", fields["file"])

	names, err := a.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"sales.csv"}, names)
}

func TestUploadRejects(t *testing.T) {
	a, _ := newAnalyzer(t)
	ctx := context.Background()

	_, err := a.Upload(ctx, "notes.pdf", strings.NewReader("x"))
	assert.True(t, errors.IsValidation(err))

	_, err = a.Upload(ctx, "broken.xlsx", strings.NewReader("not a workbook"))
	assert.True(t, errors.IsValidation(err))
	names, err := a.Files()
	require.NoError(t, err)
	assert.Empty(t, names, "unreadable uploads are removed")

	noStore, err := New(Config{Source: Files})
	require.NoError(t, err)
	_, err = noStore.Upload(ctx, "a.csv", strings.NewReader("x\n"))
	assert.Error(t, err)
}

func TestFailedReuploadKeepsPreviousFile(t *testing.T) {
	a, _ := newAnalyzer(t)
	ctx := context.Background()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Defect", "Cost"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Scratch", "$1.2K"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"Dent", "$300"}))
	var book bytes.Buffer
	require.NoError(t, f.Write(&book))

	_, err := a.Upload(ctx, "book.xlsx", &book)
	require.NoError(t, err)

	_, err = a.Upload(ctx, "book.xlsx", strings.NewReader("not a workbook"))
	require.True(t, errors.IsValidation(err))

	res, err := a.Normalize(ctx, "book.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	names, err := a.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"book.xlsx"}, names)
}

func TestNormalize(t *testing.T) {
	a, _ := newAnalyzer(t)
	upload(t, a)

	res, err := a.Normalize(context.Background(), "sales.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"Defect", "Revenue", "Note", "Revenue_moneda", "Revenue_escala"}, res.Columns)
	assert.Equal(t, 1, Normalized(res.Reports))

	col, ok := res.Dataset.Column("Revenue")
	require.True(t, ok)
	assert.Equal(t, dataset.KindNumeric, col.Kind)
	assert.Equal(t, 1.2, res.Preview[0]["Revenue"])
	assert.Equal(t, "USD", res.Preview[0]["Revenue_moneda"])
	assert.Equal(t, "M", res.Preview[0]["Revenue_escala"])
	assert.Equal(t, "EUR", res.Preview[2]["Revenue_moneda"])
	assert.Equal(t, "null", res.Preview[2]["Revenue_escala"])
}

func TestPareto(t *testing.T) {
	a, logs := newAnalyzer(t)
	upload(t, a)

	res, err := a.Pareto(context.Background(), "sales.csv", "Defect")
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalRecords)
	require.Len(t, res.Items, 3)
	assert.Equal(t, pareto.TierA, res.Items[1].Tier)
	assert.Equal(t, pareto.TierC, res.Items[2].Tier)
	assert.Equal(t, 1, logs.FilterMessage("pareto classified").Len())

	res, err = a.Pareto(context.Background(), "sales.csv", "Revenue")
	require.NoError(t, err)
	assert.Equal(t, "1.2", res.Items[0].Label)
}

func TestParetoErrors(t *testing.T) {
	a, logs := newAnalyzer(t)
	upload(t, a)
	ctx := context.Background()

	_, err := a.Pareto(ctx, "sales.csv", "Region")
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, 1, logs.FilterMessage("operation rejected").Len())

	_, err = a.Pareto(ctx, "missing.csv", "Defect")
	assert.True(t, errors.IsNotFound(err))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = a.Pareto(canceled, "sales.csv", "Defect")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProfileAndFrequencies(t *testing.T) {
	a, _ := newAnalyzer(t)
	upload(t, a)
	ctx := context.Background()

	rep, err := a.Profile(ctx, "sales.csv")
	require.NoError(t, err)
	require.Len(t, rep.Cols, 5)
	assert.Equal(t, "numeric", rep.Cols[1].Kind)

	f, err := a.Frequencies(ctx, "sales.csv", "Revenue")
	require.NoError(t, err)
	assert.Equal(t, "numeric", f.Kind)

	f, err = a.Frequencies(ctx, "sales.csv", "Defect")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, f.Labels)
	assert.Equal(t, []int{3, 1, 1}, f.Counts)

	_, err = a.Frequencies(ctx, "sales.csv", "Nope")
	assert.True(t, errors.IsValidation(err))
}

func TestPanicBecomesInternalError(t *testing.T) {
	boom := SourceFunc(func(string, dataset.Options) (*dataset.Dataset, error) {
		panic("boom")
	})
	a, err := New(Config{Source: boom})
	require.NoError(t, err)
	_, err = a.Profile(context.Background(), "x.csv")
	require.Error(t, err)
	assert.Equal(t, errors.KindInternal, errors.KindOf(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestFilesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.csv")
	require.NoError(t, os.WriteFile(path, []byte("k\na\na\nb\n"), 0o644))

	a, err := New(Config{Source: Files})
	require.NoError(t, err)
	res, err := a.Pareto(context.Background(), path, "k")
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalRecords)
	_, err = a.Files()
	assert.Error(t, err)
}
