package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
	"github.com/KaramelBytes/tabloom-cli/internal/errors"
)

var csvRows = []string{
	"Group;Score;Category;Note;Blank",
	"A;10,0;alpha;first;",
	"A;11,0;alpha;second;",
	"A;9,5;beta;third;",
	"B;10,5;alpha;fourth;",
	"B;9,8;beta;fifth;",
	"B;10,2;alpha;sixth;",
	"A;8,8;gamma;seventh;",
	"B;9,7;beta;eighth;",
	"A;50,0;alpha;ninth;",
}

var scores = []float64{10, 11, 9.5, 10.5, 9.8, 10.2, 8.8, 9.7, 50}

// fixture builds the dataset by hand; locale decimals are not a loader concern.
func fixture(t *testing.T) *dataset.Dataset {
	t.Helper()
	header := strings.Split(csvRows[0], ";")
	cols := make([][]dataset.Cell, len(header))
	for _, line := range csvRows[1:] {
		for j, raw := range strings.Split(line, ";") {
			switch {
			case raw == "":
				cols[j] = append(cols[j], dataset.Missing())
			case header[j] == "Score":
				var v float64
				_, err := fmt.Sscanf(strings.Replace(raw, ",", ".", 1), "%g", &v)
				require.NoError(t, err)
				cols[j] = append(cols[j], dataset.Number(v))
			default:
				cols[j] = append(cols[j], dataset.Text(raw))
			}
		}
	}
	out := make([]*dataset.Column, len(header))
	for j, name := range header {
		out[j] = dataset.NewColumn(name, cols[j])
	}
	return dataset.New("lab.csv", out...)
}

func TestProfileKindsAndStats(t *testing.T) {
	rep := Profile(fixture(t), DefaultOptions())
	assert.Equal(t, "lab.csv", rep.Name)
	assert.Equal(t, 9, rep.Rows)
	require.Len(t, rep.Cols, 5)

	score := columnByName(t, rep, "Score")
	assert.Equal(t, "numeric", score.Kind)
	checkStats(t, score, scores)
	wantCnt, wantMax := robustOutlierStats(scores, 3.5)
	assert.Equal(t, wantCnt, score.OutliersCount)
	assert.Equal(t, 1, score.OutliersCount)
	assert.InDelta(t, wantMax, score.OutliersMaxAbsZ, 1e-9)

	cat := columnByName(t, rep, "Category")
	assert.Equal(t, "categorical", cat.Kind)
	assert.Equal(t, 3, cat.Unique)
	assert.Equal(t, []CategoryCount{{"alpha", 5}, {"beta", 3}, {"gamma", 1}}, cat.TopValues)

	assert.Equal(t, "categorical", columnByName(t, rep, "Group").Kind)

	note := columnByName(t, rep, "Note")
	assert.Equal(t, "text", note.Kind)
	assert.Equal(t, []string{"first", "second", "third"}, note.ExampleTexts)

	blank := columnByName(t, rep, "Blank")
	assert.Equal(t, "empty", blank.Kind)
	assert.Equal(t, 9, blank.Missing)

	require.Len(t, rep.Samples, 5)
	assert.Equal(t, []string{"A", "10", "alpha", "first", ""}, rep.Samples[0])
}

func TestProfileOutliersNeedEightValues(t *testing.T) {
	ds := dataset.New("x", dataset.NewColumn("v", []dataset.Cell{
		dataset.Number(1), dataset.Number(1.1), dataset.Number(0.9), dataset.Number(100),
	}))
	col := Profile(ds, DefaultOptions()).Cols[0]
	assert.Equal(t, "numeric", col.Kind)
	assert.Zero(t, col.OutlierThreshold)
	assert.Zero(t, col.OutliersCount)
}

func TestProfileMixedColumnWarning(t *testing.T) {
	ds := dataset.New("x", dataset.NewColumn("m", []dataset.Cell{
		dataset.Text("n/a"), dataset.Number(3), dataset.Text("n/a"),
	}))
	rep := Profile(ds, DefaultOptions())
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "m")
}

func TestNonFiniteValuesAreSkipped(t *testing.T) {
	col := dataset.NewColumn("v", []dataset.Cell{
		dataset.Number(1), dataset.Number(math.Inf(1)), dataset.Number(3), dataset.Number(math.NaN()),
	})
	ds := dataset.New("x", col)

	s := Profile(ds, DefaultOptions()).Cols[0]
	assert.Equal(t, "numeric", s.Kind)
	assert.Equal(t, 4, s.NonNull)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)
	assert.Equal(t, 2.0, s.Mean)

	f, err := Frequency(ds, "v", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"1-2", "2-3"}, f.Labels)
	assert.Equal(t, []int{1, 1}, f.Counts)
}

func TestMedianMAD(t *testing.T) {
	med, mad := medianMAD([]float64{4, 1, 3, 2})
	assert.Equal(t, 2.5, med)
	assert.Equal(t, 1.0, mad)
	med, mad = medianMAD([]float64{5, 1, 9})
	assert.Equal(t, 5.0, med)
	assert.Equal(t, 4.0, mad)
}

func TestMarkdown(t *testing.T) {
	md := Profile(fixture(t), DefaultOptions()).Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: lab.csv",
		"Rows: 9",
		"Columns: 5",
		"- Score: numeric",
		"outliers: 1 above |z|>3.5",
		"- Category: categorical",
		"alpha(5), beta(3), gamma(1)",
		"- Blank: empty (non-null 0, missing 100.0%)",
		"[HEAD AND SAMPLE ROWS]",
		"| Group | Score | Category | Note | Blank |",
	} {
		assert.Contains(t, md, want)
	}
	assert.NotContains(t, md, "[NOTES]")
}

func TestSafeVal(t *testing.T) {
	assert.Equal(t, "a/b c", safeVal("a|b\nc"))
	assert.Equal(t, "(unnamed)", safeName("  "))
}

func TestFrequencyHistogram(t *testing.T) {
	cells := []dataset.Cell{dataset.Missing()}
	for i := 0; i <= 10; i++ {
		cells = append(cells, dataset.Number(float64(i)))
	}
	f, err := Frequency(dataset.New("x", dataset.NewColumn("n", cells)), "n", 0)
	require.NoError(t, err)
	assert.Equal(t, "numeric", f.Kind)
	require.Len(t, f.Labels, DefaultBins)
	assert.Equal(t, "0-1", f.Labels[0])
	assert.Equal(t, "9-10", f.Labels[9])
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 2}, f.Counts)
}

func TestFrequencyConstantSeries(t *testing.T) {
	col := dataset.NewColumn("n", []dataset.Cell{dataset.Number(5), dataset.Number(5)})
	f, err := Frequency(dataset.New("x", col), "n", 4)
	require.NoError(t, err)
	require.Len(t, f.Counts, 4)
	total := 0
	for _, c := range f.Counts {
		total += c
	}
	assert.Equal(t, 2, total)
}

func TestFrequencyCategorical(t *testing.T) {
	var cells []dataset.Cell
	for i := 0; i < 25; i++ {
		cells = append(cells, dataset.Text(fmt.Sprintf("v%02d", i)))
	}
	cells = append(cells, dataset.Text("v24"), dataset.Text("v03"), dataset.Text("v24"), dataset.Missing())
	f, err := Frequency(dataset.New("x", dataset.NewColumn("c", cells)), "c", 0)
	require.NoError(t, err)
	assert.Equal(t, "categorical", f.Kind)
	require.Len(t, f.Labels, MaxCategories)
	assert.Equal(t, []string{"v24", "v03", "v00", "v01"}, f.Labels[:4])
	assert.Equal(t, []int{3, 2, 1, 1}, f.Counts[:4])
}

func TestFrequencyMissingColumn(t *testing.T) {
	_, err := Frequency(fixture(t), "nope", 0)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestFrequencyEmptyNumeric(t *testing.T) {
	col := &dataset.Column{Name: "n", Kind: dataset.KindNumeric, Cells: []dataset.Cell{dataset.Missing()}}
	f, err := Frequency(dataset.New("x", col), "n", 0)
	require.NoError(t, err)
	assert.Empty(t, f.Labels)
	assert.NotNil(t, f.Counts)
}

func columnByName(t *testing.T, rep *Report, name string) ColumnSummary {
	t.Helper()
	for _, c := range rep.Cols {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %q not in report", name)
	return ColumnSummary{}
}

func checkStats(t *testing.T, col ColumnSummary, vals []float64) {
	t.Helper()
	assert.Equal(t, len(vals), col.NonNull)
	assert.InDelta(t, minFloat(vals), col.Min, 1e-6)
	assert.InDelta(t, maxFloat(vals), col.Max, 1e-6)
	assert.InDelta(t, mean(vals), col.Mean, 1e-6)
	assert.InDelta(t, sampleStd(vals), col.Std, 1e-6)
}

func robustOutlierStats(vals []float64, threshold float64) (count int, maxAbs float64) {
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	med := quantileValue(cp, 0.5)
	devs := make([]float64, len(cp))
	for i, v := range cp {
		devs[i] = math.Abs(v - med)
	}
	sort.Float64s(devs)
	mad := quantileValue(devs, 0.5)
	if mad == 0 {
		return 0, 0
	}
	for _, v := range cp {
		az := math.Abs(0.6745 * (v - med) / mad)
		if az > threshold {
			count++
		}
		if az > maxAbs {
			maxAbs = az
		}
	}
	return
}

func quantileValue(sortedVals []float64, q float64) float64 {
	pos := q * float64(len(sortedVals)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	w := pos - float64(lo)
	return sortedVals[lo]*(1-w) + sortedVals[hi]*w
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	var sum float64
	for _, v := range vals {
		diff := v - m
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(vals)-1))
}

func minFloat(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Min(m, v)
	}
	return m
}

func maxFloat(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Max(m, v)
	}
	return m
}
