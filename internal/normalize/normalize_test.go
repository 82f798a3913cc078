package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
)

func texts(vals ...string) []dataset.Cell {
	out := make([]dataset.Cell, len(vals))
	for i, v := range vals {
		out[i] = dataset.Text(v)
	}
	return out
}

func TestParseFormattedValues(t *testing.T) {
	var p Parser
	tests := []struct {
		in       string
		outcome  Outcome
		number   float64
		currency Currency
		scale    Scale
	}{
		{"$252.9B", OutcomeParsed, 252.9, "USD", "B"},
		{"1,234.56", OutcomeParsed, 1234.56, "", ""},
		{"  €12m ", OutcomeParsed, 12, "EUR", "M"},
		{"£ 3.5k", OutcomeParsed, 3.5, "GBP", "K"},
		{"¥1000", OutcomeParsed, 1000, "JPY", ""},
		{"45%", OutcomeParsed, 45, "", ""},
		{"$€5", OutcomeParsed, 5, "USD", ""},
		{"€$5", OutcomeParsed, 5, "USD", ""},
		{"-12.5", OutcomeParsed, -12.5, "", ""},
		{"abc", OutcomeUnchanged, 0, "", ""},
		{"n/a", OutcomeUnchanged, 0, "", ""},
		{"$", OutcomeUnchanged, 0, "", ""},
		{"12MB", OutcomeUnchanged, 0, "", ""},
		{"0x1p4", OutcomeUnchanged, 0, "", ""},
		{"$inf", OutcomeUnchanged, 0, "", ""},
		{"Infinity", OutcomeUnchanged, 0, "", ""},
		{"nan", OutcomeUnchanged, 0, "", ""},
		{"1e999", OutcomeUnchanged, 0, "", ""},
		{"   ", OutcomeMissing, 0, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := p.Parse(dataset.Text(tt.in))
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.Equal(t, tt.currency, got.Currency)
			assert.Equal(t, tt.scale, got.Scale)
			if tt.outcome == OutcomeParsed {
				assert.InDelta(t, tt.number, got.Number, 1e-9)
			}
		})
	}
}

func TestParseUnchangedKeepsOriginal(t *testing.T) {
	got := Parser{}.Parse(dataset.Text("abc"))
	assert.Equal(t, OutcomeUnchanged, got.Outcome)
	assert.Equal(t, "abc", got.Cell().String())
	assert.True(t, got.Cell().IsText())
}

func TestParseMissingAndNumeric(t *testing.T) {
	var p Parser
	got := p.Parse(dataset.Missing())
	assert.Equal(t, OutcomeMissing, got.Outcome)
	assert.True(t, got.Cell().IsMissing())

	got = p.Parse(dataset.Number(7.25))
	assert.Equal(t, OutcomeParsed, got.Outcome)
	assert.Equal(t, 7.25, got.Number)
	assert.Empty(t, got.Currency)
	assert.Empty(t, got.Scale)
}

func TestParseScaleIsMetadataUnlessApplied(t *testing.T) {
	got := Parser{}.Parse(dataset.Text("$252.9B"))
	assert.Equal(t, 252.9, got.Number)

	got = Parser{ApplyScale: true}.Parse(dataset.Text("$252.9B"))
	assert.InDelta(t, 252.9e9, got.Number, 1)
	assert.Equal(t, Scale("B"), got.Scale)
}

func TestMatches(t *testing.T) {
	for _, s := range []string{"$1,234.50", "€ 12", "12.5m", "45%", "1000", "¥3K"} {
		assert.True(t, Matches(s), s)
	}
	for _, s := range []string{"abc", "n/a", "$", "1.2.3", "-5", "12MB", ",12", "1.", "USD 5"} {
		assert.False(t, Matches(s), s)
	}
}

func TestDetectThreshold(t *testing.T) {
	d := NewDetector(DefaultOptions())

	six := dataset.NewColumn("c", texts("$1", "$2", "$3", "$4", "$5", "$6", "x", "y", "z", "w"))
	p := d.Detect(six)
	assert.Equal(t, 10, p.SampleSize)
	assert.Equal(t, 6, p.MatchCount)
	assert.True(t, p.Decision)

	five := dataset.NewColumn("c", texts("$1", "$2", "$3", "$4", "$5", "v", "x", "y", "z", "w"))
	p = d.Detect(five)
	assert.Equal(t, 5, p.MatchCount)
	assert.InDelta(t, 0.5, p.MatchRatio, 1e-12)
	assert.False(t, p.Decision, "exactly half does not trigger")
}

func TestDetectSampleIsLeadingNonMissing(t *testing.T) {
	cells := []dataset.Cell{dataset.Missing(), dataset.Text("a"), dataset.Missing()}
	for i := 0; i < 20; i++ {
		cells = append(cells, dataset.Text("$5"))
	}
	p := NewDetector(Options{SampleSize: 3}).Detect(dataset.NewColumn("c", cells))
	assert.Equal(t, 3, p.SampleSize)
	assert.Equal(t, 2, p.MatchCount)
	assert.True(t, p.Decision)
}

func TestDetectSkipsNumericAndEmpty(t *testing.T) {
	d := NewDetector(DefaultOptions())
	num := dataset.NewColumn("n", []dataset.Cell{dataset.Number(1)})
	assert.False(t, d.Detect(num).Decision)

	empty := dataset.NewColumn("e", []dataset.Cell{dataset.Missing(), dataset.Missing()})
	p := d.Detect(empty)
	assert.Equal(t, 0, p.SampleSize)
	assert.False(t, p.Decision)
}

func TestNormalizeRevenueScenario(t *testing.T) {
	ds := dataset.New("t",
		dataset.NewColumn("Revenue", texts("$1.2M", "$3.4M", "n/a")),
		dataset.NewColumn("Region", texts("North", "South", "East")),
	)
	n := New(DefaultOptions(), nil)
	out := n.Normalize(ds)
	require.Same(t, ds, out)

	assert.Equal(t, []string{"Revenue", "Region", "Revenue_moneda", "Revenue_escala"}, ds.Names())

	rev, _ := ds.Column("Revenue")
	assert.Equal(t, dataset.KindText, rev.Kind, "unparsed text keeps the column mixed")
	v0, _ := rev.Cells[0].Float()
	v1, _ := rev.Cells[1].Float()
	assert.Equal(t, 1.2, v0)
	assert.Equal(t, 3.4, v1)
	assert.Equal(t, "n/a", rev.Cells[2].String())

	cur, _ := ds.Column("Revenue_moneda")
	assert.Equal(t, "USD", cur.Cells[0].String())
	assert.Equal(t, "USD", cur.Cells[1].String())
	assert.True(t, cur.Cells[2].IsMissing())

	sc, _ := ds.Column("Revenue_escala")
	assert.Equal(t, "M", sc.Cells[0].String())
	assert.True(t, sc.Cells[2].IsMissing())

	region, _ := ds.Column("Region")
	assert.Equal(t, "North", region.Cells[0].String())
}

func TestNormalizeCoercesCleanColumnAndOmitsEmptySideColumns(t *testing.T) {
	ds := dataset.New("t",
		dataset.NewColumn("Amount", []dataset.Cell{
			dataset.Text("1,234.56"), dataset.Missing(), dataset.Text("12"),
		}),
	)
	reports := New(DefaultOptions(), nil).Apply(ds)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Normalized)
	assert.True(t, reports[0].Numeric)
	assert.Empty(t, reports[0].SideColumns)

	assert.Equal(t, []string{"Amount"}, ds.Names())
	amt, _ := ds.Column("Amount")
	assert.Equal(t, dataset.KindNumeric, amt.Kind)
	assert.True(t, amt.Cells[1].IsMissing())
}

func TestNormalizeSideColumnsAppendedAfterOriginals(t *testing.T) {
	ds := dataset.New("t",
		dataset.NewColumn("A", texts("$1K", "$2K")),
		dataset.NewColumn("B", texts("5%", "7%")),
		dataset.NewColumn("C", texts("€3", "€4")),
	)
	New(DefaultOptions(), nil).Normalize(ds)
	assert.Equal(t, []string{"A", "B", "C", "A_moneda", "A_escala", "C_moneda"}, ds.Names())
}

func TestNormalizeIsIdempotent(t *testing.T) {
	ds := dataset.New("t", dataset.NewColumn("Revenue", texts("$1.2M", "$3.4M", "n/a")))
	n := New(DefaultOptions(), nil)
	n.Normalize(ds)
	before := ds.Records()
	n.Normalize(ds)
	assert.Equal(t, before, ds.Records())
}

func TestInspectDoesNotMutate(t *testing.T) {
	ds := dataset.New("t", dataset.NewColumn("Revenue", texts("$1.2M", "$3.4M")))
	reports := New(DefaultOptions(), nil).Inspect(ds)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Normalized)
	assert.True(t, reports[0].Numeric)
	assert.Equal(t, []string{"Revenue_moneda", "Revenue_escala"}, reports[0].SideColumns)

	assert.Equal(t, []string{"Revenue"}, ds.Names())
	rev, _ := ds.Column("Revenue")
	assert.Equal(t, "$1.2M", rev.Cells[0].String())
}

func TestNormalizeSkipsBelowThreshold(t *testing.T) {
	ds := dataset.New("t", dataset.NewColumn("Notes", texts("$5", "hello", "world", "again")))
	reports := New(DefaultOptions(), nil).Apply(ds)
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Normalized)
	col, _ := ds.Column("Notes")
	assert.Equal(t, "$5", col.Cells[0].String())
	assert.Equal(t, []string{"Notes"}, ds.Names())
}

func TestNormalizeLeavesNonFiniteTextAlone(t *testing.T) {
	ds := dataset.New("x",
		dataset.NewColumn("Company", texts("Acme", "Beta", "Gamma")),
		dataset.NewColumn("Revenue", texts("$1,200", "$5M", "inf")),
	)
	New(DefaultOptions(), nil).Normalize(ds)

	rev, ok := ds.Column("Revenue")
	require.True(t, ok)
	assert.Equal(t, dataset.KindText, rev.Kind)
	assert.Equal(t, "inf", rev.Cells[2].String())
	assert.True(t, rev.Cells[2].IsText())

	_, err := json.Marshal(ds.Head(ds.Rows()))
	assert.NoError(t, err)
}
