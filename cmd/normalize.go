package cmd

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
	"github.com/KaramelBytes/tabloom-cli/internal/normalize"
	"github.com/KaramelBytes/tabloom-cli/internal/service"
)

var (
	normOutputPath string
	normFormat     string
	normExplain    bool
	normApplyScale bool
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>",
	Short: "Convert formatted numeric text columns to numbers",
	Long: `Detects text columns whose values look like formatted numbers ("$1,234.50", "€12M",
"45%") and rewrites them as numbers. Currency and magnitude suffixes are kept in
<column>_moneda and <column>_escala side columns.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := checkFormat(normFormat, "csv", "json", "yaml")
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("apply-scale") {
			cfg.ApplyScale = normApplyScale
		}
		a, err := newAnalyzer(nil)
		if err != nil {
			return err
		}
		res, err := a.Normalize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if normExplain {
			return explain(cmd, res, format)
		}

		var out []byte
		switch format {
		case "csv":
			out, err = encodeCSV(res.Dataset.Records())
		case "json":
			out, err = encodeJSON(rows(res.Dataset))
		case "yaml":
			out, err = encodeYAML(rows(res.Dataset))
		}
		if err != nil {
			return err
		}
		return emit(cmd, normOutputPath, out)
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().StringVarP(&normOutputPath, "output", "o", "", "optional path to write the normalized data")
	normalizeCmd.Flags().StringVar(&normFormat, "format", "csv", "output format: csv | json | yaml")
	normalizeCmd.Flags().BoolVar(&normExplain, "explain", false, "print per-column detection results instead of data")
	normalizeCmd.Flags().BoolVar(&normApplyScale, "apply-scale", false, "multiply values by their K/M/B suffix (overrides config)")
}

// rows renders every row as a record keyed by column name.
func rows(ds *dataset.Dataset) []map[string]any {
	return ds.Head(ds.Rows())
}

func explain(cmd *cobra.Command, res *service.NormalizeResult, format string) error {
	switch format {
	case "json":
		out, err := encodeJSON(res.Reports)
		if err != nil {
			return err
		}
		return emit(cmd, normOutputPath, out)
	case "yaml":
		out, err := encodeYAML(res.Reports)
		if err != nil {
			return err
		}
		return emit(cmd, normOutputPath, out)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "File: %s (%d rows)\n", res.Filename, res.Rows)
	fmt.Fprintf(&b, "Normalized: %d of %d text columns\n\n", service.Normalized(res.Reports), len(res.Reports))
	table := make([][]string, 0, len(res.Reports))
	for _, r := range res.Reports {
		table = append(table, explainRow(r))
	}
	mdTable(&b, []string{"Column", "Matches", "Ratio", "Normalized", "Numeric", "Unparsed", "Side columns"}, table)
	return emit(cmd, normOutputPath, b.Bytes())
}

func explainRow(r normalize.ColumnReport) []string {
	return []string{
		r.Column,
		fmt.Sprintf("%d/%d", r.Profile.MatchCount, r.Profile.SampleSize),
		strconv.FormatFloat(r.Profile.MatchRatio, 'f', 2, 64),
		strconv.FormatBool(r.Normalized),
		strconv.FormatBool(r.Numeric),
		strconv.Itoa(r.Unparsed),
		strings.Join(r.SideColumns, ", "),
	}
}
