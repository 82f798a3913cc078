package cmd

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabloom-cli/internal/pareto"
)

var (
	parColumn     string
	parOutputPath string
	parFormat     string
	parTierA      float64
	parTierB      float64
)

var paretoCmd = &cobra.Command{
	Use:   "pareto <file>",
	Short: "Rank a column's values by frequency and assign ABC tiers",
	Long: `Counts the distinct values of a column after normalization, orders them by
frequency and assigns tier A up to 80% cumulative share, B up to 95%, and C beyond.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := checkFormat(parFormat, "markdown", "json", "yaml", "csv")
		if err != nil {
			return err
		}
		f := cmd.Flags()
		if f.Changed("tier-a") {
			cfg.ParetoTierA = parTierA
		}
		if f.Changed("tier-b") {
			cfg.ParetoTierB = parTierB
		}
		a, err := newAnalyzer(nil)
		if err != nil {
			return err
		}
		res, err := a.Pareto(cmd.Context(), args[0], parColumn)
		if err != nil {
			return err
		}

		var out []byte
		switch format {
		case "json":
			out, err = encodeJSON(res)
		case "yaml":
			out, err = encodeYAML(res)
		case "csv":
			out, err = encodeCSV(paretoRecords(res, true))
		default:
			out = paretoMarkdown(res)
		}
		if err != nil {
			return err
		}
		return emit(cmd, parOutputPath, out)
	},
}

func init() {
	rootCmd.AddCommand(paretoCmd)
	paretoCmd.Flags().StringVarP(&parColumn, "column", "c", "", "column to classify (required)")
	paretoCmd.Flags().StringVarP(&parOutputPath, "output", "o", "", "optional path to write the result")
	paretoCmd.Flags().StringVar(&parFormat, "format", "markdown", "output format: markdown | json | yaml | csv")
	paretoCmd.Flags().Float64Var(&parTierA, "tier-a", 80, "cumulative % upper bound of tier A (overrides config)")
	paretoCmd.Flags().Float64Var(&parTierB, "tier-b", 95, "cumulative % upper bound of tier B (overrides config)")
	_ = paretoCmd.MarkFlagRequired("column")
}

func paretoRecords(res *pareto.Result, header bool) [][]string {
	out := make([][]string, 0, len(res.Items)+1)
	if header {
		out = append(out, []string{"label", "frequency", "percentage", "cumulative", "tier"})
	}
	for _, it := range res.Items {
		out = append(out, []string{
			it.Label,
			strconv.Itoa(it.Frequency),
			strconv.FormatFloat(it.Percentage, 'f', 2, 64),
			strconv.FormatFloat(it.Cumulative, 'f', 2, 64),
			string(it.Tier),
		})
	}
	return out
}

func paretoMarkdown(res *pareto.Result) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[PARETO] %s\n", res.Column)
	fmt.Fprintf(&b, "Records: %d (classified %d)\n\n", res.TotalRecords, res.ClassifiedRecords)
	mdTable(&b, []string{"Label", "Frequency", "%", "Cumulative %", "Tier"}, paretoRecords(res, false))
	b.WriteString("\n[TIERS]\n")
	for _, s := range res.Summary() {
		fmt.Fprintf(&b, "- %s: %d values, %d records (%.1f%%)\n", s.Tier, s.Labels, s.Records, s.Share)
	}
	return b.Bytes()
}
