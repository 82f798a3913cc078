package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabloom-cli/internal/analysis"
	"github.com/KaramelBytes/tabloom-cli/internal/errors"
	"github.com/KaramelBytes/tabloom-cli/internal/service"
	"github.com/KaramelBytes/tabloom-cli/internal/utils"
)

var (
	anaOutputPath  string
	anaOutDir      string
	anaFormat      string
	anaSampleRows  int
	anaOutliers    bool
	anaOutlierThr  float64
	anaFrequencies string
	anaBins        int
	anaQuiet       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <files...>",
	Short: "Profile CSV/TSV/XLSX files after normalization",
	Long: `Profiles each column (kind, missing values, numeric stats with robust outlier
counts, top categories). Accepts several files or glob patterns; use --out-dir to
write one summary per file. --frequencies prints chart-ready counts for one column.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := checkFormat(anaFormat, "markdown", "json", "yaml")
		if err != nil {
			return err
		}
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if anaOutputPath != "" && len(files) > 1 {
			return errors.Validationf("--output takes a single input file; use --out-dir for %d files", len(files))
		}

		a, err := newAnalyzer(nil)
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		opt.SampleRows = anaSampleRows
		if cmd.Flags().Changed("outliers") {
			opt.Outliers = anaOutliers
		}
		if anaOutlierThr > 0 {
			opt.OutlierThreshold = anaOutlierThr
		}

		used := map[string]int{}
		total := len(files)
		for i, path := range files {
			if total > 1 && !anaQuiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			out, err := analyzeOne(cmd, a, path, opt, format)
			if err != nil {
				return err
			}
			dest := anaOutputPath
			if anaOutDir != "" {
				if err := utils.EnsureDir(anaOutDir); err != nil {
					return err
				}
				dest = filepath.Join(anaOutDir, summaryName(path, format, used))
			}
			if err := emit(cmd, dest, out); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis")
	analyzeCmd.Flags().StringVar(&anaOutDir, "out-dir", "", "directory for one summary file per input")
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "markdown", "output format: markdown | json | yaml")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 5, "number of sample rows to include")
	analyzeCmd.Flags().BoolVar(&anaOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	analyzeCmd.Flags().Float64Var(&anaOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	analyzeCmd.Flags().StringVar(&anaFrequencies, "frequencies", "", "print value counts or a histogram for this column")
	analyzeCmd.Flags().IntVar(&anaBins, "bins", analysis.DefaultBins, "histogram bins for numeric --frequencies columns")
	analyzeCmd.Flags().BoolVarP(&anaQuiet, "quiet", "q", false, "suppress progress output")
}

func analyzeOne(cmd *cobra.Command, a *service.Analyzer, path string, opt analysis.Options, format string) ([]byte, error) {
	res, err := a.Normalize(cmd.Context(), path)
	if err != nil {
		return nil, err
	}
	var v any
	if anaFrequencies != "" {
		f, err := analysis.Frequency(res.Dataset, anaFrequencies, anaBins)
		if err != nil {
			return nil, err
		}
		if format == "markdown" {
			return frequencyMarkdown(f), nil
		}
		v = f
	} else {
		rep := analysis.Profile(res.Dataset, opt)
		if format == "markdown" {
			return []byte(rep.Markdown()), nil
		}
		v = rep
	}
	if format == "yaml" {
		return encodeYAML(v)
	}
	return encodeJSON(v)
}

func frequencyMarkdown(f *analysis.Frequencies) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "[FREQUENCIES] %s (%s)\n\n", f.Column, f.Kind)
	rows := make([][]string, len(f.Labels))
	for i := range f.Labels {
		rows[i] = []string{f.Labels[i], strconv.Itoa(f.Counts[i])}
	}
	mdTable(&b, []string{"Value", "Count"}, rows)
	return []byte(b.String())
}

// expandInputs resolves globs and literal paths, dropping duplicates. The result is sorted.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, errors.NotFoundf("no input files matched %s", strings.Join(args, " "))
	}
	sort.Strings(files)
	return files, nil
}

// summaryName derives "<base>.summary.<ext>", suffixing "__2", "__3" on collisions.
func summaryName(path, format string, used map[string]int) string {
	base := filepath.Base(path)
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	if flagSheetName != "" {
		safe += "__sheet-" + slug(flagSheetName)
	}
	used[safe]++
	if n := used[safe]; n > 1 {
		safe = fmt.Sprintf("%s__%d", safe, n)
	}
	ext := map[string]string{"markdown": "md", "json": "json", "yaml": "yaml"}[format]
	return safe + ".summary." + ext
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else if r == ' ' || r == '-' || r == '_' {
			b.WriteRune('-')
		}
	}
	ss := strings.Trim(b.String(), "-")
	if ss == "" {
		ss = "sheet"
	}
	return ss
}
