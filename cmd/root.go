package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/tabloom-cli/internal/config"
	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
	"github.com/KaramelBytes/tabloom-cli/internal/errors"
	"github.com/KaramelBytes/tabloom-cli/internal/logger"
	"github.com/KaramelBytes/tabloom-cli/internal/service"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	logJSON bool
	// Loader flags (override config if set)
	flagDelimiter  string
	flagEncoding   string
	flagSheetName  string
	flagSheetIndex int

	// Loaded configuration and logger
	cfg *cfgpkg.Global
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "tabloom",
	Short: "Tabloom CLI: clean formatted numbers and rank categories in tabular data",
	Long: `Tabloom reads CSV/TSV/XLSX files, turns formatted numeric text such as "$1.2M" or
"45%" into numbers (keeping currency and magnitude in side columns), and runs
Pareto/ABC classification and descriptive profiling on the result.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tabloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (sniffed if omitted)")
	rootCmd.PersistentFlags().StringVar(&flagEncoding, "encoding", "", "CSV encoding: utf-8 | latin-1 | windows-1252 (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagSheetName, "sheet-name", "", "XLSX: sheet name to read")
	rootCmd.PersistentFlags().IntVar(&flagSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("encoding") {
		c.CSVEncoding = flagEncoding
	}
	if f.Changed("log-json") {
		c.LogJSON = logJSON
	}
	if debug {
		c.LogLevel = "debug"
	}
	l, err := logger.New(c.LogLevel, c.LogJSON)
	if err != nil {
		return err
	}
	cfg, log = c, l
	return nil
}

// loadOptions merges loader flags into the configured defaults.
func loadOptions() (dataset.Options, error) {
	opt := cfg.LoadOptions()
	switch flagDelimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case ";":
		opt.Delimiter = ';'
	case "\t", "tab":
		opt.Delimiter = '\t'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, errors.Validationf("unsupported --delimiter: %s", flagDelimiter)
	}
	opt.SheetName = flagSheetName
	opt.SheetIndex = flagSheetIndex
	return opt, nil
}

// newAnalyzer wires an analyzer over local files from the loaded configuration.
func newAnalyzer(store *dataset.Store) (*service.Analyzer, error) {
	opt, err := loadOptions()
	if err != nil {
		return nil, err
	}
	sc := service.Config{
		Store:      store,
		Load:       opt,
		Normalize:  cfg.Normalize(),
		Thresholds: cfg.Thresholds(),
		Logger:     log,
	}
	if store == nil {
		sc.Source = service.Files
	}
	return service.New(sc)
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "✗ Error:", err)
	for _, h := range errors.Hints(err) {
		fmt.Fprintln(w, "  hint:", h)
	}
}
