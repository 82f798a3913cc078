package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/tabloom-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Tabloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "data_dir: %s\n", cfg.DataDir)
		fmt.Fprintf(w, "listen_addr: %s\n", cfg.ListenAddr)
		fmt.Fprintf(w, "max_upload_mb: %d\n", cfg.MaxUploadMB)
		fmt.Fprintf(w, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(w, "log_json: %t\n", cfg.LogJSON)
		fmt.Fprintf(w, "detect_sample_size: %d\n", cfg.DetectSampleSize)
		fmt.Fprintf(w, "detect_match_ratio: %.3f\n", cfg.DetectMatchRatio)
		fmt.Fprintf(w, "apply_scale: %t\n", cfg.ApplyScale)
		fmt.Fprintf(w, "pareto_tier_a: %g\n", cfg.ParetoTierA)
		fmt.Fprintf(w, "pareto_tier_b: %g\n", cfg.ParetoTierB)
		if len(cfg.NAValues) > 0 {
			fmt.Fprintf(w, "na_values: %s\n", strings.Join(cfg.NAValues, ","))
		}
		fmt.Fprintf(w, "csv_encoding: %s\n", cfg.CSVEncoding)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Sets one configuration key and writes the config file.

Values that start with "-" must follow "--" so they are not read as flags:

  tabloom config set -- na_values "-,?"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// Reload so flag overrides applied at startup are not persisted.
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		switch key {
		case "data_dir":
			c.DataDir = val
		case "listen_addr":
			c.ListenAddr = val
		case "max_upload_mb":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for max_upload_mb: %w", err)
			}
			c.MaxUploadMB = i
		case "log_level":
			c.LogLevel = val
		case "log_json", "apply_scale":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for %s: %w", key, err)
			}
			if key == "log_json" {
				c.LogJSON = b
			} else {
				c.ApplyScale = b
			}
		case "detect_sample_size":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for detect_sample_size: %w", err)
			}
			c.DetectSampleSize = i
		case "detect_match_ratio", "pareto_tier_a", "pareto_tier_b":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid float for %s: %w", key, err)
			}
			switch key {
			case "detect_match_ratio":
				c.DetectMatchRatio = f
			case "pareto_tier_a":
				c.ParetoTierA = f
			default:
				c.ParetoTierB = f
			}
		case "na_values":
			var vals []string
			for _, v := range strings.Split(val, ",") {
				if v = strings.TrimSpace(v); v != "" {
					vals = append(vals, v)
				}
			}
			c.NAValues = vals
		case "csv_encoding":
			c.CSVEncoding = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
