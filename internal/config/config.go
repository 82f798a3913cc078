package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabloom-cli/internal/dataset"
	"github.com/KaramelBytes/tabloom-cli/internal/normalize"
	"github.com/KaramelBytes/tabloom-cli/internal/pareto"
)

// Global configuration structure.
type Global struct {
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" yaml:"log_json"`

	// Formatted-number detection
	DetectSampleSize int     `mapstructure:"detect_sample_size" yaml:"detect_sample_size"`
	DetectMatchRatio float64 `mapstructure:"detect_match_ratio" yaml:"detect_match_ratio"`
	ApplyScale       bool    `mapstructure:"apply_scale" yaml:"apply_scale"`

	// ABC tier cutoffs (cumulative %)
	ParetoTierA float64 `mapstructure:"pareto_tier_a" yaml:"pareto_tier_a"`
	ParetoTierB float64 `mapstructure:"pareto_tier_b" yaml:"pareto_tier_b"`

	// Loading
	NAValues    []string `mapstructure:"na_values" yaml:"na_values"`
	CSVEncoding string   `mapstructure:"csv_encoding" yaml:"csv_encoding"`
}

// Normalize returns the detection options.
func (c *Global) Normalize() normalize.Options {
	return normalize.Options{
		SampleSize: c.DetectSampleSize,
		MatchRatio: c.DetectMatchRatio,
		ApplyScale: c.ApplyScale,
	}
}

// Thresholds returns the ABC cutoffs.
func (c *Global) Thresholds() pareto.Thresholds {
	return pareto.Thresholds{A: c.ParetoTierA, B: c.ParetoTierB}
}

// LoadOptions returns loader options seeded from the configuration.
func (c *Global) LoadOptions() dataset.Options {
	opt := dataset.DefaultOptions()
	opt.Encoding = c.CSVEncoding
	if len(c.NAValues) > 0 {
		opt.NAValues = c.NAValues
	}
	return opt
}

// Validate checks thresholds and limits.
func (c *Global) Validate() error {
	if c.DetectSampleSize <= 0 {
		return fmt.Errorf("detect_sample_size must be > 0, got %d", c.DetectSampleSize)
	}
	if c.DetectMatchRatio <= 0 || c.DetectMatchRatio >= 1 {
		return fmt.Errorf("detect_match_ratio must be in (0,1), got %g", c.DetectMatchRatio)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be > 0, got %d", c.MaxUploadMB)
	}
	return nil
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tabloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tabloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := homeDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TABLOOM")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_dir", "")
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("detect_sample_size", normalize.DefaultSampleSize)
	v.SetDefault("detect_match_ratio", normalize.DefaultMatchRatio)
	v.SetDefault("apply_scale", false)
	v.SetDefault("pareto_tier_a", pareto.DefaultThresholds().A)
	v.SetDefault("pareto_tier_b", pareto.DefaultThresholds().B)
	v.SetDefault("na_values", []string{})
	v.SetDefault("csv_encoding", "utf-8")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve data_dir default: ~/.tabloom/data
	if c.DataDir == "" {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		c.DataDir = filepath.Join(dir, "data")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
