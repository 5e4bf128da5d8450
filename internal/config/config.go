// Package config loads jarlink settings from an optional .jarlink.yaml file,
// JARLINK_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the scan root.
const FileName = ".jarlink.yaml"

// Output formats.
const (
	FormatText = "text"
	FormatTOON = "toon"
)

// Config holds the resolved settings for one run.
type Config struct {
	Project string `mapstructure:"project"`
	Format  string `mapstructure:"format"`
	DryRun  bool   `mapstructure:"dry_run"`
	Verbose bool   `mapstructure:"verbose"`
	Scan    Scan   `mapstructure:"scan"`
}

// Scan holds scanner settings.
type Scan struct {
	SkipDirs         []string `mapstructure:"skip_dirs"`
	RespectGitignore bool     `mapstructure:"respect_gitignore"`
}

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// Root is the scan root; FileName is read from it when present.
	Root string
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// Flags are bound to config keys by name (project, format, dry-run, ...).
	Flags *pflag.FlagSet
}

// Load resolves the configuration.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	v.SetDefault("project", "")
	v.SetDefault("format", FormatText)
	v.SetDefault("dry_run", false)
	v.SetDefault("verbose", false)
	v.SetDefault("scan.skip_dirs", []string{})
	v.SetDefault("scan.respect_gitignore", false)

	v.SetEnvPrefix("jarlink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", opts.ConfigFilePath, err)
		}
	} else if opts.Root != "" {
		v.SetConfigFile(filepath.Join(opts.Root, FileName))
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("reading config %s: %w", filepath.Join(opts.Root, FileName), err)
		}
	}

	if opts.Flags != nil {
		for key, flag := range map[string]string{
			"project":                "project",
			"format":                 "format",
			"dry_run":                "dry-run",
			"verbose":                "verbose",
			"scan.skip_dirs":         "skip-dir",
			"scan.respect_gitignore": "respect-gitignore",
		} {
			if f := opts.Flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", flag, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Format != FormatText && cfg.Format != FormatTOON {
		return nil, fmt.Errorf("unsupported format %q (want %s or %s)", cfg.Format, FormatText, FormatTOON)
	}
	return &cfg, nil
}

// ProjectPath returns the configured project file path, falling back to
// fallback when none is set. Relative paths are relative to the scan root.
func (c *Config) ProjectPath(fallback string) string {
	if c.Project == "" {
		return fallback
	}
	return c.Project
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}
