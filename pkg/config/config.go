// Package config resolves pbxmend settings from defaults, project config
// files, PBXMEND_* environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fulmenhq/pbxmend/pkg/exitcode"
)

// Config holds all configuration for pbxmend
type Config struct {
	// Manifest is the .xcodeproj bundle or project.pbxproj file, relative to Root.
	Manifest string   `mapstructure:"manifest"`
	Group    string   `mapstructure:"group"`
	Target   string   `mapstructure:"target"`
	Phase    string   `mapstructure:"phase"`
	Requests []string `mapstructure:"requests"`
	DryRun   bool     `mapstructure:"dry_run"`

	Report ReportConfig `mapstructure:"report"`

	// Root is the directory relative paths resolve against. It is not read
	// from files; the loader sets it.
	Root string `mapstructure:"-"`
	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// ReportConfig controls the optional rendered run report.
type ReportConfig struct {
	// Template is a handlebars template file; empty selects the built-in one.
	Template string `mapstructure:"template"`
	// Output is the file the report is written to; empty disables it.
	Output string `mapstructure:"output"`
}

var defaultConfig = Config{
	Manifest: "iSH.xcodeproj",
	Group:    "app",
	Target:   "iSH",
	Phase:    "Sources",
}

// projectConfigs are the file names searched for, in order.
var projectConfigs = []string{
	".pbxmend.yaml",
	".pbxmend.yml",
	"pbxmend.yaml",
	"pbxmend.yml",
	"pbxmend.toml",
	"pbxmend.json",
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"manifest": "manifest",
	"group":    "group",
	"target":   "target",
	"phase":    "phase",
	"no-op":    "dry_run",
	"report":   "report.output",
}

// Error reports an unusable configuration. It maps to exitcode.ConfigError.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode implements exitcode.Coder.
func (e *Error) ExitCode() int { return exitcode.ConfigError }

// Options tell LoadConfig where to look.
type Options struct {
	// Root is the repository root. Config files are searched here first.
	Root string
	// File names an explicit config file; it must exist.
	File string
	// Flags, when set, override file and environment values for flags the
	// user changed.
	Flags *pflag.FlagSet
}

// LoadConfig loads configuration from various sources
func LoadConfig(opts Options) (*Config, error) {
	v := viper.New()

	v.SetDefault("manifest", defaultConfig.Manifest)
	v.SetDefault("group", defaultConfig.Group)
	v.SetDefault("target", defaultConfig.Target)
	v.SetDefault("phase", defaultConfig.Phase)
	v.SetDefault("requests", []string{})
	v.SetDefault("dry_run", false)
	v.SetDefault("report.template", "")
	v.SetDefault("report.output", "")

	v.SetEnvPrefix("PBXMEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := opts.File
	if file == "" {
		file = findProjectConfig(opts.Root)
	}
	if file != "" {
		settings, err := readFile(file)
		if err != nil {
			return nil, &Error{Path: file, Err: err}
		}
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, &Error{Path: file, Err: err}
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, &Error{Err: err}
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Path: file, Err: fmt.Errorf("error unmarshaling config: %w", err)}
	}
	cfg.Root = opts.Root
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Path: file, Err: err}
	}
	return &cfg, nil
}

// findProjectConfig returns the first project config in root, then in the
// user's home directory.
func findProjectConfig(root string) string {
	dirs := []string{root}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, name := range projectConfigs {
			p := filepath.Join(dir, name)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p
			}
		}
	}
	return ""
}

// Validate rejects settings no run could succeed with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Manifest) == "":
		return fmt.Errorf("manifest must not be empty")
	case strings.TrimSpace(c.Group) == "":
		return fmt.Errorf("group must not be empty")
	case strings.TrimSpace(c.Target) == "":
		return fmt.Errorf("target must not be empty")
	case strings.TrimSpace(c.Phase) == "":
		return fmt.Errorf("phase must not be empty")
	}
	return nil
}

// Resolve joins a config-relative path onto Root. Absolute paths are kept.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// RequestFiles returns the configured request lists resolved against Root.
func (c *Config) RequestFiles() []string {
	out := make([]string, 0, len(c.Requests))
	for _, r := range c.Requests {
		out = append(out, c.Resolve(r))
	}
	return out
}
