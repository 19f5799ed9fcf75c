package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/groupkey"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "GEOSPLIT_"

// Filter modes.
const (
	FilterNone = "none"
	FilterList = "list"
	FilterText = "text"
)

// Staging and output backends.
const (
	StagingFilesystem = "filesystem"
	StagingMemory     = "memory"
	OutputFilesystem  = "filesystem"
	OutputMinio       = "minio"
)

// Extensions lists the accepted output extensions. The content is identical for both.
var Extensions = []string{"json", "geojson"}

// Config is the resolved configuration of one process. A split run only reads it.
type Config struct {
	Input    InputConfig    `koanf:"input"`
	Split    SplitConfig    `koanf:"split"`
	Output   OutputConfig   `koanf:"output"`
	Filter   FilterConfig   `koanf:"filter"`
	Staging  StagingConfig  `koanf:"staging"`
	Finalize FinalizeConfig `koanf:"finalize"`
	Progress ProgressConfig `koanf:"progress"`
	Log      LogConfig      `koanf:"log"`
	Server   ServerConfig   `koanf:"server"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type InputConfig struct {
	Path string `koanf:"path"`
}

type SplitConfig struct {
	Key          string                `koanf:"key"`
	AbsentPolicy groupkey.AbsentPolicy `koanf:"absent_policy"` // per_record | shared
}

type OutputConfig struct {
	Type      string      `koanf:"type"` // filesystem | minio
	Root      string      `koanf:"root"` // empty means ~/Shapefiles
	Folder    string      `koanf:"folder"`
	Extension string      `koanf:"extension"`
	Minio     MinioConfig `koanf:"minio"`
}

type MinioConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"use_ssl"`
	Prefix    string `koanf:"prefix"` // object key prefix, joined with output.folder
}

type FilterConfig struct {
	Key    string   `koanf:"key"`
	Mode   string   `koanf:"mode"` // none | list | text
	Values []string `koanf:"values"`
	Text   string   `koanf:"text"` // comma separated terms
}

type StagingConfig struct {
	Type          string `koanf:"type"` // filesystem | memory
	Dir           string `koanf:"dir"`  // parent of the run workspace; empty means os.TempDir()
	MaxOpenFiles  int    `koanf:"max_open_files"`
	MemoryLimitMB int    `koanf:"memory_limit_mb"`
}

type FinalizeConfig struct {
	Concurrency int `koanf:"concurrency"`
}

type ProgressConfig struct {
	Every int `koanf:"every"` // log a staging line every N records
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text | json
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	Mode          string `koanf:"mode"` // debug | release
	MaxConcurrent int    `koanf:"max_concurrent"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"input.path":              "",
		"split.key":               "",
		"split.absent_policy":     string(groupkey.AbsentPerRecord),
		"output.type":             OutputFilesystem,
		"output.root":             "",
		"output.folder":           "",
		"output.extension":        "geojson",
		"output.minio.endpoint":   "",
		"output.minio.access_key": "",
		"output.minio.secret_key": "",
		"output.minio.bucket":     "",
		"output.minio.region":     "",
		"output.minio.use_ssl":    false,
		"output.minio.prefix":     "",
		"filter.key":              "",
		"filter.mode":             FilterNone,
		"filter.values":           []string{},
		"filter.text":             "",
		"staging.type":            StagingFilesystem,
		"staging.dir":             "",
		"staging.max_open_files":  64,
		"staging.memory_limit_mb": 256,
		"finalize.concurrency":    10,
		"progress.every":          10000,
		"log.level":               "info",
		"log.format":              "text",
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.mode":             "release",
		"server.max_concurrent":   2,
		"metrics.enabled":         true,
	}
}

// FlagKeys maps command line flag names to config keys. Only flags the user set override.
var FlagKeys = map[string]string{
	"input":           "input.path",
	"split-key":       "split.key",
	"absent-policy":   "split.absent_policy",
	"output":          "output.type",
	"output-root":     "output.root",
	"folder":          "output.folder",
	"extension":       "output.extension",
	"filter-key":      "filter.key",
	"filter-mode":     "filter.mode",
	"filter-values":   "filter.values",
	"filter-text":     "filter.text",
	"staging":         "staging.type",
	"staging-dir":     "staging.dir",
	"concurrency":     "finalize.concurrency",
	"progress-every":  "progress.every",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"host":            "server.host",
	"port":            "server.port",
	"metrics-enabled": "metrics.enabled",
}

func (c *Config) Validate() error {
	if !groupkey.ValidAbsentPolicy(c.Split.AbsentPolicy) {
		return invalid("invalid split.absent_policy %q (must be per_record or shared)", c.Split.AbsentPolicy)
	}

	switch c.Output.Type {
	case OutputFilesystem:
	case OutputMinio:
		if strings.TrimSpace(c.Output.Minio.Endpoint) == "" {
			return invalid("output.minio.endpoint is required when output.type is minio")
		}
		if strings.TrimSpace(c.Output.Minio.Bucket) == "" {
			return invalid("output.minio.bucket is required when output.type is minio")
		}
	default:
		return invalid("unsupported output.type %q", c.Output.Type)
	}
	if !validExtension(c.Output.Extension) {
		return invalid("invalid output.extension %q (must be one of %s)", c.Output.Extension, strings.Join(Extensions, ", "))
	}
	if filepath.IsAbs(c.Output.Folder) || escapes(c.Output.Folder) {
		return invalid("output.folder %q must be a relative path inside output.root", c.Output.Folder)
	}

	switch c.Filter.Mode {
	case FilterNone:
	case FilterList, FilterText:
		if strings.TrimSpace(c.Filter.Key) == "" {
			return invalid("filter.key is required when filter.mode is %s", c.Filter.Mode)
		}
	default:
		return invalid("unsupported filter.mode %q", c.Filter.Mode)
	}

	switch c.Staging.Type {
	case StagingFilesystem:
		if c.Staging.MaxOpenFiles <= 0 {
			return invalid("staging.max_open_files must be > 0")
		}
		if c.Staging.Dir != "" {
			if _, err := os.Stat(c.Staging.Dir); err != nil {
				return invalid("staging.dir %q is not accessible: %v", c.Staging.Dir, err)
			}
		}
	case StagingMemory:
		if c.Staging.MemoryLimitMB <= 0 {
			return invalid("staging.memory_limit_mb must be > 0")
		}
	default:
		return invalid("unsupported staging.type %q", c.Staging.Type)
	}

	if c.Finalize.Concurrency <= 0 {
		return invalid("finalize.concurrency must be > 0")
	}
	if c.Progress.Every < 0 {
		return invalid("progress.every must be >= 0")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return invalid("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}
	if c.Server.MaxConcurrent <= 0 {
		return invalid("server.max_concurrent must be > 0")
	}
	return nil
}

// ValidateSplit checks the values a split run needs on top of Validate.
func (c *Config) ValidateSplit() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Input.Path) == "" {
		return invalid("input.path is required")
	}
	if strings.TrimSpace(c.Split.Key) == "" {
		return invalid("split.key is required")
	}
	return nil
}

// Load parses config from defaults, file, env and explicitly set flags (in that order), then validates it.
// flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// GEOSPLIT_SPLIT__KEY=region overrides split.key
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := applyFlags(k, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyFlags(k *koanf.Koanf, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := FlagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if f.Value.Type() == "stringSlice" {
			var values []string
			values, err = flags.GetStringSlice(f.Name)
			if err == nil {
				err = k.Set(key, values)
			}
			return
		}
		err = k.Set(key, f.Value.String())
	})
	if err != nil {
		return fmt.Errorf("failed to apply flags: %w", err)
	}
	return nil
}

func validExtension(ext string) bool {
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func escapes(rel string) bool {
	if rel == "" {
		return false
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", coreerr.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
