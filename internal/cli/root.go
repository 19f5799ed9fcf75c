package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aevon-lab/geosplit/internal/core/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewRootCommand builds the geosplit command tree.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "geosplit",
		Short: "Split a vector dataset into one GeoJSON document per attribute value.",
		Long: `geosplit reads a shapefile or GeoJSON FeatureCollection, groups its features
by the value of one attribute and writes every group to its own
FeatureCollection document.

Configuration is read from built-in defaults, an optional YAML file (--config),
GEOSPLIT_* environment variables (GEOSPLIT_SPLIT__KEY=region) and flags, in
that order of increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")
	rc.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error.")
	rc.PersistentFlags().String("log-format", "text", "Log format: text or json.")

	rc.AddCommand(newSplitCommand(stdin, stdout, stderr))
	rc.AddCommand(newKeysCommand(stdin, stdout, stderr))
	rc.AddCommand(newValuesCommand(stdin, stdout, stderr))
	rc.AddCommand(newServeCommand(stdin, stdout, stderr))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// loadConfig resolves the configuration of cmd and installs the configured logger.
func loadConfig(cmd *cobra.Command, stderr io.Writer) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("problem getting config flag: %w", err)
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := setupLogger(cfg.Log, stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg config.LogConfig, w io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return fmt.Errorf("%w: invalid log.level %q", errInvalidFlag, cfg.Level)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("%w: invalid log.format %q", errInvalidFlag, cfg.Format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// addSplitFlags registers the flags shared by every command that runs a split.
func addSplitFlags(flags *pflag.FlagSet) {
	flags.StringP("input", "i", "", "Dataset to split (.shp or .geojson).")
	flags.StringP("split-key", "k", "", "Attribute to group features by.")
	flags.String("absent-policy", "per_record", "Where features without a split value go: per_record or shared.")
	flags.String("output", "filesystem", "Destination type: filesystem or minio.")
	flags.String("output-root", "", "Destination root directory (default ~/Shapefiles).")
	flags.StringP("folder", "f", "", "Subfolder of the destination root.")
	flags.StringP("extension", "e", "geojson", "Output file extension: json or geojson.")
	flags.String("filter-key", "", "Attribute the filter looks at.")
	flags.String("filter-mode", "none", "Filter mode: none, list or text.")
	flags.StringSlice("filter-values", nil, "Values kept by the list filter.")
	flags.String("filter-text", "", "Comma separated terms for the text filter.")
	flags.String("staging", "filesystem", "Staging backend: filesystem or memory.")
	flags.String("staging-dir", "", "Parent directory of the staging workspace (default OS temp dir).")
	flags.Int("concurrency", 10, "Documents written in parallel.")
	flags.Int("progress-every", 10000, "Log staging progress every N records; 0 disables it.")
}
