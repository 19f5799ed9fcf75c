package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/aevon-lab/geosplit/internal/core/config"
	"github.com/aevon-lab/geosplit/internal/metrics"
	"github.com/aevon-lab/geosplit/internal/pipeline"
	"github.com/aevon-lab/geosplit/internal/server"
	"github.com/aevon-lab/geosplit/internal/source"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errInvalidFlag = errors.New("invalid flag")

func newSplitCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split [input] [split-key]",
		Short: "Split a dataset into one document per value of an attribute.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Positional arguments stand in for --input and --split-key.
			for i, name := range []string{"input", "split-key"} {
				if i < len(args) {
					if err := cmd.Flags().Set(name, args[i]); err != nil {
						return err
					}
				}
			}

			cfg, err := loadConfig(cmd, stderr)
			if err != nil {
				return err
			}

			var m *metrics.Collector
			if cfg.Metrics.Enabled {
				m = metrics.New()
			}
			summary, err := pipeline.Run(cmd.Context(), *cfg, pipeline.Dependencies{Metrics: m})
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, summary.String())
			return nil
		},
	}
	addSplitFlags(cmd.Flags())
	return cmd
}

func newKeysCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys <input>",
		Short: "List the attribute keys of a dataset, read from its first feature.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, stderr); err != nil {
				return err
			}
			r, err := source.NewReader(args[0])
			if err != nil {
				return err
			}
			keys, err := source.Keys(cmd.Context(), r)
			if err != nil {
				return err
			}
			return writeYAML(stdout, map[string]interface{}{
				"input": r.Path(),
				"keys":  keys,
			})
		},
	}
	return cmd
}

func newValuesCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "values <input> <key>",
		Short: "List the distinct values of one attribute, as a filter block for the config file.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, stderr); err != nil {
				return err
			}
			r, err := source.NewReader(args[0])
			if err != nil {
				return err
			}
			values, err := source.DistinctValues(cmd.Context(), r, args[1])
			if err != nil {
				return err
			}

			out := make([]string, len(values))
			for i, v := range values {
				out[i] = v.String()
			}
			return writeYAML(stdout, map[string]interface{}{
				"filter": map[string]interface{}{
					"key":    args[1],
					"mode":   config.FilterList,
					"values": out,
				},
			})
		},
	}
	return cmd
}

func newServeCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve split runs and dataset discovery over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, stderr)
			if err != nil {
				return err
			}

			var m *metrics.Collector
			if cfg.Metrics.Enabled {
				m = metrics.New()
			}

			srv := server.New(
				fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
				cfg.Server.Mode,
				m,
				map[string]server.HealthChecker{"staging": server.DirChecker(cfg.Staging.Dir)},
			)
			server.NewService(*cfg, m, pipeline.Run, cfg.Server.MaxConcurrent).RegisterRoutes(srv.Engine)

			// Blocks until the command context is cancelled.
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().String("host", "0.0.0.0", "Address to listen on.")
	cmd.Flags().Int("port", 8080, "Port to listen on.")
	cmd.Flags().Bool("metrics-enabled", true, "Expose Prometheus metrics on /metrics.")
	return cmd
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
