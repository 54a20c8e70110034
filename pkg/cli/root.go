// Package cli is the euq command line: run the engine on an input file,
// check inputs, inspect stored runs and print the effective configuration.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/engine"
)

type options struct {
	configPath string
	logLevel   string
	logJSON    bool
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "euq",
		Short: "Uncertainty analysis for emission inventories",
		Long: `euq propagates activity data and emission factor uncertainties through an
emission inventory, analytically and by Monte Carlo simulation, and ranks
key categories.

Examples:
  euq run inventory.json --config nid.yaml --db euq.sqlite
  euq validate inventory.json
  euq config --variant nid > nid.yaml`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (iir defaults when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "write logs as JSON")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newValidateCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newRunsCmd(opts))
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) load() (config.Config, error) {
	if o.configPath == "" {
		cfg := config.Default(config.VariantIIR)
		cfg.ApplyEnvOverrides()
		return cfg, cfg.Validate()
	}
	return config.Load(o.configPath)
}

func (o *options) logger(w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", o.logLevel)
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	if o.logJSON {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// readInput decodes an engine input document. "-" reads stdin.
func readInput(path string, stdin io.Reader) (engine.Input, error) {
	var in engine.Input
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return in, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("failed to parse input %s: %w", path, err)
	}
	return in, nil
}
