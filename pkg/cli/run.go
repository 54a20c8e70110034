package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/engine"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/publish"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/storage"
)

type runFlags struct {
	simulations  int
	seed         uint64
	workers      int
	totalProcess string
	dbPath       string
	out          string
	publish      bool
}

func newRunCmd(opts *options) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <input.json>",
		Short: "Run the uncertainty analysis on an input file",
		Long: `Run the analytic propagation and the Monte Carlo simulation on an input
document ("-" reads stdin) and print the inventory total.

The full result can be written as JSON with --out, stored in a SQLite run
store with --db and published to the configured blob store with --publish.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, f, args[0])
		},
	}
	cmd.Flags().IntVarP(&f.simulations, "simulations", "n", 0, "Monte Carlo draws (config value when 0)")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "random seed (config value when unset)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "sampling workers (config value when 0)")
	cmd.Flags().StringVar(&f.totalProcess, "total-process", "", "id of the process tree root")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "SQLite run store")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", `write the full result as JSON ("-" for stdout)`)
	cmd.Flags().BoolVar(&f.publish, "publish", false, "publish the result to the configured blob store")
	return cmd
}

func runRun(cmd *cobra.Command, opts *options, f *runFlags, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if f.simulations != 0 {
		cfg.Simulations = f.simulations
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = f.seed
	}
	if f.workers != 0 {
		cfg.Workers = f.workers
	}
	if f.totalProcess != "" {
		cfg.Totals.Process = f.totalProcess
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := opts.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	in, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	var store publish.Store
	if f.publish {
		if store, err = publish.Open(ctx, cfg.Publish); err != nil {
			return err
		}
		if store == nil {
			return errors.New("--publish needs publish.driver in the config")
		}
	}

	res, runErr := engine.Run(ctx, cfg, in, logger)

	if f.dbPath != "" {
		db, err := storage.Open(ctx, f.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		var re *engine.RunError
		switch {
		case runErr == nil:
			err = storage.SaveRun(ctx, db, res)
		case errors.As(runErr, &re):
			err = storage.SaveFailedRun(ctx, db, re.RunID, string(cfg.Variant), re.Err, re.Diagnostics)
		}
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if f.out != "" {
		if err := writeResult(f.out, cmd.OutOrStdout(), res); err != nil {
			return err
		}
	}
	if store != nil {
		m, err := publish.Publish(ctx, store, res)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		for _, o := range m.Objects {
			fmt.Fprintf(cmd.ErrOrStderr(), "published %s (%d bytes)\n", o.Key, o.Size)
		}
	}
	if f.out == "-" {
		return nil
	}
	return printSummary(cmd.OutOrStdout(), res)
}

func writeResult(path string, stdout io.Writer, res *engine.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printSummary(w io.Writer, res *engine.Result) error {
	fmt.Fprintf(w, "run %s  variant %s  seed %d  simulations %d\n", res.RunID, res.Variant, res.Seed, res.Simulations)
	row, ok := res.TotalRow()
	if !ok {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tvalue [%s]\tanalytic U%%\tMC U-%%\tMC U+%%\n", row.Key.Process, res.Unit)
	for _, y := range inventory.Quantities {
		yr := row.Years[y]
		fmt.Fprintf(tw, "%s\t%.4g\t%.2f\t%.2f\t%.2f\n", y, yr.Value, yr.Analytic.U.Mean, yr.MC.U.Lower, yr.MC.U.Upper)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	key := 0
	for _, a := range res.KeyCategories {
		if a.IsKey {
			key++
		}
	}
	fmt.Fprintf(w, "%d key category assessments of %d\n", key, len(res.KeyCategories))
	return nil
}
