package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/diag"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/engine"
)

func newValidateCmd(opts *options) *cobra.Command {
	var totalProcess string
	cmd := &cobra.Command{
		Use:     "validate <input.json>",
		Aliases: []string{"check"},
		Short:   "Check an input file without simulating",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if totalProcess != "" {
				cfg.Totals.Process = totalProcess
			}
			in, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			entries, err := engine.Check(cfg, in, diag.Discard())
			out := cmd.OutOrStdout()
			warnings := 0
			for _, e := range entries {
				if e.Level == "INFO" {
					continue
				}
				warnings++
				fmt.Fprintf(out, "%-5s %s", e.Level, e.Message)
				for k, v := range e.Attrs {
					fmt.Fprintf(out, " %s=%v", k, v)
				}
				fmt.Fprintln(out)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ok: %d warnings\n", warnings)
			return nil
		},
	}
	cmd.Flags().StringVar(&totalProcess, "total-process", "", "id of the process tree root")
	return cmd
}
