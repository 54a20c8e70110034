package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
)

func newConfigCmd(opts *options) *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the effective configuration as YAML.

Without flags the --config file (or the iir defaults) with environment
overrides is printed. --variant prints the plain defaults of a variant,
which is a good starting point for a config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			switch variant {
			case "":
				c, err := opts.load()
				if err != nil {
					return err
				}
				cfg = c
			case string(config.VariantIIR), string(config.VariantNID):
				cfg = config.Default(config.Variant(variant))
			default:
				return fmt.Errorf("variant must be iir or nid (got: %s)", variant)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "", "print the defaults of iir or nid")
	return cmd
}
