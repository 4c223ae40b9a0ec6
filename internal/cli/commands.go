package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/attendd/attendd/internal/registry"
)

func newCommandsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List the admitted command registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			var pol *registry.Policy
			if cfg.Registry.PolicyPath != "" {
				pol, err = registry.LoadPolicy(cfg.Registry.PolicyPath)
				if err != nil {
					return err
				}
			}
			reg, err := registry.Load(cfg.Registry.CommandsPath, pol, nil, nil)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDANGEROUS\tDESCRIPTION")
			for _, spec := range reg.List() {
				fmt.Fprintf(tw, "%s\t%v\t%s\n", spec.ID, spec.Dangerous, spec.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config YAML")
	return cmd
}
