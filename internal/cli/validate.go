package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/attendd/attendd/internal/config"
	"github.com/attendd/attendd/internal/registry"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config, policy and command registry without starting the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			var pol *registry.Policy
			if cfg.Registry.PolicyPath != "" {
				pol, err = registry.LoadPolicy(cfg.Registry.PolicyPath)
				if err != nil {
					return fmt.Errorf("policy: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "policy %s: ok\n", cfg.Registry.PolicyPath)
			}

			// A real logger here surfaces every skipped spec on stderr.
			log, err := config.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			reg, err := registry.Load(cfg.Registry.CommandsPath, pol, nil, log)
			if err != nil {
				return fmt.Errorf("commands: %w", err)
			}
			if reg.Len() == 0 {
				return fmt.Errorf("commands %s: no valid specs", cfg.Registry.CommandsPath)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "commands %s: %d admitted\n", cfg.Registry.CommandsPath, reg.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config YAML")
	return cmd
}
