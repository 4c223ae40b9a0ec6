// Package cli implements the attendd command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/attendd/attendd/internal/config"
)

func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "attendd",
		Short:         "attendd: voice command arbitration daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("attendd {{.Version}}\n")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newCommandsCmd())
	cmd.AddCommand(newRouteCmd())

	return cmd
}

// defaultConfigPaths are tried in order when --config is not given.
var defaultConfigPaths = []string{"attendd.yaml", "attendd.yml", "/etc/attendd/config.yaml"}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return config.Default(), nil
}
