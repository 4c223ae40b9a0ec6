package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/attendd/attendd/internal/arbiter"
	"github.com/attendd/attendd/internal/intent"
	"github.com/attendd/attendd/internal/registry"
	"github.com/attendd/attendd/pkg/types"
)

type routeResult struct {
	Intent    string         `json:"intent"`
	CommandID string         `json:"command_id,omitempty"`
	Score     float64        `json:"score"`
	Params    map[string]any `json:"parameters,omitempty"`
	Decision  string         `json:"decision"`
	Preview   string         `json:"preview,omitempty"`
	Text      string         `json:"text,omitempty"`
}

// newRouteCmd classifies one utterance offline and prints the decision as
// JSON. Nothing is executed; this is a dry inspection of the routing pipeline.
func newRouteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "route <text>",
		Short: "Show how an utterance would be routed, without executing anything",
		Args:  cobra.MinimumNArgs(1),
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

			router := intent.NewRouter(intent.Config{
				DeterministicThreshold: cfg.Intent.DeterministicThreshold,
				LLMFallbackThreshold:   cfg.Intent.LLMFallbackThreshold,
			}, reg.List(), intent.NopClassifier{}, nil)
			arb := arbiter.New(arbiter.Config{DeterministicThreshold: cfg.Intent.DeterministicThreshold})

			text := strings.Join(args, " ")
			res := router.Route(cmd.Context(), text)
			d := arb.Decide(text, res)

			out := routeResult{
				Intent:    string(res.Type),
				CommandID: res.CommandID,
				Score:     res.Score(),
				Params:    res.Parameters,
			}
			switch d.Kind {
			case types.DecisionCommand:
				out.Decision = "command"
				out.Preview = d.Preview
			case types.DecisionQuestion:
				out.Decision = "question"
				out.Text = d.Text
			case types.DecisionWebQuery:
				out.Decision = "web_query"
				out.Text = d.Text
			case types.DecisionIgnored:
				out.Decision = "ignored"
			}
			enc, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(enc))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config YAML")
	return cmd
}
