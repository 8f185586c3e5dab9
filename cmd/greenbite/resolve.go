package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"greenbite/internal/config"
	"greenbite/internal/metaphor"
	"greenbite/internal/pipeline"
)

var (
	resolveJSON    bool
	resolveSuggest bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <food>...",
	Short: "Estimate kg CO2 for a list of foods",
	Example: `  greenbite resolve samosa biryani
  greenbite resolve "butter chicken" naan --suggest`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the result as JSON")
	resolveCmd.Flags().BoolVar(&resolveSuggest, "suggest", false, "Ask the suggestion gateway for lower-footprint swaps")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logs := newLoggers(config.LogQuiet, cmd.ErrOrStderr())
	resolver := buildResolver(cfg, logs)
	result := resolver.Estimate(args)

	out := cmd.OutOrStdout()
	if !resolveSuggest {
		if resolveJSON {
			return writeJSON(out, result)
		}
		for _, b := range result.Breakdown {
			fmt.Fprintf(out, "%-20s %6.2f kg  (%s)\n", b.Item, b.CO2, b.Tier)
		}
		fmt.Fprintf(out, "total: %.2f kg CO2. %s\n", pipeline.Round2(result.Total), metaphor.For(result.Total))
		return nil
	}

	p := &pipeline.Pipeline{Resolver: resolver, Suggester: buildSuggester(cfg, logs)}
	resp := p.EstimateItems(cmd.Context(), args)
	if resolveJSON {
		return writeJSON(out, resp)
	}
	fmt.Fprintf(out, "total: %.2f kg CO2. %s\n", resp.TotalCO2, resp.Metaphor)
	for _, s := range resp.Swaps {
		fmt.Fprintf(out, "swap %s -> %s, saves %.2f kg: %s\n", s.OriginalItem, s.SwapItem, s.CO2Saved, s.Reasoning)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
