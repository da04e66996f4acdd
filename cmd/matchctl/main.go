package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/lostfound/backend/config"
	"github.com/lostfound/backend/internal/bootstrap"
	"github.com/lostfound/backend/internal/domain"
	"github.com/spf13/cobra"
)

// cfg is loaded once before any subcommand runs
var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "matchctl",
		Short: "Lost & found item matching tool",
		Long:  `Rank found-item reports against a lost-item report and inspect the matching configuration`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			return bootstrap.ConfigureLogging(cfg.Log.Level)
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createRankCmd())
	rootCmd.AddCommand(createWeightsCmd())
	rootCmd.AddCommand(createCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// createRankCmd ranks the candidates in a request file against its query
func createRankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rank [file.json]",
		Short: "Rank candidates from a JSON request file",
		Long:  `Reads {"query": {...}, "candidates": [...]} and prints the top matches as JSON`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0])
			if err != nil {
				return err
			}

			engine, err := bootstrap.NewEngine(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			matches, err := engine.Matcher.FindMatches(ctx, *req.Query, req.Candidates)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"matches": matches,
				"count":   len(matches),
			})
		},
	}
}

// readRequest loads and checks a match request file
func readRequest(path string) (*domain.MatchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var req domain.MatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidRequest, path, err)
	}
	if req.Query == nil || req.Query.ID == "" {
		return nil, fmt.Errorf("%w: %s: query with an id is required", domain.ErrInvalidRequest, path)
	}
	for i, c := range req.Candidates {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: %s: candidate %d has no id", domain.ErrInvalidRequest, path, i)
		}
	}
	if req.Candidates == nil {
		req.Candidates = []domain.Item{}
	}
	return &req, nil
}

// createWeightsCmd prints the effective weight table
func createWeightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weights",
		Short: "Show the field weight table in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			weights, err := cfg.Matching.FieldWeights()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, field := range domain.Fields {
				fmt.Fprintf(out, "%-12s %6.2f\n", field, weights.Get(field))
			}
			fmt.Fprintf(out, "%-12s %6.2f\n", "total", weights.Sum())
			return nil
		},
	}
}

// createCheckCmd validates configuration and probes the embedding backend
func createCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and probe the embedding provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := bootstrap.NewEngine(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration valid")
			fmt.Fprintf(out, "Cache: %s\n", cfg.Cache.Type)

			if !engine.Client.Available(cmd.Context()) {
				log.Warn("embedding provider unavailable", "provider", cfg.Embedding.Provider, "url", cfg.Embedding.BaseURL)
				return fmt.Errorf("%w: %s at %s is not reachable", domain.ErrProviderFailure, cfg.Embedding.Provider, cfg.Embedding.BaseURL)
			}
			fmt.Fprintf(out, "Embedding provider %s at %s: available\n", cfg.Embedding.Provider, cfg.Embedding.BaseURL)
			return nil
		},
	}
}
