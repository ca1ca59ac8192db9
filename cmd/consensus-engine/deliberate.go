// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/consensus-engine/internal/archive"
	"github.com/pdiddy/consensus-engine/internal/deliberate"
	"github.com/pdiddy/consensus-engine/internal/generate"
	"github.com/pdiddy/consensus-engine/internal/panel"
	"github.com/pdiddy/consensus-engine/pkg/types"
)

var deliberateCmd = &cobra.Command{
	Use:   "deliberate [prompt]",
	Short: "Run a deliberation session over the configured panel",
	Long: `Deliberate starts one session: the panel proposes, critiques,
synthesizes, and validates in sequence, under per-round and whole-session
deadlines. The collaborative output is printed as YAML (or JSON with --json)
and archived when an archive directory is configured.

Without an Anthropic API key the session can still run offline with --canned,
which feeds panelists fixed responses in rotation.`,
	Args: cobra.ArbitraryArgs,
	RunE: runDeliberate,
}

func init() {
	deliberateCmd.Flags().String("prompt", "", "the request to deliberate (or pass as positional args)")
	deliberateCmd.Flags().Int("rounds", 0, "maximum deliberation rounds (default 4)")
	deliberateCmd.Flags().Duration("time-limit", 0, "session deadline (default 5m, minimum 10s)")
	deliberateCmd.Flags().Float64("consensus-threshold", 0, "agreement percentage that ends deliberation early (default 95)")
	deliberateCmd.Flags().Float64("quality-target", 0, "round quality that ends deliberation early (0 disables)")
	deliberateCmd.Flags().String("priority", "", "request priority: low, medium, high, or critical")
	deliberateCmd.Flags().StringSlice("participants", nil, "preferred participant ids or providers")
	deliberateCmd.Flags().Float64("cost-budget", 0, "cost budget in dollars, for utilization reporting")
	deliberateCmd.Flags().String("panel", "", "panel YAML file (default: built-in panel)")
	deliberateCmd.Flags().String("archive-dir", "", "archive directory for finished sessions")
	deliberateCmd.Flags().StringSlice("canned", nil, "offline mode: canned responses served in rotation")
	deliberateCmd.Flags().Bool("json", false, "output the result as JSON")
	deliberateCmd.Flags().Bool("events", false, "stream engine events to stderr")

	rootCmd.AddCommand(deliberateCmd)
}

func runDeliberate(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	prompt, _ := cmd.Flags().GetString("prompt")
	if prompt == "" {
		prompt = strings.Join(args, " ")
	}

	cfg, err := engineConfig(cmd)
	if err != nil {
		return err
	}

	svc, err := generationService(cmd, cfg.Generation)
	if err != nil {
		return err
	}

	opts := []deliberate.Option{deliberate.WithLogger(log)}
	if cfg.Archive.ArchiveDir != "" {
		store, err := archive.NewStore(cfg.Archive)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, deliberate.WithArchiver(store))
	}

	mgr := deliberate.NewManager(cfg, svc, opts...)
	defer mgr.Dispose()

	if stream, _ := cmd.Flags().GetBool("events"); stream {
		go func() {
			for e := range mgr.Events() {
				log.Info("event", zap.String("type", string(e.Type)), zap.Any("data", e.Data))
			}
		}()
	}

	req, err := requestFromFlags(cmd, prompt)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := mgr.StartSession(ctx, req)
	if err != nil {
		return err
	}
	if err := mgr.ExecuteSessionRounds(ctx, s.ID()); err != nil {
		return err
	}
	out, err := mgr.CompleteSession(ctx, s.ID())
	if err != nil {
		return err
	}

	metrics := s.Metrics()
	fmt.Fprintf(os.Stderr, "Session %s: %d rounds, %d contributions, consensus=%v, quality=%.1f\n",
		s.ID(), metrics.RoundCount, metrics.ContributionCount, metrics.ConsensusAchieved, out.QualityScore)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// engineConfig assembles the engine configuration from the config file and
// command flags, flags winning.
func engineConfig(cmd *cobra.Command) (types.EngineConfig, error) {
	var cfg types.EngineConfig

	cfg.Generation.MaxRetries = viper.GetInt("generation.max_retries")
	cfg.Generation.MaxTokens = viper.GetInt("generation.max_tokens")
	cfg.Generation.Timeout = viper.GetDuration("generation.timeout")

	if panelPath, _ := cmd.Flags().GetString("panel"); panelPath != "" {
		entries, err := panel.LoadFile(panelPath)
		if err != nil {
			return cfg, err
		}
		cfg.Panel.Entries = entries
	}

	if n, _ := cmd.Flags().GetInt("rounds"); n > 0 {
		cfg.Session.MaxRounds = n
	} else {
		cfg.Session.MaxRounds = viper.GetInt("session.max_rounds")
	}
	if d, _ := cmd.Flags().GetDuration("time-limit"); d > 0 {
		cfg.Session.TimeLimit = d
	} else {
		cfg.Session.TimeLimit = viper.GetDuration("session.time_limit")
	}
	if q, _ := cmd.Flags().GetFloat64("quality-target"); q > 0 {
		cfg.Session.QualityTarget = q
	}
	// Rounds are driven synchronously from this command.
	cfg.Session.Manual = true

	if dir, _ := cmd.Flags().GetString("archive-dir"); dir != "" {
		cfg.Archive.ArchiveDir = dir
	} else {
		cfg.Archive.ArchiveDir = viper.GetString("archive.dir")
	}
	cfg.Archive.MaxResults = viper.GetInt("archive.max_results")

	return cfg, nil
}

// generationService picks the backend: canned responses for offline runs,
// otherwise a registry with every provider whose API key is available.
func generationService(cmd *cobra.Command, gen types.GenerationConfig) (generate.Service, error) {
	if canned, _ := cmd.Flags().GetStringSlice("canned"); len(canned) > 0 {
		return generate.NewStatic(canned...), nil
	}

	reg := generate.NewRegistry()
	registered := 0
	if key := secretDefault("anthropic-api-key", viper.GetString("generation.anthropic_api_key")); key != "" {
		reg.Register(types.ProviderAnthropic, &generate.Anthropic{
			APIKey:     key,
			MaxTokens:  gen.MaxTokens,
			MaxRetries: gen.MaxRetries,
			UserAgent:  "consensus-engine/" + version,
		})
		registered++
	}
	if registered == 0 {
		return nil, fmt.Errorf("no generation backend available: add an API key under .secrets/ or run with --canned")
	}
	return reg, nil
}

func requestFromFlags(cmd *cobra.Command, prompt string) (types.CollaborationRequest, error) {
	priorityRaw, _ := cmd.Flags().GetString("priority")
	priority := types.Priority(priorityRaw)
	if !priority.Valid() {
		return types.CollaborationRequest{}, fmt.Errorf("unknown priority %q", priorityRaw)
	}

	rounds, _ := cmd.Flags().GetInt("rounds")
	timeLimit, _ := cmd.Flags().GetDuration("time-limit")
	threshold, _ := cmd.Flags().GetFloat64("consensus-threshold")
	participants, _ := cmd.Flags().GetStringSlice("participants")
	budget, _ := cmd.Flags().GetFloat64("cost-budget")

	return types.CollaborationRequest{
		Prompt:                prompt,
		Priority:              priority,
		TimeLimit:             timeLimit,
		MaxRounds:             rounds,
		ConsensusThreshold:    threshold,
		PreferredParticipants: participants,
		CostBudget:            budget,
	}, nil
}
