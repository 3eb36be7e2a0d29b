// cmd/quickvote runs a one-shot consensus decision from a votes file. It is a
// thin host around pkg/consensus showing how an embedding application wires
// the engine: config, logger, registry, QuickVote, result out.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"agent_consensus/pkg/config"
	"agent_consensus/pkg/consensus"
	"agent_consensus/pkg/utils"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	votesFile  = flag.String("votes", "", "Path to JSON file with the votes to cast")
	algorithm  = flag.String("algorithm", "", "Override the configured consensus algorithm")
	debug      = flag.Bool("debug", false, "Enable debug mode")
)

// voteEntry mirrors one element of the votes file. Confidence and weight are
// pointers so an omitted field falls back to the engine defaults (both 1.0).
type voteEntry struct {
	AgentID    string          `json:"agent_id"`
	Choice     json.RawMessage `json:"choice"`
	Confidence *float64        `json:"confidence"`
	Weight     *float64        `json:"weight"`
	Metadata   map[string]any  `json:"metadata"`
}

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *votesFile == "" {
		logger.Error("no votes file given, use -votes")
		os.Exit(2)
	}

	submissions, err := loadVotes(*votesFile)
	if err != nil {
		logger.Error("Failed to load votes", zap.String("path", *votesFile), zap.Error(err))
		os.Exit(1)
	}

	consensusCfg := cfg.Consensus
	if *algorithm != "" {
		consensusCfg.DefaultAlgorithm = *algorithm
	}

	registry, err := consensus.NewRegistry(&consensusCfg, logger)
	if err != nil {
		logger.Error("Failed to create registry", zap.Error(err))
		os.Exit(1)
	}

	result, err := registry.QuickVote(submissions, nil)
	if err != nil {
		logger.Error("Quick vote failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Quick vote complete",
		zap.String("algorithm", string(result.Algorithm)),
		zap.Int("votes", result.TotalVotes),
		zap.Bool("consensusReached", result.ConsensusReached),
		zap.String("summary", result.Summary))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("Failed to encode result", zap.Error(err))
		os.Exit(1)
	}
}

func loadVotes(path string) ([]consensus.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading votes file: %w", err)
	}

	var entries []voteEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing votes file: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("votes file is empty")
	}

	submissions := make([]consensus.Submission, 0, len(entries))
	for i, entry := range entries {
		if entry.AgentID == "" {
			return nil, fmt.Errorf("vote %d: agent_id is required", i)
		}

		var choice any
		if len(entry.Choice) > 0 {
			if err := json.Unmarshal(entry.Choice, &choice); err != nil {
				return nil, fmt.Errorf("vote %d: parsing choice: %w", i, err)
			}
		}

		opts := consensus.DefaultVoteOptions()
		if entry.Confidence != nil {
			opts.Confidence = *entry.Confidence
		}
		if entry.Weight != nil {
			opts.Weight = *entry.Weight
		}
		opts.Metadata = entry.Metadata

		submissions = append(submissions, consensus.Submission{
			AgentID: entry.AgentID,
			Choice:  choice,
			Options: &opts,
		})
	}

	return submissions, nil
}

func initLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	logCfg := &utils.LogConfig{
		Level:      cfg.LogLevel,
		OutputPath: cfg.Log.OutputPath,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxAge:     cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
		Debug:      debug || cfg.IsDevelopment(),
	}
	return utils.NewLogger(logCfg)
}
