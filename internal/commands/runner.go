// internal/commands/runner.go
package modeprobe

import (
	"fmt"

	"github.com/spf13/cobra"

	"modeprobe/internal/cache"
	"modeprobe/internal/experiments"
	"modeprobe/internal/provider"
	"modeprobe/internal/scoring"
)

// newRunner assembles a sweep runner from the loaded configuration and the
// persistent flags. The returned cleanup closes the cache and client and
// must run even when the sweep fails.
func newRunner(cmd *cobra.Command) (*experiments.Runner, func(), error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, nil, fmt.Errorf("configuration is not initialized")
	}

	scorer, err := scoring.New(cfg.Scoring.Type, scoring.Options{
		RequiredKeys: cfg.Scoring.RequiredKeys,
		Target:       cfg.Scoring.Target,
	})
	if err != nil {
		return nil, nil, err
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	var store cache.Store = cache.NoCache{}
	if !noCache {
		store, err = cache.Open(cfg.CachePath)
		if err != nil {
			return nil, nil, err
		}
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	client := provider.NewOpenAIClient(cfg.Provider.BaseURL)

	runner := &experiments.Runner{
		Config: cfg,
		Client: client,
		Cache:  store,
		Scorer: scorer,
		DryRun: dryRun,
	}
	cleanup := func() {
		_ = store.Close()
		_ = client.Close()
	}
	return runner, cleanup, nil
}

func maxPrompts(cmd *cobra.Command) int {
	n, _ := cmd.Flags().GetInt("max-prompts")
	return n
}
