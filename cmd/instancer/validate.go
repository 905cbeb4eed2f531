package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arenaforge/instancer/pkg/catalog"
	"github.com/arenaforge/instancer/pkg/log"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configured challenge catalog",
	Long: `validate loads the catalog at CHALLENGES_YAML_PATH and exits
non-zero if zero challenges were loaded - a quick operability check for
CI or a pre-deploy smoke test, without needing a docker daemon or redis
reachable.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	logger := log.WithComponent("main")

	cat, err := catalog.Load(cfg.ChallengesYAMLPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	all := cat.All()
	logger.Info().Int("challenges", len(all)).Str("path", cfg.ChallengesYAMLPath).Msg("catalog validated")
	if len(all) == 0 {
		return fmt.Errorf("no challenges loaded from %s", cfg.ChallengesYAMLPath)
	}

	for _, ch := range all {
		fmt.Printf("%s: timeout=%ds containers=%d expose=%d\n", ch.Name, ch.Timeout, len(ch.Containers), len(ch.Expose))
	}
	return nil
}
