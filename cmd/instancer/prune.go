package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/arenaforge/instancer/pkg/catalog"
	"github.com/arenaforge/instancer/pkg/clock"
	"github.com/arenaforge/instancer/pkg/dockergateway"
	"github.com/arenaforge/instancer/pkg/edgelabeler"
	"github.com/arenaforge/instancer/pkg/lifecycle"
	"github.com/arenaforge/instancer/pkg/lock"
	"github.com/arenaforge/instancer/pkg/log"
	"github.com/arenaforge/instancer/pkg/pruner"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Run the pruner as its own process",
	Long: `prune runs the background reclamation loop standalone, constructing
its own Docker daemon client and lock client rather than sharing either
with an API server process. Useful when the pruner is deployed as a
separate workload from the request-serving API.`,
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	logger := log.WithComponent("main")

	cat, err := catalog.Load(cfg.ChallengesYAMLPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	gateway, err := dockergateway.New(cfg.DockerHost)
	if err != nil {
		return fmt.Errorf("connecting to docker daemon: %w", err)
	}
	defer gateway.Close()

	locks := lock.New(redisClient, cfg.Prefix,
		time.Duration(cfg.RedisLockTimeoutSeconds)*time.Second,
		time.Duration(cfg.RedisLockBlockingTimeoutSeconds)*time.Second)

	lc := lifecycle.New(gateway, cat, locks, clock.System{}, lifecycle.Options{
		Prefix:             cfg.Prefix,
		ManagerName:        cfg.DockerManagerName,
		ProxyContainerName: cfg.TraefikContainerName,
		InstancesHost:      cfg.InstancesHost,
		StopTimeout:        time.Duration(cfg.DockerStopTimeoutSeconds) * time.Second,
		Entrypoints: edgelabeler.Entrypoints{
			HTTP:  cfg.TraefikHTTPEntrypoint,
			HTTPS: cfg.TraefikHTTPSEntrypoint,
			TCP:   cfg.TraefikTCPEntrypoint,
		},
		Ports: lifecycle.PortMap{
			HTTP:  cfg.TraefikHTTPPort,
			HTTPS: cfg.TraefikHTTPSPort,
			TCP:   cfg.TraefikTCPPort,
		},
	})

	p := pruner.New(gateway, lc, pruner.Options{
		ManagerName: cfg.DockerManagerName,
		Prefix:      cfg.Prefix,
		Interval:    time.Duration(cfg.PrunnerIntervalSeconds) * time.Second,
	}, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Dur("interval", time.Duration(cfg.PrunnerIntervalSeconds)*time.Second).Msg("starting standalone pruner")
	p.Run(ctx)
	return nil
}
