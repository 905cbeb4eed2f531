package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/arenaforge/instancer/pkg/authn"
	"github.com/arenaforge/instancer/pkg/captcha"
	"github.com/arenaforge/instancer/pkg/catalog"
	"github.com/arenaforge/instancer/pkg/clock"
	"github.com/arenaforge/instancer/pkg/config"
	"github.com/arenaforge/instancer/pkg/dockergateway"
	"github.com/arenaforge/instancer/pkg/edgelabeler"
	"github.com/arenaforge/instancer/pkg/httpapi"
	"github.com/arenaforge/instancer/pkg/lifecycle"
	"github.com/arenaforge/instancer/pkg/lock"
	"github.com/arenaforge/instancer/pkg/log"
	"github.com/arenaforge/instancer/pkg/pruner"
	"github.com/arenaforge/instancer/pkg/tokencache"
)

var embedPruner bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `serve starts the HTTP API surface (GET/PUT/DELETE
/v1/instances/{challenge}) backed by the instance lifecycle core. By
default it also starts the pruner loop in a background goroutine; pass
--embedded-pruner=false to run the pruner as its own process instead.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&embedPruner, "embedded-pruner", true, "run the pruner loop in-process alongside the API server")
}

func runServe(cmd *cobra.Command, args []string) error {
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

	auth, err := buildAuthenticator(cfg, redisClient)
	if err != nil {
		return fmt.Errorf("building authenticator: %w", err)
	}

	var verifier *captcha.Verifier
	if cfg.CaptchaEnabled() {
		verifier = captcha.New(cfg.HCaptchaSecret, cfg.HCaptchaSiteKey)
	}

	srv := httpapi.New(lc, auth, verifier)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if embedPruner {
		p := pruner.New(gateway, lc, pruner.Options{
			ManagerName: cfg.DockerManagerName,
			Prefix:      cfg.Prefix,
			Interval:    time.Duration(cfg.PrunnerIntervalSeconds) * time.Second,
		}, nil)
		go p.Run(ctx)
		logger.Info().Msg("embedded pruner started")
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: srv,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("error shutting down HTTP server")
		}
	}()

	logger.Info().Str("addr", cfg.ListenAddr()).Msg("starting HTTP server")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving HTTP: %w", err)
	}
	return nil
}

func buildAuthenticator(cfg *config.Config, redisClient *redis.Client) (authn.Authenticator, error) {
	args := authn.ParseProviderArgs(cfg.AuthProviderArgs)

	var deps authn.Deps
	if cfg.AuthProvider == "platform-lookup" {
		deps = authn.Deps{
			Cache:       tokencache.New(redisClient, cfg.Prefix, time.Duration(cfg.AuthCacheLifeTimeSeconds)*time.Second),
			PlatformURL: cfg.AuthPlatformURL,
		}
	}

	return authn.New(cfg.AuthProvider, args, deps)
}
