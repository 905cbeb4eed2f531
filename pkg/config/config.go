// Package config loads the process-wide configuration table from
// environment variables once at startup, per the design note against
// re-reading or reloading at runtime.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every configuration key the system reads, loaded once from
// the environment.
type Config struct {
	// API binding
	BindHost        string `env:"BIND_HOST" envDefault:"0.0.0.0"`
	BindPort        int    `env:"BIND_PORT" envDefault:"8080"`
	WebWorkers      int    `env:"WEB_WORKERS" envDefault:"4"`
	UseProxyHeaders bool   `env:"USE_PROXY_HEADERS" envDefault:"false"`

	// Authenticator selection
	AuthProvider     string `env:"AUTH_PROVIDER" envDefault:"local"`
	AuthProviderArgs string `env:"AUTH_PROVIDER_ARGS"`

	// Catalog
	ChallengesYAMLPath string `env:"CHALLENGES_YAML_PATH" envDefault:"./challenges"`
	TemplatesPath      string `env:"TEMPLATES_PATH" envDefault:"./templates"`

	// Edge proxy contract
	TraefikContainerName  string `env:"TRAEFIK_CONTAINER_NAME" envDefault:"traefik"`
	TraefikHTTPEntrypoint string `env:"TRAEFIK_HTTP_ENTRYPOINT" envDefault:"web"`
	TraefikHTTPSEntrypoint string `env:"TRAEFIK_HTTPS_ENTRYPOINT" envDefault:"websecure"`
	TraefikTCPEntrypoint  string `env:"TRAEFIK_TCP_ENTRYPOINT" envDefault:"tcp"`
	TraefikHTTPPort       int    `env:"TRAEFIK_HTTP_PORT" envDefault:"80"`
	TraefikHTTPSPort      int    `env:"TRAEFIK_HTTPS_PORT" envDefault:"443"`
	TraefikTCPPort        int    `env:"TRAEFIK_TCP_PORT" envDefault:"9000"`

	// Discovery / naming
	DockerManagerName string `env:"DOCKER_MANAGER_NAME" envDefault:"instancer"`
	Prefix            string `env:"PREFIX" envDefault:"ti"`
	InstancesHost     string `env:"INSTANCES_HOST" envDefault:"instances.example.org"`

	// Redis (lock + token cache backend)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RedisLockTimeoutSeconds          int `env:"REDIS_LOCK_TIMEOUT_SECONDS" envDefault:"60"`
	RedisLockBlockingTimeoutSeconds int `env:"REDIS_LOCK_BLOCKING_TIMEOUT_SECONDS" envDefault:"30"`

	// Docker
	DockerStopTimeoutSeconds int    `env:"DOCKER_STOP_TIMEOUT_SECONDS" envDefault:"10"`
	DockerHost               string `env:"DOCKER_HOST"`

	// Pruner
	PrunnerIntervalSeconds int `env:"PRUNNER_INTERVAL_SECONDS" envDefault:"30"`

	// Token cache
	AuthCacheLifeTimeSeconds int `env:"AUTH_CACHE_LIFE_TIME" envDefault:"300"`

	// Platform-lookup authenticator
	AuthPlatformURL string `env:"AUTH_PLATFORM_URL"`

	// Captcha (both empty disables the pre-check entirely)
	HCaptchaSecret  string `env:"HCAPTCHA_SECRET"`
	HCaptchaSiteKey string `env:"HCAPTCHA_SITE_KEY"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON   bool   `env:"LOG_JSON" envDefault:"true"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindHost, c.BindPort)
}

// RedisAddr returns the host:port the redis client should dial.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// CaptchaEnabled reports whether both captcha keys are configured.
func (c *Config) CaptchaEnabled() bool {
	return c.HCaptchaSecret != "" && c.HCaptchaSiteKey != ""
}
