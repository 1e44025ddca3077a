// Package config loads the proxy's configuration from environment
// variables. Unlike the SDK's YAML-file loader, the proxy is meant to run
// as a single long-lived process configured the way twelve-factor services
// are: everything comes from the environment, an unparseable value falls
// back to its default with a logged warning, and only HOST/PORT failing to
// parse is fatal (there is no sane default network address to bind to).
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/mtreilly/discord-http-proxy/internal/proxy"
	"github.com/mtreilly/discord-http-proxy/internal/ratelimit"
	"github.com/mtreilly/discord-http-proxy/logger"
)

// Config is the fully resolved, ready-to-use configuration for one proxy
// process.
type Config struct {
	Host string
	Port int

	DiscordToken string

	CacheMaxSize  int
	DecayTimeout  time.Duration
	ReapInterval  time.Duration
	TicketTimeout time.Duration

	DisableHTTP2 bool

	MetricKey     string
	MetricTimeout time.Duration

	LogLevel  logger.Level
	LogFormat string

	UpstreamBaseURL string
	ShutdownGrace   time.Duration
	RequestTimeout  time.Duration
}

const (
	defaultHost = "0.0.0.0"
	defaultPort = 80

	defaultDecayTimeout  = time.Hour
	defaultReapInterval  = 10 * time.Minute
	defaultMetricTimeout = 10 * time.Minute

	defaultUpstreamBaseURL = "https://discord.com"
	defaultShutdownGrace   = 30 * time.Second
	defaultRequestTimeout  = 15 * time.Second

	// ticketGrace is added on top of RequestTimeout to get the ticket
	// holder's "dropped without delivering" reclaim timeout (spec's
	// "equal to the upstream request deadline plus a small grace").
	ticketGrace = 5 * time.Second
)

// Load reads Config from the process environment. log receives warnings
// for values that failed to parse; pass a logger already configured with
// the desired level/format if you want those warnings visible.
func Load(log *logger.Logger) (*Config, error) {
	if log == nil {
		log = logger.Default()
	}

	host := getEnvOrDefault("HOST", defaultHost)
	if net.ParseIP(host) == nil {
		return nil, fmt.Errorf("config: HOST %q is not a valid IP address", host)
	}

	port := defaultPort
	if raw := os.Getenv("PORT"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("config: PORT %q is not a valid port", raw)
		}
		port = p
	}

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("config: DISCORD_TOKEN is required")
	}

	cfg := &Config{
		Host:            host,
		Port:            port,
		DiscordToken:    token,
		CacheMaxSize:    parseIntEnv(log, "CLIENT_CACHE_MAX_SIZE", ratelimit.Unbounded),
		DecayTimeout:    parseSecondsEnvWithAlias(log, "CLIENT_DECAY_TIMEOUT", "CLIENT_DECAY_TIEOUT", defaultDecayTimeout),
		ReapInterval:    parseSecondsEnv(log, "CLIENT_REAP_INTERVAL", defaultReapInterval),
		DisableHTTP2:    getEnvOrDefault("DISABLE_HTTP2", "") != "",
		// Empty by default: metric names already carry a discord_proxy_
		// prefix of their own: METRIC_KEY only adds another layer on top
		// for deployments running more than one proxy instance behind one
		// Prometheus scrape config.
		MetricKey:       getEnvOrDefault("METRIC_KEY", ""),
		MetricTimeout:   parseSecondsEnv(log, "METRIC_TIMEOUT", defaultMetricTimeout),
		LogLevel:        logger.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", "json"),
		UpstreamBaseURL: getEnvOrDefault("UPSTREAM_BASE_URL", defaultUpstreamBaseURL),
		ShutdownGrace:   parseSecondsEnv(log, "SHUTDOWN_GRACE", defaultShutdownGrace),
		RequestTimeout:  parseSecondsEnv(log, "REQUEST_TIMEOUT", defaultRequestTimeout),
	}
	cfg.TicketTimeout = cfg.RequestTimeout + ticketGrace

	return cfg, nil
}

// Addr is the listen address derived from Host/Port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RatelimitMapConfig adapts Config into ratelimit.MapConfig.
func (c *Config) RatelimitMapConfig() ratelimit.MapConfig {
	return ratelimit.MapConfig{
		MaxSize:       c.CacheMaxSize,
		DecayTimeout:  c.DecayTimeout,
		ReapInterval:  c.ReapInterval,
		TicketTimeout: c.TicketTimeout,
	}
}

// ProxyConfig adapts Config into proxy.Config.
func (c *Config) ProxyConfig() proxy.Config {
	return proxy.Config{
		UpstreamBaseURL: c.UpstreamBaseURL,
		RequestTimeout:  c.RequestTimeout,
		Pool: proxy.PoolConfig{
			DisableHTTP2: c.DisableHTTP2,
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func parseIntEnv(log *logger.Logger, key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn("config.parse_failed", "var", key, "value", raw, "default", def)
		return def
	}
	return n
}

func parseSecondsEnv(log *logger.Logger, key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn("config.parse_failed", "var", key, "value", raw, "default", def)
		return def
	}
	return time.Duration(secs * float64(time.Second))
}

// parseSecondsEnvWithAlias reads primaryKey, falling back to aliasKey (with
// a migration warning) when primaryKey is unset — the soft-deprecated
// CLIENT_DECAY_TIEOUT/CLIENT_DECAY_TIMEOUT pair.
func parseSecondsEnvWithAlias(log *logger.Logger, primaryKey, aliasKey string, def time.Duration) time.Duration {
	if os.Getenv(primaryKey) != "" {
		return parseSecondsEnv(log, primaryKey, def)
	}
	if os.Getenv(aliasKey) != "" {
		log.Warn("config.deprecated_var", "var", aliasKey, "use_instead", primaryKey)
		return parseSecondsEnv(log, aliasKey, def)
	}
	return def
}
