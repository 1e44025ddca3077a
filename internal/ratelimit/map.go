package ratelimit

import (
	"strings"
	"time"

	"github.com/mtreilly/discord-http-proxy/logger"
)

// Token is an opaque bearer/bot token string carrying a scheme prefix.
type Token string

// normalizeDefaultToken prepends "Bot " to a bare token, matching the
// historical behavior of the proxy this was distilled from: a bare default
// token is assumed to be a bot token.
func normalizeDefaultToken(raw string) Token {
	if strings.HasPrefix(raw, "Bot ") || strings.HasPrefix(raw, "Bearer ") {
		return Token(raw)
	}
	return Token("Bot " + raw)
}

// MapConfig configures the non-default-token side of a RatelimiterMap.
type MapConfig struct {
	MaxSize       int // Unbounded for unbounded, 0 to disable caching non-default tokens
	DecayTimeout  time.Duration
	ReapInterval  time.Duration
	TicketTimeout time.Duration
}

// RatelimiterMap maps an auth token to its per-token Ratelimiter. The
// default token's ratelimiter is held directly and is never evicted;
// every other token's ratelimiter lives in an ExpiringLRU.
type RatelimiterMap struct {
	defaultToken       Token
	defaultRatelimiter *Ratelimiter

	others *ExpiringLRU[Token, *Ratelimiter]

	cfg MapConfig
	log *logger.Logger
}

// NewRatelimiterMap builds the map. rawDefaultToken is normalized once here
// (spec.md §4.3): a bare token with no scheme prefix is assumed to be a bot
// token.
func NewRatelimiterMap(rawDefaultToken string, cfg MapConfig, log *logger.Logger) *RatelimiterMap {
	if log == nil {
		log = logger.Default()
	}

	m := &RatelimiterMap{
		defaultToken:       normalizeDefaultToken(rawDefaultToken),
		defaultRatelimiter: NewRatelimiter(cfg.TicketTimeout, log),
		cfg:                cfg,
		log:                log,
	}

	m.others = NewExpiringLRU[Token, *Ratelimiter](
		cfg.MaxSize,
		cfg.DecayTimeout,
		cfg.ReapInterval,
		WithLogger[Token, *Ratelimiter](log),
		WithOnEvict(func(t Token, rl *Ratelimiter) {
			log.Debug("ratelimit.map.evict", "token_len", len(t))
			rl.Close()
		}),
	)

	return m
}

// DefaultToken returns the normalized default token.
func (m *RatelimiterMap) DefaultToken() Token {
	return m.defaultToken
}

// GetOrInsert resolves the ratelimiter for an optional caller-supplied
// token. A nil/empty token, or one equal to the default token, always
// resolves to the default pair and is never cached separately. Any other
// token is looked up (or created) in the ExpiringLRU.
func (m *RatelimiterMap) GetOrInsert(token string) (*Ratelimiter, Token) {
	if token == "" || Token(token) == m.defaultToken {
		return m.defaultRatelimiter, m.defaultToken
	}

	t := Token(token)
	if rl, ok := m.others.Get(t); ok {
		return rl, t
	}

	rl := NewRatelimiter(m.cfg.TicketTimeout, m.log)
	m.others.Insert(t, rl)
	return rl, t
}

// Len reports how many non-default tokens currently live in the cache.
func (m *RatelimiterMap) Len() int {
	return m.others.Len()
}

// Close stops the decay reaper and the default ratelimiter's bucket
// actors. Call this once, during process shutdown.
func (m *RatelimiterMap) Close() {
	m.others.Close()
	m.defaultRatelimiter.Close()
}
