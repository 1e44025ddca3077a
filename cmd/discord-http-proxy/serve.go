package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtreilly/discord-http-proxy/internal/config"
	"github.com/mtreilly/discord-http-proxy/internal/metrics"
	"github.com/mtreilly/discord-http-proxy/internal/proxy"
	"github.com/mtreilly/discord-http-proxy/internal/ratelimit"
	"github.com/mtreilly/discord-http-proxy/logger"
)

func runServe(cmd *cobra.Command) error {
	bootLog := logger.Default()

	cfg, err := config.Load(bootLog)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	log.Info("discord_http_proxy.starting", "version", version, "addr", cfg.Addr())

	rlMap := ratelimit.NewRatelimiterMap(cfg.DiscordToken, cfg.RatelimitMapConfig(), log)

	reg := metrics.New(cfg.MetricKey, cfg.MetricTimeout, func() float64 { return float64(rlMap.Len()) })

	handler := proxy.NewHandler(cfg.ProxyConfig(), rlMap, reg, log)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("discord_http_proxy.listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: listen error: %w", err)
		}
		return nil
	case <-stop:
		log.Info("discord_http_proxy.shutting_down", "grace", cfg.ShutdownGrace.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("discord_http_proxy.shutdown_error", "error", err.Error())
	}

	rlMap.Close()
	reg.Close()
	log.Info("discord_http_proxy.shutdown_complete")
	return nil
}
