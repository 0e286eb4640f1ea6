package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	wayback "github.com/edgi-govdata-archiving/wayback-sub000"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/cache"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/httpapi"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/inboundlimit"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wbconfig"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wblog"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address, overrides config")
	configPath := fs.String("config", "", "path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	holder, err := wbconfig.NewHolder(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := holder.Watch(ctx); err != nil {
		return err
	}
	defer holder.Stop()

	cfg := holder.Get()
	listenAddr := cfg.Serve.Addr
	if *addr != "" {
		listenAddr = *addr
	}

	sessionCache, err := buildCache(cfg)
	if err != nil {
		return err
	}

	session := wayback.NewSession(wayback.SessionConfig{
		Timeout: cfg.Timeout,
		Cache:   sessionCache,
	})
	defer session.Close()

	client := wayback.NewClientWithSession(session)

	limiter := inboundlimit.New(inboundlimit.Config{
		GlobalRate:      rate.Limit(rateOrDefault(cfg.Serve.InboundRPS)),
		GlobalBurst:     cfg.Serve.InboundBurst,
		PerIPRate:       10,
		PerIPBurst:      20,
		CleanupInterval: 5 * time.Minute,
	})

	server := httpapi.New(client, limiter)

	wblog.Base().Info().Str("addr", listenAddr).Msg("starting waybackctl serve")
	return httpapi.Run(ctx, listenAddr, server)
}

func buildCache(cfg wbconfig.AppConfig) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case "redis":
		return cache.NewRedis(cache.RedisConfig{Addr: cfg.RedisAddr}, wblog.WithComponent("cache"))
	case "badger":
		return cache.NewBadger(cfg.CacheDir)
	case "none":
		return cache.NoOp(), nil
	default:
		return cache.NewMemory(5 * time.Minute), nil
	}
}

func rateOrDefault(rps int) float64 {
	if rps <= 0 {
		return 50
	}
	return float64(rps)
}
