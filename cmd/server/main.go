package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nulzo/prism-gateway/cmd"
	"github.com/nulzo/prism-gateway/internal/cli"
	"github.com/nulzo/prism-gateway/internal/config"
	"github.com/nulzo/prism-gateway/internal/credentials"
	"github.com/nulzo/prism-gateway/internal/directory"
	"github.com/nulzo/prism-gateway/internal/gateway"
	"github.com/nulzo/prism-gateway/internal/httpclient"
	"github.com/nulzo/prism-gateway/internal/platform/logger"
	"github.com/nulzo/prism-gateway/internal/platform/otel"
	"github.com/nulzo/prism-gateway/internal/registry"
	"github.com/nulzo/prism-gateway/internal/server"
	"go.uber.org/zap"

	// Import protocols to trigger init() registration
	_ "github.com/nulzo/prism-gateway/internal/llm/gemini"
	_ "github.com/nulzo/prism-gateway/internal/llm/openai"
	_ "github.com/nulzo/prism-gateway/internal/llm/sandbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed to load config: %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}

	logger.Initialize(logger.FromSettings(cfg.Log.Level, cfg.Log.Format))
	defer logger.Sync()

	if cfg.Server.CheckUpdates {
		go cmd.CheckForUpdates(ctx)
	}

	if cfg.Tracing.Enabled {
		shutdown, err := otel.InitTracer(ctx, cfg.Tracing.ServiceName, cmd.AppVersion, os.Stdout)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			_ = shutdown(context.Background())
		}()
	}

	// a bad provider table is a startup error, never a request-time one
	reg, err := registry.New(cfg.Providers)
	if err != nil {
		logger.Fatal("Invalid provider configuration", zap.Error(err))
	}

	creds := credentials.NewEnvResolver()
	client := httpclient.New(cfg.Upstream.ResponseHeaderTimeout)

	opts := []directory.Option{directory.WithTTL(cfg.Directory.TTL)}
	if cfg.Directory.Redis.Enabled {
		store, err := directory.NewRedisStore(ctx, cfg.Directory.Redis, cfg.Directory.TTL)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.String("addr", cfg.Directory.Redis.Addr), zap.Error(err))
		}
		defer func() {
			_ = store.Close()
		}()
		opts = append(opts, directory.WithStore(store))
		logger.Info("Model directory backed by redis", zap.String("addr", cfg.Directory.Redis.Addr))
	}
	models := directory.New(reg, creds, client, opts...)

	service := gateway.NewService(reg, models, creds, client)

	printBanner(cfg, reg, creds)

	srv := server.New(cfg, logger.Raw(), service)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// loadConfig honours CONFIG_FILE before falling back to the search path.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return config.LoadFile(path)
	}
	return config.LoadConfig()
}

func printBanner(cfg *config.Config, reg *registry.Registry, creds *credentials.Resolver) {
	fmt.Println(cli.Style("prism gateway "+cmd.AppVersion, cli.Purple))
	fmt.Printf("%s listening on :%s (%s)\n", cli.Style("›", cli.DimCode), cfg.Server.Port, cfg.Server.Env)

	for _, p := range reg.Providers() {
		mark := cli.CheckMark()
		note := ""
		if _, ok := creds.Resolve(p.ProviderConfig); !ok {
			mark = cli.WarningSign()
			note = cli.Style(fmt.Sprintf(" (%s not set)", p.CredentialEnv), cli.Yellow)
		}
		fmt.Printf("  %s %-16s %s%s\n", mark, p.ID, cli.Style(string(p.Kind), cli.Cyan), note)
	}
}
