package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/lmittmann/tint"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-registry/internal/api"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
	"github.com/tendant/simple-registry/pkg/simpleregistry/config"
)

func main() {
	configFile := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	opts := []config.Option{config.WithEnv()}
	if *configFile != "" {
		opts = []config.Option{config.WithFile(*configFile)}
	}

	serverConfig, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(serverConfig.Environment)
	slog.SetDefault(logger)

	ctx := context.Background()
	registry, err := serverConfig.Build(ctx, logger)
	if err != nil {
		slog.Error("Failed to build registry", "err", err)
		os.Exit(1)
	}
	defer registry.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           newRouter(serverConfig, registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Simple Registry starting", "port", serverConfig.Port, "env", serverConfig.Environment,
			"storages", len(serverConfig.Storages), "repositories", len(serverConfig.Repositories))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}

	slog.Info("Server exiting")
}

func newLogger(environment string) *slog.Logger {
	if environment == "development" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

// newRouter wires health checks and the registry routes
func newRouter(serverConfig *config.ServerConfig, registry *config.Registry, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	opts := []api.Option{
		api.WithBaseURL(serverConfig.BaseURL),
		api.WithMaxMultipartMemory(serverConfig.MaxMultipartMemory),
		api.WithLogger(logger),
	}
	if serverConfig.NugetAPISecret != "" {
		opts = append(opts, api.WithAPIKeyAuth(jwtauth.New("HS256", []byte(serverConfig.NugetAPISecret), nil)))
	}

	server := api.NewServer(registry.Repositories, opts...)
	server.Handle(simpleregistry.LayoutPypi, api.NewPypiHandler(server, registry.Pypi).Routes())
	server.Handle(simpleregistry.LayoutNuget, api.NewNugetHandler(server, registry.Nuget).Routes())
	r.Mount("/", server.Routes())

	return r
}
