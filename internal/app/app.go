package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamhub/streamhub/internal/adapter/security"
	"github.com/streamhub/streamhub/internal/adapter/systimers"
	"github.com/streamhub/streamhub/internal/app/middleware"
	"github.com/streamhub/streamhub/internal/broker"
	"github.com/streamhub/streamhub/internal/broker/render"
	"github.com/streamhub/streamhub/internal/broker/sched"
	"github.com/streamhub/streamhub/internal/config"
	"github.com/streamhub/streamhub/internal/core/ports"
	"github.com/streamhub/streamhub/internal/env"
	"github.com/streamhub/streamhub/internal/httpapi"
	"github.com/streamhub/streamhub/internal/logger"
	"github.com/streamhub/streamhub/internal/router"
	"github.com/streamhub/streamhub/internal/version"
	"github.com/streamhub/streamhub/pkg/profiler"
)

// Application wires the loaded configuration, the broker hub, the security
// chain and the HTTP listener together. One Application is one running
// streamhub process.
type Application struct {
	cfg       *config.Config
	log       *logger.StyledLogger
	hub       *broker.Hub
	adapters  *security.Adapters
	registry  *router.RouteRegistry
	server    *http.Server
	startTime time.Time

	eg *errgroup.Group
}

// New loads configuration, builds the broker hub and the HTTP handler
// chain, and prepares the http.Server without binding it - the listener
// is opened and starts accepting connections in Start.
func New(startTime time.Time, log *logger.StyledLogger) (*Application, error) {
	cfg, err := config.Load(func() {
		log.Info("configuration file changed, ambient settings reloaded")
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	timers := systimers.New()
	brokerCfg := broker.Config{
		MaxMessagesPerChannel: cfg.Broker.MaxMessagesPerChannel,
		MaxChannels:           cfg.Broker.MaxChannels,
		MaxArenaMessages:      cfg.Broker.MaxArenaMessages,
		MessageTTL:            cfg.Broker.MessageTTL,
		CleanupTTL:            cfg.Broker.CleanupTTL,
		Templates:             toRenderTemplates(cfg.Broker.Templates),
		HeaderTemplate:        cfg.Broker.HeaderTemplate,
		FooterTemplate:        cfg.Broker.FooterTemplate,
		SSEEnabled:            cfg.Broker.SSEEnabled,
		ChannelDeletedMessage: cfg.Broker.ChannelDeletedMessage,
		PingMessage:           cfg.Broker.PingMessage,
		AutoCreateChannels:    cfg.Broker.AutoCreateChannels,
		Broadcast:             cfg.Broker.Broadcast,
		WorkerCount:           cfg.Broker.WorkerCount,
		Intervals: sched.Intervals{
			Ping:          cfg.Broker.PingInterval,
			Disconnect:    cfg.Broker.DisconnectInterval,
			MemoryCleanup: cfg.Broker.MemoryCleanupInterval,
			BufferCleanup: cfg.Broker.BufferCleanupInterval,
		},
	}
	hub := broker.New(brokerCfg, timers, ports.SystemClock{}, log)

	_, adapters := security.NewSecurityServices(cfg, log)

	registry := router.NewRouteRegistry(log)
	api := httpapi.New(hub, httpapi.Config{
		Templates:      brokerCfg.Templates,
		FooterTemplate: cfg.Broker.FooterTemplate,
		SSEEnabled:     cfg.Broker.SSEEnabled,
		PingMessage:    cfg.Broker.PingMessage,
		WorkerCount:    cfg.Broker.WorkerCount,
	}, log)
	api.Mount(registry)
	registry.RegisterWithMethod("GET /version", handleVersion, "Build version", "GET")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if env.GetEnvBoolOrDefault("STREAMHUB_PROFILER", false) {
		profiler.InitialiseProfiler(env.GetEnvOrDefault("STREAMHUB_PROFILER_ADDR", profiler.DefaultAddress))
	}

	return &Application{
		cfg:       cfg,
		log:       log,
		hub:       hub,
		adapters:  adapters,
		registry:  registry,
		server:    server,
		startTime: startTime,
	}, nil
}

// Start mounts the route table behind the security chain and launches the
// HTTP listener under an errgroup, alongside a goroutine that logs once the
// context is cancelled, so Stop can wait on the group. The hub's worker
// shards are already running: broker.New starts them.
func (a *Application) Start(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	a.eg = eg

	mux := http.NewServeMux()
	a.registry.WireUpWithSecurityChain(mux, a.adapters)

	var handler http.Handler = mux
	handler = middleware.EnhancedLoggingMiddleware(*a.log)(handler)
	handler = middleware.AccessLoggingMiddleware(*a.log)(handler)
	a.server.Handler = handler

	eg.Go(func() error {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		a.log.Info("shutdown signal propagated to background workers")
		return nil
	})

	a.log.Info("streamhub listening", "bind", a.server.Addr, "workers", a.cfg.Broker.WorkerCount)
	return nil
}

// Stop drains in-flight HTTP requests within the configured shutdown
// timeout, then tears down the hub's timers and the rate limiter's
// background cleanup, and finally waits for the errgroup launched by
// Start to confirm every background goroutine has actually returned.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	a.hub.Shutdown()
	a.adapters.Stop()

	if a.eg != nil {
		if err := a.eg.Wait(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func toRenderTemplates(templates []config.Template) []render.Template {
	out := make([]render.Template, len(templates))
	for i, t := range templates {
		out[i] = render.Template{Name: t.Name, Body: t.Body, EventSource: t.EventSource}
	}
	return out
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"version":"` + version.Version + `","commit":"` + version.Commit + `"}`))
}
