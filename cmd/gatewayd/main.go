// Command gatewayd runs the novelang compliance gateway HTTP service.
//
// Grounded on cmd/api/main.go (PORT env var, health endpoint, graceful
// SIGTERM shutdown) and cmd/server/main.go (env-driven selection between
// optional durable backends and in-memory defaults).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/novelang/gateway/internal/audit"
	"github.com/novelang/gateway/internal/classifier"
	"github.com/novelang/gateway/internal/clock"
	"github.com/novelang/gateway/internal/config"
	"github.com/novelang/gateway/internal/evaluator"
	"github.com/novelang/gateway/internal/eventbus"
	"github.com/novelang/gateway/internal/gateway"
	"github.com/novelang/gateway/internal/httpserver"
	"github.com/novelang/gateway/internal/metrics"
	"github.com/novelang/gateway/internal/registry"
	"github.com/novelang/gateway/internal/webhooks"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("GATEWAY_CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	auditLog := buildAuditLog()
	whReg, wh := buildWebhooks()
	bus := buildEventBus()
	defer wh.Shutdown()

	gw := &gateway.Gateway{
		Registry:        registry.New(),
		Evaluator:       evaluator.New(cfg),
		Classifier:      classifier.New(),
		Audit:           auditLog,
		Metrics:         metrics.New(),
		Events:          bus,
		Webhooks:        wh,
		WebhookRegistry: whReg,
		Clock:           clock.RealClock{},
		Config:          cfg,
	}

	addr := ":" + port()
	srv := httpserver.New(addr, gw, time.Duration(cfg.RequestTimeoutSec)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("shutdown signal received, draining in-flight requests")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("novelang gateway starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("novelang gateway stopped")
}

func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "8080"
}

// buildAuditLog wires the in-memory audit log plus whichever optional
// durable mirrors are configured via environment variables. Each sink is
// best-effort and additive; absence of its env vars simply omits it.
func buildAuditLog() audit.Log {
	var sinks []audit.Sink

	if dsn := os.Getenv("GATEWAY_POSTGRES_DSN"); dsn != "" {
		sink, err := audit.NewPostgresSink(dsn)
		if err != nil {
			slog.Warn("postgres audit sink disabled", "error", err)
		} else {
			sinks = append(sinks, sink)
		}
	}

	if url, key := os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_SERVICE_KEY"); url != "" && key != "" {
		sink, err := audit.NewSupabaseSink(url, key)
		if err != nil {
			slog.Warn("supabase audit sink disabled", "error", err)
		} else {
			sinks = append(sinks, sink)
		}
	}

	if addr := os.Getenv("GATEWAY_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		sinks = append(sinks, audit.NewRedisMirror(client, "gateway:audit"))
	}

	return audit.NewMemoryLog(sinks...)
}

// buildWebhooks selects the Cloud Tasks-backed dispatcher when a queue is
// configured, falling back to the in-memory worker-pool dispatcher. The
// returned *webhooks.Registry is shared with the gateway's /webhooks
// subscription endpoints so that a subscriber registered over HTTP is
// the same registry the dispatcher reads from.
func buildWebhooks() (*webhooks.Registry, webhooks.Emitter) {
	reg := webhooks.NewRegistry()

	project, location, queue := os.Getenv("GATEWAY_CLOUDTASKS_PROJECT"), os.Getenv("GATEWAY_CLOUDTASKS_LOCATION"), os.Getenv("GATEWAY_CLOUDTASKS_QUEUE")
	if project != "" && location != "" && queue != "" {
		dispatcher, err := webhooks.NewCloudDispatcher(reg, project, location, queue, 4)
		if err != nil {
			slog.Warn("cloud tasks dispatcher unavailable, falling back to in-memory", "error", err)
		} else {
			return reg, dispatcher
		}
	}
	return reg, webhooks.NewDispatcher(reg, 4)
}

// buildEventBus selects the Pub/Sub-backed bus when a topic is
// configured, falling back to the pure in-memory bus.
func buildEventBus() eventbus.EventEmitter {
	if project, topic := os.Getenv("GATEWAY_PUBSUB_PROJECT"), os.Getenv("GATEWAY_PUBSUB_TOPIC"); project != "" && topic != "" {
		bus, err := eventbus.NewPubSubBus(context.Background(), project, topic)
		if err != nil {
			slog.Warn("pubsub event bus unavailable, falling back to in-memory", "error", err)
		} else {
			return bus
		}
	}
	return eventbus.New()
}
