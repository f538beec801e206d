package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/decklabs/decksync/internal/model"
)

const (
	otelScope          = "decksync/sync"
	spanSyncAll        = "sync.accounts"
	metricEventsSynced = "decksync.sync.events.synced"
	metricAccountsOK   = "decksync.sync.accounts.synced"
	metricAccountsErr  = "decksync.sync.accounts.failed"
)

// Engine wraps the [Orchestrator] with the sync lifecycle: an optional
// polling loop for daemon mode plus trace/metric instrumentation. Create
// one with [NewEngine] and run it with [Engine.Run] or [Engine.RunOnce].
type Engine struct {
	orch         *Orchestrator
	userID       int64
	pollInterval time.Duration
	log          *slog.Logger

	// OTel instruments — always non-nil (no-op when telemetry is disabled).
	tracer         trace.Tracer
	cntEvents      metric.Int64Counter
	cntAccountsOK  metric.Int64Counter
	cntAccountsErr metric.Int64Counter
}

// NewEngine creates an Engine for one user's accounts.
func NewEngine(orch *Orchestrator, userID int64, pollInterval time.Duration, logger *slog.Logger) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		orch:         orch,
		userID:       userID,
		pollInterval: pollInterval,
		log:          logger,

		tracer:         tracer,
		cntEvents:      mustCounter(metricEventsSynced, "Number of mirror events processed during sync"),
		cntAccountsOK:  mustCounter(metricAccountsOK, "Number of accounts synced successfully"),
		cntAccountsErr: mustCounter(metricAccountsErr, "Number of accounts that failed to sync"),
	}
}

// RunOnce performs a single batch sync pass and returns the per-account
// results.
func (e *Engine) RunOnce(ctx context.Context) ([]AccountResult, error) {
	return e.syncAll(ctx)
}

// Run starts the polling loop, with an immediate first pass. It blocks until
// ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	if _, err := e.syncAll(ctx); err != nil {
		e.log.Error("initial sync failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.syncAll(ctx); err != nil {
				e.log.Error("sync failed", "error", err)
			}
		}
	}
}

// syncAll runs one batch pass, recording a trace span and metrics.
func (e *Engine) syncAll(ctx context.Context) ([]AccountResult, error) {
	ctx, span := e.tracer.Start(ctx, spanSyncAll)
	defer span.End()

	results, err := e.orch.SyncAll(ctx, e.userID)

	var events, ok, failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			if errors.Is(res.Err, model.ErrRefreshDenied) {
				e.log.Warn("account needs reconnect",
					"provider", res.Provider,
					"account", res.Email,
				)
			}
			continue
		}
		ok++
		events += res.Synced
	}

	if events > 0 {
		e.cntEvents.Add(ctx, int64(events))
	}
	if ok > 0 {
		e.cntAccountsOK.Add(ctx, int64(ok))
	}
	if failed > 0 {
		e.cntAccountsErr.Add(ctx, int64(failed))
	}

	span.SetAttributes(
		attribute.Int("sync.events", events),
		attribute.Int("sync.accounts_ok", ok),
		attribute.Int("sync.accounts_failed", failed),
	)
	if err != nil {
		span.RecordError(err)
	}

	e.log.Info("batch sync complete",
		"events", events,
		"accounts_ok", ok,
		"accounts_failed", failed,
	)

	return results, err
}
