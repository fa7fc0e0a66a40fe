package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soltradehq/soltrade/internal/balance"
	"github.com/soltradehq/soltrade/internal/bridge"
	"github.com/soltradehq/soltrade/internal/domain"
	"github.com/soltradehq/soltrade/internal/feed"
	"github.com/soltradehq/soltrade/internal/orders"
	"github.com/soltradehq/soltrade/internal/server"
	"github.com/soltradehq/soltrade/internal/server/handler"
	"github.com/soltradehq/soltrade/internal/server/ws"
)

const (
	// eventsBuffer is the capacity of the lifecycle-event channel between the
	// engine feed and the bridge.
	eventsBuffer = 256

	// shutdownTimeout bounds graceful HTTP server shutdown.
	shutdownTimeout = 10 * time.Second
)

// pipelineOptions selects which optional subsystems a mode runs.
type pipelineOptions struct {
	drafts   bool // load drafts at startup, persist them on shutdown
	archive  bool // run the periodic cold-storage archival loop
	readOnly bool // serve no order or draft mutation routes
}

// TradeMode runs the full client: lifecycle event pipeline, draft
// persistence, cold-storage archival, and the local API server.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	return a.runPipeline(ctx, deps, pipelineOptions{drafts: true, archive: true})
}

// MonitorMode observes lifecycle events and serves the local API without
// touching drafts or archival. Useful for dashboards watching a wallet that
// another instance trades on.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	return a.runPipeline(ctx, deps, pipelineOptions{readOnly: true})
}

func (a *App) runPipeline(ctx context.Context, deps *Dependencies, opts pipelineOptions) error {
	logger := slog.Default()
	wallet := a.cfg.Wallet.Address
	startedAt := time.Now().UTC()

	refresher := balance.NewRefresher(deps.Gateway, deps.BalanceCache, deps.SignalBus, logger)

	storeOpts := []orders.Option{
		orders.WithRateLimiter(deps.RateLimiter),
		orders.WithAuditStore(deps.AuditStore),
		orders.WithCallTimeout(a.cfg.Orders.CallTimeout.Duration),
	}
	if opts.drafts {
		storeOpts = append(storeOpts, orders.WithDraftStore(deps.DraftStore))
	}
	store := orders.NewStore(deps.Gateway, logger, storeOpts...)

	if opts.drafts {
		if err := store.LoadDrafts(ctx); err != nil {
			a.logger.WarnContext(ctx, "loading drafts failed",
				slog.String("error", err.Error()),
			)
		}
	}

	// Initial authoritative snapshot. The feed reconciles everything after
	// this, so a failure here is survivable.
	if err := store.RefreshActiveOrders(ctx, wallet); err != nil {
		a.logger.WarnContext(ctx, "initial order refresh failed",
			slog.String("error", err.Error()),
		)
	}
	if err := refresher.Refresh(ctx, wallet); err != nil {
		a.logger.WarnContext(ctx, "initial balance refresh failed",
			slog.String("error", err.Error()),
		)
	}

	events := make(chan domain.LifecycleEvent, eventsBuffer)
	engineFeed := feed.NewEngineFeed(a.cfg.Engine.WsURL, a.cfg.Engine.APIKey, wallet, events, logger)
	eventBridge := bridge.New(store, refresher, deps.Notifier, wallet, logger,
		bridge.WithSignalBus(deps.SignalBus),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer engineFeed.Close()
		return engineFeed.Run(ctx)
	})

	g.Go(func() error {
		defer eventBridge.Close()
		return eventBridge.Run(ctx, events)
	})

	g.Go(func() error {
		return a.pumpOrderSignals(ctx, store, deps)
	})

	if opts.archive && deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps.Archiver)
		})
	}

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, store, refresher, deps, startedAt, opts.readOnly)
	}

	err := g.Wait()

	if opts.drafts {
		saveCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if saveErr := store.SaveDrafts(saveCtx); saveErr != nil {
			a.logger.Warn("saving drafts failed",
				slog.String("error", saveErr.Error()),
			)
		}
	}

	return err
}

// pumpOrderSignals forwards order snapshots from the store to the UI signal
// channel and persists terminal orders to the durable archive.
func (a *App) pumpOrderSignals(ctx context.Context, store *orders.Store, deps *Dependencies) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ord := <-store.Updates():
			payload, err := json.Marshal(ord)
			if err != nil {
				continue
			}
			if err := deps.SignalBus.Publish(ctx, "signal:orders", payload); err != nil {
				a.logger.DebugContext(ctx, "order signal publish failed",
					slog.String("order_id", ord.ID),
					slog.String("error", err.Error()),
				)
			}

			if ord.Status.IsTerminal() && deps.OrderArchive != nil {
				insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := deps.OrderArchive.Insert(insertCtx, ord); err != nil {
					a.logger.WarnContext(ctx, "order archive insert failed",
						slog.String("order_id", ord.ID),
						slog.String("error", err.Error()),
					)
				}
				cancel()
			}
		}
	}
}

// archiveLoop periodically moves aged order history from the database to
// cold storage.
func (a *App) archiveLoop(ctx context.Context, archiver domain.Archiver) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
			count, err := archiver.ArchiveOrders(ctx, cutoff)
			if err != nil {
				a.logger.WarnContext(ctx, "order archival failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if count > 0 {
				a.logger.InfoContext(ctx, "orders archived to cold storage",
					slog.Int64("count", count),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// startServer wires the HTTP + WebSocket API and registers its goroutines on
// the errgroup.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, store *orders.Store, refresher *balance.Refresher, deps *Dependencies, startedAt time.Time, readOnly bool) {
	logger := slog.Default()
	wallet := a.cfg.Wallet.Address

	hub := ws.NewHub(deps.SignalBus, logger, ws.Config{
		Mode:      a.cfg.Mode,
		Wallet:    wallet,
		StartedAt: startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(logger),
		Orders: handler.NewOrderHandler(store, deps.OrderArchive, wallet, logger),
		Drafts: handler.NewDraftHandler(store, logger),
		Status: handler.NewStatusHandler(store, refresher, wallet, startedAt, logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		ReadOnly:    readOnly,
	}, handlers, hub, deps.RateLimiter, logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
