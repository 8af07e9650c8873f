package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/psmlab/realtime/pkg/activity"
	"github.com/psmlab/realtime/pkg/alerts"
	"github.com/psmlab/realtime/pkg/config"
	"github.com/psmlab/realtime/pkg/keys"
	"github.com/psmlab/realtime/pkg/metrics"
	"github.com/psmlab/realtime/pkg/observability"
	"github.com/psmlab/realtime/pkg/ratelimit"
	"github.com/psmlab/realtime/pkg/rules"
	"github.com/psmlab/realtime/pkg/store"
	"github.com/psmlab/realtime/pkg/trending"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewComponentLogger(cfg.Observability.LogLevel, os.Stdout, "psm-monitor")

	registry := prometheus.NewRegistry()
	m := observability.NewMetrics(registry)

	st, err := store.NewClient(cfg.Store, store.WithObserver(m))
	if err != nil {
		logger.WithError(err).Error("failed to connect to redis")
		os.Exit(1)
	}

	ledger := metrics.NewLedger(st,
		metrics.WithLogger(logger),
		metrics.WithHotCache(1024, keys.TTLShort),
		metrics.WithCacheMetrics(m),
	)
	trendingEngine := trending.NewEngine(st,
		trending.WithLogger(logger),
		trending.WithMetrics(m),
	)
	activitySvc := activity.NewService(st,
		activity.WithLogger(logger),
		activity.WithMetrics(m),
	)
	alertSvc := alerts.NewService(st,
		alerts.WithLogger(logger),
		alerts.WithMetrics(m),
	)
	limiter := ratelimit.NewLimiter(st,
		ratelimit.WithLogger(logger),
		ratelimit.WithWindow(cfg.Monitor.RateLimitWindow),
		ratelimit.WithMetrics(m),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := rules.NewEngine(ledger, alertSvc, logger)
	if cfg.Monitor.RulesPath != "" {
		ruleCfg, err := rules.LoadConfig(cfg.Monitor.RulesPath)
		if err != nil {
			logger.WithError(err).Error("failed to load alert rules")
			os.Exit(1)
		}
		if err := engine.Reload(ruleCfg); err != nil {
			logger.WithError(err).Error("failed to load alert rules")
			os.Exit(1)
		}
		if cfg.Monitor.WatchRules {
			if err := engine.Watch(ctx, cfg.Monitor.RulesPath); err != nil {
				logger.WithError(err).Error("failed to watch alert rules")
				os.Exit(1)
			}
		}
	}

	// Log every alert broadcast so operators see anomalies without a
	// downstream consumer attached yet.
	consumer, err := alertSvc.SubscribeAll(ctx, func(a alerts.Alert) {
		logger.WithFields(map[string]interface{}{
			"alert_id":  a.ID,
			"entity_id": a.EntityID,
			"topic":     a.Topic,
			"type":      a.Type,
			"priority":  a.Priority.String(),
		}).Info(a.Message)
	})
	if err != nil {
		logger.WithError(err).Error("failed to subscribe to alert channels")
		os.Exit(1)
	}

	scheduler := cron.New()

	if cfg.Monitor.RulesPath != "" {
		if _, err := scheduler.AddFunc(cfg.Monitor.EvalSchedule, func() {
			evaluateAllEntities(ctx, st, engine, logger)
		}); err != nil {
			logger.WithError(err).Error("failed to schedule rule evaluation")
			os.Exit(1)
		}
	}

	if _, err := scheduler.AddFunc(cfg.Monitor.SweepSchedule, func() {
		removed, err := alertSvc.SweepOlderThan(ctx, cfg.Monitor.SweepMaxAge)
		if err != nil {
			logger.WithError(err).Warn("alert sweep failed")
			return
		}
		logger.WithField("removed", removed).Info("alert sweep finished")
	}); err != nil {
		logger.WithError(err).Error("failed to schedule alert sweep")
		os.Exit(1)
	}

	if _, err := scheduler.AddFunc(cfg.Monitor.ReportSchedule, func() {
		reportTrending(ctx, trendingEngine, logger)
	}); err != nil {
		logger.WithError(err).Error("failed to schedule trending report")
		os.Exit(1)
	}

	scheduler.Start()

	api := &apiServer{
		ledger:   ledger,
		trending: trendingEngine,
		activity: activitySvc,
		alerts:   alertSvc,
		log:      logger,
	}

	health := observability.NewHealthChecker(st.Redis())

	router := mux.NewRouter()
	router.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(ratelimit.NewMiddleware(limiter, cfg.Monitor.RateLimit, nil).Handler)
	api.registerRoutes(apiRouter)

	server := &http.Server{
		Addr:         cfg.Monitor.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Monitor.ReadTimeout,
		WriteTimeout: cfg.Monitor.WriteTimeout,
	}

	sm := observability.NewShutdownManager(logger, server, cfg.Monitor.ShutdownTimeout)
	sm.Register(func(shutdownCtx context.Context) error {
		cancel()
		stopped := scheduler.Stop()
		select {
		case <-stopped.Done():
		case <-shutdownCtx.Done():
			return shutdownCtx.Err()
		}
		return nil
	})
	sm.Register(func(context.Context) error { return consumer.Close() })
	sm.Register(func(context.Context) error { return st.Close() })

	go func() {
		logger.WithField("addr", cfg.Monitor.Addr).Info("monitor listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("http server failed")
		}
	}()

	if err := sm.Wait(); err != nil {
		os.Exit(1)
	}
	logger.Info("monitor stopped")
}

// reportTrending logs the current hourly leaders per item type, giving
// operators a pulse on the platform without opening a dashboard.
func reportTrending(ctx context.Context, engine *trending.Engine, logger *observability.Logger) {
	for _, it := range []trending.ItemType{trending.Topics, trending.Hashtags, trending.Entities} {
		top, err := engine.Top(ctx, it, keys.TimeframeHour, 5)
		if err != nil {
			logger.WithError(err).WithField("item_type", string(it)).Warn("trending report failed")
			continue
		}
		if len(top) == 0 {
			continue
		}
		members := make([]string, len(top))
		for i, entry := range top {
			members[i] = entry.Member
		}
		logger.WithFields(map[string]interface{}{
			"item_type": string(it),
			"top":       members,
		}).Info("hourly trending leaders")
	}
}

// evaluateAllEntities runs the rule set over every entity that currently has
// a metrics hash. Entities appear and disappear with their TTLs, so the set
// is discovered per run rather than tracked.
func evaluateAllEntities(ctx context.Context, st *store.Client, engine *rules.Engine, logger *observability.Logger) {
	start := time.Now()

	metricKeys, err := st.Keys(ctx, keys.EntityMetricsPattern())
	if err != nil {
		logger.WithError(err).Warn("entity discovery failed, skipping rule evaluation")
		return
	}

	entityIDs := make([]string, 0, len(metricKeys))
	for _, key := range metricKeys {
		if id, ok := keys.EntityIDFromMetricsKey(key); ok {
			entityIDs = append(entityIDs, id)
		}
	}

	raised := engine.EvaluateAll(ctx, entityIDs)
	logger.WithFields(map[string]interface{}{
		"entities": len(entityIDs),
		"raised":   len(raised),
		"elapsed":  time.Since(start).String(),
	}).Info("rule evaluation finished")
}
