package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
	"github.com/MikeSquared-Agency/dealwatch/internal/audit"
	"github.com/MikeSquared-Agency/dealwatch/internal/config"
	"github.com/MikeSquared-Agency/dealwatch/internal/crm"
	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
	"github.com/MikeSquared-Agency/dealwatch/internal/metrics"
	"github.com/MikeSquared-Agency/dealwatch/internal/router"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
	"github.com/MikeSquared-Agency/dealwatch/internal/scoring"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
	"github.com/MikeSquared-Agency/dealwatch/internal/store"
)

// core is everything both serve and backfill need: storage, the CRM, the
// rule engine, the audit log and the stall analyzer.
type core struct {
	records    crm.RecordStore
	deals      stall.DealDirectory
	alertStore alerts.Store
	engine     *rules.Engine
	routing    router.Config
	auditLog   *audit.Log
	analyzer   *stall.Analyzer
	metrics    *metrics.Metrics
	close      func()
}

func newCore(ctx context.Context, cfg config.Config) (*core, error) {
	c := &core{close: func() {}, metrics: metrics.New()}

	// Storage: Postgres when configured, process memory otherwise
	var (
		auditRepo audit.Repository       = audit.NewMemoryRepository()
		signals   stall.SignalRepository = stall.NewMemorySignalRepository()
		statuses  stall.StatusRepository = stall.NewMemoryStatusRepository()
	)
	c.alertStore = alerts.NewMemoryStore()
	c.deals = stall.NewMemoryDirectory()
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		c.close = db.Close
		auditRepo, signals, statuses = db.Audit(), db, db
		c.alertStore, c.deals = db, db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, state is kept in memory")
	}

	// CRM: the HTTP adapter also serves as the deal directory
	if cfg.CRMBaseURL != "" {
		client := crm.NewClient(cfg.CRMBaseURL, cfg.CRMAPIKey)
		c.records, c.deals = client, client
		slog.Info("crm client ready", "url", cfg.CRMBaseURL)
	} else {
		c.records = crm.NewMemoryStore()
		slog.Warn("CRM_BASE_URL not set, using an empty in-memory record store")
	}

	table := rules.DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := rules.LoadRules(cfg.RulesPath)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("load rules %s: %w", cfg.RulesPath, err)
		}
		table = loaded
		slog.Info("rules loaded", "path", cfg.RulesPath, "count", len(table))
	}
	c.engine = newEngine(cfg, table)
	c.routing = routingConfig(cfg)

	c.auditLog = audit.NewLog(auditRepo, slog.Default(), audit.WithFailClosed(cfg.AuditFailClosed))
	c.analyzer = stall.NewAnalyzer(nil, signals, statuses, c.deals, scoring.Config{
		HalfLife: cfg.DecayHalfLife,
		MaxAge:   cfg.SignalMaxAge,
		Thresholds: scoring.Thresholds{
			Critical: cfg.SeverityCritical,
			High:     cfg.SeverityHigh,
			Medium:   cfg.SeverityMedium,
		},
	}, slog.Default())
	return c, nil
}

// newEngine builds the rule engine from config. Results below CONFIDENCE_HIGH
// require confirmation, the same line the router draws for AUTO_UPDATE.
func newEngine(cfg config.Config, table []rules.Rule) *rules.Engine {
	weights := make(map[detector.SignalType]float64, len(cfg.SignalWeights))
	for name, w := range cfg.SignalWeights {
		weights[detector.SignalType(name)] = w
	}
	return rules.NewEngine(table,
		rules.WithWeights(weights),
		rules.WithStrictMinConfidence(cfg.StrictMinConfidence),
		rules.WithConfirmationThreshold(cfg.ConfidenceHigh),
	)
}

func routingConfig(cfg config.Config) router.Config {
	return router.Config{
		High:              cfg.ConfidenceHigh,
		Medium:            cfg.ConfidenceMedium,
		AutoUpdateEnabled: cfg.AutoUpdateEnabled,
		FlaggingEnabled:   cfg.FlaggingEnabled,
	}
}
