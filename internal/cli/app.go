package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/efreitasn/papertrade/internal/config"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/events"
	"github.com/efreitasn/papertrade/internal/feed"
	"github.com/efreitasn/papertrade/internal/handler"
	"github.com/efreitasn/papertrade/internal/instrument"
	"github.com/efreitasn/papertrade/internal/metrics"
	"github.com/efreitasn/papertrade/internal/persist"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/efreitasn/papertrade/internal/store"
)

// app is a fully wired simulator.
type app struct {
	cfg      *config.Config
	scenario *config.Scenario
	logger   *zap.Logger

	engine   *engine.Engine
	metrics  *metrics.Metrics
	services handler.Services
	webhook  *events.Webhook
	kafka    *events.Kafka
	db       *persist.Store

	// accounts maps scenario account names to engine account IDs.
	accounts map[string]string
}

// buildOptions switch off the outer integrations for offline runs.
type buildOptions struct {
	offline bool // no database, no Kafka, no webhooks
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts buildOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger, accounts: make(map[string]string)}

	var catalog *instrument.Catalog
	if cfg.ScenarioFile != "" {
		s, err := config.LoadScenarioFile(cfg.ScenarioFile)
		if err != nil {
			return nil, err
		}
		a.scenario = s
		if catalog, err = s.Catalog(); err != nil {
			return nil, fmt.Errorf("scenario catalog: %w", err)
		}
	} else {
		catalog = instrument.NewCatalog()
	}
	ref := instrument.NewCache(catalog, cfg.CacheDir, logger.Named("instruments"))

	f, err := a.loadFeed()
	if err != nil {
		return nil, err
	}

	engCfg, err := a.engineConfig()
	if err != nil {
		return nil, err
	}

	webhookStore := store.NewWebhookStore()
	var publishers events.Multi
	if !opts.offline {
		a.webhook = events.NewWebhook(webhookStore, cfg.WebhookTimeout, logger.Named("webhook"))
		publishers = append(publishers, a.webhook)
		if len(cfg.KafkaBrokers) > 0 {
			if a.kafka, err = events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Named("kafka")); err != nil {
				return nil, err
			}
			publishers = append(publishers, a.kafka)
		}
	}

	a.metrics = metrics.New()
	a.engine, err = engine.New(engCfg, ref, f,
		engine.WithLogger(logger.Named("engine")),
		engine.WithMetrics(a.metrics),
		engine.WithPublisher(publishers),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	if !opts.offline && cfg.DBPath != "" {
		if a.db, err = persist.Open(cfg.DBPath); err != nil {
			a.close()
			return nil, err
		}
	}

	var saver service.SnapshotSaver
	if a.db != nil {
		saver = a.db
	}
	a.services = handler.Services{
		Accounts:   service.NewAccountService(a.engine),
		Orders:     service.NewOrderService(a.engine),
		Operations: service.NewOperationService(a.engine),
		Simulation: service.NewSimulationService(a.engine, saver, logger.Named("simulation")),
		Instrument: service.NewInstrumentService(ref),
		MarketData: service.NewMarketDataService(a.engine),
		Webhooks:   service.NewWebhookService(webhookStore, a.engine),
	}

	restored, err := a.restore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	if !restored {
		if err := a.openScenarioAccounts(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

// loadFeed picks FEED_PATH over the scenario feed. Files ending in
// .parquet are read as Parquet, anything else as CSV.
func (a *app) loadFeed() (feed.Feed, error) {
	path := a.cfg.FeedPath
	if path == "" && a.scenario != nil {
		path = a.scenario.Feed
	}
	switch {
	case path == "":
		a.logger.Warn("no candle feed configured, ticks will not fill orders")
		return feed.NewMemory(nil), nil
	case strings.EqualFold(filepath.Ext(path), ".parquet"):
		return feed.LoadParquet(path)
	default:
		return feed.LoadCSVFile(path)
	}
}

// engineConfig layers scenario settings over the environment.
func (a *app) engineConfig() (engine.Config, error) {
	c := engine.Config{
		Start:   a.cfg.SimStart,
		Step:    a.cfg.CandleStep,
		FeeRate: a.cfg.FeeRate,
	}
	if s := a.scenario; s != nil {
		if s.Start != nil {
			c.Start = s.Start.UTC()
		}
		if s.Step > 0 {
			c.Step = s.Step
		}
		if s.FeeRate != "" {
			rate, err := decimal.NewFromString(s.FeeRate)
			if err != nil {
				return c, fmt.Errorf("scenario fee_rate: %w", err)
			}
			c.FeeRate = rate
		}
	}
	return c, nil
}

// restore loads the last snapshot when a database is configured.
func (a *app) restore(ctx context.Context) (bool, error) {
	if a.db == nil {
		return false, nil
	}
	snap, ok, err := a.db.Load(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := a.engine.Restore(snap); err != nil {
		return false, err
	}
	a.logger.Info("state restored",
		zap.Time("clock", snap.Clock.Now),
		zap.Int64("ticks", snap.Clock.Ticks),
		zap.Int("accounts", len(snap.Accounts)),
		zap.Int("orders", len(snap.Orders)),
	)
	return true, nil
}

func (a *app) openScenarioAccounts(ctx context.Context) error {
	if a.scenario == nil {
		return nil
	}
	for _, sa := range a.scenario.Accounts {
		acc, err := a.services.Accounts.Open(ctx, service.OpenAccountRequest{
			Name:           sa.Name,
			InitialCapital: sa.InitialCapital,
			Currency:       sa.Currency,
		})
		if err != nil {
			return fmt.Errorf("open scenario account %q: %w", sa.Name, err)
		}
		a.accounts[sa.Name] = acc.AccountID
		a.logger.Info("scenario account opened", zap.String("name", sa.Name), zap.String("account_id", acc.AccountID))
	}
	return nil
}

// close releases outer integrations. Pending webhook deliveries finish
// first.
func (a *app) close() {
	if a.webhook != nil {
		a.webhook.Wait()
	}
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("close database", zap.Error(err))
		}
	}
}
