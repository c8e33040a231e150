package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"helmsman/internal/config"
	"helmsman/internal/decision"
	"helmsman/internal/execution"
	"helmsman/internal/logger"
	"helmsman/internal/market"
	"helmsman/internal/risk"
	"helmsman/internal/scheduler"
	"helmsman/internal/sentiment"
	"helmsman/internal/store"
	"helmsman/internal/trader"
)

// App 负责应用级编排：按配置构建依赖图，启动四条调度节奏。
type App struct {
	cfg     *config.Config
	cfgPath string

	markets *market.Aggregator
	engine  *decision.Engine
	trader  *trader.Trader
	store   *store.Store
}

// NewApp 根据配置构建应用对象（不启动）。cfgPath 用于决策权重热更新，
// 传空则关闭热更新。
func NewApp(cfg *config.Config, cfgPath string) (*App, error) {
	providers, err := buildProviders(cfg.Market)
	if err != nil {
		return nil, err
	}
	agg := market.NewAggregator(providers, market.Options{
		CacheTTL:         cfg.Market.CacheTTL(),
		FailureThreshold: cfg.Market.FailureThreshold,
		BackoffBase:      cfg.Market.BackoffBase(),
		BackoffMax:       cfg.Market.BackoffMax(),
		RatePerMinute:    cfg.Market.RatePerMinute,
	})

	scorer := sentiment.NewScorer(sentiment.Config{
		APIURL:     cfg.Sentiment.APIURL,
		APIKey:     cfg.Sentiment.APIKey,
		Model:      cfg.Sentiment.Model,
		Timeout:    time.Duration(cfg.Sentiment.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Sentiment.MaxRetries,
		Headers:    cfg.Sentiment.Headers,
	})

	engine := decision.NewEngine(decisionConfig(cfg.Decision))

	portfolio := risk.NewPortfolio(cfg.Risk.Capital)
	riskMgr, err := risk.NewManager(risk.Config{
		Profile:         cfg.Risk.Profile,
		Capital:         cfg.Risk.Capital,
		MaxPositions:    cfg.Risk.MaxPositions,
		MaxDailyLossPct: cfg.Risk.MaxDailyLossPct,
		MinNotional:     cfg.Risk.MinNotional,
		KellySizing:     cfg.Risk.KellySizing,
		MinConfidence:   cfg.Decision.MinConfidence,
	}, portfolio)
	if err != nil {
		return nil, fmt.Errorf("risk manager: %w", err)
	}

	st, err := store.New(store.Config{
		Path:         cfg.Store.Path,
		FallbackPath: cfg.Store.FallbackPath,
	})
	if err != nil {
		return nil, err
	}

	exch, err := buildExchange(cfg.Execution, agg)
	if err != nil {
		st.Close()
		return nil, err
	}
	execMgr := execution.NewManager(exch, st, executionConfig(cfg.Execution))

	notify := buildNotifier(cfg.Notify)

	trd := trader.New(traderConfig(cfg), signalSettings(cfg.Signal),
		agg, scorer, engine, riskMgr, execMgr, st, notify)

	return &App{
		cfg:     cfg,
		cfgPath: cfgPath,
		markets: agg,
		engine:  engine,
		trader:  trd,
		store:   st,
	}, nil
}

// Run 启动调度并阻塞，直到 ctx 取消后完成优雅收尾。
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.trader.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	if a.cfgPath != "" {
		err := config.WatchDecision(ctx, a.cfgPath, func(dc config.DecisionConfig) {
			a.engine.UpdateConfig(decisionConfig(dc))
		})
		if err != nil {
			logger.Warnf("decision config watch disabled: %v", err)
		}
	}

	sched := a.cfg.Schedule
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.NewRunner("decision", sched.DecisionInterval(), 0).
			Start(gctx, func() { a.trader.RunCycle(gctx) })
		return nil
	})
	g.Go(func() error {
		// 错开决策整点，避免两条节奏抢同一批 symbol 锁。
		scheduler.NewRunner("monitor", sched.MonitorInterval(), sched.MonitorInterval()/3).
			Start(gctx, func() { a.trader.MonitorPositions(gctx) })
		return nil
	})
	g.Go(func() error {
		r := scheduler.NewRunner("review", sched.ReviewInterval(), 0)
		r.RunImmediately = true // 启动即回放 fallback journal
		r.Start(gctx, func() { a.trader.Review(gctx) })
		return nil
	})
	g.Go(func() error {
		scheduler.NewRunner("report", sched.ReportInterval(), 0).
			Start(gctx, func() { a.trader.Report(gctx) })
		return nil
	})

	logger.Infof("helmsman running: symbols=%v interval=%s exchange=%s",
		a.cfg.App.Symbols, a.cfg.App.Interval, a.cfg.Execution.Exchange)
	err := g.Wait()
	if cerr := a.store.Close(); cerr != nil {
		logger.Warnf("close store: %v", cerr)
	}
	return err
}
