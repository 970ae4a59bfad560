// Package app wires panelbot together: config, logging, the backend client,
// the Telegram adapter and router, the panel bot, audit storage and the
// metrics endpoint. It also owns config hot reload and ordered shutdown.
package app

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"taskpanel/internal/api"
	"taskpanel/internal/bot"
	"taskpanel/internal/config"
	"taskpanel/internal/eventbus"
	"taskpanel/internal/observability/metrics"
	rtsup "taskpanel/internal/runtime/supervisor"
	"taskpanel/internal/storage"
	kit "taskpanel/internal/transport"
	telegram "taskpanel/internal/transport/telegram/adapter"
	"taskpanel/internal/transport/telegram/router"
	logx "taskpanel/pkg/logx"
)

const (
	metricsNamespace = "taskpanel"
	updateBuffer     = 256
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter kit.Adapter
	client  *api.Client
	metrics *metrics.Service

	cmdm *router.CommandManager
	bot  *bot.Bot

	updates chan kit.Update
}

// NewApp loads cfgPath and builds every component. Nothing runs until
// Start.
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	ad, err := newAdapter(cfg)
	if err != nil {
		return nil, err
	}
	logs, log := newLogging(cfg, ad)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs, err := api.NewPrometheusObserver(metricsNamespace, reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	client, err := api.New(cfg.Backend.BaseURL,
		api.WithTimeout(cfg.BackendTimeout()),
		api.WithObserver(obs),
		api.WithLogger(log.With(logx.String("comp", "api"))),
		api.WithCredentials(cfg.Backend.Username, cfg.Backend.Password),
	)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	cmdm := router.NewCommandManager(log.With(logx.String("comp", "router")), ad, cfg.Telegram.OwnerUserIDs)
	cmdm.SetDefaultTimeout(commandTimeout(cfg))

	a := &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logs,
		bus:     bus,
		store:   store,
		adapter: ad,
		client:  client,
		metrics: metrics.New(mapMetricsConfig(cfg), reg, log.With(logx.String("comp", "metrics"))),
		cmdm:    cmdm,
		bot: bot.New(bot.Deps{
			Backend: client,
			Adapter: ad,
			Bus:     bus,
			Store:   store,
			Logger:  log,
		}, botOptions(cfg)),
		updates: make(chan kit.Update, updateBuffer),
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "supervised_goroutines",
		Help:      "Long-lived goroutines currently running under the app supervisor.",
	}, func() float64 {
		if a.sup == nil {
			return 0
		}
		return float64(a.sup.Counters().Active)
	}))
	return a, nil
}

func newAdapter(cfg *config.Config) (*telegram.Adapter, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	// The adapter exists before the log service, which needs it as a sink.
	return telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll},
		logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
}

// newLogging starts with the alert sink off, points it at the log group and
// then applies the real config, so enabling alerts never warns about a
// missing target.
func newLogging(cfg *config.Config, ad kit.Adapter) (*logx.Service, logx.Logger) {
	full := mapLogConfig(cfg)
	boot := full
	boot.Telegram.Enabled = false

	logs, log := logx.New(boot, ad)
	setLogTarget(logs, cfg)
	logs.Apply(full)
	return logs, log
}

func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("audit storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	return st, nil
}
