package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskpanel/internal/bot"
	"taskpanel/internal/config"
	rtsup "taskpanel/internal/runtime/supervisor"
	logx "taskpanel/pkg/logx"
)

// Start launches polling, dispatch, the audit writer, metrics and config
// hot reload under one supervisor. A failing component cancels the rest;
// Done then closes and Err reports why.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateReload)

	if err := a.adapter.Start(run, a.updates); err != nil {
		return err
	}
	a.metrics.Start(run)

	a.bot.Register(run, a.cmdm)
	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})
	if a.store != nil {
		a.sup.Go("audit.writer", func(c context.Context) error {
			return bot.RunAudit(c, a.bus, a.store, a.log.With(logx.String("comp", "audit")))
		})
	}

	updates, unsubscribe := a.cfgm.Subscribe()
	a.sup.Go0("config.apply", func(c context.Context) {
		defer unsubscribe()
		prev := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(c, prev, next)
				prev = next
			}
		}
	})
	// A broken file watcher is recreated rather than taking the bot down.
	a.sup.GoRestart("config.watch", a.cfgm.Watch,
		rtsup.WithRestartBackoff(250*time.Millisecond, 5*time.Second),
	)

	a.log.Info("app started", logx.String("backend", a.client.BaseURL()), logx.String("config", a.cfgm.Path()))
	return nil
}

// Reload re-reads the config file now, as on SIGHUP.
func (a *App) Reload(ctx context.Context) { a.cfgm.ReloadNow(ctx) }

// Done closes when the app stops running.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err is the failure that stopped the app, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// restartOnly are sections read once at startup.
var restartOnly = map[string]bool{"storage": true, "backend": true}

// applyConfig pushes a committed config into the running components.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	for _, s := range sections {
		if restartOnly[s] {
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}
	if prev != nil && (prev.Telegram.Token != next.Telegram.Token || prev.Telegram.PollTimeout != next.Telegram.PollTimeout) {
		a.log.Warn("telegram connection settings changed; restart required for changes to take effect")
	}

	setLogTarget(a.logs, next)
	a.logs.Apply(mapLogConfig(next))
	a.cmdm.SetOwners(next.Telegram.OwnerUserIDs)
	a.cmdm.SetDefaultTimeout(commandTimeout(next))
	a.bot.Apply(botOptions(next))
	a.metrics.Reconfigure(ctx, mapMetricsConfig(next))

	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
}

type stopStep struct {
	name   string
	budget time.Duration
	run    func(ctx context.Context) error
}

// Stop cancels everything, then shuts components down in order, each step
// bounded by its budget and by ctx. A step that overruns is abandoned and
// reported if it finishes later.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	steps := []stopStep{
		{"metrics", time.Second, func(c context.Context) error { a.metrics.Stop(c); return nil }},
		{"adapter", 2 * time.Second, a.adapter.Stop},
		// The dispatcher and audit writer must be gone before the store closes.
		{"supervisor", 2 * time.Second, a.sup.Wait},
		{"storage", time.Second, func(context.Context) error {
			if a.store == nil {
				return nil
			}
			return a.store.Close()
		}},
	}
	for _, s := range steps {
		a.runStopStep(ctx, s)
	}

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) runStopStep(ctx context.Context, s stopStep) {
	sctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()
	log := a.log.With(logx.String("step", s.name))
	start := time.Now()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- s.run(sctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("stop step failed", logx.Err(err))
		}
		log.Debug("stop step done", logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		log.Warn("stop step overran; continuing", logx.Err(sctx.Err()), logx.Duration("budget", s.budget))
		go func() {
			if err := <-done; err != nil {
				log.Warn("stop step finished late", logx.Err(err), logx.Duration("took", time.Since(start)))
			}
		}()
	}
}
