// Command panelbot serves the task panel over Telegram.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskpanel/internal/app"
	"taskpanel/pkg/logx"
	"taskpanel/pkg/systemd"
)

const stopTimeout = 10 * time.Second

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config (yaml or json)")
	flag.Parse()

	// signal.Notify rather than NotifyContext so the stop reason names the
	// signal; SIGHUP reloads the config instead of stopping.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.NewApp(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	log := logx.NewConsole("INFO").With(logx.String("comp", "main"))
	systemd.Ready(log)
	go systemd.Watchdog(ctx, log)

	reason := waitForStop(ctx, a, sigs, log)

	systemd.Stopping(log)
	systemd.Status(log, "stopping: "+string(reason))
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)

	if reason == app.StopFatalError {
		if err := a.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
		}
		os.Exit(1)
	}
}

func waitForStop(ctx context.Context, a *app.App, sigs <-chan os.Signal, log logx.Logger) app.StopReason {
	for {
		select {
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				systemd.Reloading(log)
				a.Reload(ctx)
				systemd.Ready(log)
			case os.Interrupt:
				return app.StopSIGINT
			default:
				return app.StopSIGTERM
			}
		case <-a.Done():
			return app.StopFatalError
		}
	}
}
