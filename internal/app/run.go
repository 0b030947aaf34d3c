package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bandokii/fahrpc/internal/logging"
	"golang.org/x/sync/errgroup"
)

// errSignal is the cancellation cause set when a signal stops the run.
var errSignal = errors.New("received shutdown signal")

// Run polls Folding@Home every runtime.update_interval until ctx is
// cancelled or SIGINT/SIGTERM arrives. Both are a clean stop and return nil.
func (a *App) Run(ctx context.Context) error {
	startup := a.log.WithPhase(logging.PhaseStartup)
	interval := a.cfg.Runtime.UpdateInterval
	startup.Debugf("FAH control URL: %s", a.cfg.Runtime.FAHWebURL)
	startup.Infof("Initialization complete. Update interval: %s", interval)
	startup.Info("Starting main monitoring loop...")
	a.log.Info(separator)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.watchSignals(gctx, cancel)
	})
	g.Go(func() error {
		return a.loop(gctx, interval)
	})
	err := g.Wait()

	shutdown := a.log.WithPhase(logging.PhaseShutdown)
	if err != nil && !errors.Is(err, context.Canceled) {
		shutdown.Exception(err, "Main loop stopped with an error")
	}
	if cause := context.Cause(ctx); errors.Is(cause, errSignal) {
		shutdown.Info("Signal shutdown requested")
	}
	shutdown.Info("Shutdown complete")
	a.log.Info(separator)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) watchSignals(ctx context.Context, cancel context.CancelCauseFunc) error {
	sigs := a.opts.Signals
	if sigs == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigs = ch
	}

	select {
	case sig := <-sigs:
		a.log.WithPhase(logging.PhaseSignal).Warningf("Received signal %v, initiating graceful shutdown", sig)
		cancel(errSignal)
	case <-ctx.Done():
	}
	return nil
}

func (a *App) loop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

// poll runs one check. A lost connection is logged once with its exception
// and again only after it has been restored.
func (a *App) poll(ctx context.Context) {
	log := a.log.WithPhase(logging.PhaseMainLoop)

	status, err := a.poller.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if !a.fahLost {
			log.Exceptionf(err, "FAH connection lost: %v", err)
			a.fahLost = true
		}
		return
	}

	if a.fahLost {
		log.Info("FAH connection restored")
		a.fahLost = false
	}
	log.Debugf("FAH reachable at %s (HTTP %d, %s)", status.Endpoint, status.StatusCode,
		status.Latency.Round(time.Millisecond))
}
