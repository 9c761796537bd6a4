package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/rotorscope/internal/acquisition"
	"github.com/roman-kulish/rotorscope/internal/config"
	"github.com/roman-kulish/rotorscope/internal/node"
	"github.com/roman-kulish/rotorscope/internal/plot"
	"github.com/roman-kulish/rotorscope/internal/telemetry"
)

const statusInterval = 10 * time.Second

// Options carries the process level inputs of Run
type Options struct {
	Console io.Reader // Console commands, nil disables the console
	Output  io.Writer // Console replies
}

// Run connects to the node and samples until ctx is cancelled
func Run(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) error {
	if opts.Output == nil {
		opts.Output = io.Discard
	}

	client := connect(ctx, cfg, logger)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn(fmt.Sprintf("error closing node: %s", err.Error()))
		}
	}()

	recorder := telemetry.NewRecorder()
	scheduler := acquisition.NewScheduler(client, recorder,
		acquisition.WithLogger(logger),
		acquisition.WithSweepInterval(cfg.Sweep.Interval.Duration()),
		acquisition.WithMonitorInterval(cfg.Monitor.Interval.Duration()),
		acquisition.WithMonitorSamples(cfg.Monitor.Samples),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scheduler.Run(ctx); err != nil {
			logger.Error(err.Error())
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		reconnect(ctx, client, cfg, logger)
	}()

	if cfg.Plot.Enabled {
		renderer, err := plot.NewRenderer(plot.RenderConfig{
			Width:  cfg.Plot.Width,
			Height: cfg.Plot.Height,
			YMax:   cfg.Plot.YMax,
			YStep:  cfg.Plot.YStep,
		})
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("creating plot renderer: %w", err)
		}
		defer renderer.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			plotLoop(ctx, scheduler, renderer, cfg.Plot, logger)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		statusLoop(ctx, scheduler, recorder, logger)
	}()

	ctrl := newController(scheduler, recorder, cfg, opts.Output)
	if err := ctrl.start(ctx); err != nil {
		cancel()
		wg.Wait()
		return fmt.Errorf("starting acquisition: %w", err)
	}

	if opts.Console != nil {
		go runConsole(ctx, opts.Console, ctrl, logger) // stdin reads cannot be interrupted
	}

	<-ctx.Done()
	wg.Wait()

	logger.Info("stopped")
	return nil
}

func dialConfig(cfg *config.Config) node.DialConfig {
	return node.DialConfig{
		Port:        cfg.Device.Port,
		VendorID:    cfg.Device.VendorID,
		ProductID:   cfg.Device.ProductID,
		BaudRate:    cfg.Device.BaudRate,
		SettleDelay: cfg.Device.SettleDelay.Duration(),
	}
}

// connect opens the node. A failure is logged once and leaves the client
// offline until reconnect attaches a channel.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) *node.Client {
	options := []func(*node.Client){
		node.WithLogger(logger),
		node.WithTimeout(cfg.Device.Timeout.Duration()),
	}

	ch, err := node.OpenSerial(ctx, dialConfig(cfg))
	if err != nil {
		logger.Error(fmt.Sprintf("failed to connect to node: %s", err.Error()))
		return node.NewClient(node.Offline(err), options...)
	}

	logger.Info("node connected", slog.String("port", ch.Name()))
	return node.NewClient(ch, options...)
}

// reconnect retries the connection of an offline client
func reconnect(ctx context.Context, client *node.Client, cfg *config.Config, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.Device.ReconnectInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if client.Connected() {
				continue
			}

			ch, err := node.OpenSerial(ctx, dialConfig(cfg))
			if err != nil {
				logger.Debug(fmt.Sprintf("reconnect failed: %s", err.Error()))
				continue
			}

			if err = client.Attach(ch); err != nil {
				logger.Warn(err.Error())
			}
			logger.Info("node connected", slog.String("port", ch.Name()))
		}
	}
}

// plotLoop renders the active session to the configured image file
func plotLoop(ctx context.Context, scheduler *acquisition.Scheduler, renderer *plot.Renderer, cfg config.PlotConfig, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.Interval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			frame, ok := plot.FromView(scheduler.View())
			if !ok {
				continue
			}

			img, err := renderer.Render(frame)
			if err != nil {
				logger.Warn(fmt.Sprintf("error rendering plot: %s", err.Error()))
				continue
			}
			if err = plot.WritePNG(cfg.Output, img); err != nil {
				logger.Warn(fmt.Sprintf("error writing plot: %s", err.Error()), slog.String("path", cfg.Output))
			}
		}
	}
}

// statusLoop logs the latest telemetry
func statusLoop(ctx context.Context, scheduler *acquisition.Scheduler, recorder *telemetry.Recorder, logger *slog.Logger) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			view := scheduler.View()
			t := recorder.Get()
			if view.State == acquisition.Idle || t == nil || t.SessionID != view.SessionID {
				continue
			}

			attrs := []any{
				slog.String("state", view.State.String()),
				slog.String("session", view.SessionID),
				slog.Int("frequency", t.Frequency),
			}
			if t.RSSI != nil {
				attrs = append(attrs, slog.Int("rssi", *t.RSSI))
			}
			logger.Info("status", attrs...)
		}
	}
}
