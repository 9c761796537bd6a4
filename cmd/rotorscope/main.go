package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/roman-kulish/rotorscope/cmd/rotorscope/app"
	"github.com/roman-kulish/rotorscope/internal/config"
	"github.com/roman-kulish/rotorscope/internal/node"
	"github.com/spf13/cobra"
)

var (
	configPath string
	sweepMode  bool
	fastStep   bool
	frequency  int
	noConsole  bool
)

var rootCmd = &cobra.Command{
	Use:   "rotorscope",
	Short: "Spectrum sweeps and RSSI traces from a timing node",
	Long: `rotorscope drives an RSSI receiver node over its USB serial port.

Sweep mode cycles the node across a band and records the live, min and max
spectrum. Monitor mode polls a fixed frequency and traces RSSI and pass
markers over a trailing window. The current plot is written as a PNG image
and the mode is switched with console commands (type "help").`,
	SilenceUsage: true,
	RunE:         runAcquisition,
}

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Connect to the node and start sampling (default)",
	SilenceUsage: true,
	RunE:         runAcquisition,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports of the host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := node.ListPorts()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PORT\tUSB\tVID:PID\tSERIAL\tPRODUCT")
		for _, p := range ports {
			_, _ = fmt.Fprintf(w, "%s\t%t\t%s:%s\t%s\t%s\n", p.Name, p.IsUSB, p.VendorID, p.ProductID, p.Serial, p.Product)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the configuration file")

	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().BoolVar(&sweepMode, "sweep", true, "start in sweep mode, monitor mode when false")
		cmd.Flags().BoolVar(&fastStep, "fast", false, "sweep with the fast step")
		cmd.Flags().IntVar(&frequency, "frequency", 0, "frequency in MHz to tune when monitoring starts")
		cmd.Flags().BoolVar(&noConsole, "no-console", false, "do not read commands from stdin")
	}

	rootCmd.AddCommand(runCmd, portsCmd)
}

func runAcquisition(cmd *cobra.Command, args []string) error {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return fmt.Errorf("failed to load configuration file: %w", err)
		}
	}

	if cmd.Flags().Changed("sweep") {
		cfg.Sweep.Enabled = sweepMode
	}
	if cmd.Flags().Changed("fast") {
		cfg.Sweep.Fast = fastStep
	}
	if cmd.Flags().Changed("frequency") {
		cfg.Monitor.Frequency = frequency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := cfg.LogLevel() // validated
	logLevel.Set(level)

	opts := app.Options{Output: cmd.OutOrStdout()}
	if !noConsole {
		opts.Console = cmd.InOrStdin()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return app.Run(ctx, cfg, opts, logger)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
