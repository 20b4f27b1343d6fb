package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stackc/pkg/compiler"
	"stackc/pkg/metrics"
)

var watchFlags struct {
	output      string
	metrics     bool
	metricsAddr string
	debounce    time.Duration
	noOpt       bool
	maxPasses   int
	entry       string
}

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Recompile a source file whenever it changes",
	Long: `Compile a source file, then recompile it each time it is saved, writing
the assembly to --output (or stdout). Compilation errors are reported and
watching continues.

With --metrics, Prometheus metrics for every compilation are served at the
configured listen address and path until the command is interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: watchSource,
}

func init() {
	watchCmd.Flags().StringVarP(&watchFlags.output, "output", "o", "", "assembly output file (default stdout)")
	watchCmd.Flags().BoolVar(&watchFlags.metrics, "metrics", false, "serve Prometheus metrics while watching")
	watchCmd.Flags().StringVar(&watchFlags.metricsAddr, "metrics-addr", "", "metrics listen address (default from config)")
	watchCmd.Flags().DurationVar(&watchFlags.debounce, "debounce", 0, "quiet period before recompiling (default from config)")
	addCompilerFlags(watchCmd, &watchFlags.noOpt, &watchFlags.maxPasses, &watchFlags.entry)
	rootCmd.AddCommand(watchCmd)
}

func watchSource(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchFlags.metrics {
		cfg.Metrics.Enabled = true
	}
	if watchFlags.metricsAddr != "" {
		cfg.Metrics.ListenAddress = watchFlags.metricsAddr
	}
	if watchFlags.debounce > 0 {
		cfg.Watch.Debounce = watchFlags.debounce
	}
	if err := applyCompilerFlags(cfg, watchFlags.noOpt, watchFlags.maxPasses, watchFlags.entry); err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(nil)
	}
	d, err := newDriver(cmd, cfg, collector)
	if err != nil {
		return err
	}
	w, err := d.NewWatcher(args[0])
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.ServeMetrics(ctx)
	})
	g.Go(func() error {
		return w.Watch(ctx, func(res *compiler.Result, err error) {
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", args[0], err)
				return
			}
			if err := writeOutput(cmd, watchFlags.output, res.Assembly); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
		})
	})
	return g.Wait()
}
