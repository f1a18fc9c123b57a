// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rehydrate/internal/observability"
	"github.com/xkilldash9x/rehydrate/internal/reporting"
	"github.com/xkilldash9x/rehydrate/internal/suite"
)

// ErrScenariosFailed is returned by the run command when at least one
// scenario failed.
var ErrScenariosFailed = errors.New("scenarios failed")

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scenarios against a running application",
		Long: `Run executes every selected scenario in a fresh browser session and writes
a report. The exit status is non-zero when any scenario fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("base-url", "", "origin of the application under test (overrides config/env)")
	f.String("filter", "", "only scenarios whose name matches this regexp (case insensitive)")
	f.IntP("concurrency", "j", 0, "number of scenarios run in parallel (overrides config/env)")
	f.String("driver", "", "browser driver: chrome or static (overrides config/env)")
	f.Bool("fail-fast", false, "stop starting scenarios after the first failure")
	f.StringP("output", "o", "", "report path, or stdout (overrides config/env)")
	f.String("format", "", "report format: "+strings.Join(reporting.Formats, ", ")+" (overrides config/env)")
	f.String("metrics-file", "", "write Prometheus textfile metrics to this path")

	for flag, key := range map[string]string{
		"base-url":     "suite.base_url",
		"filter":       "suite.filter",
		"concurrency":  "suite.concurrency",
		"driver":       "browser.driver",
		"fail-fast":    "suite.fail_fast",
		"output":       "report.output",
		"format":       "report.format",
		"metrics-file": "report.metrics_file",
	} {
		bindFlag(f, flag, key)
	}
	return cmd
}

func (a *app) run(ctx context.Context, stdout io.Writer) error {
	cfg, logger := a.cfg, a.logger

	scenarios, err := suite.Select(suite.All(), cfg.SuiteCfg.Filter)
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios match filter %q", cfg.SuiteCfg.Filter)
	}

	reporter, err := reporting.New(cfg.ReportCfg.Format, cfg.ReportCfg.Output, stdout)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	runner := suite.NewRunner(cfg, suite.NewBrowserFactory(cfg, logger), logger, suite.WithObserver(metrics))
	summary, runErr := runner.Run(ctx, scenarios)

	// A cancelled run still reports what finished.
	if err := reporter.Report(summary); err != nil {
		_ = reporter.Close()
		return err
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if path := cfg.ReportCfg.MetricsFile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			logger.Warn("Failed to write metrics file.", zap.String("path", path), zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}
	if !summary.OK() {
		return fmt.Errorf("%w: %d of %d", ErrScenariosFailed, summary.Failed, summary.Total)
	}
	return nil
}
