package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"flow-latency-benchmark/core"
	"flow-latency-benchmark/core/configs"
	"flow-latency-benchmark/core/configs/parsers"
	"flow-latency-benchmark/core/results"
	"flow-latency-benchmark/scenarios"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// benchmark runs every runner of a configuration against every provider.
type benchmark struct {
	v       *viper.Viper
	bench   *configs.BenchConfig
	chain   *configs.ChainConfig
	metrics *results.Metrics
	events  *results.EventLog
	limiter *rate.Limiter
}

func newBenchmark(v *viper.Viper, bench *configs.BenchConfig, chain *configs.ChainConfig) *benchmark {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if bench.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(bench.Delay), 1)
	}

	return &benchmark{
		v:       v,
		bench:   bench,
		chain:   chain,
		metrics: results.NewMetrics(),
		events:  results.NewEventLog(),
		limiter: limiter,
	}
}

// runOne builds and runs one scenario. The report carries the error of the
// run, if any.
func (b *benchmark) runOne(ctx context.Context, runner string, provider configs.ProviderConfig) results.Report {
	fail := func(network string, err error) results.Report {
		zap.L().Error("runner failed",
			zap.String("runner", runner),
			zap.String("provider", provider.Name),
			zap.Error(err))
		r := results.NewReport(provider.Name, network, runner, nil)
		r.Error = err.Error()
		return r
	}

	env, err := newEnvironment(b.v, b.chain, b.bench, provider)
	if err != nil {
		return fail(b.bench.Network, err)
	}
	env.Observers = append(env.Observers,
		b.metrics.Observer(runner, provider.Name, env.Network),
		b.events.Observer())

	s, err := scenarios.Build(ctx, runner, env)
	if err != nil {
		return fail(env.Network, err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			zap.L().Warn("closing scenario", zap.String("runner", runner), zap.Error(err))
		}
	}()

	fmt.Printf("\n\n---\nRunning %s @%s\n", runner, provider.Name)

	latencies, runErr := s.Run(ctx)
	if latencies != nil {
		if err := latencies.Print(os.Stdout); err != nil {
			return fail(env.Network, err)
		}
	}

	report := results.NewReport(provider.Name, env.Network, runner, latencies)
	if runErr != nil {
		zap.L().Warn("runner finished with an error",
			zap.String("runner", runner),
			zap.String("provider", provider.Name),
			zap.Error(runErr))
		report.Error = runErr.Error()
	}
	return report
}

// run goes through the matrix, providers first as the reports are read
// provider by provider.
func (b *benchmark) run(ctx context.Context) ([]results.Report, error) {
	var reports []results.Report

	for _, provider := range b.bench.Providers {
		for _, runner := range b.bench.Runners {
			if err := b.limiter.Wait(ctx); err != nil {
				return reports, errors.Wrap(err, "waiting between runs")
			}
			reports = append(reports, b.runOne(ctx, runner, provider))
		}
	}

	return reports, nil
}

func (b *benchmark) logSummary() {
	zap.L().Info("benchmark summary",
		zap.Int("actions", b.events.Total()),
		zap.Int("ok", b.events.Count(core.OutcomeOK)),
		zap.Int("timeouts", b.events.Count(core.OutcomePreconditionTimeout)+b.events.Count(core.OutcomeStabilizationTimeout)),
		zap.Int("failed", b.events.Count(core.OutcomeFailed)),
		zap.Int("skipped", b.events.Count(core.OutcomeSkipped)),
		zap.Strings("failing_actions", b.events.Failed()))
}

// save writes the CSV, merges the run into the archive and refreshes the
// flattened export.
func (b *benchmark) save(configPath string, reports []results.Report) error {
	if _, err := results.WriteResultsToFile(configPath, reports, b.bench.Output); err != nil {
		return err
	}

	run := results.NewRunResult(time.Now(), reports)
	if _, err := results.MergeArchive(b.bench.Archive.Path, run, b.bench.Archive.Retention); err != nil {
		return err
	}

	if b.bench.Archive.Flattened != "" {
		n, err := results.FlattenArchive(b.bench.Archive.Path, b.bench.Archive.Flattened)
		if err != nil {
			return err
		}
		zap.L().Info("flattened archive written",
			zap.String("path", b.bench.Archive.Flattened),
			zap.Int("rows", n))
	}

	if b.bench.Metrics.Textfile != "" {
		if err := b.metrics.WriteToTextfile(b.bench.Metrics.Textfile); err != nil {
			return err
		}
	}

	return nil
}

func runCMD(v *viper.Viper) *cobra.Command {
	var benchPath, chainPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every runner of a benchmark configuration against every provider.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(v, cmd.Flags(), environmentFlags...)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			printWelcome()

			zap.L().Info("loading configs",
				zap.String("bench config", benchPath),
				zap.String("chain config", chainPath))

			bench, err := parsers.ParseBenchConfig(benchPath)
			if err != nil {
				return err
			}
			chain, err := parsers.ParseChainConfig(chainPath)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			b := newBenchmark(v, bench, chain)

			if bench.Metrics.Address != "" {
				if _, err := b.metrics.Start(bench.Metrics.Address); err != nil {
					return err
				}
				defer func() {
					if err := b.metrics.Stop(); err != nil {
						zap.L().Warn("stopping metrics server", zap.Error(err))
					}
				}()
				zap.L().Info("serving metrics", zap.String("url", b.metrics.URL()))
			}

			reports, runErr := b.run(ctx)
			b.logSummary()

			if err := b.save(benchPath, reports); err != nil {
				return errors.CombineErrors(runErr, err)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&benchPath, "config", "c", "", "benchmark configuration")
	cmd.Flags().StringVar(&chainPath, "chain", "", "chain configuration, the built-in networks when empty")
	_ = cmd.MarkFlagRequired("config")

	addEnvironmentFlags(v, cmd.Flags())

	return cmd
}

func scenarioCMD(v *viper.Viper) *cobra.Command {
	var chainPath, provider string
	var ceiling time.Duration

	cmd := &cobra.Command{
		Use:       "scenario <name>",
		Short:     "Run one scenario once and print its latencies.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: scenarios.Names(),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(v, cmd.Flags(), environmentFlags...)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := parsers.ParseChainConfig(chainPath)
			if err != nil {
				return err
			}

			bench := &configs.BenchConfig{
				Network:   configs.NetworkTestnet,
				Providers: []configs.ProviderConfig{{Name: configs.DefaultProvider.Name, Key: provider}},
				Timing:    configs.TimingConfig{Ceiling: ceiling},
			}
			if provider != "" {
				bench.Providers[0].Name = provider
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			b := newBenchmark(v, bench, chain)
			report := b.runOne(ctx, args[0], bench.Providers[0])
			if report.Error != "" {
				return errors.Newf("%s: %s", args[0], report.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&chainPath, "chain", "", "chain configuration, the built-in networks when empty")
	cmd.Flags().StringVar(&provider, "provider", "", "environment key of the provider endpoint, e.g. ALCHEMY_URL")
	cmd.Flags().DurationVar(&ceiling, "ceiling", 0, "maximum wait of an action, the default when zero")

	addEnvironmentFlags(v, cmd.Flags())

	return cmd
}

func flattenCMD() *cobra.Command {
	var archivePath, outputPath string

	cmd := &cobra.Command{
		Use:   "flatten",
		Short: "Flatten the result archive into one row per metric.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			n, err := results.FlattenArchive(archivePath, outputPath)
			if err != nil {
				return err
			}
			zap.L().Info("flattened archive written",
				zap.String("path", outputPath),
				zap.Int("rows", n))
			return nil
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", filepath.Join("outputs", "latency_results.json"), "result archive")
	cmd.Flags().StringVar(&outputPath, "output", filepath.Join("outputs", "flattened_output.json"), "flattened output")

	return cmd
}

func parseCMD() *cobra.Command {
	var provider, network, output string

	cmd := &cobra.Command{
		Use:   "parse <log>...",
		Short: "Collate the latencies printed in captured run logs into a CSV.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			reports := make([]results.Report, 0, len(args))
			for _, path := range args {
				r, err := results.ParseLatencyLog(path, provider, network)
				if err != nil {
					return err
				}
				reports = append(reports, r)
			}

			csvPath, err := results.WriteResultsToFile("", reports, output)
			if err != nil {
				return err
			}
			zap.L().Info("CSV written", zap.String("path", csvPath), zap.Int("reports", len(reports)))
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", configs.DefaultProvider.Name, "provider label of the logs")
	cmd.Flags().StringVar(&network, "network", configs.NetworkTestnet, "network of the logs")
	cmd.Flags().StringVar(&output, "output", "outputs", "directory receiving the CSV")

	return cmd
}

func listCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scenarios.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range scenarios.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
