package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func printWelcome() {
	fmt.Println("==========================")
	fmt.Println("  Flow latency benchmark  ")
	fmt.Println("==========================")
}

func prepareLogger(verbose bool) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := config.Build()

	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to produce a logger: %s\n", err.Error())
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)
}

func flowlatCMD() *cobra.Command {
	var verbose bool

	v := newViper()

	cmd := &cobra.Command{
		Use:           "flowlat",
		Short:         "Measure the latency of user-facing operations on Flow.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			prepareLogger(verbose)
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(runCMD(v))
	cmd.AddCommand(scenarioCMD(v))
	cmd.AddCommand(flattenCMD())
	cmd.AddCommand(parseCMD())
	cmd.AddCommand(listCMD())

	return cmd
}

// Main running function
func main() {
	cmd := flowlatCMD()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
