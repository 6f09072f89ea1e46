// Command dgadapt runs adaptation scripts against the tree-mesh containers
// and reports what each partition holds after the last step.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	scriptPath string
	logLevel   string
	partCount  int
	devMode    string

	rootCmd = &cobra.Command{
		Use:   "dgadapt",
		Short: "Drive tree refinement and container reinitialization for DG meshes",
		Long: `dgadapt builds an adaptive tree mesh from a YAML script, applies its
refine and coarsen steps, rebuilds the element and surface containers after
each one, and prints a per-partition summary.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run an adaptation script",
		RunE:  runScript,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "dgadapt", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	runCmd.Flags().StringVarP(&scriptPath, "config", "c", "mesh.yaml", "adaptation script")
	runCmd.Flags().IntVarP(&partCount, "partitions", "p", 0, "override the script's partition count")
	runCmd.Flags().StringVar(&devMode, "device", "", "smooth the indicator on this OCCA device mode")
	rootCmd.AddCommand(runCmd, versionCmd)
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func runScript(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	s, err := LoadScript(scriptPath)
	if err != nil {
		return err
	}
	if partCount > 0 {
		s.Containers.NumPartitions = partCount
	}
	if devMode != "" {
		s.Indicator.Device = devMode
	}
	logger.Info("script loaded", "path", scriptPath, "dimensions", s.Mesh.NDims,
		"partitions", max(s.Containers.NumPartitions, 1), "steps", len(s.Steps))

	sum, err := Run(cmd.Context(), s, logger)
	if err != nil {
		return err
	}
	sum.Print(cmd.OutOrStdout())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
