package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/unifra/internal/config"
	"github.com/RMahshie/unifra/internal/normalize"
	"github.com/RMahshie/unifra/internal/processing"
)

// app carries what subcommands share once the root has loaded configuration
type app struct {
	cfg *config.Config
}

// pipeline builds a pipeline service, with a normalizer when requested
func (a *app) pipeline(withNormalizer bool, concurrency int) (processing.PipelineService, error) {
	opts := []processing.Option{processing.WithConcurrency(concurrency)}
	if withNormalizer {
		n, err := normalize.New(a.cfg.Normalize, normalize.WithFallbackHook(func(step, strategy string) {
			log.Warn().Str("step", step).Str("strategy", strategy).Msg("Normalizer fell back")
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to create normalizer: %w", err)
		}
		opts = append(opts, processing.WithNormalizer(n))
	}
	return processing.NewPipelineService(opts...), nil
}

// NewRootCmd builds the fractl command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "fractl",
		Short: "fractl - FRA file toolkit",
		Long: `fractl detects, decodes and normalizes transformer Frequency Response
Analysis files from CSV, XML, JSON and vendor binary exports.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			levelName, _ := cmd.Flags().GetString("log-level")
			level, err := zerolog.ParseLevel(levelName)
			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if points, _ := cmd.Flags().GetInt("target-points"); points > 0 {
				cfg.Normalize.TargetPoints = points
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Int("target-points", 0, "Override NORMALIZE_TARGET_POINTS")

	root.AddCommand(
		newDetectCmd(),
		newIngestCmd(a),
		newBatchCmd(a),
		newEmulateCmd(),
		newFormatsCmd(),
	)
	return root
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
