package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cli/browser"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Zachdehooge/violations-map/internal/config"
	"github.com/Zachdehooge/violations-map/internal/observability"
	"github.com/Zachdehooge/violations-map/internal/pipeline"
	"github.com/Zachdehooge/violations-map/internal/watch"
)

var (
	inputFile     string
	outputFile    string
	configFile    string
	latField      string
	lonField      string
	labelField    string
	reportSkipped bool
	verbose       bool
	logFormat     string
	metricsFile   string
	openBrowser   bool
	watchMode     bool

	zoom      int
	centerLat float64
	centerLon float64
	limit     int

	listCluster bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree with its flags bound to their defaults
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "violations-map",
		Short: "Render well violation records from a CSV file as an HTML map",
		Long: `Violations Map reads a CSV file of geolocated well violations
and writes a self-contained Leaflet map with one marker per valid row.
Rows whose coordinates cannot be parsed are skipped.`,
		Run: func(cmd *cobra.Command, args []string) {
			runVariant(cmd, config.VariantStream)
		},
	}

	// Flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&inputFile, "input", "i", config.DefaultInput, "Input CSV file path")
	pf.StringVarP(&outputFile, "output", "o", "", "Output HTML file path (default depends on the variant)")
	pf.StringVarP(&configFile, "config", "c", "", "HCL config file")
	pf.StringVar(&latField, "lat-field", config.DefaultLatField, "Latitude column name")
	pf.StringVar(&lonField, "lon-field", config.DefaultLonField, "Longitude column name")
	pf.StringVar(&labelField, "label-field", config.DefaultLabelField, "Marker label column name")
	pf.BoolVar(&reportSkipped, "report-skipped", false, "Log every skipped row instead of dropping it silently")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Log format: text or json")
	pf.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after each run")
	pf.BoolVar(&openBrowser, "open", false, "Open the generated map in a browser")
	pf.BoolVar(&watchMode, "watch", false, "Regenerate the map whenever the input file changes")

	addMapFlags(rootCmd)

	// Additional commands
	addClusterCmd(rootCmd)
	addListCmd(rootCmd)

	return rootCmd
}

func addMapFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&zoom, "zoom", 0, "Initial zoom level (default depends on the variant)")
	cmd.Flags().Float64Var(&centerLat, "center-lat", 0, "Map centre latitude")
	cmd.Flags().Float64Var(&centerLon, "center-lon", 0, "Map centre longitude")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of markers, 0 for no limit (default depends on the variant)")
	cmd.MarkFlagsRequiredTogether("center-lat", "center-lon")
}

// addClusterCmd adds a 'cluster' subcommand that centres the map on the mean
// coordinate and groups the first rows into a marker cluster
func addClusterCmd(rootCmd *cobra.Command) {
	clusterCmd := &cobra.Command{
		Use:   "cluster",
		Short: "Render the first rows as a marker cluster centred on their mean position",
		Run: func(cmd *cobra.Command, args []string) {
			runVariant(cmd, config.VariantCluster)
		},
	}
	addMapFlags(clusterCmd)

	rootCmd.AddCommand(clusterCmd)
}

// addListCmd adds a 'list' subcommand to show the valid records without generating HTML
func addListCmd(rootCmd *cobra.Command) {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the records that would become markers",
		Run: func(cmd *cobra.Command, args []string) {
			variant := config.VariantStream
			if listCluster {
				variant = config.VariantCluster
			}
			cfg, err := loadConfig(cmd, variant)
			if err != nil {
				cmd.PrintErrln(fmt.Errorf("invalid configuration: %w", err))
				os.Exit(1)
			}
			logger := observability.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

			records, stats, err := pipeline.Collect(cmd.Context(), cfg, logger)
			if err != nil {
				cmd.PrintErrln(fmt.Errorf("failed to read records: %w", err))
				os.Exit(1)
			}

			if len(records) == 0 {
				cmd.Println("No records with valid coordinates.")
				return
			}

			cmd.Println("Valid records:")
			for _, rec := range records {
				cmd.Println(fmt.Sprintf("%6d  %-20s %10.5f %11.5f", rec.Line, rec.Label, rec.Lat, rec.Lon))
			}
			cmd.Println(fmt.Sprintf("%d valid, %d skipped, %d dropped", stats.Valid, stats.Skipped, stats.Dropped))
		},
	}
	listCmd.Flags().BoolVar(&listCluster, "cluster", false, "Read the table the way the cluster command does")

	rootCmd.AddCommand(listCmd)
}

// loadConfig layers defaults, config file, environment and explicit flags
func loadConfig(cmd *cobra.Command, variant config.Variant) (*config.Config, error) {
	flags := cmd.Flags()
	return config.Load(variant, configFile, func(cfg *config.Config) {
		if flags.Changed("input") {
			cfg.Input = inputFile
		}
		if flags.Changed("output") {
			cfg.Output = outputFile
		}
		if flags.Changed("lat-field") {
			cfg.LatField = latField
		}
		if flags.Changed("lon-field") {
			cfg.LonField = lonField
		}
		if flags.Changed("label-field") {
			cfg.LabelField = labelField
		}
		if flags.Changed("report-skipped") {
			cfg.ReportSkipped = reportSkipped
		}
		if flags.Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if flags.Changed("metrics-file") {
			cfg.MetricsFile = metricsFile
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		if flags.Changed("zoom") {
			cfg.Zoom = zoom
		}
		if flags.Changed("limit") {
			cfg.Limit = limit
		}
		if flags.Changed("center-lat") {
			cfg.Center = &config.Coordinate{Lat: centerLat, Lon: centerLon}
		}
	})
}

func runVariant(cmd *cobra.Command, variant config.Variant) {
	cfg, err := loadConfig(cmd, variant)
	if err != nil {
		cmd.PrintErrln(fmt.Errorf("invalid configuration: %w", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Generate the map
	if err := generateMap(ctx, cmd, cfg, logger, metrics); err != nil {
		cmd.PrintErrln(fmt.Errorf("failed to generate map: %w", err))
		os.Exit(1)
	}

	if openBrowser {
		if err := browser.OpenFile(cfg.Output); err != nil {
			cmd.PrintErrln(fmt.Errorf("failed to open browser: %w", err))
		}
	}

	// Watch mode
	if watchMode {
		runWatchMode(ctx, cmd, cfg, logger, metrics)
	}
}

// generateMap runs the pipeline once and reports the outcome
func generateMap(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	if verbose {
		cmd.Println(fmt.Sprintf("Reading %s...", cfg.Input))
	}

	res, err := pipeline.Run(ctx, cfg, logger, metrics)
	if cfg.MetricsFile != "" {
		if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
			logger.Warn("failed to write metrics file", "path", cfg.MetricsFile, "error", werr)
		}
	}
	if err != nil {
		return err
	}

	ok := color.New(color.FgGreen, color.Bold).SprintFunc()
	cmd.Println(fmt.Sprintf("%s %d markers saved to %s", ok("✓"), res.Markers, res.Output))
	if res.Stats.Skipped > 0 || res.Stats.Dropped > 0 {
		warn := color.New(color.FgYellow).SprintFunc()
		cmd.Println(warn(fmt.Sprintf("  %d rows skipped, %d dropped for missing coordinates", res.Stats.Skipped, res.Stats.Dropped)))
	}
	return nil
}

// runWatchMode regenerates the map each time the input file changes
func runWatchMode(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) {
	cmd.Println(fmt.Sprintf("Watch mode activated. Watching %s for changes. Press Ctrl+C to stop.", cfg.Input))

	w := &watch.Watcher{
		Path:     cfg.Input,
		Debounce: watch.DefaultDebounce,
		Logger:   logger,
	}
	err := w.Run(ctx, func(ctx context.Context) error {
		return generateMap(ctx, cmd, cfg, logger, metrics)
	})
	if err != nil {
		cmd.PrintErrln(fmt.Errorf("watch failed: %w", err))
		os.Exit(1)
	}
}
