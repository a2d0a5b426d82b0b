package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quidome/tznormalize-go/pkg/config"
	"github.com/quidome/tznormalize-go/pkg/gpstz"
	"github.com/quidome/tznormalize-go/pkg/metrics"
	"github.com/quidome/tznormalize-go/pkg/normalize"
	"github.com/quidome/tznormalize-go/pkg/resolve"
	"github.com/quidome/tznormalize-go/pkg/scan"
	"github.com/quidome/tznormalize-go/pkg/store"
)

const version = "0.1.0"

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitNeedsReview = 2
	exitUnavailable = 3
)

type options struct {
	configPath  string
	timezone    string
	dryRun      bool
	verbose     bool
	gps         bool
	json        bool
	workers     int
	maxDepth    int
	metricsFile string
}

// statusError carries the process exit code for a finished run.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "tznormalize:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return exitError
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	defaults := config.Default()

	rootCmd := &cobra.Command{
		Use:   "tznormalize [flags] <path>...",
		Short: "Rewrite media timestamps in UTC",
		Long: "tznormalize rewrites the timestamp fields of photos (EXIF) and XMP sidecars in UTC.\n" +
			"Timestamps without an offset take the --timezone zone, else the zone at the\n" +
			"file's GPS position, else they are assumed to be UTC and reported for review.",
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd, opts, args)
		},
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	flags := rootCmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $"+config.EnvPath+")")
	flags.StringVar(&opts.timezone, "timezone", defaults.Timezone, `zone for timestamps without an offset: "+05:30", "Z" or "Europe/Amsterdam"`)
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", defaults.DryRun, "report what would change without writing")
	flags.BoolVarP(&opts.verbose, "verbose", "v", defaults.Verbose, "log every field")
	flags.BoolVar(&opts.gps, "gps", defaults.GPS, "derive the zone from GPS coordinates when there is no --timezone")
	flags.BoolVar(&opts.json, "json", false, "print reports as JSON")
	flags.IntVar(&opts.workers, "workers", defaults.Workers, "files processed in parallel")
	flags.IntVar(&opts.maxDepth, "max-depth", defaults.MaxDepth, "maximum directory recursion depth (-1 = unlimited, 0 = no recursion)")
	flags.StringVar(&opts.metricsFile, "metrics-file", defaults.MetricsFile, "write Prometheus metrics to this file")

	return rootCmd
}

// loadConfig reads the config file and applies the flags set on the command line.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(config.Path(opts.configPath))
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("timezone") {
		cfg.Timezone = opts.timezone
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if flags.Changed("gps") {
		cfg.GPS = opts.gps
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = opts.maxDepth
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = opts.metricsFile
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	var override *resolve.Zone
	if cfg.Timezone != "" {
		override, err = resolve.ParseZone(cfg.Timezone)
		if err != nil {
			return err
		}
	}

	paths, err := scan.Expand(args, scan.Options{MaxDepth: cfg.MaxDepth, Extensions: cfg.Extensions})
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := newLogger(cmd.ErrOrStderr(), cfg.Verbose).With(zap.String("run_id", runID))
	defer func() { _ = log.Sync() }()

	log.Debug("starting run",
		zap.Int("files", len(paths)),
		zap.Bool("dry_run", cfg.DryRun),
		zap.String("timezone", cfg.Timezone),
		zap.Bool("gps", cfg.GPS),
		zap.Int("workers", cfg.Workers))

	collector := metrics.NewCollector()
	batch := &normalize.Batch{
		Engine: normalize.NewEngine(normalize.NewZapLogger(log), normalize.Options{
			DryRun:  cfg.DryRun,
			Verbose: cfg.Verbose,
		}),
		Open:     store.Open,
		Override: override,
		Workers:  cfg.Workers,
		Observer: collector,
		Log:      log,
	}
	if cfg.GPS && override == nil {
		batch.Zones = gpstz.New()
	}

	reports := batch.Run(cmd.Context(), paths)

	out := cmd.OutOrStdout()
	if opts.json {
		if err := writeJSON(out, runID, cfg.DryRun, reports); err != nil {
			return err
		}
	} else {
		writeText(out, cfg.DryRun, reports)
	}

	if cfg.MetricsFile != "" {
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error("failed to write metrics", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}

	return status(reports)
}

// status maps the reports to the run's exit status. Unavailable files take
// precedence over skipped or degraded fields.
func status(reports []normalize.Report) error {
	var unavailable, review int
	for _, r := range reports {
		switch {
		case r.Err != nil:
			unavailable++
		case !r.Clean():
			review++
		}
	}

	switch {
	case unavailable > 0:
		return &statusError{code: exitUnavailable, msg: fmt.Sprintf("%d of %d files could not be processed", unavailable, len(reports))}
	case review > 0:
		return &statusError{code: exitNeedsReview, msg: fmt.Sprintf("%d of %d files have skipped or assumed-UTC fields", review, len(reports))}
	default:
		return nil
	}
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core)
}

func writeText(w io.Writer, dryRun bool, reports []normalize.Report) {
	totals := make(map[normalize.Outcome]int)
	for _, r := range reports {
		for o, n := range r.Counts() {
			totals[o] += n
		}

		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%s: %v\n", r.File, r.Err)
			continue
		case len(r.Fields) == 0:
			fmt.Fprintf(w, "%s: no timestamp fields found\n", r.File)
			continue
		}

		fmt.Fprintf(w, "%s:\n", r.File)
		for _, f := range r.Fields {
			switch {
			case f.Err != nil:
				fmt.Fprintf(w, "  %s: %s %q: %v\n", f.ID, f.Outcome, f.OldValue, f.Err)
			case f.Unmarked:
				fmt.Fprintf(w, "  %s: %s -> %s (%s, %s, no UTC marker)\n", f.ID, f.OldValue, f.NewValue, f.Outcome, f.Provenance)
			case f.Changed():
				fmt.Fprintf(w, "  %s: %s -> %s (%s, %s)\n", f.ID, f.OldValue, f.NewValue, f.Outcome, f.Provenance)
			default:
				fmt.Fprintf(w, "  %s: %s (%s)\n", f.ID, f.Outcome, f.Provenance)
			}
		}
	}

	fmt.Fprintf(w, "%d files: %d normalized, %d already UTC, %d assumed UTC, %d skipped\n",
		len(reports),
		totals[normalize.OutcomeNormalized],
		totals[normalize.OutcomeAlreadyUTC],
		totals[normalize.OutcomeDegraded],
		totals[normalize.OutcomeSkippedMalformed]+totals[normalize.OutcomeSkippedUnsupported])
	if dryRun {
		fmt.Fprintln(w, "dry run: no files were changed")
	}
}

type jsonField struct {
	normalize.NormalizedField
	Error string `json:"error,omitempty"`
}

type jsonReport struct {
	File   string      `json:"file"`
	Status string      `json:"status"`
	Fields []jsonField `json:"fields"`
	Error  string      `json:"error,omitempty"`
}

type jsonRun struct {
	RunID  string       `json:"run_id"`
	DryRun bool         `json:"dry_run"`
	Files  []jsonReport `json:"files"`
}

func writeJSON(w io.Writer, runID string, dryRun bool, reports []normalize.Report) error {
	out := jsonRun{RunID: runID, DryRun: dryRun, Files: make([]jsonReport, 0, len(reports))}
	for _, r := range reports {
		jr := jsonReport{File: r.File, Status: metrics.Status(r), Fields: make([]jsonField, 0, len(r.Fields))}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		for _, f := range r.Fields {
			jf := jsonField{NormalizedField: f}
			if f.Err != nil {
				jf.Error = f.Err.Error()
			}
			jr.Fields = append(jr.Fields, jf)
		}
		out.Files = append(out.Files, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
