package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/loopviz/internal/analyzer"
	"github.com/san-kum/loopviz/internal/config"
	"github.com/san-kum/loopviz/internal/logging"
	"github.com/san-kum/loopviz/internal/render"
	"github.com/san-kum/loopviz/internal/server"
	"github.com/san-kum/loopviz/internal/session"
	"github.com/san-kum/loopviz/internal/structure"
	"github.com/san-kum/loopviz/internal/transcript"
	"github.com/san-kum/loopviz/internal/tui"
)

var (
	configFile  string
	analyzerURL string
	logLevel    string
	logFormat   string
	dataDir     string

	themeName string
	watch     bool
	exportDir string
	pngDir    string

	interval  time.Duration
	format    string
	plot      bool
	save      bool
	live      bool
	frameRate int

	addr      string
	writePath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "loopviz",
		Short:         "step through loops and watch data structures change",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (yaml)")
	pf.StringVar(&analyzerURL, "analyzer-url", "", "use a remote analyzer at this url")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "log format (text, json)")
	pf.StringVar(&dataDir, "data", ".loopviz", "data directory for saved runs")

	tuiCmd := &cobra.Command{
		Use:   "tui [file|sample]",
		Short: "interactive editor and visualizer",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTUI,
	}
	tuiCmd.Flags().BoolVar(&watch, "watch", false, "reload the file when it changes on disk")
	tuiCmd.Flags().StringVar(&themeName, "theme", "", "color theme")
	tuiCmd.Flags().StringVar(&exportDir, "png-dir", ".", "directory for ctrl+s frame exports")

	runCmd := &cobra.Command{
		Use:   "run [file|sample]",
		Short: "run a program headless and print what the loop did",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHeadless,
	}
	runCmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, csv, json)")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot numeric loop variables")
	runCmd.Flags().StringVar(&pngDir, "png-dir", "", "write one PNG frame per step to this directory")
	runCmd.Flags().DurationVar(&interval, "interval", 0, "delay between steps (0 runs as fast as possible)")
	runCmd.Flags().BoolVar(&save, "save", false, "store the run under the data directory")
	runCmd.Flags().BoolVar(&live, "live", false, "animate the loop in the terminal")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate cap for --live")
	runCmd.Flags().StringVar(&themeName, "theme", "", "color theme for --live and --png-dir")

	parseCmd := &cobra.Command{
		Use:   "parse [file|sample]",
		Short: "print the analyzer result as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  parseSource,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the analyzer over HTTP",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address")

	samplesCmd := &cobra.Command{
		Use:   "samples [name]",
		Short: "list bundled samples or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range config.ListSamples() {
					fmt.Printf("  %s\n", name)
				}
				return nil
			}
			src, ok := config.GetSample(args[0])
			if !ok {
				return fmt.Errorf("unknown sample: %s (available: %v)", args[0], config.ListSamples())
			}
			fmt.Print(src)
			return nil
		},
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print a saved run and plot its variables",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  showConfig,
	}
	configCmd.Flags().StringVar(&writePath, "write", "", "also save it to this path")

	rootCmd.AddCommand(tuiCmd, runCmd, parseCmd, serveCmd, samplesCmd, runsCmd, showCmd, configCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("analyzer-url") {
		cfg.Analyzer.Mode = config.ModeRemote
		cfg.Analyzer.URL = analyzerURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("theme") {
		cfg.Theme = themeName
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes to the configured file, or to fallback when none is set.
func newLogger(cfg *config.Config, fallback io.Writer) (*slog.Logger, func(), error) {
	if cfg.Log.File != "" {
		logger, f, err := logging.OpenFile(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return logger, func() { f.Close() }, nil
	}
	return logging.New(cfg.Log.Level, cfg.Log.Format, fallback), func() {}, nil
}

func newParser(cfg *config.Config, logger *slog.Logger) analyzer.Parser {
	if cfg.Analyzer.Mode == config.ModeRemote {
		logger.Debug("using remote analyzer", "url", cfg.Analyzer.URL)
		return analyzer.NewClient(cfg.Analyzer.URL, cfg.Analyzer.Timeout)
	}
	return analyzer.New(analyzer.WithMaxSize(cfg.Analyzer.MaxSize), analyzer.WithLogger(logger))
}

// readSource resolves a program argument: "-" is stdin, an existing path is
// read, and anything else is looked up as a bundled sample. No argument
// means the configured default sample.
func readSource(args []string, cfg *config.Config) (code, name, path string, err error) {
	if len(args) == 0 {
		src, ok := config.GetSample(cfg.Sample)
		if !ok {
			return "", "", "", fmt.Errorf("unknown sample: %s (available: %v)", cfg.Sample, config.ListSamples())
		}
		return src, cfg.Sample, "", nil
	}

	arg := args[0]
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), "stdin", "", err
	}
	data, err := os.ReadFile(arg)
	if err == nil {
		return string(data), strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg)), arg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		if src, ok := config.GetSample(arg); ok {
			return src, arg, "", nil
		}
	}
	return "", "", "", err
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The alternate screen owns the terminal; logs only go to a file.
	logger, closeLog, err := newLogger(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	code, _, path, err := readSource(args, cfg)
	if err != nil {
		return err
	}
	if watch && path == "" {
		return errors.New("--watch needs a file argument")
	}

	sess := session.New(newParser(cfg, logger), session.WithLogger(logger))
	return tui.Run(cmd.Context(), tui.Options{
		Session:  sess,
		Source:   code,
		Path:     path,
		Watch:    watch,
		Interval: cfg.Interval,
		Theme:    cfg.Theme,
		PNGDir:   exportDir,
		Logger:   logger,
	})
}

func parseSource(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	code, _, _, err := readSource(args, cfg)
	if err != nil {
		return err
	}
	resp, err := newParser(cfg, logger).Parse(cmd.Context(), code)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = addr
	}
	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	parser := analyzer.New(analyzer.WithMaxSize(cfg.Analyzer.MaxSize), analyzer.WithLogger(logger))
	srv := server.New(cfg.Server.Addr, parser,
		server.WithLogger(logger),
		server.WithRateLimit(cfg.Server.Rate, cfg.Server.Burst),
		server.WithMaxSourceSize(cfg.Analyzer.MaxSize),
	)
	return srv.Run(cmd.Context())
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := transcript.NewStore(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tTARGET\tSTEPS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Target,
			run.Steps,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	exp, err := transcript.NewStore(dataDir).LoadExport(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %s over %s, %d steps\n", exp.ID, exp.Name, exp.Target, exp.Steps)
	for _, rec := range exp.Records {
		for _, line := range rec.Lines {
			fmt.Printf("  [%d] %s\n", rec.Step, line)
		}
	}
	for _, name := range exp.Variables {
		var series []float64
		for _, rec := range exp.Records {
			if f, ok := structure.Number(rec.Overrides[name]); ok {
				series = append(series, f)
			}
		}
		if g := render.Plot(series, name); g != "" {
			fmt.Println()
			fmt.Println(g)
		}
	}
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	if writePath != "" {
		if err := config.Save(writePath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "saved %s\n", writePath)
	}
	return nil
}
