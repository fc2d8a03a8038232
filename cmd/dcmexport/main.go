package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dcmexport/backend/internal/config"
	"github.com/dcmexport/backend/internal/logging"
	"github.com/dcmexport/backend/internal/pipeline"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// cliFlags holds command line values. Only flags the user set override the
// config file.
type cliFlags struct {
	configPath string
	input      string
	output     string
	dump       string
	formats    string
	logLevel   string
	recursive  bool
	noSanitize bool
	noDump     bool
	version    bool
	set        map[string]bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flags.version {
		fmt.Fprintf(stdout, "dcmexport %s (built %s)\n", Version, BuildTime)
		return exitOK
	}

	configPath := flags.configPath
	if configPath == "" {
		configPath = defaultConfigPath()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		if errors.Is(err, config.ErrInvalidConfig) {
			return exitUsage
		}
		return exitFatal
	}
	flags.apply(cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return exitUsage
	}
	if err := checkInputDir(cfg.Paths.InputDirectory); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(stderr, "Failed to create directories: %v\n", err)
		return exitFatal
	}

	var console io.Writer
	if cfg.Logging.Console {
		console = stderr
	}
	log, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Console: console,
		File:    cfg.LogFilePath(),
		Service: "dcmexport",
		Version: Version,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logging: %v\n", err)
		return exitFatal
	}
	defer log.Close()

	p, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize pipeline")
		return exitFatal
	}

	printBanner(stdout, configPath, cfg, p.RunID())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("interrupted")
		} else {
			log.Error().Err(err).Msg("run failed")
		}
		return exitFatal
	}

	fmt.Fprintf(stdout, "Extracted %d of %d files in %s\n",
		summary.Extracted, summary.Found, summary.Duration().Round(time.Millisecond))
	for _, name := range summary.Outputs {
		fmt.Fprintf(stdout, "  %s\n", filepath.Join(cfg.Paths.OutputDirectory, name))
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("dcmexport", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "path to the YAML config file (created with defaults if missing)")
	fs.StringVar(&f.input, "input", "", "directory containing DICOM files")
	fs.StringVar(&f.input, "i", "", "shorthand for -input")
	fs.StringVar(&f.output, "output", "", "directory for export artifacts")
	fs.StringVar(&f.output, "o", "", "shorthand for -output")
	fs.StringVar(&f.dump, "dump", "", "directory for per-file tag dumps")
	fs.StringVar(&f.dump, "d", "", "shorthand for -dump")
	fs.StringVar(&f.formats, "formats", "", "comma separated export formats ("+strings.Join(config.KnownFormats, ", ")+")")
	fs.StringVar(&f.logLevel, "log-level", "", "trace, debug, info, warn or error")
	fs.BoolVar(&f.recursive, "recursive", false, "descend into subdirectories")
	fs.BoolVar(&f.noSanitize, "no-sanitize", false, "write tag values without sanitization")
	fs.BoolVar(&f.noDump, "no-dump", false, "skip per-file tag dumps")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return nil, errors.New("unexpected arguments")
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply overrides cfg with the flags that were set. Flag paths are taken
// relative to the working directory.
func (f *cliFlags) apply(cfg *config.AppConfig) {
	if f.set["input"] || f.set["i"] {
		cfg.Paths.InputDirectory = absPath(f.input)
	}
	if f.set["output"] || f.set["o"] {
		cfg.Paths.OutputDirectory = absPath(f.output)
	}
	if f.set["dump"] || f.set["d"] {
		cfg.Paths.DumpDirectory = absPath(f.dump)
	}
	if f.set["formats"] {
		cfg.Export.Formats = config.SplitList(f.formats)
	}
	if f.set["log-level"] {
		cfg.Logging.Level = f.logLevel
	}
	if f.set["recursive"] {
		cfg.Scan.Recursive = f.recursive
	}
	if f.noSanitize {
		cfg.Sanitize.Enabled = false
	}
	if f.noDump {
		cfg.Export.DumpTags = false
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// checkInputDir rejects a missing or non-directory input path.
func checkInputDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("input directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path %s is not a directory", dir)
	}
	return nil
}

// defaultConfigPath places the config next to the executable.
func defaultConfigPath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "dcmexport.yaml"
	}
	return filepath.Join(filepath.Dir(exePath), "dcmexport.yaml")
}

func printBanner(w io.Writer, configPath string, cfg *config.AppConfig, runID string) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║           DICOM Tag Exporter                              ║\n")
	fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║  Version:    %-45s║\n", Version)
	fmt.Fprintf(w, "║  Build Time: %-45s║\n", BuildTime)
	fmt.Fprintf(w, "║  Run:        %-45s║\n", runID)
	fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║  Config:    %-46s║\n", logging.ShortPath(configPath, 3))
	fmt.Fprintf(w, "║  Input:     %-46s║\n", logging.ShortPath(cfg.Paths.InputDirectory, 3))
	fmt.Fprintf(w, "║  Output:    %-46s║\n", logging.ShortPath(cfg.Paths.OutputDirectory, 3))
	fmt.Fprintf(w, "║  Formats:   %-46s║\n", strings.Join(cfg.Export.Formats, ", "))
	fmt.Fprintf(w, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(w, "\n")
}
