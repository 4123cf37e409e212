// cmd/landwatch/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/valpere/landwatch/internal/bot"
	"github.com/valpere/landwatch/internal/config"
	"github.com/valpere/landwatch/internal/errors"
	"github.com/valpere/landwatch/internal/output"
	"github.com/valpere/landwatch/internal/storage"
	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const defaultConfigFile = "config.yaml"

// cli holds the parsed command line.
type cli struct {
	command    string
	args       []string
	configFile string
	verbose    bool
	format     string
	out        string
}

// parseArgs splits flags from positional arguments. The first positional
// argument is the command; a second one is taken as the config file.
func parseArgs(argv []string) (cli, error) {
	c := cli{configFile: defaultConfigFile}
	var positional []string
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		name, value, hasValue := strings.Cut(arg, "=")
		takeValue := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(argv) {
				return "", fmt.Errorf("flag %s needs a value", name)
			}
			i++
			return argv[i], nil
		}

		var err error
		switch name {
		case "-v", "--verbose":
			c.verbose = true
		case "-c", "--config":
			c.configFile, err = takeValue()
		case "-f", "--format":
			c.format, err = takeValue()
		case "-o", "--out":
			c.out, err = takeValue()
		default:
			if strings.HasPrefix(arg, "-") && len(positional) > 0 {
				return c, fmt.Errorf("unknown flag %s", arg)
			}
			positional = append(positional, arg)
		}
		if err != nil {
			return c, err
		}
	}
	if len(positional) > 0 {
		c.command = positional[0]
		c.args = positional[1:]
	}
	return c, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(argv []string, stdout, stderr io.Writer) int {
	c, err := parseArgs(argv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return errors.ExitGeneral
	}
	errorService := errors.NewService().WithVerbose(c.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch c.command {
	case "run":
		err = runOnce(ctx, c, stdout, errorService)
	case "daemon":
		err = runDaemon(ctx, c, errorService)
	case "validate":
		err = validateConfig(c, stdout)
	case "template":
		err = generateTemplate(c, stdout)
	case "export":
		err = exportListings(ctx, c, stdout)
	case "stats":
		err = showStats(ctx, c, stdout)
	case "version", "--version":
		printVersion(stdout)
	case "", "help", "--help", "-h":
		printUsage(stdout)
		if c.command == "" {
			return errors.ExitGeneral
		}
	default:
		fmt.Fprintf(stderr, "Error: unknown command '%s'\n", c.command)
		printUsage(stderr)
		return errors.ExitGeneral
	}

	if err != nil {
		fmt.Fprint(stderr, errorService.FormatErrorForCLI(err))
		return errorService.GetExitCode(err)
	}
	return errors.ExitOK
}

// configPath prefers a positional argument over --config.
func (c cli) configPath() string {
	if len(c.args) > 0 && c.command != "template" {
		return c.args[0]
	}
	return c.configFile
}

// loadConfig reads .env and the config file and installs the logger.
func loadConfig(c cli) (*config.Config, error) {
	path := c.configPath()
	if err := config.LoadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	utils.SetupLogger(cfg.Log)
	return cfg, nil
}

func runOnce(ctx context.Context, c cli, stdout io.Writer, errorService *errors.Service) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := bot.NewApp(ctx, cfg, bot.Options{Version: version, Errors: errorService})
	if err != nil {
		return err
	}
	defer app.Close()

	summary, err := app.RunOnce(ctx)
	printSummary(stdout, summary)
	return err
}

func runDaemon(ctx context.Context, c cli, errorService *errors.Service) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := bot.NewApp(ctx, cfg, bot.Options{
		ConfigPath: c.configPath(),
		Version:    version,
		Errors:     errorService,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	logger := utils.NewComponentLogger("main")
	logger.Info("daemon started", "version", version, "interval", cfg.Schedule.Interval, "metrics", cfg.Metrics.Enabled)
	err = app.Daemon(ctx)
	logger.Info("daemon stopped", "runs", app.Scheduler().Runs())
	return err
}

func validateConfig(c cli, stdout io.Writer) error {
	path := c.configPath()
	if err := config.LoadDotEnv(filepath.Dir(path)); err != nil {
		return err
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}
	result := cfg.ValidateWithDetails()
	for _, w := range result.Warnings {
		fmt.Fprintf(stdout, "⚠ %s\n", w)
	}
	fmt.Fprintf(stdout, "✓ Configuration file '%s' is valid\n", path)
	if c.verbose {
		fmt.Fprintf(stdout, "  %s\n", cfg.Summary())
		for _, r := range cfg.Regions {
			fmt.Fprintf(stdout, "  region %s (%s)\n", r.Label(), r.CortarNo)
		}
	}
	return nil
}

func generateTemplate(c cli, stdout io.Writer) error {
	profile := ""
	if len(c.args) > 0 {
		profile = c.args[0]
	}
	cfg := config.GenerateTemplate(profile)
	return config.SaveToWriter(&cfg, stdout)
}

func openStore(ctx context.Context, c cli) (storage.Store, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, cfg.Storage)
}

func exportListings(ctx context.Context, c cli, stdout io.Writer) error {
	if c.out == "" {
		return utils.NewError(utils.ErrCodeConfiguration, "export needs --out FILE").Build()
	}
	format, ok := output.ParseFormat(c.format, c.out)
	if !ok {
		return utils.NewError(utils.ErrCodeConfiguration, fmt.Sprintf("unknown export format %q, use xlsx, csv or json", c.format)).Build()
	}
	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := output.NewManager(store, nil).Export(ctx, format, c.out)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Exported %d listings to %s\n", n, c.out)
	return nil
}

func showStats(ctx context.Context, c cli, stdout io.Writer) error {
	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Store: %v\n", store)
	fmt.Fprintf(stdout, "  Total:    %d\n", st.Total)
	fmt.Fprintf(stdout, "  Notified: %d\n", st.Notified)
	fmt.Fprintf(stdout, "  Pending:  %d\n", st.Pending)
	return nil
}

func printSummary(w io.Writer, s types.RunSummary) {
	fmt.Fprintf(w, "Run %s summary:\n", s.RunID)
	fmt.Fprintf(w, "  Fetched:  %d\n", s.Fetched)
	fmt.Fprintf(w, "  Filtered: %d\n", s.Filtered)
	fmt.Fprintf(w, "  New:      %d\n", s.New)
	fmt.Fprintf(w, "  Notified: %d\n", s.Notified)
	fmt.Fprintf(w, "  Errors:   %d\n", s.Errors)
	fmt.Fprintf(w, "  Stored:   %d\n", s.StoredAll)
	fmt.Fprintf(w, "  Duration: %s\n", s.Duration.Round(time.Second))
}

// printUsage displays help information
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "landwatch - apartment listing watcher with Telegram alerts")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  landwatch run [config.yaml]                  Run one polling pass")
	fmt.Fprintln(w, "  landwatch daemon [config.yaml]               Poll on the configured interval")
	fmt.Fprintln(w, "  landwatch validate [config.yaml]             Validate configuration file")
	fmt.Fprintln(w, "  landwatch template [fast|slow]               Print a configuration template")
	fmt.Fprintln(w, "  landwatch export --format xlsx --out FILE    Export stored listings (xlsx, csv, json)")
	fmt.Fprintln(w, "  landwatch stats [config.yaml]                Show stored listing counts")
	fmt.Fprintln(w, "  landwatch version                            Show version information")
	fmt.Fprintln(w, "  landwatch help                               Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -c, --config FILE    Configuration file (default config.yaml)")
	fmt.Fprintln(w, "  -v, --verbose        Debug logging and technical error details")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID, SEARCH_REGIONS, TRADE_TYPES (also read from .env)")
}

// printVersion displays version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "landwatch %s\n", version)
	fmt.Fprintf(w, "Build time: %s\n", buildTime)
	fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
}
