// Command paagrab scrapes expandable related-question panels from search
// result pages.
//
// Usage:
//
//	paagrab -input queries.txt                      # queries from a file
//	paagrab -input queries.txt -output out.csv      # CSV + JSON sibling
//	paagrab -config paagrab.yaml -input queries.txt
//	paagrab -input queries.txt -resume              # pick up a stopped run
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/paagrab"
	"github.com/hazyhaar/paagrab/internal/archive"
	"github.com/hazyhaar/paagrab/internal/browser"
	"github.com/hazyhaar/paagrab/internal/challenge"
	"github.com/hazyhaar/paagrab/internal/export"
	"github.com/hazyhaar/paagrab/internal/status"
)

func main() {
	configPath := flag.String("config", "", "path to paagrab.yaml config file")
	input := flag.String("input", "", "query list file, one query per line")
	output := flag.String("output", "", "export path (.json or .csv)")
	hl := flag.String("hl", "", "interface language, e.g. en")
	gl := flag.String("gl", "", "result region, e.g. us")
	locale := flag.String("locale", "", "locale preset: "+strings.Join(paagrab.LocaleNames(), " "))
	clicks := flag.Int("clicks", 0, "expansion budget per query")
	headful := flag.Bool("headful", false, "run with a visible browser window")
	resume := flag.Bool("resume", false, "resume from the checkpoint file")
	pauseMin := flag.Duration("pause-min", 0, "minimum pause between queries")
	pauseMax := flag.Duration("pause-max", 0, "maximum pause between queries")
	captchaKey := flag.String("captcha-key", "", "solving service API key (or CAPTCHA_API_KEY)")
	captchaService := flag.String("captcha-service", "", "solving service: 2captcha, rucaptcha, capguru")
	archivePath := flag.String("archive", "", "sqlite archive path")
	statusAddr := flag.String("status-addr", "", "progress endpoint address, e.g. 127.0.0.1:8641")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: paagrab -input <file> [-config <file>] [flags]")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("paagrab: config", "error", err)
		os.Exit(1)
	}
	applyFlags(cfg, flagOverrides{
		hl: *hl, gl: *gl, locale: *locale, output: *output,
		clicks: *clicks, headful: *headful, resume: *resume,
		pauseMin: *pauseMin, pauseMax: *pauseMax,
		captchaKey: *captchaKey, captchaService: *captchaService,
		archivePath: *archivePath, statusAddr: *statusAddr,
	})
	if err := validate(cfg); err != nil {
		logger.Error("paagrab: config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch err := run(ctx, logger, cfg, *input); {
	case err == nil:
	case errors.Is(err, paagrab.ErrAborted):
		os.Exit(2)
	default:
		logger.Error("paagrab: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*paagrab.Config, error) {
	if path == "" {
		return paagrab.DefaultConfig(), nil
	}
	return paagrab.LoadConfigFile(path)
}

type flagOverrides struct {
	hl, gl, locale, output     string
	clicks                     int
	headful, resume            bool
	pauseMin, pauseMax         time.Duration
	captchaKey, captchaService string
	archivePath, statusAddr    string
}

func applyFlags(cfg *paagrab.Config, f flagOverrides) {
	if f.locale != "" {
		cfg.Locale = f.locale
	}
	if f.hl != "" {
		cfg.Language = f.hl
		cfg.Locale = ""
	}
	if f.gl != "" {
		cfg.Region = f.gl
		cfg.Locale = ""
	}
	if f.output != "" {
		cfg.Output = f.output
	}
	if f.clicks > 0 {
		cfg.ClickBudget = f.clicks
	}
	if f.headful {
		cfg.Mode = "headful"
	}
	if f.resume {
		cfg.Resume = true
	}
	if f.pauseMin > 0 {
		cfg.PauseMin = f.pauseMin
	}
	if f.pauseMax > 0 {
		cfg.PauseMax = f.pauseMax
	}
	if f.captchaService != "" {
		cfg.Captcha.Service = f.captchaService
	}
	if f.captchaKey != "" {
		cfg.Captcha.Key = f.captchaKey
	} else if cfg.Captcha.Key == "" {
		cfg.Captcha.Key = os.Getenv("CAPTCHA_API_KEY")
	}
	if f.archivePath != "" {
		cfg.ArchivePath = f.archivePath
	}
	if f.statusAddr != "" {
		cfg.StatusAddr = f.statusAddr
	}
}

func validate(cfg *paagrab.Config) error {
	if cfg.Locale != "" {
		loc, ok := paagrab.LookupLocale(cfg.Locale)
		if !ok {
			return fmt.Errorf("unknown locale %q (known: %s)",
				cfg.Locale, strings.Join(paagrab.LocaleNames(), " "))
		}
		cfg.Language = loc.Language
		cfg.Region = loc.Region
	}
	return nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *paagrab.Config, input string) error {
	queries, err := paagrab.LoadQueries(input)
	if err != nil {
		return fmt.Errorf("load queries: %w", err)
	}
	if len(queries) == 0 {
		return fmt.Errorf("no queries in %s", input)
	}
	logger.Info("loaded queries", "count", len(queries), "input", input)

	mgr := browser.NewManager(browser.Config{
		Headless:  cfg.Mode != "headful",
		Lang:      cfg.Language + "-" + strings.ToUpper(cfg.Region),
		UserAgent: cfg.UserAgent,
		Logger:    logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	sess, err := mgr.NewSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	var solver *challenge.Solver
	if cfg.Captcha.Key != "" {
		solver = challenge.NewSolver(cfg.Captcha.Service, cfg.Captcha.Key, logger)
		logger.Info("challenge solver enabled", "service", cfg.Captcha.Service)
	}

	var arch *archive.Archive
	if cfg.ArchivePath != "" {
		arch, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer arch.Close()
	}

	var stat *status.Server
	if cfg.StatusAddr != "" {
		stat = status.NewServer(logger, cfg.StatusAddr)
		if err := stat.Start(); err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		defer stat.Close()
	}

	runner := paagrab.NewRunner(paagrab.RunnerConfig{
		Config:  cfg,
		Session: sess,
		Solver:  solver,
		Archive: arch,
		Status:  stat,
		Logger:  logger,
	})

	summary, runErr := runner.Run(ctx, queries)

	// Export whatever was captured, even on abort or failure.
	if summary != nil && len(summary.Items) > 0 {
		if err := export.Write(cfg.Output, summary.Items); err != nil {
			logger.Error("export failed", "path", cfg.Output, "error", err)
			if runErr == nil {
				runErr = err
			}
		} else {
			logger.Info("exported", "path", cfg.Output, "items", len(summary.Items))
		}
	}
	return runErr
}
