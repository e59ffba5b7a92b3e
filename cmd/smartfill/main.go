// Command smartfill runs the autofill pipeline from a terminal: analyze a
// page, sanitize markup, parse profiles and fill forms through a headless
// browser.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/config"
	"github.com/testforge/smartfill/internal/inject"
	"github.com/testforge/smartfill/internal/llm"
	"github.com/testforge/smartfill/internal/services/autofill"
	"github.com/testforge/smartfill/internal/services/profile"
	"github.com/testforge/smartfill/internal/store"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

func main() {
	godotenv.Load()

	app := &cli.App{
		Name:  "smartfill",
		Usage: "analyze web forms and fill them from saved profiles",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log pipeline progress to stderr"},
			&cli.BoolFlag{Name: "json", Usage: "print results as JSON"},
			&cli.StringFlag{Name: "profiles", Usage: "YAML file of profiles loaded before the command runs"},
		},
		Commands: []*cli.Command{
			analyzeCommand(),
			sanitizeCommand(),
			parseProfileCommand(),
			fillCommand(),
			profilesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		red.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runtime is everything a command needs. Close releases the store and the
// browser.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	service *autofill.Service
	browser *inject.Browser
	closers []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.logger.Sync()
}

// newRuntime wires the pipeline. withBrowser starts Playwright, which is
// only needed to render live URLs or inject values.
func newRuntime(c *cli.Context, withBrowser bool) (*runtime, error) {
	cfg, _ := config.LoadWithDefaults()

	var logger *zap.Logger
	if c.Bool("verbose") {
		logger, _ = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}

	rt := &runtime{cfg: cfg, logger: logger}

	backend, _, err := store.Open(c.Context, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	rt.closers = append(rt.closers, backend.Close)

	opts, err := store.Options(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = store.New(backend, opts...)

	if path := c.String("profiles"); path != "" {
		n, err := importProfiles(c.Context, rt.store, path)
		if err != nil {
			rt.Close()
			return nil, err
		}
		logger.Debug("profiles loaded", zap.String("file", path), zap.Int("count", n))
	}

	factory := llm.NewFactory(llm.FactoryConfigFrom(cfg), logger)
	factory.SetCache(llm.NewResponseCache(llm.DefaultCacheConfig(), nil, logger))

	deps := autofill.Deps{Store: rt.store, Providers: factory}
	if withBrowser {
		browser, err := inject.NewBrowser(cfg.Browser, inject.Options{
			TypingDelay:       cfg.Analysis.TypingDelay,
			HighlightDuration: cfg.Analysis.HighlightDuration,
			FillDelay:         cfg.Analysis.FillDelay,
		}, logger)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("starting browser: %w", err)
		}
		rt.browser = browser
		rt.closers = append(rt.closers, browser.Close)
		deps.Injector = browser
		deps.PageSource = browser
	}

	rt.service = autofill.NewService(autofill.Config{
		MaxModelChars:  cfg.Analysis.MaxModelChars,
		NamePrecedence: profile.ParsePrecedence(cfg.Analysis.NamePrecedence),
	}, deps, logger)

	return rt, nil
}

// spin shows a spinner on stderr until the returned stop is called.
func spin(description string) (stop func()) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}()

	return func() {
		cancel()
		<-done
		bar.Finish()
	}
}
