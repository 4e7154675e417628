package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/FranksOps/haggle/internal/analyzer"
	"github.com/FranksOps/haggle/internal/config"
	"github.com/FranksOps/haggle/internal/fingerprint"
	"github.com/FranksOps/haggle/internal/pipeline"
	"github.com/FranksOps/haggle/internal/report"
	"github.com/FranksOps/haggle/internal/scraper"
	"github.com/FranksOps/haggle/internal/source"
	"github.com/FranksOps/haggle/internal/storage"
	"github.com/FranksOps/haggle/internal/storage/csvbackend"
	"github.com/FranksOps/haggle/internal/storage/jsonbackend"
	"github.com/FranksOps/haggle/internal/storage/postgres"
	"github.com/FranksOps/haggle/internal/storage/sqlite"
	"github.com/FranksOps/haggle/pkg/proxy"
	"github.com/FranksOps/haggle/pkg/ratelimit"
	"github.com/FranksOps/haggle/pkg/useragent"
)

// newLogger builds the process logger from the log settings.
func newLogger(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// newFetcher builds the shared fetch layer. The returned limiter must be
// stopped by the caller.
func newFetcher(cfg config.Fetch) (*scraper.Fetcher, *ratelimit.Limiter, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, nil, err
	}

	var proxies *proxy.Pool
	if cfg.ProxyFile != "" {
		proxies = proxy.NewPool(proxy.Config{MaxFailures: cfg.ProxyMaxFailures, Cooldown: cfg.ProxyCooldown})
		if err := proxies.LoadFile(cfg.ProxyFile); err != nil {
			return nil, nil, err
		}
	}

	header := scraper.DefaultHeader()
	if cfg.AcceptLanguage != "" {
		header.Set("Accept-Language", cfg.AcceptLanguage)
	}
	if cfg.Referer != "" {
		header.Set("Referer", cfg.Referer)
	}

	limiter := ratelimit.NewLimiter(cfg.RPS, cfg.Jitter)
	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Timeout,
		UseCookieJar: cfg.CookieJar,
		ProxyPool:    proxies,
		UAPool:       useragent.NewPool(cfg.UserAgents),
		Fingerprint:  profile,
		Limiter:      limiter,
		Pause:        ratelimit.Pause{Min: cfg.DelayMin, Max: cfg.DelayMax},
		Header:       header,
	})
	if err != nil {
		limiter.Stop()
		return nil, nil, err
	}
	return fetcher, limiter, nil
}

// buildSources creates the enabled sources in a fixed order: feed, markup,
// mock. fetcher may be nil when only the mock source is enabled.
func buildSources(cfg config.Sources, fetcher source.Fetcher, logger *slog.Logger) ([]source.Source, error) {
	var sources []source.Source

	if cfg.Feed.Enabled {
		feed, err := source.NewFeed(source.FeedConfig{
			Name:             cfg.Feed.Name,
			Endpoint:         cfg.Feed.Endpoint,
			ItemsPath:        cfg.Feed.ItemsPath,
			MaxItems:         cfg.MaxItems,
			FallbackLocation: cfg.FallbackLocation,
		}, fetcher, logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, feed)
	}
	if cfg.Markup.Enabled {
		markup, err := source.NewMarkup(source.MarkupConfig{
			Name:             cfg.Markup.Name,
			BaseURL:          cfg.Markup.BaseURL,
			MaxItems:         cfg.MaxItems,
			FallbackLocation: cfg.FallbackLocation,
		}, fetcher, logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, markup)
	}
	if cfg.Mock.Enabled {
		sources = append(sources, source.NewMock(cfg.Mock.Name))
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}
	return sources, nil
}

// app holds what every command needs; close releases it.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	limiter  *ratelimit.Limiter
}

func (a *app) close() {
	a.limiter.Stop()
}

func newApp(configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(logOut, cfg.Log)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	var (
		fetcher source.Fetcher
		limiter *ratelimit.Limiter
	)
	if cfg.Sources.Feed.Enabled || cfg.Sources.Markup.Enabled {
		f, l, err := newFetcher(cfg.Fetch)
		if err != nil {
			return nil, fmt.Errorf("fetcher: %w", err)
		}
		fetcher, limiter = f, l
	}

	sources, err := buildSources(cfg.Sources, fetcher, logger)
	if err != nil {
		limiter.Stop()
		return nil, fmt.Errorf("sources: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		pipeline: &pipeline.Pipeline{
			Sources:    sources,
			Matcher:    newMatcher(cfg.Matcher),
			Summarizer: report.NewSummarizer(cfg.Pricing.SuggestedMinRatio, cfg.Pricing.SuggestedMaxRatio),
			Logger:     logger,
		},
		limiter: limiter,
	}, nil
}

// newMatcher builds the matcher from loaded config, where defaults are
// already applied, so zero thresholds are taken as given.
func newMatcher(cfg config.Matcher) *analyzer.Matcher {
	return analyzer.NewMatcher(analyzer.Config{
		Threshold:  &cfg.Threshold,
		MinOverlap: &cfg.MinOverlap,
		Stopwords:  cfg.Stopwords,
	})
}

// openBackend opens the configured history store. It returns nil for the
// "none" backend.
func openBackend(ctx context.Context, cfg config.Storage) (storage.Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return nil, nil
	case "sqlite":
		return sqlite.New(dsnOr(cfg.DSN, "haggle.db"))
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage.dsn is required for postgres")
		}
		return postgres.New(ctx, cfg.DSN)
	case "json":
		return jsonbackend.New(dsnOr(cfg.DSN, "haggle.jsonl"))
	case "csv":
		return csvbackend.New(dsnOr(cfg.DSN, "haggle.csv"))
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func dsnOr(dsn, fallback string) string {
	if dsn == "" {
		return fallback
	}
	return dsn
}
