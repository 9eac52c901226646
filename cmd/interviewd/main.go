// Command interviewd is the entry point for the mock-interview server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/admitly/interviewd/internal/api"
	"github.com/admitly/interviewd/internal/audiocache"
	"github.com/admitly/interviewd/internal/config"
	"github.com/admitly/interviewd/internal/health"
	"github.com/admitly/interviewd/internal/interview"
	"github.com/admitly/interviewd/internal/interview/interrupt"
	"github.com/admitly/interviewd/internal/interview/questionbank"
	"github.com/admitly/interviewd/internal/interview/responder"
	"github.com/admitly/interviewd/internal/observe"
	"github.com/admitly/interviewd/internal/resilience"
	"github.com/admitly/interviewd/internal/store"
	"github.com/admitly/interviewd/internal/trends"
	"github.com/admitly/interviewd/internal/voice"
	"github.com/admitly/interviewd/pkg/provider/llm"
	"github.com/admitly/interviewd/pkg/provider/llm/anyllm"
	"github.com/admitly/interviewd/pkg/provider/tts"
	"github.com/admitly/interviewd/pkg/provider/tts/elevenlabs"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "interviewd: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "interviewd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("interviewd starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "interviewd",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmProvider, err := buildLLM(cfg, reg)
	if err != nil {
		slog.Error("failed to build LLM provider", "err", err)
		return 1
	}

	ttsProvider, err := buildTTS(cfg, reg)
	if err != nil {
		slog.Error("failed to build TTS provider", "err", err)
		return 1
	}
	if ttsProvider == nil {
		slog.Warn("no TTS provider configured, sessions run text-only")
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	var sessionStore store.Store
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pg, err := store.NewPostgres(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pg.Close()
		sessionStore = pg
		slog.Info("session store connected")
	} else {
		slog.Warn("no postgres DSN configured, transcripts are not persisted")
	}

	// ── Question catalog ──────────────────────────────────────────────────────
	catalog, err := loadCatalog(cfg.Interview.QuestionCatalog)
	if err != nil {
		slog.Error("failed to load question catalog", "err", err)
		return 1
	}
	slog.Info("question catalog loaded", "questions", len(catalog))

	// ── Audio cache ───────────────────────────────────────────────────────────
	var cacheOpts []audiocache.Option
	if ttl := cfg.AudioCache.TTL.Std(); ttl > 0 {
		cacheOpts = append(cacheOpts, audiocache.WithTTL(ttl))
	}
	if iv := cfg.AudioCache.SweepInterval.Std(); iv > 0 {
		cacheOpts = append(cacheOpts, audiocache.WithSweepInterval(iv))
	}
	cache, err := audiocache.New(cfg.AudioCache.Dir, cacheOpts...)
	if err != nil {
		slog.Error("failed to create audio cache", "err", err)
		return 1
	}
	slog.Info("audio cache ready", "dir", cache.Dir())

	// ── Interview pipeline ────────────────────────────────────────────────────
	var trendOpts []trends.Option
	if iv := cfg.Trends.RefreshInterval.Std(); iv > 0 {
		trendOpts = append(trendOpts, trends.WithRefreshInterval(iv))
	}

	var responderOpts []responder.Option
	if cfg.Interview.Persona != "" {
		responderOpts = append(responderOpts, responder.WithPersona(cfg.Interview.Persona))
	}

	voiceProfile := tts.VoiceProfile{
		ID:              cfg.Providers.TTS.Voice.VoiceID,
		Stability:       cfg.Providers.TTS.Voice.Stability,
		SimilarityBoost: cfg.Providers.TTS.Voice.SimilarityBoost,
	}

	orchOpts := []interview.Option{interview.WithStore(sessionStore)}
	if d := cfg.Interview.SpeakingUnlockTimeout.Std(); d > 0 {
		orchOpts = append(orchOpts, interview.WithUnlockTimeout(d))
	}
	if d := cfg.Interview.EndOfSessionDelay.Std(); d > 0 {
		orchOpts = append(orchOpts, interview.WithEndDelay(d))
	}

	orch := interview.New(interview.NewRegistry(),
		responder.New(llmProvider, responderOpts...),
		interrupt.NewEngine(llmProvider),
		voice.New(ttsProvider, voiceProfile, voice.WithCache(cache)),
		trends.NewService(trendOpts...),
		catalog,
		orchOpts...)

	// ── HTTP server ───────────────────────────────────────────────────────────
	var checkers []health.Checker
	if sessionStore != nil {
		checkers = append(checkers, health.StoreChecker(sessionStore))
	}
	if ttsProvider != nil {
		checkers = append(checkers, health.VoiceChecker(ttsProvider))
	}

	apiOpts := []api.Option{
		api.WithHealth(health.New(checkers...)),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	}
	if sessionStore != nil {
		apiOpts = append(apiOpts, api.WithStore(sessionStore))
	}
	server := api.New(orch, apiOpts...)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	// Most settings require a restart; the watcher surfaces drift in the logs
	// so operators notice a stale process.
	watcher, err := config.NewWatcher(*configPath, func(oldCfg, newCfg *config.Config) {
		diff := config.Diff(oldCfg, newCfg)
		if diff.Any() {
			slog.Warn("config file changed on disk, restart to apply", "diff", fmt.Sprintf("%+v", diff))
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server ready", "addr", cfg.Server.ListenAddr)
		var err error
		if tlsCfg := cfg.Server.TLS; tlsCfg != nil {
			err = srv.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := cache.Run(runCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-runCtx.Done()
		slog.Info("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the provider factories that ship with
// interviewd into reg. LLM names all route through the any-llm gateway.
func registerBuiltinProviders(reg *config.Registry) {
	for _, providerName := range []string{
		"gemini", "openai", "anthropic", "deepseek", "mistral", "groq",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})
}

// buildLLM creates the conversation LLM, wrapped in a circuit-breaking
// fallback group when a secondary provider is configured.
func buildLLM(cfg *config.Config, reg *config.Registry) (llm.Provider, error) {
	primaryName := cfg.Providers.LLM.Name
	primary, err := reg.CreateLLM(cfg.Providers.LLM.ProviderEntry)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", primaryName, err)
	}
	slog.Info("provider created", "kind", "llm", "name", primaryName, "model", cfg.Providers.LLM.Model)

	fb := cfg.Providers.LLM.Fallback
	if fb == nil {
		return primary, nil
	}

	secondary, err := reg.CreateLLM(*fb)
	if err != nil {
		return nil, fmt.Errorf("create fallback llm provider %q: %w", fb.Name, err)
	}
	group := resilience.NewLLMFallback(primary, primaryName, resilience.FallbackConfig{})
	group.AddFallback(fb.Name, secondary)
	slog.Info("provider created", "kind", "llm-fallback", "name", fb.Name, "model", fb.Model)
	return group, nil
}

// buildTTS creates the interviewer voice provider, wrapped in a
// circuit-breaking fallback group when a secondary provider is configured.
// A missing TTS section is not an error; sessions then run text-only.
func buildTTS(cfg *config.Config, reg *config.Registry) (tts.Provider, error) {
	name := cfg.Providers.TTS.Name
	if name == "" {
		return nil, nil
	}
	primary, err := reg.CreateTTS(cfg.Providers.TTS.ProviderEntry)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", name, "model", cfg.Providers.TTS.Model)

	fb := cfg.Providers.TTS.Fallback
	if fb == nil {
		return primary, nil
	}

	secondary, err := reg.CreateTTS(*fb)
	if err != nil {
		return nil, fmt.Errorf("create fallback tts provider %q: %w", fb.Name, err)
	}
	group := resilience.NewTTSFallback(primary, name, resilience.FallbackConfig{})
	group.AddFallback(fb.Name, secondary)
	slog.Info("provider created", "kind", "tts-fallback", "name", fb.Name, "model", fb.Model)
	return group, nil
}

func loadCatalog(path string) ([]questionbank.Question, error) {
	if path == "" {
		return questionbank.DefaultCatalog()
	}
	return questionbank.LoadCatalog(path)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
