// Command sublarrd is the engine's daemon entrypoint: it loads
// configuration, opens the embedded store, wires the managers together,
// runs the startup compatibility check, and starts the scheduler set.
// There is no HTTP surface here; the daemon is driven by its own
// schedulers and, optionally, an external supervisor that calls into the
// same packages directly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sublarr/sublarr/internal/anidb"
	"github.com/sublarr/sublarr/internal/breaker"
	"github.com/sublarr/sublarr/internal/config"
	"github.com/sublarr/sublarr/internal/core/startup"
	"github.com/sublarr/sublarr/internal/events"
	"github.com/sublarr/sublarr/internal/jobqueue"
	"github.com/sublarr/sublarr/internal/mediamanager"
	"github.com/sublarr/sublarr/internal/mediaserver"
	"github.com/sublarr/sublarr/internal/provider"
	"github.com/sublarr/sublarr/internal/scanner"
	"github.com/sublarr/sublarr/internal/scheduler"
	"github.com/sublarr/sublarr/internal/store"
	"github.com/sublarr/sublarr/internal/translate"
	"github.com/sublarr/sublarr/internal/translator"
	"github.com/sublarr/sublarr/internal/watch"
	"github.com/sublarr/sublarr/internal/whisper"
	"github.com/sublarr/sublarr/pkg/utils"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("sublarrd %s\n", utils.Version)
		return
	}

	utils.SafeRun(run)
}

func run() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	log.Info().Str("version", utils.Version).Msg("starting sublarrd")

	st, err := store.Open(cfg.General.DBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}

	bus := events.New(log)
	hookEngine := events.NewHookEngine(st, bus, 2, log)
	webhookDispatcher := events.NewWebhookDispatcher(st, log)
	bus.AddDispatcher(hookEngine)
	bus.AddDispatcher(webhookDispatcher)
	syncHooksAndWebhooks(st, cfg, log)

	providerBreakers := breaker.NewRegistry(5, 30*time.Second, log)
	registry, err := provider.BuildRegistry(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build provider registry")
	}
	scoringCache := provider.NewScoringCache(st, 60*time.Second)
	providerMgr := provider.NewManager(registry, providerBreakers, st, st, st, scoringCache, provider.Config{
		Enabled:        cfg.Providers.Enabled,
		Priority:       cfg.Providers.Priority,
		AutoPrioritise: cfg.Providers.AutoPrioritise,
		CacheTTL:       time.Duration(cfg.Providers.CacheTTLSecs) * time.Second,
	}, log)

	translateMgr := translate.NewManager(cfg, log)

	syncMediaServers(st, cfg, log)
	msEntries, err := st.MediaServers()
	if err != nil {
		log.Error().Err(err).Msg("failed to load media server instances")
	}
	mediaserverMgr := mediaserver.BuildManager(msEntries, log)

	var transcriber translator.Transcriber
	var whisperQueue *whisper.Queue
	if cfg.Whisper.MaxConcurrent > 0 {
		backend := whisper.NewHTTPBackend(os.Getenv("SUBLARR_WHISPER_API_KEY"), "", cfg.Whisper.Model)
		whisperQueue = whisper.New(st, backend, cfg.Whisper.MaxConcurrent, bus, log)
		transcriber = whisperQueue
	}

	engine := translator.New(cfg, providerMgr, translateMgr, mediaserverMgr, st, transcriber, bus, log)

	queue := jobqueue.New(st, bus, cfg.General.MaxWorkers, log)

	seriesClient, movieClient := buildMediaManagerClients(cfg)
	sc := scanner.New(cfg, seriesClient, movieClient, st, bus, log)
	searchLoop := scanner.NewSearchLoop(cfg, st, engine, bus, log)

	anidbSyncer := anidb.New(st, log)

	results := startup.CheckCompat(st, registry)
	for _, r := range results {
		ev := log.Info()
		if !r.Passed {
			ev = log.Warn()
		}
		ev.Str("collaborator", r.Name).Bool("passed", r.Passed).Str("detail", r.Detail).Msg("startup compatibility check")
	}

	bus.Subscribe(func(name string, _ map[string]any) {
		if name != "config_update" {
			return
		}
		scoringCache.Invalidate()
		translateMgr.InvalidateCache()
	})

	sched := scheduler.New(cfg, bus, log)
	sched.AddTask(scheduler.NewWantedScanTask(sc))
	sched.AddTask(scheduler.NewWantedSearchTask(cfg, searchLoop))
	if whisperQueue != nil {
		sched.AddTask(scheduler.NewCleanupTask(st, queue, whisperQueue))
	} else {
		sched.AddTask(scheduler.NewCleanupTask(st, queue, nil))
	}
	sched.AddTask(scheduler.NewAniDBRefreshTask(func(ctx context.Context, sourceURL string) error {
		_, err := anidbSyncer.Sync(ctx, sourceURL)
		return err
	}))
	sched.SetBackup(scheduler.NewBackupFunc(st, cfg.General.BackupDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.General.FSNotifyEnabled && cfg.General.WatchPath != "" {
		w, err := watch.New([]string{cfg.General.WatchPath}, func(triggerCtx context.Context) {
			if _, _, err := sc.Scan(triggerCtx); err != nil {
				log.Error().Err(err).Msg("fsnotify-triggered scan failed")
			}
		}, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to start filesystem watcher")
		} else {
			if err := w.Start(); err != nil {
				log.Error().Err(err).Msg("failed to start filesystem watcher")
			}
			defer w.Stop()
		}
	}

	config.Watch(func(*config.Config) {
		bus.Emit("config_update", nil)
	})

	sched.Start(ctx)
	log.Info().Msg("sublarrd is running")

	waitForShutdown(log)

	sched.Stop()
	cancel()
	log.Info().Msg("sublarrd stopped")
}

// newLogger builds the process-wide zerolog logger: coloured console output
// when attached to a tty, otherwise uncoloured console output with RFC3339
// timestamps, always duplicated to a rotating log
// file via lumberjack so an operator has a tail-able file regardless of
// how the daemon is supervised.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.General.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.General.LogFile,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}

	var consoleWriter zerolog.ConsoleWriter
	if isTTY(os.Stdout) {
		consoleWriter = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	} else {
		consoleWriter = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: true}
	}

	multi := zerolog.MultiLevelWriter(consoleWriter, fileWriter)
	return zerolog.New(multi).Level(level).With().Timestamp().Logger()
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// syncMediaServers upserts every config-declared media server instance
// into the store, letting the store stay the source of truth the rest of
// the process reads from while config.json remains the operator-facing
// surface.
func syncMediaServers(st *store.Store, cfg *config.Config, log zerolog.Logger) {
	for _, e := range cfg.MediaServers {
		if err := st.UpsertMediaServer(store.MediaServerConfig{
			Name: e.Name, Kind: e.Kind, BaseURL: e.BaseURL, Token: e.Token, Enabled: e.Enabled,
		}); err != nil {
			log.Error().Err(err).Str("server", e.Name).Msg("failed to sync media server config")
		}
	}
}

// syncHooksAndWebhooks mirrors config.json's hook/webhook entries into the
// store on every startup, per the sync contract internal/store/hooks.go
// and internal/store/webhooks.go document.
func syncHooksAndWebhooks(st *store.Store, cfg *config.Config, log zerolog.Logger) {
	for _, h := range cfg.Hooks {
		if err := st.UpsertHookConfig(store.HookConfig{
			Name: h.Name, EventName: h.EventName, ScriptPath: h.ScriptPath,
			TimeoutSeconds: h.TimeoutSeconds, Enabled: h.Enabled,
		}); err != nil {
			log.Error().Err(err).Str("hook", h.Name).Msg("failed to sync hook config")
		}
	}
	for _, w := range cfg.Webhooks {
		if err := st.UpsertWebhookConfig(store.WebhookConfig{
			Name: w.Name, EventName: w.EventName, URL: w.URL, Secret: w.Secret,
			RetryCount: w.RetryCount, TimeoutSeconds: w.TimeoutSeconds, Enabled: w.Enabled,
		}); err != nil {
			log.Error().Err(err).Str("webhook", w.Name).Msg("failed to sync webhook config")
		}
	}
}

// buildMediaManagerClients constructs a SeriesClient/MovieClient pair from
// the first enabled "sonarr" and "radarr" entries in cfg.MediaManagers.
// Either may come back nil when no entry of that kind is configured; the
// scanner simply skips that half of the library.
func buildMediaManagerClients(cfg *config.Config) (mediamanager.SeriesClient, mediamanager.MovieClient) {
	var series mediamanager.SeriesClient
	var movies mediamanager.MovieClient
	for _, e := range cfg.MediaManagers {
		if !e.Enabled {
			continue
		}
		switch e.Kind {
		case "sonarr":
			if series == nil {
				series = mediamanager.NewSonarrClient(e.BaseURL, e.APIKey, "anime")
			}
		case "radarr":
			if movies == nil {
				movies = mediamanager.NewRadarrClient(e.BaseURL, e.APIKey)
			}
		}
	}
	return series, movies
}

func waitForShutdown(log zerolog.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("received shutdown signal")
}
