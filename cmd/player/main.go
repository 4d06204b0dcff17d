// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/solobox/internal/app/notice"
	"github.com/osa030/solobox/internal/app/playback"
	"github.com/osa030/solobox/internal/app/viewmodel"
	"github.com/osa030/solobox/internal/domain/playlist"
	"github.com/osa030/solobox/internal/domain/track"
	"github.com/osa030/solobox/internal/infra/catalog"
	"github.com/osa030/solobox/internal/infra/config"
	"github.com/osa030/solobox/internal/infra/engine"
	"github.com/osa030/solobox/internal/infra/logger"
	"github.com/osa030/solobox/internal/ui"
)

var (
	app        = kingpin.New("solobox", "solobox local music player")
	configPath = app.Flag("config", "Path to config file").String()
	library    = app.Flag("library", "Music library directory (overrides config)").Short('l').String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	// scan command
	scanCmd = app.Command("scan", "Scan the library, print the playlist and exit")
)

func init() {
	// play command (default) - no need to store the command
	app.Command("play", "Open the player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// The library flag rides the same override path as the environment.
	if *library != "" {
		_ = os.Setenv("SOLOBOX_LIBRARY", *library)
	}

	// Initialize logger with defaults so config loading can log
	loggerConfig := logger.Config{
		Output: "stderr",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	if *configPath != "" {
		zlog.Info().Msgf("Loading config from %s", *configPath)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Re-initialize with config values, flags win
	if !*verbose {
		loggerConfig.Level = cfg.Log.Level
	}
	if *logfile == "" {
		loggerConfig.Output = cfg.Log.Output
	}
	if err := logger.Init(loggerConfig); err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}

	// Handle scan command
	if command == scanCmd.FullCommand() {
		if err := printLibrary(cfg); err != nil {
			zlog.Error().Msgf("Scan error: %v", err)
			os.Exit(1)
		}
		return
	}

	// Run player (defer ensures teardown is executed)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the main player logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	tracks, startup := loadLibrary(ctx, cfg)
	zlog.Info().Msgf("Library ready: %d tracks", len(tracks))

	pl := playlist.New(tracks)

	eng := engine.NewLocal(engine.Config{
		StatusInterval: cfg.Playback.StatusInterval(),
		SpeakerBuffer:  cfg.Playback.SpeakerBuffer(),
	})
	defer func() {
		if err := eng.Close(); err != nil {
			zlog.Error().Msgf("Failed to close engine: %v", err)
		}
	}()

	center := notice.NewCenter()
	defer center.Close()

	ctrl := playback.NewController(pl, eng, center)
	defer func() {
		if err := ctrl.Close(); err != nil {
			zlog.Error().Msgf("Failed to close transport: %v", err)
		}
	}()

	tuiApp := ui.NewApp(ctrl, pl, center, cfg.GetMessage)

	// Startup problems surface inside the window rather than killing it.
	if startup != nil {
		center.Publish(startup.severity, startup.code, startup.message)
	}

	if err := tuiApp.Run(); err != nil {
		return fmt.Errorf("terminal UI error: %w", err)
	}

	zlog.Info().Msg("Player stopped")
	return nil
}

// startupNotice is a problem detected before the window opens.
type startupNotice struct {
	severity notice.Severity
	code     string
	message  string
}

// loadLibrary enumerates the configured sources. Failures never abort the
// player; they come back as a notice for the window to show.
func loadLibrary(ctx context.Context, cfg *config.Config) ([]track.Track, *startupNotice) {
	cat, err := catalog.New(catalogConfig(cfg))
	if err != nil {
		zlog.Error().Msgf("Invalid library config: %v", err)
		return nil, &startupNotice{
			severity: notice.SeverityBlocking,
			code:     notice.CodeEnumerationFailure,
			message:  err.Error(),
		}
	}

	if err := cat.RequestPermission(); err != nil {
		zlog.Error().Msgf("Library access denied: %v", err)
		return nil, &startupNotice{
			severity: notice.SeverityBlocking,
			code:     notice.CodePermissionDenied,
			message:  err.Error(),
		}
	}

	tracks, err := cat.List(ctx)
	if err != nil {
		zlog.Error().Msgf("Library scan failed: %v", err)
		return nil, &startupNotice{
			severity: notice.SeverityBlocking,
			code:     notice.CodeEnumerationFailure,
			message:  err.Error(),
		}
	}

	if len(tracks) == 0 {
		zlog.Warn().Msg("Library scan found no playable tracks")
		return nil, &startupNotice{
			severity: notice.SeverityNotice,
			code:     "no_tracks",
			message:  cfg.Messages.NoTracks,
		}
	}

	return tracks, nil
}

// printLibrary scans the library and prints the resulting playlist.
func printLibrary(cfg *config.Config) error {
	cat, err := catalog.New(catalogConfig(cfg))
	if err != nil {
		return err
	}
	if err := cat.RequestPermission(); err != nil {
		return err
	}

	tracks, err := cat.List(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Found %d tracks:\n", len(tracks))
	for i, trk := range tracks {
		fmt.Printf("  %-4d %-50s %8s  %s\n",
			i+1, trk.DisplayName(), viewmodel.FormatClock(trk.Duration), trk.Locator)
	}
	return nil
}

// catalogConfig maps the file config onto the catalog.
func catalogConfig(cfg *config.Config) catalog.Config {
	sources := make([]catalog.SourceConfig, len(cfg.Library.Sources))
	for i, src := range cfg.Library.Sources {
		sources[i] = catalog.SourceConfig{
			Path:     src.Path,
			Settings: src.Settings,
		}
	}
	return catalog.Config{
		Sources: sources,
		Limit:   cfg.Library.Limit,
	}
}
