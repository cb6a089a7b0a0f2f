// Package main provides the qbot entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/LeafDevs/qbot/internal/app/accounts"
	"github.com/LeafDevs/qbot/internal/app/poller"
	"github.com/LeafDevs/qbot/internal/app/registry"
	"github.com/LeafDevs/qbot/internal/app/status"
	"github.com/LeafDevs/qbot/internal/bot"
	"github.com/LeafDevs/qbot/internal/infra/config"
	"github.com/LeafDevs/qbot/internal/infra/discord"
	"github.com/LeafDevs/qbot/internal/infra/logger"
	"github.com/LeafDevs/qbot/internal/infra/spotify"
	"github.com/LeafDevs/qbot/internal/infra/store"
	"github.com/LeafDevs/qbot/internal/web"
)

var (
	app        = kingpin.New("qbot", "Discord now-playing mirror for Spotify")
	configPath = app.Flag("config", "Path to config file").Default("config/qbot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
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

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("qbot error: %v", err)
		os.Exit(1)
	}
}

// run executes the main bot logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	st, err := store.New(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}

	spotifySvc, err := spotify.New(spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  cfg.Spotify.RedirectURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	accountsSvc, err := accounts.New(st, spotifySvc, accounts.Config{
		ExpiryMargin:    cfg.Poller.TokenExpiryMargin(),
		RefreshCooldown: cfg.Poller.RefreshCooldown(),
		StateTTL:        cfg.Poller.OAuthStateTTL(),
	})
	if err != nil {
		return fmt.Errorf("failed to create accounts service: %w", err)
	}

	reg, err := registry.New(st)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	pol, err := poller.New(st, accountsSvc, spotifySvc, cfg.Poller.UserDelay())
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	commands := bot.New(session, cfg.Discord.AppID, &bot.Services{
		Accounts: accountsSvc,
		Registry: reg,
		Poller:   pol,
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			zlog.Warn().Err(err).Msg("Failed to close Discord session")
		}
	}()

	if err := commands.RegisterCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	engine := status.NewEngine(status.Config{
		HistoryScanLimit: cfg.Status.HistoryScanLimit,
		HypeChance:       cfg.Status.HypeChance,
		HypeArtists:      cfg.Status.HypeArtists,
		HypePrefix:       cfg.Status.HypePrefix,
	}, discord.NewClient(session), pol, accountsSvc, reg)

	callback := web.NewCallbackServer(cfg.Callback.Addr, accountsSvc)
	go func() {
		if err := callback.Start(); err != nil {
			zlog.Error().Err(err).Msg("Callback server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Prune stale persisted state before the first cycle.
	if err := engine.ValidateStartup(ctx); err != nil {
		return fmt.Errorf("startup validation failed: %w", err)
	}
	engine.DiscoverAll(ctx)

	zlog.Info().Dur("interval", cfg.Poller.PollInterval()).Msg("Starting reconciliation loop")
	scheduler := status.NewScheduler(engine, cfg.Poller.PollInterval())
	scheduler.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := callback.Shutdown(shutdownCtx); err != nil {
		zlog.Warn().Err(err).Msg("Callback server shutdown failed")
	}

	zlog.Info().Msg("Shutdown complete")
	return nil
}
