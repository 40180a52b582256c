package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mdev84/spyline/go/clients/gameapi"
	"github.com/mdev84/spyline/go/internal/localstore"
	"github.com/mdev84/spyline/go/internal/session"
	"github.com/mdev84/spyline/go/internal/uibridge"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	gameIDStr := flag.String("game", "", "game id (or SPYLINE_GAME_ID)")
	lobbyIDStr := flag.String("lobby", "", "lobby id (or SPYLINE_LOBBY_ID)")
	memberIDStr := flag.String("member", "", "my membership id (or SPYLINE_MEMBER_ID)")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	gameID := mustID(*gameIDStr, "SPYLINE_GAME_ID", "game")
	lobbyID := mustID(*lobbyIDStr, "SPYLINE_LOBBY_ID", "lobby")
	memberID := mustID(*memberIDStr, "SPYLINE_MEMBER_ID", "member")

	token := os.Getenv("SPYLINE_TOKEN")
	if token == "" {
		log.Fatal().Msg("SPYLINE_TOKEN environment variable is required")
	}

	store, err := localstore.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local store")
	}
	defer store.Close()

	api := gameapi.NewClient(cfg.Service.BaseURL, token)

	feedCfg := session.DefaultFeedConfig()
	feedCfg.URL = cfg.Feed.URL
	feedCfg.ConnectWait = time.Duration(cfg.Feed.ConnectWaitMS) * time.Millisecond
	feedCfg.ReconnectWait = time.Duration(cfg.Feed.ReconnectMS) * time.Millisecond

	sess := session.New(session.Config{
		GameID:          gameID,
		LobbyID:         lobbyID,
		MemberID:        memberID,
		Feed:            feedCfg,
		GameCardsEvery:  cfg.gameCardsEvery(),
		MembersEvery:    cfg.membersEvery(),
		TurnSeconds:     cfg.Game.TurnSeconds,
		HintLimit:       cfg.Game.HintLimit,
		StreakThreshold: cfg.Game.StreakThreshold,
		FetchKey:        cfg.Game.FetchKey,
	}, api, clockwork.NewRealClock(), store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if confirm, err := store.ConfirmReveal(ctx); err == nil {
		sess.SetConfirmReveal(confirm)
	}

	manager := uibridge.NewConnectionManager(uibridge.DefaultConnectionConfig())
	sess.OnUpdate(manager.NotifyStateChanged)

	if err := sess.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start session")
	}
	defer sess.Close()

	go manager.Start(ctx)

	bridge := uibridge.NewServer(cfg.Bridge.Addr, sess, manager)
	go func() {
		if err := bridge.Run(); err != nil {
			log.Error().Err(err).Msg("ui bridge stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bridge.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ui bridge shutdown error")
	}
}

func mustID(flagValue, envKey, what string) uuid.UUID {
	value := flagValue
	if value == "" {
		value = os.Getenv(envKey)
	}
	if value == "" {
		log.Fatal().Msgf("%s id is required (flag -%s or %s)", what, what, envKey)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		log.Fatal().Err(err).Msgf("invalid %s id", what)
	}
	return id
}
