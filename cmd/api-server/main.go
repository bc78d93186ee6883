package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/voicedesk/scheduling-backend/internal/api"
	"github.com/voicedesk/scheduling-backend/internal/broadcast"
	"github.com/voicedesk/scheduling-backend/internal/config"
	"github.com/voicedesk/scheduling-backend/internal/db"
	"github.com/voicedesk/scheduling-backend/internal/lock"
	"github.com/voicedesk/scheduling-backend/internal/logx"
	redisclient "github.com/voicedesk/scheduling-backend/internal/redis"
	"github.com/voicedesk/scheduling-backend/internal/schedule"
	"github.com/voicedesk/scheduling-backend/internal/session"
	"github.com/voicedesk/scheduling-backend/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logx.Init(cfg.Env, cfg.Env == "dev")
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		pgPool    *pgxpool.Pool
		repo      schedule.Repository
		summaries schedule.SummaryRepository
	)
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection")
		}
		defer pgPool.Close()
		repo = schedule.NewPgRepository(pgPool)
		summaries = schedule.NewPgSummaryRepository(pgPool)
		log.Info().Msg("connected to Postgres")
	} else {
		repo = schedule.NewMemoryRepository()
		summaries = schedule.NewMemorySummaryRepository()
		log.Info().Msg("running with in-memory storage")
	}

	// Locking: Redis when configured, in-process otherwise.
	var (
		rdb    *goredis.Client
		locker lock.Locker
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn().Err(err).Msg("closing redis")
			}
		}()
		locker = redisclient.NewRedisContactLocker(rdb, cfg.LockTTL)
		log.Info().Msg("connected to Redis")
	} else {
		locker = lock.NewLocalLocker()
		log.Info().Msg("running with in-process locking")
	}

	sessions := session.NewStore()
	sessions.StartSweeper(rootCtx, cfg.SweepInterval, cfg.SessionTTL)

	caster := broadcast.New(cfg.SubscriberBuffer)
	orch := tools.New(repo, summaries, sessions, locker, caster, cfg.ConflictBuffer)

	router := api.NewRouter(api.RouterConfig{
		Orchestrator: orch,
		Sessions:     sessions,
		Repo:         repo,
		Caster:       caster,
		WSBaseURL:    cfg.WSBaseURL,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
