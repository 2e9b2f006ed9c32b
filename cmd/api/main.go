package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/participadf/ouvidoria/internal/auth"
	"github.com/participadf/ouvidoria/internal/capture"
	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/dashboard"
	"github.com/participadf/ouvidoria/internal/db"
	internalhttp "github.com/participadf/ouvidoria/internal/http"
	"github.com/participadf/ouvidoria/internal/monitor"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/service"
	"github.com/participadf/ouvidoria/internal/settings"
	"github.com/participadf/ouvidoria/internal/storage"
	"github.com/participadf/ouvidoria/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed := store.DemoSeed
	if cfg.SeedFile != "" {
		if seed, err = store.LoadSeedFile(cfg.SeedFile); err != nil {
			return err
		}
	}
	users, err := store.BuildUsers(seed)
	if err != nil {
		return err
	}
	memory := store.New(users...)
	log.Info().Int("usuarios", len(users)).Msg("usuários carregados")

	var (
		pool         *pgxpool.Pool
		repository   ouvidoria.Repository = store.NewRepository(memory)
		settingsRepo *settings.Repository
	)
	initial := cfg.Portal
	if cfg.DBDSN != "" {
		if pool, err = db.NewPool(ctx, cfg.DBDSN); err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		repository = ouvidoria.NewPGRepository(pool)
		settingsRepo = settings.NewRepository(pool)
		if initial, err = settingsRepo.Restore(ctx, cfg.Portal); err != nil {
			return fmt.Errorf("configurações: %w", err)
		}
		log.Info().Msg("manifestações persistidas no Postgres")
	} else {
		log.Warn().Msg("DB_DSN ausente: manifestações ficam só em memória")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis parse: %w", err)
		}
		redisClient = redis.NewClient(redisOpts)
		defer redisClient.Close()
	} else {
		log.Warn().Msg("REDIS_URL ausente: sessões sem refresh token")
	}

	uploader, uploadDir, err := newUploader(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	portal := settings.NewStore(initial)
	manifestacoes := ouvidoria.NewService(repository, uploader, ouvidoria.KeywordAnalyzer{}, portal)
	painel := dashboard.NewService(repository, memory)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(memory, painel, redisClient, jwtManager, cfg.JWTRefreshTTL)
	sessions := capture.NewSessions(cfg.RecordingTTL, cfg.Storage.MaxUploadBytes())

	var notifier monitor.Notifier
	if slack := monitor.NewSlackNotifier(cfg.Monitoring.SlackWebhookURL); slack != nil {
		notifier = slack
	}
	monitorLogger := log.With().Str("component", "monitor").Logger()
	sla := monitor.NewService(repository, portal, cfg.Monitoring, monitorLogger, notifier)

	handler := internalhttp.NewRouter(cfg, internalhttp.Deps{
		Pool:         pool,
		Redis:        redisClient,
		Auth:         authService,
		Ouvidoria:    manifestacoes,
		Dashboard:    painel,
		Settings:     portal,
		SettingsRepo: settingsRepo,
		Sessions:     sessions,
		Monitor:      sla,
		UploadDir:    uploadDir,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sessions.Run(gctx, time.Minute)
		return nil
	})

	g.Go(func() error {
		sla.Start(gctx)
		<-gctx.Done()
		sla.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("encerrando...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newUploader escolhe o destino dos anexos; o diretório só volta preenchido no modo local.
func newUploader(cfg config.StorageConfig) (storage.Uploader, string, error) {
	switch cfg.Provider {
	case "noop":
		log.Warn().Msg("STORAGE_PROVIDER=noop: anexos serão recusados")
		return storage.NoopUploader{}, "", nil
	case "s3", "r2":
		uploader, err := storage.NewS3Uploader(storage.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicDomain: cfg.PublicDomain,
		})
		return uploader, "", err
	default:
		local, err := storage.NewLocalUploader(cfg.UploadDir, cfg.PublicPrefix)
		if err != nil {
			return nil, "", err
		}
		return local, local.Dir(), nil
	}
}
