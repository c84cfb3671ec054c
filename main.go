package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Forest/config"
	pgconfig "Forest/config/postgres"
	"Forest/controllers"
	_ "Forest/docs"
	"Forest/middleware"
	"Forest/routes"
	"Forest/services/catalog"
	"Forest/services/envelope"
	"Forest/services/game"
	"Forest/services/keys"
	"Forest/services/redis"
	"Forest/services/socket_io"
	"Forest/services/socket_io/handlers"
	"Forest/services/store"
	gsync "Forest/services/sync"
	"Forest/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// @title Forest API
// @version 1.0
// @description Gin-Gonic server for the "Forest" turn-based match API
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	settings, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(settings)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(settings, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(settings config.Settings) (*zap.Logger, error) {
	if settings.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(settings config.Settings, logger *zap.Logger) error {
	logger.Info("Setting up server...")
	if settings.Prod {
		gin.SetMode(gin.ReleaseMode)
	}

	gormDB, err := pgconfig.ConnectGORM(settings.Postgres)
	if err != nil {
		return err
	}
	// Only migrate in development or during deployment
	if settings.Postgres.Migrate {
		logger.Info("Migrating PostgreSQL database...")
		if err := pgconfig.MigrateDatabase(gormDB); err != nil {
			logger.Warn("Database migration failed", zap.Error(err))
		}
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var abilityCache catalog.AbilityCache
	var keyCache catalog.KeyCache
	var presence *redis.RedisClient
	redisClient, err := config.Connect_redis(settings)
	if err != nil {
		logger.Warn("Running without Redis cache", zap.Error(err))
	} else {
		defer redis.CloseRedis(redisClient)
		abilityCache, keyCache, presence = redisClient, redisClient, redisClient
	}

	serverKeys, err := keys.LoadOrGenerate(settings.KeyDir)
	if err != nil {
		return err
	}

	codec := envelope.NewCodec(settings.FallbackKey, settings.FallbackIV, logger.Named("envelope"))
	hub := gsync.NewHub(codec, logger, gsync.DefaultBuffer)
	defer hub.Close()

	st := store.NewGorm(gormDB)
	cat := catalog.New(st, abilityCache, keyCache, logger)
	registry := game.NewRegistry(cat, game.Options{
		TurnDuration:      settings.TurnDuration,
		ValidationTimeout: settings.ValidationTimeout,
		DisconnectGrace:   settings.DisconnectGrace,
		RoundLimit:        settings.RoundLimit,
		Logger:            logger,
		Notifier:          hub,
	})
	defer registry.Shutdown()

	auth := middleware.NewAuth(settings.JWTSecret, settings.JWTTTL)

	r := gin.New()
	r.Use(utils.Logger(logger.Named("http")))
	middleware.SetUpMiddleware(r, settings.SessionKey, settings.UseHTTPS)

	services := &controllers.Services{
		Store:    st,
		Catalog:  cat,
		Registry: registry,
		Codec:    codec,
		Keys:     serverKeys,
		Auth:     auth,
		Logger:   logger.Named("http"),
	}
	deps := &handlers.Deps{
		Registry: registry,
		Hub:      hub,
		Catalog:  cat,
		Codec:    codec,
		Keys:     serverKeys,
		Logger:   logger,
	}
	if presence != nil {
		services.Presence = presence
		deps.Presence = presence
	}
	routes.SetupRoutes(r, services)

	sio := &socket_io.MySocketServer{}
	sio.Start(r, deps, auth)
	defer sio.Close()

	server := &http.Server{
		Addr:              ":" + settings.ListenPort(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server started", zap.String("addr", server.Addr), zap.Bool("https", settings.UseHTTPS))
		var err error
		if settings.UseHTTPS {
			err = server.ListenAndServeTLS(settings.CertFile, settings.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
