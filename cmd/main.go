package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc/reflection"

	"github.com/dtroode/gophchat-server/internal/api/authctx"
	"github.com/dtroode/gophchat-server/internal/api/grpc/handler"
	"github.com/dtroode/gophchat-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/gophchat-server/internal/api/grpc/server"
	"github.com/dtroode/gophchat-server/internal/api/respond"
	"github.com/dtroode/gophchat-server/internal/api/rest"
	"github.com/dtroode/gophchat-server/internal/api/ws"
	"github.com/dtroode/gophchat-server/internal/config"
	"github.com/dtroode/gophchat-server/internal/gateway"
	"github.com/dtroode/gophchat-server/internal/health"
	"github.com/dtroode/gophchat-server/internal/hub"
	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/metrics"
	"github.com/dtroode/gophchat-server/internal/model"
	"github.com/dtroode/gophchat-server/internal/repository/badger"
	"github.com/dtroode/gophchat-server/internal/repository/memory"
	"github.com/dtroode/gophchat-server/internal/repository/postgres"
	"github.com/dtroode/gophchat-server/internal/server"
	"github.com/dtroode/gophchat-server/internal/service"
	storage "github.com/dtroode/gophchat-server/internal/storage/minio"
	"github.com/dtroode/gophchat-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

type stores struct {
	users    model.UserStore
	messages model.MessageStore
	probes   []health.Probe
	closer   io.Closer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.UsesDefaultJWTSecret() {
		logger.Warn("JWT_SECRET is not set; session tokens are signed with the built-in default secret and can be forged")
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize storage", "driver", cfg.Database.Driver, "error", err)
	}
	defer func() {
		if err := st.closer.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()
	logger.Info("storage initialized", "driver", cfg.Database.Driver)

	m := metrics.New()
	tokenService := service.NewTokenService(token.NewJWT(cfg.JWT.Secret), logger)

	authOpts := []service.AuthOption{}
	if cfg.Storage.Enabled {
		avatars, err := storage.Dial(ctx, storage.Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Fatal("failed to initialize storage client", "error", err)
		}
		authOpts = append(authOpts, service.WithAvatarStorage(avatars, cfg.Storage.MaxAvatarKiB*1024))
	}
	authService := service.NewAuth(st.users, tokenService, service.NewPasswordHasher(cfg.Auth.BcryptCost), logger, authOpts...)

	chatHub := hub.New(st.messages, logger, m, hub.Options{
		HistoryLimit:  cfg.Hub.HistoryLimit,
		MaxTextLength: cfg.Hub.MaxTextLength,
		StoreTimeout:  cfg.Hub.StoreTimeout,
	})
	gw := gateway.New(tokenService, gateway.Policy(cfg.Auth.Policy), logger)
	ctxMgr := authctx.NewManager()
	errs := respond.NewErrors(cfg.ExposeErrorDetail, logger)

	wsOpts := ws.DefaultOptions()
	wsOpts.AllowedOrigins = cfg.HTTP.AllowedOrigins
	wsOpts.MaxFrameBytes = cfg.Hub.MaxFrameBytes
	wsOpts.SendBuffer = cfg.Hub.SendBuffer
	wsOpts.MessageBurst = cfg.RateLimit.MessageBurst
	wsOpts.MessagesPerSecond = cfg.RateLimit.MessagesPerSec
	wsHandler := ws.NewHandler(gw, chatHub, errs, wsOpts, logger, m)

	trustedProxies, err := rest.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		logger.Fatal("invalid HTTP_TRUSTED_PROXIES", "error", err)
	}

	restHandler := rest.NewHandler(authService, tokenService, chatHub,
		health.NewChecker(2*time.Second, st.probes...), ctxMgr, errs, m,
		rest.Options{
			MaxBodyBytes:     cfg.HTTP.MaxBodyBytes,
			AuthRequestsPerS: cfg.RateLimit.AuthRequestsPerS,
			AuthBurst:        cfg.RateLimit.AuthBurst,
			TrustedProxies:   trustedProxies,
		}, logger)

	servers := []model.Server{
		server.NewHTTPServer(restHandler.Router(wsHandler), fmt.Sprintf(":%s", cfg.HTTP.Port), server.HTTPOptions{
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		}),
	}
	layers := []model.SecurityLayer{
		server.NewSecurityLayer(cfg.HTTP.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName),
	}

	var grpcRouter *router.Router
	if cfg.GRPC.Enabled {
		grpcRouter = router.New(gw, chatHub, ctxMgr, handler.ChatOptions{
			SendBuffer:        cfg.Hub.SendBuffer,
			MessageBurst:      cfg.RateLimit.MessageBurst,
			MessagesPerSecond: cfg.RateLimit.MessagesPerSec,
		}, logger, m)
		s := grpcRouter.Register()
		reflection.Register(s)

		servers = append(servers, grpcServer.NewGRPCServer(s, fmt.Sprintf(":%s", cfg.GRPC.Port)))
		layers = append(layers, server.NewSecurityLayer(cfg.GRPC.EnableHTTPS, cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName))
	}

	var wg sync.WaitGroup
	for i, s := range servers {
		wg.Add(1)
		go func(s model.Server, sl model.SecurityLayer) {
			defer wg.Done()
			logger.Info("Starting server on", "server", s.Name(), "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "server", s.Name(), "error", err)
				stop()
			}
		}(s, layers[i])
	}

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if grpcRouter != nil {
		grpcRouter.Shutdown()
	}
	// Realtime connections end with the hub; servers then drain plain requests.
	if err := chatHub.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during hub shutdown", "error", err)
	}
	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "server", s.Name(), "error", err, "address", s.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			return stores{}, err
		}
		return stores{
			users:    postgres.NewUserRepository(db),
			messages: postgres.NewMessageRepository(db),
			probes:   []health.Probe{health.SQLProbe{DB: db.SQL}},
			closer:   db,
		}, nil
	case config.DriverBadger:
		db, err := badger.NewConnection(cfg.Badger.Path)
		if err != nil {
			return stores{}, err
		}
		messages, err := badger.NewMessageRepository(db)
		if err != nil {
			_ = db.Close()
			return stores{}, err
		}
		return stores{
			users:    badger.NewUserRepository(db),
			messages: messages,
			probes:   []health.Probe{health.FuncProbe{ProbeName: "badger", Ping: db.Ping}},
			closer:   db,
		}, nil
	default:
		return stores{
			users:    memory.NewUserRepository(),
			messages: memory.NewMessageRepository(),
			closer:   closerFunc(func() error { return nil }),
		}, nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
