package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/psds-microservice/portal-service/internal/config"
	"github.com/psds-microservice/portal-service/internal/database"
	"github.com/psds-microservice/portal-service/internal/handler"
	"github.com/psds-microservice/portal-service/internal/identity"
	"github.com/psds-microservice/portal-service/internal/kafka"
	"github.com/psds-microservice/portal-service/internal/logger"
	"github.com/psds-microservice/portal-service/internal/router"
	"github.com/psds-microservice/portal-service/internal/searchindex"
	"github.com/psds-microservice/portal-service/internal/service"
	"github.com/psds-microservice/portal-service/internal/store/gormstore"
)

// API приложение: HTTP сервер портала (режим api).
type API struct {
	cfg      *config.Config
	log      *slog.Logger
	httpSrv  *http.Server
	producer *kafka.Producer
	closeDB  func() error
}

// NewAPI собирает зависимости: миграции, БД, верификатор токенов, Kafka, сервисы и роутер.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	slog.SetDefault(log)

	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	verifier, err := identity.NewVerifier(identity.Options{
		Secret:       cfg.Auth.JWTSecret,
		PublicKeyPEM: cfg.Auth.JWTPublicKey,
		Issuer:       cfg.Auth.Issuer,
		Audience:     cfg.Auth.Audience,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("identity: %w", err)
	}

	if cfg.Auth.JWTSecret == "" && cfg.Auth.JWTPublicKey == "" {
		log.Warn("no AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY, every bearer token will be rejected")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicPortal)
	if !producer.Enabled() {
		log.Info("kafka disabled, portal events are not published")
	}
	search := searchindex.NewClient(cfg.SearchServiceURL)

	st := gormstore.New(db)
	opts := []service.Option{service.WithPublisher(producer), service.WithLogger(log)}
	users := service.NewUserService(st, opts...)
	convs := service.NewConversationService(st, users, opts...)
	support := service.NewSupportService(st, users, opts...)
	leads := service.NewLeadService(st, opts...)

	h := router.New(router.Deps{
		Log:           log,
		Verifier:      verifier,
		Ready:         sqlDB,
		Directory:     users,
		Users:         handler.NewUserHandler(users),
		Conversations: handler.NewConversationHandler(convs, users),
		Tickets:       handler.NewTicketHandler(support, search),
		Leads:         handler.NewLeadHandler(leads),
	})

	return &API{
		cfg: cfg,
		log: log,
		httpSrv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		producer: producer,
		closeDB:  sqlDB.Close,
	}, nil
}

// Run запускает HTTP сервер, блокируется до отмены ctx.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("http server listening",
		"addr", a.httpSrv.Addr,
		"swagger", base+"/swagger",
		"health", base+"/health",
		"api", base+"/api/v1/",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("http shutdown: %w", err)
	}
	if err := a.producer.Close(); err != nil {
		a.log.Warn("kafka close failed", "error", err)
	}
	if err := a.closeDB(); err != nil {
		a.log.Warn("database close failed", "error", err)
	}
	a.log.Info("http server stopped")
	return serveErr
}
