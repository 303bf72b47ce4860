package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"studioflow/api/internal/app"
	"studioflow/api/internal/authpw"
	"studioflow/api/internal/config"
	"studioflow/api/internal/email"
	"studioflow/api/internal/export"
	"studioflow/api/internal/feed"
	"studioflow/api/internal/gate"
	"studioflow/api/internal/logging"
	"studioflow/api/internal/notify"
	"studioflow/api/internal/objectstore"
	"studioflow/api/internal/search"
	"studioflow/api/internal/session"
	"studioflow/api/internal/store"
	"studioflow/api/internal/workflow"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)
	log := logging.With("main")

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}

	dataStore := store.NewPostgresStore(db)

	var (
		publisher feed.Publisher
		hub       *feed.Hub
		sessions  *session.RedisStore
	)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("invalid REDIS_URL")
		}
		// One client serves the feed publisher, the hub subscription,
		// and the session store.
		redisClient := redis.NewClient(redisOpts)
		pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancelPing()
		if err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		defer redisClient.Close()

		publisher = feed.NewRedisFeedWithClient(redisClient, cfg.FeedChannel)
		hub = feed.NewHub(redisClient, cfg.FeedChannel)
		sessions = session.NewRedisStoreWithClient(redisClient)
	} else {
		log.Warn("REDIS_URL not set, live board updates and session revocation disabled")
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	searchService.ReindexAllFromPG(ctx)

	var objects *objectstore.Client
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		objects, err = objectstore.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.WithError(err).Fatal("object store connection failed")
		}
	} else {
		log.Warn("MINIO_ENDPOINT not set, attachment uploads disabled")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Warn("SMTP not configured, email notifications disabled")
	}

	activity := notify.NewActivityRecorder(dataStore)
	escalator := notify.Escalators{
		notify.NewWebhookEscalator(cfg.EscalationWebhookURL, cfg.WebhookTimeout),
		notify.NewEmailEscalator(mailer, cfg.EscalationEmails, cfg.AppBaseURL),
	}
	revisions := workflow.RevisionPolicy{Cap: cfg.RevisionCap}

	engine := workflow.NewEngine(dataStore, activity, publisher, escalator, revisions)
	requestGate := gate.New(dataStore, publisher)
	accounts := authpw.NewService(dataStore)
	exporter := export.NewService(dataStore)

	service := app.NewService(app.ServiceOptions{
		Store:       dataStore,
		Engine:      engine,
		Gate:        requestGate,
		Hub:         hub,
		Events:      publisher,
		Search:      searchService,
		Objects:     objects,
		Accounts:    accounts,
		Sessions:    sessions,
		Mailer:      mailer,
		Exporter:    exporter,
		TokenSecret: cfg.TokenSecret,
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if hub != nil {
		go hub.Run(runCtx)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// The event stream endpoint holds its response open; write
		// deadlines would cut live boards off mid-stream.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("StudioFlow API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
}
