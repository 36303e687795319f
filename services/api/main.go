package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forumchat/internal/config"
	"github.com/forumchat/internal/handler"
	"github.com/forumchat/internal/logger"
	"github.com/forumchat/internal/middleware"
	"github.com/forumchat/internal/push"
	"github.com/forumchat/internal/repository"
	"github.com/forumchat/internal/service"
	"github.com/forumchat/internal/startup"
	"github.com/forumchat/internal/storage"
	"github.com/forumchat/internal/storage/memory"
	"github.com/forumchat/internal/ws"
	"github.com/forumchat/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	userRepo := repository.NewUserRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	chatRepo := repository.NewChatRepository(pool)
	gameRepo := repository.NewGameRepository(pool)
	pushRepo := repository.NewPushSubscriptionRepository(pool)

	cacheTTL := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	var chatCache storage.ChatCache
	if cfg.Redis.URL != "" {
		chatCache = startup.ConnectRedisWithRetry(cfg.Redis.URL, cacheTTL, 30*time.Second)
	} else {
		chatCache = memory.NewClient(cacheTTL)
	}
	defer chatCache.Close()

	chatSvc := service.NewChatService(chatRepo, msgRepo, userRepo, chatCache)
	gameSvc := service.NewGameService(gameRepo, cfg.NimPileSize())

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(gameSvc, cfg.MaxWSConnections)

	if cfg.Redis.URL != "" {
		bus, err := ws.NewBus(hubCtx, cfg.Redis.URL)
		if err != nil {
			logger.Errorf("broadcast bus: %v", err)
			os.Exit(1)
		}
		defer bus.Close()
		hub.SetBus(hubCtx, bus)
	}

	notifier := ws.NewHubNotifier(hub)
	chatSvc.SetNotifier(notifier)
	gameSvc.SetNotifier(notifier)

	vapid := &push.VAPIDKeys{
		PublicKey:  cfg.Push.VAPIDPublicKey,
		PrivateKey: cfg.Push.VAPIDPrivateKey,
	}
	if vapid.PublicKey == "" || vapid.PrivateKey == "" {
		vapid, err = push.EnsureVAPIDKeys("")
		if err != nil {
			logger.Errorf("vapid keys: %v", err)
			os.Exit(1)
		}
	}
	pushSender := push.NewSender(pushRepo, hub, vapid, cfg.Push.Subscriber)
	chatSvc.SetPusher(pushSender)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	userH := handler.NewUserHandler(userRepo)
	chatH := handler.NewChatHandler(chatSvc)
	gameH := handler.NewGameHandler(gameSvc)
	pushH := handler.NewPushHandler(pushSender)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Do not compress WebSocket upgrades, the wrapped ResponseWriter must
	// stay an http.Hijacker.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/api/user", userH.CreateUser)
	r.Get("/api/user/{username}", userH.GetUser)

	r.Post("/api/chat/createChat", chatH.CreateChat)
	r.Get("/api/chat/getChatsByUser/{username}", chatH.GetChatsByUser)
	r.Get("/api/chat/{chatID}", chatH.GetChat)
	r.Post("/api/chat/{chatID}/addMessage", chatH.AddMessage)
	r.Post("/api/chat/{chatID}/participant", chatH.AddParticipant)

	r.Post("/api/games/create", gameH.CreateGame)
	r.Post("/api/games/join", gameH.JoinGame)
	r.Post("/api/games/leave", gameH.LeaveGame)
	r.Get("/api/games", gameH.ListGames)
	r.Get("/api/games/{gameID}", gameH.GetGame)

	r.Get("/api/push/key", pushH.PublicKey)
	r.Post("/api/push/subscribe", pushH.Subscribe)
	r.Delete("/api/push/subscribe", pushH.Unsubscribe)

	r.Get("/ws", wsH.ServeWS)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "forumchat"
		password = "forumchat_secret"
		database = "forumchat"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
