package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"roadassist/backend/internal/api/handler"
	"roadassist/backend/internal/assist"
	"roadassist/backend/internal/chat"
	"roadassist/backend/internal/chathub"
	"roadassist/backend/internal/config"
	"roadassist/backend/internal/models"
	"roadassist/backend/internal/push"
	"roadassist/backend/internal/storage"
	"roadassist/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		// Surfaces unique violations as gorm.ErrDuplicatedKey, which the
		// conversation resolver relies on.
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.Conversation{},
		&models.ConversationMeta{},
		&models.Message{},
		&models.AssistRequest{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting RoadAssist messaging backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, rdb := setupDependencies(ctx, cfg)
	store := storage.NewStorageService(db, rdb)

	hub := chathub.NewHub(store)
	bridge := push.NewBridge(store, cfg.PushURL)
	svc := chat.NewService(store, hub, bridge)

	var alerts assist.Alerter
	if cfg.TelegramBotToken != "" && cfg.TelegramOperatorChat != 0 {
		bot, err := telegram.NewAlertBot(cfg.TelegramBotToken, cfg.TelegramOperatorChat)
		if err != nil {
			log.Printf("WARN: operator alert bot unavailable: %v", err)
		} else {
			alerts = bot
		}
	}
	watcher := assist.NewWatcher(db, cfg.DatabaseDSN, hub, alerts)

	go hub.Run(ctx)
	watcher.Start(ctx)

	r := gin.Default()
	h := handler.NewHandler(hub, svc, cfg.JWTSecret)

	r.GET("/ws", h.ServeWebSocket)

	authed := r.Group("/", h.AuthRequired())
	authed.GET("/conversations", h.ListConversations)
	authed.GET("/conversations/:id/messages", h.GetMessages)
	authed.POST("/conversations/ensure", h.EnsureConversation)
	authed.POST("/conversations/:id/messages", h.SendMessage)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()
	log.Printf("Listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: server shutdown: %v", err)
	}
}
