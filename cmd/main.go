package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dater/backend/internal/api/handler"
	"dater/backend/internal/bus"
	"dater/backend/internal/config"
	"dater/backend/internal/engine"
	"dater/backend/internal/geo"
	"dater/backend/internal/mapview"
	"dater/backend/internal/models"
	"dater/backend/internal/storage"
	"dater/backend/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.MicroDate{},
		&models.User{},
		&models.PastMicroDate{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting Dater Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	uid := cfg.UserUID
	if uid == "" {
		anonUUID, _ := uuid.NewRandom()
		uid = anonUUID.String()
		if err := s.SaveUser(&models.User{ID: uid}); err != nil {
			log.Fatalf("Failed to create anonymous profile: %v", err)
		}
		log.Printf("USER_UID not set, minted anonymous identity %s", uid)
	}

	b := bus.NewService()
	location := geo.NewService(uid, s)

	outgoing := engine.NewOutgoing(uid, s, b, location)
	incoming := engine.NewIncoming(uid, s, b, location)
	camera := mapview.NewService(b, location, mapview.NewDirectiveHandle(b), cfg.MapSettleDelay)
	selfies := upload.NewService(b, upload.DirectUploader{})

	go outgoing.Run(ctx)
	go incoming.Run(ctx)
	go camera.Run(ctx)
	go selfies.Run(ctx)

	r := gin.Default()
	h := handler.NewHandler(b, s, location, cfg)

	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server failed: %v", err)
	}
	log.Println("Dater Backend stopped.")
}
