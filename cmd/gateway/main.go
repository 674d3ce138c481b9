package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mingle-gateway/config"
	"mingle-gateway/internal/auth"
	"mingle-gateway/internal/bus"
	"mingle-gateway/internal/chat"
	"mingle-gateway/internal/gateway"
	"mingle-gateway/internal/handler"
	"mingle-gateway/internal/media"
	"mingle-gateway/internal/notify"
	"mingle-gateway/internal/presence"
	"mingle-gateway/internal/ratelimit"
	"mingle-gateway/internal/server"
	"mingle-gateway/internal/store"
	"mingle-gateway/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.AppMode)
	defer log.Sync()

	mongoClient, err := store.NewMongoConnection(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal("mongodb connection failed", zap.Error(err))
	}
	defer mongoClient.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := mongoClient.EnsureIndexes(ctx); err != nil {
		cancel()
		log.Fatal("index creation failed", zap.Error(err))
	}
	cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	eventBus := bus.NewRedisBus(redisClient, log)
	tracker := presence.NewTracker(redisClient, time.Duration(cfg.PresenceTTLSec)*time.Second)
	limiter := ratelimit.NewLimiter(redisClient, ratelimit.DefaultConfig())

	convStore := store.NewConversationStore(mongoClient)
	msgStore := store.NewMessageStore(mongoClient)
	notifStore := store.NewNotificationStore(mongoClient)
	profileStore := store.NewProfileStore(mongoClient)

	chatService := chat.NewService(convStore, msgStore, profileStore, eventBus, log)
	groupService := chat.NewGroupService(convStore, log)
	notifyService := notify.NewService(notifStore, eventBus, log)

	var uploader *media.Uploader
	if cfg.S3Bucket != "" {
		uploader, err = media.NewUploader(context.Background(), media.Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			PresignTTL: 15 * time.Minute,
		})
		if err != nil {
			log.Fatal("s3 uploader setup failed", zap.Error(err))
		}
	} else {
		log.Warn("S3 not configured, media presign disabled")
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)

	hub := gateway.NewHub(eventBus, tracker, chatService, gateway.NewLogger())
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	srv := server.New(cfg, log)
	srv.SetupRoutes(&server.Handlers{
		WebSocket:    gateway.NewWebSocketHandler(hub, verifier),
		Message:      handler.NewMessageHandler(chatService),
		Group:        handler.NewGroupHandler(groupService),
		Notification: handler.NewNotificationHandler(notifyService),
		Upload:       handler.NewUploadHandler(uploader),
		Presence:     handler.NewPresenceHandler(tracker),
	}, verifier, limiter, func(ctx context.Context) error {
		if err := mongoClient.Client.Ping(ctx, nil); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	if err := srv.Start(); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}
