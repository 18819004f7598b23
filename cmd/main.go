package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fathima-sithara/pixshare-service/internal/api"
	"github.com/fathima-sithara/pixshare-service/internal/auth"
	"github.com/fathima-sithara/pixshare-service/internal/cache"
	"github.com/fathima-sithara/pixshare-service/internal/config"
	"github.com/fathima-sithara/pixshare-service/internal/events"
	"github.com/fathima-sithara/pixshare-service/internal/kafka"
	"github.com/fathima-sithara/pixshare-service/internal/media"
	"github.com/fathima-sithara/pixshare-service/internal/metrics"
	"github.com/fathima-sithara/pixshare-service/internal/middleware"
	"github.com/fathima-sithara/pixshare-service/internal/repository"
	"github.com/fathima-sithara/pixshare-service/internal/service"
	"github.com/fathima-sithara/pixshare-service/internal/storage"
	"github.com/fathima-sithara/pixshare-service/internal/store"
	"github.com/fathima-sithara/pixshare-service/internal/utils"
	"github.com/fathima-sithara/pixshare-service/internal/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	logger, err := utils.NewLogger(cfg.App.IsDev(), cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.App.InstanceID == "" {
		cfg.App.InstanceID = utils.NewID()
	}
	metrics.Init()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// storage
	var repos *repository.Store
	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		repos = store.NewMemoryStore().Repositories()
	default:
		mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI, cfg.MongoTimeout)
		if err != nil {
			logger.Fatalf("mongo init: %v", err)
		}
		defer func() { _ = mc.Disconnect(context.Background()) }()
		repos, err = repository.NewMongoStore(ctx, mc.Database(cfg.Mongo.Database))
		if err != nil {
			logger.Fatalf("mongo indexes: %v", err)
		}
	}

	// redis is optional
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("redis init: %v", err)
		}
		defer rdb.Close()
	}

	pub := newPublisher(cfg, logger)
	defer func() { _ = pub.Close() }()

	// realtime relay
	hub := ws.NewHub(logger)
	if rdb != nil {
		hub.UsePresence(cache.NewPresence(rdb, cfg.Redis.Prefix, cfg.PresenceTTL))
		if cfg.Relay.RedisFanout {
			bridge := ws.NewRedisBridge(rdb, cfg.Relay.Channel, cfg.App.InstanceID, hub, logger)
			hub.UseBridge(bridge)
			go func() {
				if err := bridge.Run(ctx); err != nil {
					logger.Errorw("relay bridge stopped", "error", err)
				}
			}()
		}
	}

	paging := service.Paging{Default: cfg.Messages.DefaultPageSize, Max: cfg.Messages.MaxPageSize}
	unread := service.NewUnreadService(repos)
	convs := service.NewConversationService(repos, unread, pub, paging, logger)
	notes := service.NewNotificationService(repos, hub, pub, cfg.DedupWindow, paging, logger)
	svc := api.Services{
		Conversations: convs,
		Messages:      service.NewMessageService(repos, convs, hub, pub, paging, logger),
		Unread:        unread,
		Notifications: notes,
		Users:         service.NewUserService(repos, hub, logger),
		Social:        service.NewSocialService(repos, notes, logger),
		Media:         newMediaService(ctx, cfg, logger),
	}

	jv, err := auth.NewJWTValidator(cfg.JWT.PublicKeyPath, cfg.JWT.Alg, cfg.JWT.HSSecret)
	if err != nil {
		logger.Fatalf("jwt init: %v", err)
	}

	var limiter middleware.Limiter
	if rdb != nil {
		limiter = middleware.NewRedisLimiter(rdb, cfg.Redis.Prefix, cfg.RateLimit.PerMinute)
	} else {
		kl := middleware.NewKeyedLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
		go kl.Cleanup(ctx, 5*time.Minute)
		limiter = kl
	}

	wsrv := ws.NewServer(hub, jv, ws.Options{
		PingInterval:  cfg.PingInterval,
		WriteDeadline: cfg.WriteDeadline,
		ReadLimit:     cfg.WS.MaxMessageSizeBytes,
		SendBuffer:    cfg.WS.SendBuffer,
		RatePerSecond: cfg.WS.RatePerSecond,
	}, logger)

	app := api.NewServer(svc, jv, api.Options{
		AppName:        cfg.App.Name,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		Limiter:        limiter,
		WS:             wsrv,
	}, logger)

	go func() {
		logger.Infof("starting %s on %s (instance %s)", cfg.App.Name, cfg.App.Addr(), cfg.App.InstanceID)
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatalf("listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	hub.Shutdown(sctx)
	if err := app.ShutdownWithContext(sctx); err != nil {
		logger.Errorw("http shutdown", "error", err)
	}
	stop()
	logger.Info("stopped")
}

func newPublisher(cfg *config.Config, logger *zap.SugaredLogger) events.Publisher {
	switch cfg.Events.Driver {
	case "kafka":
		logger.Infow("publishing events to kafka", "topic", cfg.Kafka.Topic)
		return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	case "nats":
		p, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			logger.Fatalf("nats init: %v", err)
		}
		logger.Infow("publishing events to nats", "prefix", cfg.NATS.SubjectPrefix)
		return p
	}
	return events.Noop{}
}

// newMediaService returns nil when no bucket is configured; the media
// endpoints then answer 503.
func newMediaService(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *service.MediaService {
	if cfg.AWS.Bucket == "" {
		logger.Warn("aws.bucket not set; media uploads disabled")
		return nil
	}
	s3store, err := storage.NewS3Store(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.Endpoint, cfg.AWS.PublicRead)
	if err != nil {
		logger.Fatalf("s3 init: %v", err)
	}
	s3store.WithPresignTTL(cfg.PresignTTL)

	up := storage.NewResilientUploader(s3store, storage.BreakerConfig{
		MaxFailures:     cfg.Breaker.MaxFailures,
		Interval:        time.Duration(cfg.Breaker.IntervalSec) * time.Second,
		Timeout:         time.Duration(cfg.Breaker.TimeoutSec) * time.Second,
		RetryMaxElapsed: time.Duration(cfg.Breaker.RetryMaxElapsedSec) * time.Second,
	}, logger)

	return service.NewMediaService(up, service.MediaConfig{
		KeyPrefix: cfg.Media.KeyPrefix,
		Image:     media.Options{MaxWidth: cfg.Media.MaxWidth, Quality: cfg.Media.JPEGQuality},
		Archive: media.Limits{
			MaxEntries:    cfg.Media.ArchiveMaxEntries,
			MaxEntryBytes: cfg.Media.MaxUploadBytes,
			MaxTotalBytes: cfg.Media.ArchiveMaxBytes,
		},
	}, logger)
}
