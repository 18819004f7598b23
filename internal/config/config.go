package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConf struct {
	Name           string `mapstructure:"name"`
	Env            string `mapstructure:"env"`
	Port           int    `mapstructure:"port"`
	ShutdownSecond int    `mapstructure:"shutdown_seconds"`
	InstanceID     string `mapstructure:"instance_id"`
}

func (a AppConf) Addr() string { return fmt.Sprintf(":%d", a.Port) }

func (a AppConf) IsDev() bool { return a.Env == "development" }

type StorageConf struct {
	Driver string `mapstructure:"driver"`
}

type MongoConf struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type RedisConf struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type RelayConf struct {
	RedisFanout bool   `mapstructure:"redis_fanout"`
	Channel     string `mapstructure:"channel"`
	PresenceTTL int    `mapstructure:"presence_ttl_seconds"`
}

type EventsConf struct {
	Driver string `mapstructure:"driver"`
}

type KafkaConf struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type NATSConf struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type JWTConf struct {
	Alg           string `mapstructure:"alg"`
	PublicKeyPath string `mapstructure:"public_key_path"`
	HSSecret      string `mapstructure:"hs_secret"`
}

type WSConf struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	SendBuffer           int   `mapstructure:"send_buffer"`
	RatePerSecond        int   `mapstructure:"rate_per_second"`
}

type MessagesConf struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

type NotificationsConf struct {
	DedupWindowSeconds int `mapstructure:"dedup_window_seconds"`
}

type MediaConf struct {
	MaxUploadBytes    int64  `mapstructure:"max_upload_bytes"`
	MaxWidth          int    `mapstructure:"max_width"`
	JPEGQuality       int    `mapstructure:"jpeg_quality"`
	ArchiveMaxEntries int    `mapstructure:"archive_max_entries"`
	ArchiveMaxBytes   int64  `mapstructure:"archive_max_bytes"`
	KeyPrefix         string `mapstructure:"key_prefix"`
}

type AWSConf struct {
	Region     string `mapstructure:"region"`
	Bucket     string `mapstructure:"bucket"`
	Endpoint   string `mapstructure:"endpoint"`
	PublicRead bool   `mapstructure:"public_read"`
	PresignTTL int    `mapstructure:"presign_ttl_seconds"`
}

type BreakerConf struct {
	MaxFailures        uint32 `mapstructure:"max_failures"`
	IntervalSec        int    `mapstructure:"interval_seconds"`
	TimeoutSec         int    `mapstructure:"timeout_seconds"`
	RetryMaxElapsedSec int    `mapstructure:"retry_max_elapsed_seconds"`
}

type RateLimitConf struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

type Config struct {
	App           AppConf           `mapstructure:"app"`
	Storage       StorageConf       `mapstructure:"storage"`
	Mongo         MongoConf         `mapstructure:"mongodb"`
	Redis         RedisConf         `mapstructure:"redis"`
	Relay         RelayConf         `mapstructure:"relay"`
	Events        EventsConf        `mapstructure:"events"`
	Kafka         KafkaConf         `mapstructure:"kafka"`
	NATS          NATSConf          `mapstructure:"nats"`
	JWT           JWTConf           `mapstructure:"jwt"`
	WS            WSConf            `mapstructure:"ws"`
	Messages      MessagesConf      `mapstructure:"messages"`
	Notifications NotificationsConf `mapstructure:"notifications"`
	Media         MediaConf         `mapstructure:"media"`
	AWS           AWSConf           `mapstructure:"aws"`
	Breaker       BreakerConf       `mapstructure:"breaker"`
	RateLimit     RateLimitConf     `mapstructure:"ratelimit"`
	Log           struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	// derived
	ShutdownTimeout time.Duration
	MongoTimeout    time.Duration
	PingInterval    time.Duration
	WriteDeadline   time.Duration
	DedupWindow     time.Duration
	PresignTTL      time.Duration
	PresenceTTL     time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pixshare-service")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_seconds", 15)
	v.SetDefault("app.instance_id", "")
	v.SetDefault("storage.driver", "mongo")
	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "pixshare")
	v.SetDefault("mongodb.timeout_seconds", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pixshare")
	v.SetDefault("relay.redis_fanout", false)
	v.SetDefault("relay.channel", "ws:relay")
	v.SetDefault("relay.presence_ttl_seconds", 60)
	v.SetDefault("events.driver", "none")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "pixshare.events")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "pixshare")
	v.SetDefault("jwt.alg", "RS256")
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.hs_secret", "")
	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.max_message_size_bytes", 65536)
	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("ws.rate_per_second", 10)
	v.SetDefault("messages.default_page_size", 50)
	v.SetDefault("messages.max_page_size", 100)
	v.SetDefault("notifications.dedup_window_seconds", 60)
	v.SetDefault("media.max_upload_bytes", 10<<20)
	v.SetDefault("media.max_width", 1080)
	v.SetDefault("media.jpeg_quality", 85)
	v.SetDefault("media.archive_max_entries", 50)
	v.SetDefault("media.archive_max_bytes", 100<<20)
	v.SetDefault("media.key_prefix", "uploads")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.bucket", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.public_read", true)
	v.SetDefault("aws.presign_ttl_seconds", 600)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.interval_seconds", 60)
	v.SetDefault("breaker.timeout_seconds", 30)
	v.SetDefault("breaker.retry_max_elapsed_seconds", 10)
	v.SetDefault("ratelimit.per_minute", 120)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("log.level", "info")
}

// Load reads the YAML file at path, then lets environment variables override
// any key (mongodb.uri -> MONGODB_URI).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.derive()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) derive() {
	c.ShutdownTimeout = time.Duration(c.App.ShutdownSecond) * time.Second
	c.MongoTimeout = time.Duration(c.Mongo.TimeoutSeconds) * time.Second
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.DedupWindow = time.Duration(c.Notifications.DedupWindowSeconds) * time.Second
	c.PresignTTL = time.Duration(c.AWS.PresignTTL) * time.Second
	c.PresenceTTL = time.Duration(c.Relay.PresenceTTL) * time.Second
	c.JWT.Alg = strings.ToUpper(c.JWT.Alg)
}

func (c *Config) Validate() error {
	var errs []error
	if c.App.Port <= 0 {
		errs = append(errs, errors.New("app.port missing or invalid"))
	}
	switch c.Storage.Driver {
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongodb.uri required for mongo storage"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}
	switch c.JWT.Alg {
	case "RS256":
		if c.JWT.PublicKeyPath == "" {
			errs = append(errs, errors.New("jwt.public_key_path required for RS256"))
		}
	case "HS256":
		if c.JWT.HSSecret == "" {
			errs = append(errs, errors.New("jwt.hs_secret required for HS256"))
		}
	default:
		errs = append(errs, fmt.Errorf("jwt.alg %q not supported", c.JWT.Alg))
	}
	switch c.Events.Driver {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers required for kafka events"))
		}
	case "nats":
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats.url required for nats events"))
		}
	case "none", "":
	default:
		errs = append(errs, fmt.Errorf("events.driver %q not supported", c.Events.Driver))
	}
	if c.Relay.RedisFanout && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr required when relay.redis_fanout is on"))
	}
	if c.Messages.DefaultPageSize <= 0 || c.Messages.MaxPageSize < c.Messages.DefaultPageSize {
		errs = append(errs, errors.New("messages page sizes invalid"))
	}
	if c.Media.JPEGQuality < 1 || c.Media.JPEGQuality > 100 {
		errs = append(errs, errors.New("media.jpeg_quality must be 1-100"))
	}
	return errors.Join(errs...)
}
