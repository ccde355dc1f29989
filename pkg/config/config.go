package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv        string `mapstructure:"APP_ENV"`
	AppName       string `mapstructure:"APP_NAME"`
	AppVersion    string `mapstructure:"APP_VERSION"`
	NodeID        int64  `mapstructure:"NODE_ID"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
	TLS           struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr     string            `mapstructure:"ADDR"`
		Protocol string            `mapstructure:"PROTOCOL"`
		Insecure bool              `mapstructure:"INSECURE"`
		Timeout  time.Duration     `mapstructure:"TIMEOUT"`
		Headers  map[string]string `mapstructure:"HEADERS"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Log struct {
		File       string `mapstructure:"FILE"`
		MaxSize    int    `mapstructure:"MAX_SIZE"`
		MaxBackups int    `mapstructure:"MAX_BACKUPS"`
		MaxAge     int    `mapstructure:"MAX_AGE"`
		Compress   bool   `mapstructure:"COMPRESS"`
	} `mapstructure:"LOG"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Path           string `mapstructure:"PATH"`
		EnableOtel     bool   `mapstructure:"ENABLE_OTEL"`
		EnableMetrics  bool   `mapstructure:"ENABLE_METRICS"`
		AutoMigrate    bool   `mapstructure:"AUTO_MIGRATE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
	SMTP struct {
		Host      string        `mapstructure:"HOST"`
		Port      int           `mapstructure:"PORT"`
		Username  string        `mapstructure:"USERNAME"`
		Password  string        `mapstructure:"PASSWORD"`
		FromEmail string        `mapstructure:"FROM_EMAIL"`
		FromName  string        `mapstructure:"FROM_NAME"`
		Timeout   time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"SMTP"`
	AI struct {
		BaseURL string        `mapstructure:"BASE_URL"`
		APIKey  string        `mapstructure:"API_KEY"`
		Model   string        `mapstructure:"MODEL"`
		Timeout time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"AI"`
	Automation struct {
		FollowUpCron     string        `mapstructure:"FOLLOWUP_CRON"`
		ReportCron       string        `mapstructure:"REPORT_CRON"`
		Timezone         string        `mapstructure:"TIMEZONE"`
		LockTTL          time.Duration `mapstructure:"LOCK_TTL"`
		SendingGrace     time.Duration `mapstructure:"SENDING_GRACE"`
		Concurrency      int           `mapstructure:"CONCURRENCY"`
		CustomerParallel int           `mapstructure:"CUSTOMER_PARALLEL"`
		MaxSendAttempts  int           `mapstructure:"MAX_SEND_ATTEMPTS"`
	} `mapstructure:"AUTOMATION"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
}

// IsProduction reports whether the process runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "reputation")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.PATH", "reputation.db")
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 20)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME", 10*time.Minute)
	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 4*time.Second)
	v.SetDefault("MINIO.BUCKET_NAME", "reports")
	v.SetDefault("SMTP.PORT", 587)
	v.SetDefault("SMTP.FROM_NAME", "Reviews")
	v.SetDefault("SMTP.TIMEOUT", 30*time.Second)
	v.SetDefault("AI.BASE_URL", "https://api.mistral.ai/v1")
	v.SetDefault("AI.MODEL", "mistral-small-latest")
	v.SetDefault("AI.TIMEOUT", 30*time.Second)
	v.SetDefault("OTEL.PROTOCOL", "grpc")
	v.SetDefault("OTEL.INSECURE", true)
	v.SetDefault("OTEL.TIMEOUT", 10*time.Second)
	v.SetDefault("AUTOMATION.FOLLOWUP_CRON", "@every 10m")
	v.SetDefault("AUTOMATION.REPORT_CRON", "0 9 * * *")
	v.SetDefault("AUTOMATION.TIMEZONE", "UTC")
	v.SetDefault("AUTOMATION.LOCK_TTL", 30*time.Minute)
	v.SetDefault("AUTOMATION.SENDING_GRACE", time.Hour)
	v.SetDefault("AUTOMATION.CONCURRENCY", 10)
	v.SetDefault("AUTOMATION.CUSTOMER_PARALLEL", 4)
	v.SetDefault("AUTOMATION.MAX_SEND_ATTEMPTS", 5)
	v.SetDefault("LOG.MAX_SIZE", 100)
	v.SetDefault("LOG.MAX_BACKUPS", 5)
	v.SetDefault("LOG.MAX_AGE", 30)
}

func LoadConfig(p Params) *Config {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	config := viper.New()
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()
	setDefaults(config)

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
		zap.L().Warn("config.yaml not found, using defaults and environment")
	}

	cfg, err := decode(config)
	if err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	if p.Vault != nil {
		if err := applySecrets(context.Background(), p.Vault, cfg); err != nil {
			zap.L().Error("failed get secret from vault", zap.Error(err))
			os.Exit(1)
		}
	}

	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applySecrets overlays credentials stored in vault under secret/<APP_ENV>.
func applySecrets(ctx context.Context, client *vault.Client, cfg *Config) error {
	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		return err
	}
	zap.L().Info("Success Get Secret")

	override := func(dst *string, key string) {
		if val, ok := secret.Data.Data[key].(string); ok && val != "" {
			*dst = val
		}
	}

	override(&cfg.Database.User, "postgres_user")
	override(&cfg.Database.Password, "postgres_password")
	override(&cfg.Redis.Password, "redis_password")
	override(&cfg.SMTP.Password, "smtp_password")
	override(&cfg.AI.APIKey, "ai_api_key")
	override(&cfg.Minio.SecretKey, "minio_secret_key")
	override(&cfg.Flagsmith.ApiKey, "flagsmith_api_key")
	return nil
}
