package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RemoteModule loads configuration from a key/value store (consul by
// default) instead of config.yaml and keeps a refreshed copy behind Remote.
var RemoteModule = fx.Module("remote.config",
	fx.Provide(NewRemoteParams, LoadRemote),
	fx.Invoke(watchRemote),
)

// Select picks RemoteModule when REMOTE_CONFIG_PROVIDER is set.
func Select() fx.Option {
	if _, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		return RemoteModule
	}
	return Module
}

// RemoteSource locates the remote document.
type RemoteSource struct {
	Provider string
	Addr     string
	Path     string
	Interval time.Duration
}

// RemoteSourceFromEnv reads REMOTE_CONFIG_* with consul defaults.
func RemoteSourceFromEnv() RemoteSource {
	src := RemoteSource{
		Provider: "consul",
		Addr:     "localhost:8500",
		Path:     "config/reputation",
		Interval: 5 * time.Second,
	}
	if v, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok && v != "" {
		src.Provider = v
	}
	if v, ok := os.LookupEnv("REMOTE_CONFIG_ADDR"); ok && v != "" {
		src.Addr = v
	}
	if v, ok := os.LookupEnv("REMOTE_CONFIG_PATH"); ok && v != "" {
		src.Path = v
	}
	if v, ok := os.LookupEnv("REMOTE_CONFIG_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			src.Interval = d
		}
	}
	return src
}

type RemoteParams struct {
	fx.Out
	Source RemoteSource
}

func NewRemoteParams() RemoteParams {
	return RemoteParams{Source: RemoteSourceFromEnv()}
}

// Remote holds the latest configuration read from the remote store.
type Remote struct {
	src     RemoteSource
	v       *viper.Viper
	current atomic.Pointer[Config]
}

// NewRemote reads the remote document once. Defaults and environment
// variables apply underneath it the same way they do for config.yaml.
func NewRemote(src RemoteSource) (*Remote, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.AddRemoteProvider(src.Provider, src.Addr, src.Path); err != nil {
		return nil, err
	}
	if err := v.ReadRemoteConfig(); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	r := &Remote{src: src, v: v}
	r.current.Store(cfg)
	return r, nil
}

// Current returns the latest snapshot. Callers must not mutate it.
func (r *Remote) Current() *Config {
	return r.current.Load()
}

// Refresh pulls the remote document again and swaps the snapshot.
// Secrets resolved at startup carry over since the store never holds them.
func (r *Remote) Refresh() error {
	if err := r.v.WatchRemoteConfig(); err != nil {
		return err
	}
	next, err := decode(r.v)
	if err != nil {
		return err
	}
	carrySecrets(next, r.Current())
	r.current.Store(next)
	return nil
}

func carrySecrets(dst, src *Config) {
	if src == nil {
		return
	}
	dst.Database.User = src.Database.User
	dst.Database.Password = src.Database.Password
	dst.Redis.Password = src.Redis.Password
	dst.SMTP.Password = src.SMTP.Password
	dst.AI.APIKey = src.AI.APIKey
	dst.Minio.SecretKey = src.Minio.SecretKey
	dst.Flagsmith.ApiKey = src.Flagsmith.ApiKey
}

type RemoteLoadParams struct {
	fx.In
	Source RemoteSource
	Vault  *vault.Client `optional:"true"`
}

type RemoteResult struct {
	fx.Out
	Remote *Remote
	Config *Config
}

// LoadRemote provides both the startup snapshot and the live holder.
// Components built at startup keep the snapshot; only Remote.Current
// sees later edits.
func LoadRemote(p RemoteLoadParams) (RemoteResult, error) {
	r, err := NewRemote(p.Source)
	if err != nil {
		zap.L().Error("unable to read remote config",
			zap.String("provider", p.Source.Provider),
			zap.String("path", p.Source.Path),
			zap.Error(err))
		return RemoteResult{}, err
	}

	cfg := r.Current()
	if p.Vault != nil {
		if err := applySecrets(context.Background(), p.Vault, cfg); err != nil {
			return RemoteResult{}, err
		}
	}

	zap.L().Info("remote config loaded",
		zap.String("provider", p.Source.Provider),
		zap.String("path", p.Source.Path))
	return RemoteResult{Remote: r, Config: cfg}, nil
}

func watchRemote(lc fx.Lifecycle, r *Remote) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				r.watch(ctx)
			}()
			return nil
		},
		OnStop: func(stop context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stop.Done():
				return stop.Err()
			}
		},
	})
}

func (r *Remote) watch(ctx context.Context) {
	interval := r.src.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := r.Refresh(); err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Error("unable to read remote config", zap.Error(err))
		}
	}
}
