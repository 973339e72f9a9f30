package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig holds runtime tunables that can change without a restart.
type BillingConfig struct {
	Scheduler SchedulerTunables `mapstructure:"scheduler"`
}

type SchedulerTunables struct {
	RunInterval time.Duration `mapstructure:"runInterval"`
	BatchSize   int           `mapstructure:"batchSize"`
	// TickLockTTL bounds how long a crashed replica can hold the tick lock.
	TickLockTTL time.Duration `mapstructure:"tickLockTTL"`
	ItemTimeout time.Duration `mapstructure:"itemTimeout"`
	Timezone    string        `mapstructure:"timezone"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Scheduler: SchedulerTunables{
			RunInterval: 5 * time.Minute,
			BatchSize:   500,
			TickLockTTL: 10 * time.Minute,
			ItemTimeout: 30 * time.Second,
			Timezone:    "UTC",
		},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed config, mostly for tests and one-shot tools.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.billing")

	v := viper.New()
	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/recurra/config")
	v.AddConfigPath("/etc/recurra")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RECURRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.scheduler.runInterval", defaults.Scheduler.RunInterval)
	v.SetDefault("billing.scheduler.batchSize", defaults.Scheduler.BatchSize)
	v.SetDefault("billing.scheduler.tickLockTTL", defaults.Scheduler.TickLockTTL)
	v.SetDefault("billing.scheduler.itemTimeout", defaults.Scheduler.ItemTimeout)
	v.SetDefault("billing.scheduler.timezone", defaults.Scheduler.Timezone)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeBillingConfig(v)
	if err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBillingConfig(v)
		if err != nil {
			log.Warn("billing config reload failed", zap.Error(err))
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Warn("invalid billing config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

// decodeBillingConfig goes through AllSettings so file values merge with defaults key by key.
func decodeBillingConfig(v *viper.Viper) (BillingConfig, error) {
	var file struct {
		Billing BillingConfig `mapstructure:"billing"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return BillingConfig{}, err
	}
	return file.Billing, nil
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.Scheduler.RunInterval <= 0 {
		return errors.New("billing.scheduler.runInterval must be positive")
	}
	if cfg.Scheduler.BatchSize <= 0 {
		return errors.New("billing.scheduler.batchSize must be positive")
	}
	if strings.TrimSpace(cfg.Scheduler.Timezone) != "" {
		if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
			return errors.New("billing.scheduler.timezone is not a valid IANA zone")
		}
	}
	return nil
}
