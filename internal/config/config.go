package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string  `env:"TOKEN,required" validate:"required"`
		DefaultLanguage  string  `env:"LANG,default=ru"`
		LogLevel         int     `env:"LOG_LEVEL,default=4"`
		DotPath          string  `env:"DOT_PATH,default=~/.anonym"`
		Owners           []int64 `env:"OWNERS,required" validate:"min=1"`
		ChannelUsername  string  `env:"CHANNEL"`
		ReportChatID     int64   `env:"REPORT_CHAT_ID"`
		VIPPaymentLink   string  `env:"VIP_PAYMENT_LINK"`
		MetricsAddr      string  `env:"METRICS_ADDR,default=:2112"`
		Confession       Confession
		Broadcast        Broadcast
	}

	Confession struct {
		MaxTextLength int           `env:"MAX_TEXT_LENGTH,default=4000" validate:"min=1"`
		EditWindow    time.Duration `env:"EDIT_WINDOW,default=5m"`
		SessionTTL    time.Duration `env:"SESSION_TTL,default=30m"`
		RetentionDays int           `env:"RETENTION_DAYS,default=3" validate:"min=1"`
	}

	Broadcast struct {
		Concurrency int           `env:"BROADCAST_CONCURRENCY,default=8" validate:"min=1"`
		MaxRetries  int           `env:"BROADCAST_MAX_RETRIES,default=3" validate:"min=1"`
		Delay       time.Duration `env:"BROADCAST_DELAY,default=100ms"`
	}
)

var (
	BaseEmojis = []string{"💍", "🪬", "⚔️"}
	VIPEmojis  = []string{"👑", "⭐", "😎", "💰", "🚀"}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("AN_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		if err := validator.New().Struct(cfg); err != nil {
			globalErr = fmt.Errorf("validate config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}

func IsOwner(userID int64) bool {
	for _, id := range Get().Owners {
		if id == userID {
			return true
		}
	}
	return false
}
