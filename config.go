package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/adwet007/portfolio/internal/sections"
	"github.com/adwet007/portfolio/internal/typing"
)

const (
	defaultPort             = 8080
	defaultDBPath           = "portfolio.db"
	defaultSMTPHost         = "smtp.gmail.com"
	defaultSMTPPort         = "587"
	defaultAdminUsername    = "admin"
	defaultAdminPassword    = "admin123"
	defaultTypingStart      = 2 * time.Second
	defaultVisitorRetention = 365 * 24 * time.Hour
	defaultCleanupInterval  = 24 * time.Hour
	defaultSessionTTL       = 24 * time.Hour
)

// appConfig is the runtime configuration. Keys map to environment
// variables by upper-casing and replacing "-" with "_" (smtp-host is
// SMTP_HOST).
type appConfig struct {
	Port        int    `mapstructure:"port"`
	DBPath      string `mapstructure:"db-path"`
	ContentPath string `mapstructure:"content-path"`

	SMTPHost string `mapstructure:"smtp-host"`
	SMTPPort string `mapstructure:"smtp-port"`
	SMTPUser string `mapstructure:"smtp-user"`
	SMTPPass string `mapstructure:"smtp-pass"`
	ToEmail  string `mapstructure:"to-email"`

	AdminUsername     string        `mapstructure:"admin-username"`
	AdminPassword     string        `mapstructure:"admin-password"`
	AdminPasswordHash string        `mapstructure:"admin-password-hash"`
	AdminTOTPSecret   string        `mapstructure:"admin-totp-secret"`
	SessionTTL        time.Duration `mapstructure:"session-ttl"`
	SecureCookies     bool          `mapstructure:"secure-cookies"`

	TypingStartDelay  time.Duration `mapstructure:"typing-start-delay"`
	TypingTypeDelay   time.Duration `mapstructure:"typing-type-delay"`
	TypingDeleteDelay time.Duration `mapstructure:"typing-delete-delay"`
	TypingEndPause    time.Duration `mapstructure:"typing-end-pause"`
	TypingNextPause   time.Duration `mapstructure:"typing-next-pause"`

	SectionTopBias        float64       `mapstructure:"section-top-bias"`
	SectionTopThreshold   float64       `mapstructure:"section-top-threshold"`
	SectionScrollDebounce time.Duration `mapstructure:"section-scroll-debounce"`

	VisitorRetention time.Duration `mapstructure:"visitor-retention"`
	CleanupInterval  time.Duration `mapstructure:"cleanup-interval"`

	ConfigPath string `mapstructure:"-"`
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	delays := typing.DefaultDelays()
	v.SetDefault("port", defaultPort)
	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("content-path", "")
	v.SetDefault("smtp-host", defaultSMTPHost)
	v.SetDefault("smtp-port", defaultSMTPPort)
	v.SetDefault("smtp-user", "")
	v.SetDefault("smtp-pass", "")
	v.SetDefault("to-email", "")
	v.SetDefault("admin-username", "")
	v.SetDefault("admin-password", "")
	v.SetDefault("admin-password-hash", "")
	v.SetDefault("admin-totp-secret", "")
	v.SetDefault("session-ttl", defaultSessionTTL)
	v.SetDefault("secure-cookies", false)
	v.SetDefault("typing-start-delay", defaultTypingStart)
	v.SetDefault("typing-type-delay", delays.Type)
	v.SetDefault("typing-delete-delay", delays.Delete)
	v.SetDefault("typing-end-pause", delays.EndPause)
	v.SetDefault("typing-next-pause", delays.NextPause)
	v.SetDefault("section-top-bias", sections.DefaultTopBias)
	v.SetDefault("section-top-threshold", sections.DefaultTopThreshold)
	v.SetDefault("section-scroll-debounce", 100*time.Millisecond)
	v.SetDefault("visitor-retention", defaultVisitorRetention)
	v.SetDefault("cleanup-interval", defaultCleanupInterval)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return cfg, err
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.TypingStartDelay < 0 {
		return cfg, fmt.Errorf("invalid typing-start-delay: %v", cfg.TypingStartDelay)
	}
	if cfg.VisitorRetention <= 0 || cfg.CleanupInterval <= 0 {
		return cfg, errors.New("visitor-retention and cleanup-interval must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return cfg, fmt.Errorf("invalid session-ttl: %v", cfg.SessionTTL)
	}
	if cfg.SectionScrollDebounce < 0 {
		return cfg, fmt.Errorf("invalid section-scroll-debounce: %v", cfg.SectionScrollDebounce)
	}
	// negative delays are rejected by typing.New at startup
	return cfg, nil
}

func (c appConfig) typingDelays() typing.Delays {
	return typing.Delays{
		Type:      c.TypingTypeDelay,
		Delete:    c.TypingDeleteDelay,
		EndPause:  c.TypingEndPause,
		NextPause: c.TypingNextPause,
	}
}

func (c appConfig) addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
