package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	AI         AIConfig         `mapstructure:"ai"`
	Session    SessionConfig    `mapstructure:"session"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Broadcast  BroadcastConfig  `mapstructure:"broadcast"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type BotConfig struct {
	Token         string        `mapstructure:"token"`
	AdminID       int64         `mapstructure:"admin_id"`
	UpdateTimeout int           `mapstructure:"update_timeout"`
	Webhook       WebhookConfig `mapstructure:"webhook"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type AIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	ChatModel         string        `mapstructure:"chat_model"`
	WhisperModel      string        `mapstructure:"whisper_model"`
	VisionModel       string        `mapstructure:"vision_model"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	AnalysisTokens    int           `mapstructure:"analysis_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	Language          string        `mapstructure:"language"`
	SystemPrompt      string        `mapstructure:"system_prompt"`
	ChatTimeout       time.Duration `mapstructure:"chat_timeout"`
	TranscribeTimeout time.Duration `mapstructure:"transcribe_timeout"`
	VisionTimeout     time.Duration `mapstructure:"vision_timeout"`
}

type SessionConfig struct {
	Backend       string        `mapstructure:"backend"` // memory | redis
	Window        int           `mapstructure:"window"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	MaxVoiceBytes int64         `mapstructure:"max_voice_bytes"`
	DocumentLimit int           `mapstructure:"document_limit"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StorageConfig struct {
	Type string `mapstructure:"type"` // sqlite | none
	Path string `mapstructure:"path"`
}

type BroadcastConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
	Directory       string   `mapstructure:"directory"`
}

// LoadConfig reads the YAML config and applies environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.BindEnv("bot.token", "TELEGRAM_TOKEN")
	viper.BindEnv("bot.admin_id", "ADMIN_ID")
	viper.BindEnv("ai.api_key", "GROQ_API_KEY")
	viper.BindEnv("storage.path", "DB_PATH")
	viper.BindEnv("session.redis.addr", "REDIS_ADDR")
	viper.BindEnv("session.redis.password", "REDIS_PASSWORD")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("bot.update_timeout", 60)
	viper.SetDefault("ai.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("ai.chat_model", "llama-3.3-70b-versatile")
	viper.SetDefault("ai.whisper_model", "whisper-large-v3")
	viper.SetDefault("ai.vision_model", "meta-llama/llama-4-scout-17b-16e-instruct")
	viper.SetDefault("ai.max_tokens", 350)
	viper.SetDefault("ai.analysis_tokens", 500)
	viper.SetDefault("ai.temperature", 0.7)
	viper.SetDefault("ai.language", "ru")
	viper.SetDefault("ai.chat_timeout", 30*time.Second)
	viper.SetDefault("ai.transcribe_timeout", 60*time.Second)
	viper.SetDefault("ai.vision_timeout", 45*time.Second)
	viper.SetDefault("session.backend", "memory")
	viper.SetDefault("session.window", 10)
	viper.SetDefault("session.cooldown", 3*time.Second)
	viper.SetDefault("session.idle_ttl", 24*time.Hour)
	viper.SetDefault("session.max_voice_bytes", int64(20*1024*1024))
	viper.SetDefault("session.document_limit", 4000)
	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.path", "socrates.db")
	viper.SetDefault("broadcast.delay", 50*time.Millisecond)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("i18n.default_language", "ru")
	viper.SetDefault("i18n.languages", []string{"ru", "en"})
	viper.SetDefault("i18n.directory", "configs/i18n")
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if cfg.AI.APIKey == "" {
		return fmt.Errorf("AI provider API key is required")
	}
	if cfg.Session.Window <= 0 {
		return fmt.Errorf("session window must be positive")
	}
	switch cfg.Storage.Type {
	case "sqlite", "none":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	switch cfg.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported session backend: %s", cfg.Session.Backend)
	}
	return nil
}
