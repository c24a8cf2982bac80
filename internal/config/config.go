package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// app config, bound from environment variables and an optional config file
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"db"`
	Auth     AuthConfig     `mapstructure:"auth"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Speech   SpeechConfig   `mapstructure:"speech"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Session  SessionConfig  `mapstructure:"session"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres | sqlite
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite file
}

// DSN renders the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LLMConfig struct {
	Provider string       `mapstructure:"provider"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type SpeechConfig struct {
	Deepgram   DeepgramConfig   `mapstructure:"deepgram"`
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
}

type DeepgramConfig struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

type ElevenLabsConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	DefaultVoice string `mapstructure:"default_voice"`
	Model        string `mapstructure:"model"`
}

type StorageConfig struct {
	Driver         string `mapstructure:"driver"` // local | azure
	LocalDir       string `mapstructure:"local_dir"`
	PublicBaseURL  string `mapstructure:"public_base_url"`
	AzureConnStr   string `mapstructure:"azure_connection_string"`
	AzureContainer string `mapstructure:"azure_container"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PipelineConfig struct {
	Workers           int           `mapstructure:"workers"`
	QueueSize         int           `mapstructure:"queue_size"`
	EnqueueTimeout    time.Duration `mapstructure:"enqueue_timeout"`
	TranscribeTimeout time.Duration `mapstructure:"transcribe_timeout"`
	EvaluateTimeout   time.Duration `mapstructure:"evaluate_timeout"`
}

type SessionConfig struct {
	TTL            time.Duration `mapstructure:"ttl"`
	SummaryTimeout time.Duration `mapstructure:"summary_timeout"`
}

type SweeperConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Schedule   string        `mapstructure:"schedule"`
	StuckAfter time.Duration `mapstructure:"stuck_after"`
}

type binding struct {
	key      string
	env      string
	fallback interface{}
}

var bindings = []binding{
	{"server.port", "PORT", "8080"},
	{"server.allowed_origins", "ALLOWED_ORIGINS", []string{"http://localhost:5173"}},
	{"log.level", "LOG_LEVEL", "info"},
	{"log.json", "LOG_JSON", true},

	{"db.driver", "DB_DRIVER", "postgres"},
	{"db.host", "POSTGRES_HOST", "localhost"},
	{"db.port", "POSTGRES_PORT", "5432"},
	{"db.user", "POSTGRES_USER", "postgres"},
	{"db.password", "POSTGRES_PASSWORD", "postgres"},
	{"db.name", "POSTGRES_DB", "interviews"},
	{"db.sslmode", "POSTGRES_SSLMODE", "disable"},
	{"db.path", "SQLITE_PATH", "interviews.db"},

	{"auth.jwt_secret", "JWT_SECRET", ""},

	{"llm.provider", "AI_PROVIDER", "gemini"},
	{"llm.gemini.api_key", "GEMINI_API_KEY", ""},
	{"llm.gemini.model", "GEMINI_MODEL", "gemini-2.5-flash"},

	{"speech.deepgram.api_key", "DEEPGRAM_API_KEY", ""},
	{"speech.deepgram.base_url", "DEEPGRAM_BASE_URL", "https://api.deepgram.com"},
	{"speech.deepgram.model", "DEEPGRAM_MODEL", "nova-2"},
	{"speech.deepgram.language", "DEEPGRAM_LANGUAGE", "en"},
	{"speech.elevenlabs.api_key", "ELEVENLABS_API_KEY", ""},
	{"speech.elevenlabs.base_url", "ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"},
	{"speech.elevenlabs.default_voice", "ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"},
	{"speech.elevenlabs.model", "ELEVENLABS_MODEL", "eleven_multilingual_v2"},

	{"storage.driver", "STORAGE_DRIVER", "local"},
	{"storage.local_dir", "STORAGE_LOCAL_DIR", "./uploads"},
	{"storage.public_base_url", "STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/uploads"},
	{"storage.azure_connection_string", "AZURE_STORAGE_CONNECTION_STRING", ""},
	{"storage.azure_container", "AZURE_STORAGE_CONTAINER", "interview-audio"},

	{"redis.enabled", "REDIS_ENABLED", false},
	{"redis.addr", "REDIS_ADDR", "localhost:6379"},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},

	{"pipeline.workers", "PIPELINE_WORKERS", 4},
	{"pipeline.queue_size", "PIPELINE_QUEUE_SIZE", 100},
	{"pipeline.enqueue_timeout", "PIPELINE_ENQUEUE_TIMEOUT", "2s"},
	{"pipeline.transcribe_timeout", "PIPELINE_TRANSCRIBE_TIMEOUT", "90s"},
	{"pipeline.evaluate_timeout", "PIPELINE_EVALUATE_TIMEOUT", "60s"},

	{"session.ttl", "SESSION_TTL", "2h"},
	{"session.summary_timeout", "SESSION_SUMMARY_TIMEOUT", "90s"},

	{"sweeper.enabled", "SWEEPER_ENABLED", true},
	{"sweeper.schedule", "SWEEPER_SCHEDULE", "@every 1m"},
	{"sweeper.stuck_after", "SWEEPER_STUCK_AFTER", "10m"},
}

// Bind registers defaults and environment names on v.
func Bind(v *viper.Viper) {
	for _, b := range bindings {
		v.SetDefault(b.key, b.fallback)
		_ = v.BindEnv(b.key, b.env)
	}
}

// LoadConfig reads configuration from v, which must already carry any flag
// bindings. An optional config file is read when v has one set.
func LoadConfig(v *viper.Viper) (*Config, error) {
	Bind(v)

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.LLM.Provider != "gemini" {
		return errors.New("unsupported AI provider: " + cfg.LLM.Provider + ". Currently supported: gemini")
	}
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return errors.New("unsupported database driver: " + cfg.Database.Driver)
	}
	switch cfg.Storage.Driver {
	case "local":
	case "azure":
		if cfg.Storage.AzureConnStr == "" {
			return errors.New("AZURE_STORAGE_CONNECTION_STRING is required for the azure storage driver")
		}
	default:
		return errors.New("unsupported storage driver: " + cfg.Storage.Driver)
	}
	if cfg.Pipeline.Workers <= 0 || cfg.Pipeline.QueueSize <= 0 {
		return errors.New("pipeline workers and queue size must be positive")
	}
	if cfg.Pipeline.TranscribeTimeout <= 0 || cfg.Pipeline.EvaluateTimeout <= 0 {
		return errors.New("pipeline timeouts must be positive")
	}
	if cfg.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	// the sweep command runs even when the scheduled sweeper is disabled
	inFlight := cfg.Pipeline.TranscribeTimeout + cfg.Pipeline.EvaluateTimeout
	if cfg.Sweeper.StuckAfter <= inFlight {
		return fmt.Errorf("sweeper stuck_after (%s) must exceed transcribe_timeout + evaluate_timeout (%s)",
			cfg.Sweeper.StuckAfter, inFlight)
	}
	return nil
}
