package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации watchdog.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pulse    PulseConfig    `mapstructure:"pulse"`
	Tavily   TavilyConfig   `mapstructure:"tavily"`
	Graph    GraphConfig    `mapstructure:"graph"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера агента.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// WriteTimeout не ставим: ответ /api/run — chunked-поток,
	// который живет столько, сколько длится запуск
}

// PulseConfig — портал одобрений Scoped Access.
type PulseConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	AgentID      string        `mapstructure:"agent_id"`
	UserID       string        `mapstructure:"user_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollDeadline time.Duration `mapstructure:"poll_deadline"`
}

// TavilyConfig — поисковый API.
type TavilyConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// GraphConfig — граф знаний (Neo4j, HTTP transactional endpoint).
type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// RedisConfig — Pub/Sub сигналов control plane (abort).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig — PostgreSQL для аудита.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// AuthConfig — опциональная проверка агентских токенов (RS256).
// Если публичный ключ не задан, /api/run открыт (локальная разработка).
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	PublicKey     []byte
}

// EngineConfig — настройки пайплайна запусков и аудита.
type EngineConfig struct {
	AuditBufferSize    int           `mapstructure:"audit_buffer_size"`
	AuditFlushInterval time.Duration `mapstructure:"audit_flush_interval"`
	DefaultScenario    string        `mapstructure:"default_scenario"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Переменные окружения перекрывают файл:
	// WATCHDOG_PULSE_BASE_URL=... перекроет pulse.base_url
	v.SetEnvPrefix("WATCHDOG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключ либо напрямую в ENV (Docker/K8s), либо файлом по пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "WATCHDOG_AUTH_PUBLIC_KEY_DATA")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Pulse.BaseURL == "" {
		return errors.New("pulse.base_url is required")
	}
	if c.Pulse.PollInterval <= 0 || c.Pulse.PollDeadline <= 0 {
		return errors.New("pulse poll interval/deadline must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 4021)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("pulse.base_url", "http://localhost:4020")
	v.SetDefault("pulse.agent_id", "watchdog-agent")
	v.SetDefault("pulse.user_id", "user-001")
	v.SetDefault("pulse.poll_interval", 2*time.Second)
	v.SetDefault("pulse.poll_deadline", 300*time.Second)
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("graph.user", "neo4j")
	v.SetDefault("graph.database", "neo4j")
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("engine.audit_buffer_size", 1000)
	v.SetDefault("engine.audit_flush_interval", 1*time.Second)
	v.SetDefault("engine.default_scenario", "research")
}

// loadKeyResource — универсальный хелпер: ENV приоритетнее файла
func loadKeyResource(path string, envDataKey string) []byte {
	// Если ключ прилетел напрямую в ENV (Base64 или PEM)
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	// Иначе читаем файл по пути из конфига
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
