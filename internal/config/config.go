package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported chat platforms.
const (
	PlatformDiscord = "discord"
	PlatformSlack   = "slack"
)

// Counter store drivers.
const (
	CounterDriverFile     = "file"
	CounterDriverRedis    = "redis"
	CounterDriverSQLite   = "sqlite"
	CounterDriverPostgres = "postgres"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App        AppConfig
	Bot        BotConfig
	Counter    CounterConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Transcript TranscriptConfig
	Audit      AuditConfig
	HTTP       HTTPConfig
	Logger     LoggerConfig
}

// AppConfig describes the running process.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// BotConfig controls the chat-facing behaviour. Identifiers may be empty or
// stale; the features depending on them degrade instead of failing startup.
type BotConfig struct {
	Platform               string
	DiscordToken           string
	SlackBotToken          string
	SlackAppToken          string
	SupportRoleID          string
	TicketCategoryID       string
	LogChannelID           string
	Prefix                 string
	CloseDelay             time.Duration
	TranscriptMessageLimit int
}

// CounterConfig selects where the ticket counter is persisted.
type CounterConfig struct {
	Driver     string
	FilePath   string
	Key        string
	SQLitePath string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TranscriptConfig selects the transcript archive backend.
type TranscriptConfig struct {
	Driver      string
	Dir         string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	S3Prefix    string
}

// AuditConfig configures the optional broker fan-out of lifecycle events.
type AuditConfig struct {
	AMQPURL      string
	AMQPExchange string
}

// HTTPConfig configures the ops HTTP surface. An empty Addr disables it.
type HTTPConfig struct {
	Addr string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "ticket-bot"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Bot: BotConfig{
			Platform:               strings.ToLower(getEnv("CHAT_PLATFORM", PlatformDiscord)),
			DiscordToken:           os.Getenv("DISCORD_TOKEN"),
			SlackBotToken:          os.Getenv("SLACK_BOT_TOKEN"),
			SlackAppToken:          os.Getenv("SLACK_APP_TOKEN"),
			SupportRoleID:          strings.TrimSpace(os.Getenv("SUPPORT_ROLE_ID")),
			TicketCategoryID:       strings.TrimSpace(os.Getenv("TICKET_CATEGORY_ID")),
			LogChannelID:           strings.TrimSpace(os.Getenv("TICKETS_LOG_CHANNEL_ID")),
			Prefix:                 getEnv("PREFIX", "!"),
			CloseDelay:             getEnvAsDuration("TICKET_CLOSE_DELAY", 5*time.Second),
			TranscriptMessageLimit: getEnvAsInt("TRANSCRIPT_MESSAGE_LIMIT", 100),
		},
		Counter: CounterConfig{
			Driver:     strings.ToLower(getEnv("COUNTER_DRIVER", CounterDriverFile)),
			FilePath:   getEnv("COUNTER_FILE", "ticketCounter.json"),
			Key:        getEnv("COUNTER_KEY", "ticket_counter"),
			SQLitePath: getEnv("SQLITE_PATH", "ticketbot.db"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Transcript: TranscriptConfig{
			Driver:      strings.ToLower(getEnv("TRANSCRIPT_DRIVER", "fs")),
			Dir:         getEnv("TRANSCRIPT_DIR", "transcripts"),
			S3Bucket:    os.Getenv("TRANSCRIPT_S3_BUCKET"),
			S3Region:    getEnv("TRANSCRIPT_S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("TRANSCRIPT_S3_ENDPOINT"),
			S3PathStyle: getEnvAsBool("TRANSCRIPT_S3_PATH_STYLE", false),
			S3Prefix:    os.Getenv("TRANSCRIPT_S3_PREFIX"),
		},
		Audit: AuditConfig{
			AMQPURL:      os.Getenv("AUDIT_AMQP_URL"),
			AMQPExchange: getEnv("AUDIT_AMQP_EXCHANGE", "ticket.events"),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("OPS_HTTP_ADDR", "127.0.0.1:8081"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects only settings the process cannot run without. Missing
// guild identifiers are tolerated on purpose.
func (c *Config) validate() error {
	switch c.Bot.Platform {
	case PlatformDiscord:
		if c.Bot.DiscordToken == "" {
			return fmt.Errorf("DISCORD_TOKEN is required for platform %s", c.Bot.Platform)
		}
	case PlatformSlack:
		if c.Bot.SlackBotToken == "" || c.Bot.SlackAppToken == "" {
			return fmt.Errorf("SLACK_BOT_TOKEN and SLACK_APP_TOKEN are required for platform %s", c.Bot.Platform)
		}
	default:
		return fmt.Errorf("unknown CHAT_PLATFORM %q", c.Bot.Platform)
	}

	switch c.Counter.Driver {
	case CounterDriverFile, CounterDriverRedis, CounterDriverSQLite:
	case CounterDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for counter driver %s", c.Counter.Driver)
		}
	default:
		return fmt.Errorf("unknown COUNTER_DRIVER %q", c.Counter.Driver)
	}

	if c.Bot.Prefix == "" {
		c.Bot.Prefix = "!"
	}
	if c.Bot.CloseDelay < 0 {
		c.Bot.CloseDelay = 5 * time.Second
	}
	if c.Bot.TranscriptMessageLimit <= 0 || c.Bot.TranscriptMessageLimit > 100 {
		c.Bot.TranscriptMessageLimit = 100
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
