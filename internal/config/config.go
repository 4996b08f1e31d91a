package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot. Every component that
// needs guild/role/category identifiers receives them through this struct at
// construction time; nothing reads package-level state.
type Config struct {
	App        AppConfig
	Discord    DiscordConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Tickets    TicketConfig
	Transcript TranscriptConfig
	Web        WebConfig
}

// AppConfig controls process level behavior.
type AppConfig struct {
	Name string
	Env  string
}

// DiscordConfig ties the bot to one guild and its staff roles.
type DiscordConfig struct {
	Token            string
	GuildID          string
	StaffRoleID      string
	JuniorModRoleID  string
	ExtraStaffRoleID string
	AdminUserID      string
	LogChannelID     string
	CommandPrefix    string
	// CategoryIDs maps ticket type keys (contact, reports, appeals, ...) to
	// the guild category the ticket channel is created under.
	CategoryIDs map[string]string
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
	// TicketCacheTTL bounds staleness of the read-through ticket cache.
	TicketCacheTTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// TicketConfig holds lifecycle timing. Reminder and suspend windows are
// independent values; do not unify them.
type TicketConfig struct {
	ReminderHours    int
	SuspendHours     int
	PollIntervalSecs int
}

// TranscriptConfig locates transcript artifacts on disk.
type TranscriptConfig struct {
	Dir      string
	ImageDir string
	BaseURL  string
}

// WebConfig configures the companion transcript file server.
type WebConfig struct {
	Host            string
	Port            string
	LinkSecret      string
	LinkTTLMinutes  int
	RequestTimeoutS int
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	guildID := os.Getenv("DISCORD_GUILD_ID")
	if guildID == "" {
		return nil, fmt.Errorf("DISCORD_GUILD_ID is required")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "modmail-bot"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Discord: DiscordConfig{
			Token:            token,
			GuildID:          guildID,
			StaffRoleID:      os.Getenv("DISCORD_STAFF_ROLE_ID"),
			JuniorModRoleID:  os.Getenv("DISCORD_JUNIOR_MOD_ROLE_ID"),
			ExtraStaffRoleID: os.Getenv("DISCORD_EXTRA_STAFF_ROLE_ID"),
			AdminUserID:      os.Getenv("DISCORD_ADMIN_USER_ID"),
			LogChannelID:     os.Getenv("DISCORD_LOG_CHANNEL_ID"),
			CommandPrefix:    getEnv("COMMAND_PREFIX", "!"),
			CategoryIDs:      parseCategoryMap(os.Getenv("TICKET_CATEGORY_IDS")),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:                  getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:              os.Getenv("REDIS_PASSWORD"),
			DB:                    redisDB,
			TicketCacheTTLSeconds: getEnvAsInt("TICKET_CACHE_TTL_SECONDS", 60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Tickets: TicketConfig{
			ReminderHours:    getEnvAsInt("TICKET_REMINDER_HOURS", 48),
			SuspendHours:     getEnvAsInt("TICKET_SUSPEND_HOURS", 24),
			PollIntervalSecs: getEnvAsInt("TIMER_POLL_INTERVAL_SECONDS", 300),
		},
		Transcript: TranscriptConfig{
			Dir:      getEnv("TRANSCRIPT_DIR", "data/transcripts"),
			ImageDir: getEnv("TRANSCRIPT_IMAGE_DIR", "data/images"),
			BaseURL:  getEnv("TRANSCRIPT_BASE_URL", "http://127.0.0.1:5000"),
		},
		Web: WebConfig{
			Host:            getEnv("WEB_HOST", "0.0.0.0"),
			Port:            getEnv("WEB_PORT", "5000"),
			LinkSecret:      getEnv("TRANSCRIPT_LINK_SECRET", "dev-secret"),
			LinkTTLMinutes:  getEnvAsInt("TRANSCRIPT_LINK_TTL_MINUTES", 60),
			RequestTimeoutS: getEnvAsInt("WEB_REQUEST_TIMEOUT_SECONDS", 30),
		},
	}

	return cfg, nil
}

// Addr returns the web server bind address.
func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%s", w.Host, w.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (w WebConfig) RequestTimeout() time.Duration {
	if w.RequestTimeoutS <= 0 {
		return 0
	}
	return time.Duration(w.RequestTimeoutS) * time.Second
}

// ReminderDelay returns how long a ticket may sit unclaimed before the
// reminder fires.
func (t TicketConfig) ReminderDelay() time.Duration {
	return time.Duration(t.ReminderHours) * time.Hour
}

// SuspendDelay returns the inactivity window of a suspended ticket.
func (t TicketConfig) SuspendDelay() time.Duration {
	return time.Duration(t.SuspendHours) * time.Hour
}

// PollInterval returns the timer poller wake interval.
func (t TicketConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSecs) * time.Second
}

// parseCategoryMap parses "key=id,key=id" pairs.
func parseCategoryMap(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out
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
