package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the HTTP service
type Config struct {
	Site      SiteConfig
	Storage   StorageConfig
	Server    ServerConfig
	Announce  AnnounceConfig
	Discord   DiscordConfig
	Push      PushConfig
	Contact   ContactConfig
	Horoscope HoroscopeConfig
	Feed      FeedConfig
	LogLevel  string
}

// SiteConfig describes the public site
type SiteConfig struct {
	URL  string
	Name string
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	Type            string // "mongodb", "postgresql", "dynamodb", "memory"
	Region          string // For AWS DynamoDB
	TableName       string
	Endpoint        string // Custom endpoint for local testing
	MongoDBURI      string
	MongoDBDatabase string
	PostgresURI     string
	ConnectTimeout  time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// AnnounceConfig configures the announcement receiver
type AnnounceConfig struct {
	SharedSecret  string
	SeenTTL       time.Duration
	SweepInterval time.Duration
}

// DiscordConfig configures chat delivery
type DiscordConfig struct {
	BotToken  string
	ChannelID string
	RoleID    string
}

// PushConfig configures the push-notification dispatcher. It is enabled when
// a Firebase project is configured.
type PushConfig struct {
	Enabled       bool
	WebhookSecret string
	ProjectID     string
	ClientEmail   string
	PrivateKey    string
	DatabaseURL   string
}

// ContactConfig configures the contact-form mailer. It is enabled when an
// SMTP host is configured.
type ContactConfig struct {
	Enabled    bool
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmail    string
}

// HoroscopeConfig configures the horoscope aggregator
type HoroscopeConfig struct {
	APIURL   string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// FeedConfig configures the RSS feed
type FeedConfig struct {
	PostsDir    string
	Title       string
	Description string
}

// Load loads configuration from environment variables with defaults. Every
// missing required variable is reported in a single error.
func Load() (*Config, error) {
	req := &required{}

	cfg := &Config{
		Site: SiteConfig{
			URL:  strings.TrimRight(getEnv("SITE_URL", "https://lystaria.im"), "/"),
			Name: getEnv("SITE_NAME", "Lystaria"),
		},
		Storage: StorageConfig{
			Type:            getEnv("STORAGE_TYPE", "mongodb"),
			Region:          getEnv("AWS_REGION", "us-west-2"),
			TableName:       getEnv("TABLE_NAME", "announced_posts"),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""), // For local DynamoDB
			MongoDBURI:      getEnv("MONGODB_URI", ""),
			MongoDBDatabase: getEnv("MONGODB_DATABASE", "site"),
			PostgresURI:     getEnv("POSTGRES_URI", ""),
			ConnectTimeout:  getEnvDuration("STORAGE_CONNECT_TIMEOUT", 30*time.Second),
		},
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Announce: AnnounceConfig{
			SharedSecret:  req.get("ANNOUNCE_SHARED_SECRET"),
			SeenTTL:       getEnvDuration("SEEN_TTL", 10*time.Minute),
			SweepInterval: getEnvDuration("SEEN_SWEEP_INTERVAL", time.Minute),
		},
		Discord: DiscordConfig{
			BotToken:  req.get("DISCORD_BOT_TOKEN"),
			ChannelID: req.get("DISCORD_CHANNEL_ID"),
			RoleID:    req.get("DISCORD_ROLE_ID"),
		},
		Horoscope: HoroscopeConfig{
			APIURL:   strings.TrimRight(getEnv("HOROSCOPE_API_URL", "https://ohmanda.com/api/horoscope"), "/"),
			CacheTTL: getEnvDuration("HOROSCOPE_CACHE_TTL", 30*time.Minute),
			Timeout:  getEnvDuration("HOROSCOPE_TIMEOUT", 10*time.Second),
		},
		Feed: FeedConfig{
			PostsDir:    getEnv("POSTS_CONTENT_DIR", "src/content/posts"),
			Title:       getEnv("FEED_TITLE", "Lystaria"),
			Description: getEnv("FEED_DESCRIPTION", "Where the mystical meets the mundane."),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	switch cfg.Storage.Type {
	case "mongodb":
		cfg.Storage.MongoDBURI = req.get("MONGODB_URI")
	case "postgresql":
		cfg.Storage.PostgresURI = req.get("POSTGRES_URI")
	}

	if os.Getenv("FIREBASE_PROJECT_ID") != "" {
		cfg.Push = PushConfig{
			Enabled:       true,
			WebhookSecret: req.get("PUSH_WEBHOOK_SECRET"),
			ProjectID:     req.get("FIREBASE_PROJECT_ID"),
			ClientEmail:   req.get("FIREBASE_CLIENT_EMAIL"),
			PrivateKey:    strings.ReplaceAll(req.get("FIREBASE_PRIVATE_KEY"), `\n`, "\n"),
			DatabaseURL:   req.get("FIREBASE_DATABASE_URL"),
		}
	}

	if os.Getenv("SMTP_HOST") != "" {
		cfg.Contact = ContactConfig{
			Enabled:    true,
			SMTPServer: req.get("SMTP_HOST"),
			SMTPPort:   req.getInt("SMTP_PORT"),
			SMTPUser:   req.get("SMTP_USER"),
			SMTPPass:   req.get("SMTP_PASS"),
			ToEmail:    req.get("CONTACT_TO"),
			FromEmail:  req.get("CONTACT_FROM"),
		}
	}

	if err := req.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// required collects missing or malformed required variables so they can be
// reported together.
type required struct {
	missing []string
	invalid []string
}

func (r *required) get(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		r.missing = append(r.missing, key)
	}
	return value
}

func (r *required) getInt(key string) int {
	value := r.get(key)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.invalid = append(r.invalid, key)
		return 0
	}
	return n
}

func (r *required) err() error {
	var parts []string
	if len(r.missing) > 0 {
		parts = append(parts, "missing required environment variables: "+strings.Join(r.missing, ", "))
	}
	if len(r.invalid) > 0 {
		parts = append(parts, "invalid integer environment variables: "+strings.Join(r.invalid, ", "))
	}
	if len(parts) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}
