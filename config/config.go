package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueKey      string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	SiteName string
	// CDNDomains maps a site name to the CDN domain its relocated media
	// is served from, e.g. "homely" -> "https://cdn.example.com/".
	CDNDomains map[string]string

	Workers        int
	MaxRetries     int
	SettleDelay    time.Duration
	WaitTimeout    time.Duration
	DequeueTimeout time.Duration

	StartURL  string
	ChromeBin string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "realestate_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 2),
		QueueKey:      getEnv("QUEUE_KEY", "homelyspider:start_urls"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    getEnv("MINIO_BUCKET", "realestate-media"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		SiteName:   getEnv("SITE_NAME", "homely"),
		CDNDomains: parseCDNDomains(getEnv("CDN_DOMAINS", "homely=https://cdn.realestate.local/")),

		Workers:        getEnvInt("WORKERS", 1),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		SettleDelay:    getEnvDuration("SETTLE_DELAY", 5*time.Second),
		WaitTimeout:    getEnvDuration("WAIT_TIMEOUT", 20*time.Second),
		DequeueTimeout: getEnvDuration("DEQUEUE_TIMEOUT", 10*time.Second),

		StartURL:  getEnv("START_URL", "https://www.homely.com.au/for-sale/melbourne-vic-3000/real-estate"),
		ChromeBin: getEnv("CHROME_BIN", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// CDNDomain returns the configured CDN domain for a site, or "" when the
// site has no entry.
func (c *Config) CDNDomain(site string) string {
	return c.CDNDomains[site]
}

// parseCDNDomains parses "site1=domain1,site2=domain2" into a map.
func parseCDNDomains(raw string) map[string]string {
	domains := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		domains[parts[0]] = parts[1]
	}
	return domains
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
