package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env             string
	MongoURI        string
	MongoDB         string
	ServerAddr      string
	FrontendOrigins []string

	RateLimitAuth      int
	RateLimitBooking   int
	RateLimitWindowSec int

	RedisURL        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int

	JWTSecret     string
	TokenTTLHours int

	BrevoAPIKey      string
	BrevoSenderEmail string
	BrevoSenderName  string
	BrevoSandbox     bool

	// StrictSlotClaim switches booking from the soft availability model
	// (presence check only, double-booking possible) to an exclusive claim
	// enforced by a unique partial index on (doctorId, date, time).
	StrictSlotClaim bool
	// GlobalUniqueEmail rejects registrations whose email already exists in
	// any role, not just the same one.
	GlobalUniqueEmail bool

	MirrorReconcileSpec string

	Timezone *time.Location
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TZ", "Asia/Kolkata"))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/curehub")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "curehub"
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		MongoURI:            mongoURI,
		MongoDB:             mongoDB,
		ServerAddr:          getEnv("SERVER_ADDR", ":8080"),
		FrontendOrigins:     splitOrigins(getEnv("FRONTEND_ORIGINS", "http://localhost:3000")),
		RateLimitAuth:       getEnvInt("RATE_LIMIT_AUTH", 10),
		RateLimitBooking:    getEnvInt("RATE_LIMIT_BOOKING", 20),
		RateLimitWindowSec:  getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		RedisURL:            getEnv("REDIS_URL", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds:     getEnvInt("CACHE_TTL_SECONDS", 60),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		TokenTTLHours:       getEnvInt("TOKEN_TTL_HOURS", 720),
		BrevoAPIKey:         getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail:    getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:     getEnv("BREVO_SENDER_NAME", "CureHub"),
		BrevoSandbox:        getEnvBool("BREVO_SANDBOX", false),
		StrictSlotClaim:     getEnvBool("STRICT_SLOT_CLAIM", false),
		GlobalUniqueEmail:   getEnvBool("GLOBAL_UNIQUE_EMAIL", false),
		MirrorReconcileSpec: getEnv("MIRROR_RECONCILE_SPEC", "@hourly"),
		Timezone:            loc,
	}

	return cfg, nil
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
