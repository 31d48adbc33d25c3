package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string // dev|prod
	SiteID   string

	DBDriver string
	DBDSN    string

	EnableLocalAuth bool
	AuthHMACSecret  string
	TokenTTL        time.Duration

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// exam engine
	PerQuestionSeconds   int
	CompetenciesPerLevel int
	QuestionsPerExam     int
	AutoSubmitOnExpiry   bool

	PolicySeedFile string
	SeedBank       bool

	LockDriver string // local|redis
	RedisAddr  string
	LockTTL    time.Duration
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	logMode := "dev"
	if mode == ModeOnline {
		logMode = "prod"
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		LogMode:  envOr("LOG_MODE", logMode),
		SiteID:   envOr("SITE_ID", "local"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		EnableLocalAuth: envBool("ENABLE_LOCAL_AUTH", true),
		AuthHMACSecret:  envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		TokenTTL:        time.Duration(envInt("TOKEN_TTL_MINUTES", 480)) * time.Minute,

		AdminUser:          envOr("ADMIN_USER", "admin"),
		AdminPassHash:      envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://assess.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),

		PerQuestionSeconds:   envInt("PER_QUESTION_SECONDS", 60),
		CompetenciesPerLevel: envInt("COMPETENCIES_PER_LEVEL", 2),
		QuestionsPerExam:     envInt("QUESTIONS_PER_EXAM", 4),
		AutoSubmitOnExpiry:   envBool("AUTO_SUBMIT_ON_EXPIRY", false),

		PolicySeedFile: os.Getenv("POLICY_SEED_FILE"),
		SeedBank:       envBool("SEED_BANK", mode == ModeOffline),

		LockDriver: envOr("LOCK_DRIVER", "local"),
		RedisAddr:  envOr("REDIS_ADDR", "localhost:6379"),
		LockTTL:    time.Duration(envInt("LOCK_TTL_MS", 10000)) * time.Millisecond,
	}
}

// CORSOrigins picks the origin list for the running mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

// envInt ignores unparsable and non-positive values.
func envInt(k string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
