package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	// ServiceNow instance access.
	SnowInstanceURL  string
	SnowUsername     string
	SnowPassword     string
	SnowAuthMode     string
	SnowClientID     string
	SnowClientSecret string
	SnowTokenURL     string
	SnowPageSize     int
	SnowTimeout      time.Duration

	// Decision engine tunables. The confidence curve and risk weights are
	// configuration, not fixed law; thresholds and bands are constants in
	// the engine package.
	ConfBase        float64
	ConfSlope       float64
	ConfSaturation  float64
	ConfWasted      float64
	ConfUnderutil   float64
	RiskRoleWeights map[string]float64
	MinDeptSize     int

	// Orchestrator.
	ExecTimeout time.Duration

	LLMProvider string
	LLMModel    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		SnowInstanceURL:  strings.TrimRight(getEnv("SN_INSTANCE_URL", ""), "/"),
		SnowUsername:     getEnv("SN_USERNAME", ""),
		SnowPassword:     getEnv("SN_PASSWORD", ""),
		SnowAuthMode:     normalizeAuthMode(getEnv("SN_AUTH_MODE", "basic")),
		SnowClientID:     getEnv("SN_CLIENT_ID", ""),
		SnowClientSecret: getEnv("SN_CLIENT_SECRET", ""),
		SnowTokenURL:     getEnv("SN_TOKEN_URL", ""),
		SnowPageSize:     getEnvInt("SN_PAGE_SIZE", 1000),
		SnowTimeout:      getEnvDuration("SN_HTTP_TIMEOUT", 30*time.Second),

		ConfBase:        getEnvFloat("SN_CONF_BASE", 62),
		ConfSlope:       getEnvFloat("SN_CONF_SLOPE", 0.2),
		ConfSaturation:  getEnvFloat("SN_CONF_SATURATION", 98),
		ConfWasted:      getEnvFloat("SN_CONF_WASTED", 88),
		ConfUnderutil:   getEnvFloat("SN_CONF_UNDERUTIL", 65),
		RiskRoleWeights: parseWeights(getEnv("SN_RISK_ROLE_WEIGHTS", "")),
		MinDeptSize:     getEnvInt("SN_MIN_DEPT_SIZE", 4),

		ExecTimeout: getEnvDuration("SN_EXEC_TIMEOUT", 15*time.Second),

		LLMProvider: getEnv("LLM_PROVIDER", ""),
		LLMModel:    getEnv("LLM_MODEL", ""),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using %d", key, raw, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config: %s=%q is not a number, using %g", key, raw, def)
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: %s=%q is not a duration, using %s", key, raw, def)
		return def
	}
	return d
}

// parseWeights parses "role:weight" pairs, e.g. "admin:40,itil:20".
// Malformed pairs are skipped; an empty input yields an empty map so the
// engine falls back to its built-in weights.
func parseWeights(raw string) map[string]float64 {
	out := map[string]float64{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		role := strings.ToLower(strings.TrimSpace(parts[0]))
		w, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || role == "" {
			continue
		}
		out[role] = w
	}
	return out
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeAuthMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "oauth", "oauth2":
		return "oauth"
	default:
		return "basic"
	}
}
