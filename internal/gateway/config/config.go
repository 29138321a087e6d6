package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultChunkDelay = time.Second

type Config struct {
	Port     string
	Env      string
	LogLevel string
	Reply    ReplyConfig
	Asset    AssetConfig
	Gemini   GeminiConfig
}

type ReplyConfig struct {
	// ChunkDelay is the pause between scripted chunks.
	ChunkDelay time.Duration
	// Script names the built-in or stored script replayed for every message.
	Script     string
	ScriptPath string
	ScriptDSN  string
}

type AssetConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

// Enabled reports whether replies should come from the model instead of a
// script.
func (g GeminiConfig) Enabled() bool { return strings.TrimSpace(g.APIKey) != "" }

func Load() (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	port := fs.String("port", ":8081", "server port")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}
	return fromEnv(*port), nil
}

func fromEnv(port string) *Config {
	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			port = envPort
		} else {
			port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	cfg := &Config{
		Port:     port,
		Env:      env,
		LogLevel: strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		Reply:    loadReplyConfig(),
		Asset:    loadAssetConfig(env),
		Gemini: GeminiConfig{
			APIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:  firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.5-flash"),
		},
	}
	return cfg
}

func loadReplyConfig() ReplyConfig {
	delay := defaultChunkDelay
	if raw := strings.TrimSpace(os.Getenv("CHUNK_DELAY_MS")); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
			delay = time.Duration(ms) * time.Millisecond
		}
	}
	return ReplyConfig{
		ChunkDelay: delay,
		Script:     firstNonEmpty(strings.TrimSpace(os.Getenv("REPLY_SCRIPT")), "demo"),
		ScriptPath: strings.TrimSpace(os.Getenv("REPLY_SCRIPT_PATH")),
		ScriptDSN:  strings.TrimSpace(os.Getenv("REPLY_SCRIPT_PG_DSN")),
	}
}

func loadAssetConfig(env string) AssetConfig {
	endpoint := resolveAssetEndpoint(env)
	return AssetConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ASSET_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ASSET_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ASSET_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ASSET_S3_BUCKET")), "chunkchat-assets"),
		UseSSL:    resolveAssetUseSSL(env),
		URLExpiry: 15 * time.Minute,
	}
}

// resolveAssetEndpoint uses the local MinIO endpoint only when one is set;
// without it asset references pass through unchanged.
func resolveAssetEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("ASSET_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ASSET_S3_ENDPOINT"))
}

func resolveAssetUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ASSET_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
