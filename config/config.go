package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	WebRTC    WebRTCConfig
	AWS       AWSConfig
	Media     MediaConfig
	Recording RecordingConfig
	Push      PushConfig
}

// PushConfig holds Web Push (VAPID) settings. Empty keys are generated at startup.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string // mailto: or https: contact sent to push services
	TTL             int    // seconds a push service keeps an undelivered notification
}

// MediaConfig selects the Media Store backend for finished recordings.
type MediaConfig struct {
	Backend string // "disk" or "s3"
	Dir     string // root directory for the disk backend
}

// RecordingConfig holds upload pipeline settings.
type RecordingConfig struct {
	ScratchDir        string // per-upload session directories
	FFmpegPath        string
	StageTimeout      time.Duration
	MaxConcurrent     int           // 0 = no admission control
	MaxUploadMB       int64         // request body limit for uploads
	MultipartMemoryMB int64         // multipart form bytes held in memory before spilling to temp files
	UploadReadTimeout time.Duration // replaces the server-wide read timeout on the upload route
	ScratchTTL        time.Duration
	SweepInterval     time.Duration
}

// pipelineStages is the number of upload stages that each get StageTimeout
// once the body is read (normalize, concat, mux, store).
const pipelineStages = 4

// ProcessingBudget is the longest an upload can spend in the pipeline after its body was read.
func (r RecordingConfig) ProcessingBudget() time.Duration {
	return pipelineStages*r.StageTimeout + time.Minute
}

// WebRTCConfig holds STUN/TURN ICE server URLs handed to browsers.
type WebRTCConfig struct {
	ICEUrls        []string // e.g. stun:stun.l.google.com:19302 (comma-separated in env)
	TURNUsername   string
	TURNCredential string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadHeaderTimeout  int
	ReadTimeout        int // whole request; uploads get RecordingConfig.UploadReadTimeout instead
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/ringline?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int // 0 = pgx default
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AWSConfig holds AWS credentials and the recordings bucket.
type AWSConfig struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	RecordingsBucket string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "60"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "5000"),
			ReadHeaderTimeout:  getEnvInt("READ_HEADER_TIMEOUT_SEC", 10),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ringline"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		WebRTC: WebRTCConfig{
			ICEUrls:        splitTrim(getEnv("WEBRTC_ICE_URLS", "stun:stun.l.google.com:19302"), ","),
			TURNUsername:   getEnv("WEBRTC_TURN_USERNAME", ""),
			TURNCredential: getEnv("WEBRTC_TURN_CREDENTIAL", ""),
		},
		AWS: AWSConfig{
			Region:           getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RecordingsBucket: getEnv("AWS_S3_RECORDINGS_BUCKET", "ringline-recordings"),
		},
		Media: MediaConfig{
			Backend: strings.ToLower(getEnv("MEDIA_BACKEND", "disk")),
			Dir:     getEnv("MEDIA_DIR", "./uploads"),
		},
		Recording: RecordingConfig{
			ScratchDir:        getEnv("RECORDING_SCRATCH_DIR", filepath.Join(os.TempDir(), "ringline-uploads")),
			FFmpegPath:        getEnv("FFMPEG_PATH", "ffmpeg"),
			StageTimeout:      time.Duration(getEnvInt("RECORDING_STAGE_TIMEOUT_SEC", 300)) * time.Second,
			MaxConcurrent:     getEnvInt("RECORDING_MAX_CONCURRENT", 0),
			MaxUploadMB:       int64(getEnvInt("MAX_UPLOAD_MB", 512)),
			MultipartMemoryMB: int64(getEnvInt("MULTIPART_MEMORY_MB", 32)),
			UploadReadTimeout: time.Duration(getEnvInt("RECORDING_UPLOAD_READ_TIMEOUT_SEC", 3600)) * time.Second,
			ScratchTTL:        time.Duration(getEnvInt("RECORDING_SCRATCH_TTL_MIN", 60)) * time.Minute,
			SweepInterval:     time.Duration(getEnvInt("SWEEP_INTERVAL_MIN", 15)) * time.Minute,
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
			Subject:         getEnv("VAPID_SUBJECT", "mailto:ops@ringline.local"),
			TTL:             getEnvInt("PUSH_TTL_SEC", 60),
		},
	}
	if cfg.Media.Backend != "disk" && cfg.Media.Backend != "s3" {
		return nil, fmt.Errorf("MEDIA_BACKEND must be disk or s3, got %q", cfg.Media.Backend)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
