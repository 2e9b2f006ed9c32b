package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/participadf/ouvidoria/internal/settings"
	"github.com/participadf/ouvidoria/internal/util"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	DBDSN           string
	RedisURL        string
	JWTAccessTTL    time.Duration
	JWTRefreshTTL   time.Duration
	JWTSecret       string
	AllowOrigins    []string
	DevCookies      bool
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
	SeedFile        string
	RecordingTTL    time.Duration
	Storage         StorageConfig
	Monitoring      MonitoringConfig
	Portal          settings.AppSettings
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// StorageConfig escolhe onde os anexos ficam guardados.
type StorageConfig struct {
	Provider     string
	UploadDir    string
	PublicPrefix string
	MaxUploadMB  int64
	S3Endpoint   string
	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	PublicDomain string
}

// MaxUploadBytes é o limite do corpo multipart.
func (s StorageConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

// MonitoringConfig controla o monitor de prazos.
type MonitoringConfig struct {
	Enabled         bool
	Interval        time.Duration
	SlackWebhookURL string
	RequestTimeout  time.Duration
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = strings.TrimSpace(getEnv("DB_DSN", ""))
	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}
	if cfg.DevCookies, err = parseBoolEnv("DEV_COOKIES", false); err != nil {
		return nil, err
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	cfg.SeedFile = strings.TrimSpace(getEnv("SEED_FILE", ""))
	if cfg.RecordingTTL, err = parseDurationEnv("GRAVACAO_TTL", 15*time.Minute); err != nil {
		return nil, err
	}

	if cfg.Storage, err = loadStorage(); err != nil {
		return nil, err
	}
	if cfg.Monitoring, err = loadMonitoring(); err != nil {
		return nil, err
	}
	if cfg.Portal, err = loadPortal(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadStorage() (StorageConfig, error) {
	s := StorageConfig{
		Provider:     strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", "local"))),
		UploadDir:    strings.TrimSpace(getEnv("UPLOAD_DIR", "./uploads")),
		PublicPrefix: "/uploads",
		S3Endpoint:   strings.TrimSpace(getEnv("S3_ENDPOINT", "")),
		S3Region:     strings.TrimSpace(getEnv("S3_REGION", "auto")),
		S3Bucket:     strings.TrimSpace(getEnv("S3_BUCKET", "")),
		S3AccessKey:  strings.TrimSpace(getEnv("S3_ACCESS_KEY", "")),
		S3SecretKey:  strings.TrimSpace(getEnv("S3_SECRET_KEY", "")),
		PublicDomain: strings.TrimSpace(getEnv("S3_PUBLIC_DOMAIN", "")),
	}

	mb, err := strconv.ParseInt(getEnv("MAX_UPLOAD_MB", "25"), 10, 64)
	if err != nil || mb <= 0 {
		return s, errors.New("MAX_UPLOAD_MB inválido")
	}
	s.MaxUploadMB = mb

	switch s.Provider {
	case "local", "noop":
	case "s3", "r2":
		if s.S3Endpoint == "" || s.S3Bucket == "" || s.S3AccessKey == "" || s.S3SecretKey == "" {
			return s, fmt.Errorf("STORAGE_PROVIDER=%s exige S3_ENDPOINT, S3_BUCKET, S3_ACCESS_KEY e S3_SECRET_KEY", s.Provider)
		}
	default:
		return s, fmt.Errorf("STORAGE_PROVIDER %q inválido", s.Provider)
	}
	return s, nil
}

func loadMonitoring() (MonitoringConfig, error) {
	m := MonitoringConfig{SlackWebhookURL: strings.TrimSpace(getEnv("SLACK_WEBHOOK_URL", ""))}
	var err error
	if m.Enabled, err = parseBoolEnv("MONITOR_ENABLED", true); err != nil {
		return m, err
	}
	if m.Interval, err = parseDurationEnv("MONITOR_INTERVAL", 15*time.Minute); err != nil {
		return m, err
	}
	if m.RequestTimeout, err = parseDurationEnv("MONITOR_TIMEOUT", 10*time.Second); err != nil {
		return m, err
	}
	return m, nil
}

// loadPortal aplica sobre os defaults o que vier do ambiente.
func loadPortal() (settings.AppSettings, error) {
	p := settings.Defaults()
	if name := strings.TrimSpace(getEnv("PORTAL_NAME", "")); name != "" {
		p.PortalName = name
	}

	if raw := strings.TrimSpace(getEnv("SLA_DIAS", "")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return p, errors.New("SLA_DIAS inválido")
		}
		p.SLADays = days
	}

	var err error
	if p.AllowAnonymous, err = parseBoolEnv("PERMITIR_ANONIMO", p.AllowAnonymous); err != nil {
		return p, err
	}

	if color := strings.TrimSpace(getEnv("COR_PRIMARIA", "")); color != "" {
		if err := util.ValidateColor(color); err != nil {
			return p, errors.New("COR_PRIMARIA inválida")
		}
		p.PrimaryColor = color
	}
	return p, nil
}

// getEnv trata variável vazia como ausente.
func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil || dur <= 0 {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, errors.New(key + " inválido")
	}
	return b, nil
}
