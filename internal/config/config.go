// Package config はアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Upstream credentials
	GeminiAPIKey      string
	OpenWeatherAPIKey string

	// Gemini
	GeminiModel   string
	GeminiTimeout time.Duration

	// Weather
	WeatherTimeout time.Duration

	// Fallback location
	DefaultLat  float64
	DefaultLon  float64
	DefaultCity string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Store（空文字列の場合はインメモリストアを使用する）
	DatabaseURL string

	// News
	NewsFeedURL  string
	NewsCacheTTL time.Duration

	// Rate Limit（req/min単位）
	RateLimitGeneral  int
	RateLimitAdvisory int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// SESSION_SECRETは旧Flask実装からの移行互換としてFLASK_SECRET_KEYにフォールバックする。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}

	cfg.OpenWeatherAPIKey = os.Getenv("OPEN_WEATHER_API_KEY")
	if cfg.OpenWeatherAPIKey == "" {
		missing = append(missing, "OPEN_WEATHER_API_KEY")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = os.Getenv("FLASK_SECRET_KEY")
	}
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.GeminiTimeout = getEnvDuration("GEMINI_TIMEOUT", 30*time.Second)
	cfg.WeatherTimeout = getEnvDuration("WEATHER_TIMEOUT", 15*time.Second)
	cfg.DefaultLat = getEnvFloat("DEFAULT_LAT", 12.9716)
	cfg.DefaultLon = getEnvFloat("DEFAULT_LON", 77.5946)
	cfg.DefaultCity = getEnvString("DEFAULT_CITY", "Bengaluru")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NewsFeedURL = os.Getenv("NEWS_FEED_URL")
	cfg.NewsCacheTTL = getEnvDuration("NEWS_CACHE_TTL", 15*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAdvisory = getEnvInt("RATE_LIMIT_ADVISORY", 10)
	cfg.ServerPort = getEnvString("PORT", "5321")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
