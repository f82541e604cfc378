package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	// APIURL is the GraphQL endpoint (queries and mutations).
	APIURL string
	// WSURL is the websocket endpoint for subscriptions. Derived from APIURL
	// when not set explicitly.
	WSURL string
	// TokenPath is where the session token is persisted between runs.
	TokenPath string
	// HistoryPath is the sqlite transcript cache. Empty disables the cache.
	HistoryPath string

	LogLevel string
	LogJSON  bool
}

// Load reads configuration from environment variables, loading a .env file
// first if one is present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		APIURL:      getEnv("CHAT_API_URL", "http://localhost:8080/graphql"),
		WSURL:       os.Getenv("CHAT_WS_URL"),
		TokenPath:   os.Getenv("CHAT_TOKEN_PATH"),
		HistoryPath: os.Getenv("CHAT_HISTORY_DB"),
		LogLevel:    getEnv("CHAT_LOG_LEVEL", "info"),
		LogJSON:     getEnv("CHAT_LOG_JSON", "false") == "true",
	}

	if cfg.WSURL == "" {
		cfg.WSURL = deriveWSURL(cfg.APIURL)
	}
	if cfg.TokenPath == "" {
		home, _ := os.UserHomeDir()
		cfg.TokenPath = filepath.Join(home, ".chatgogo", "token")
	}
	if cfg.HistoryPath == "" {
		home, _ := os.UserHomeDir()
		cfg.HistoryPath = filepath.Join(home, ".chatgogo", "history.db")
	}

	return cfg
}

// deriveWSURL swaps the http scheme for ws, keeping the rest of the URL.
func deriveWSURL(apiURL string) string {
	switch {
	case len(apiURL) > 8 && apiURL[:8] == "https://":
		return "wss://" + apiURL[8:]
	case len(apiURL) > 7 && apiURL[:7] == "http://":
		return "ws://" + apiURL[7:]
	}
	return apiURL
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
