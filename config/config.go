package config

import "os"

// Config holds everything the server reads from the environment. Loading
// a .env file first is main's job (godotenv).
type Config struct {
	Addr              string
	LogLevel          string
	AdminUsername     string
	AdminPasswordHash string
	TelegramBotToken  string
	TelegramChatID    string
	DashboardURL      string
}

// FromEnv builds the config, applying defaults where a variable is unset.
// ADMIN_PASSWORD_HASH deliberately has no default: while it is empty,
// every admin login fails.
func FromEnv() *Config {
	return &Config{
		Addr:              ":" + envOr("PORT", "8080"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		AdminUsername:     envOr("ADMIN_USERNAME", "DARK"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		DashboardURL:      os.Getenv("ADMIN_SERVER_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
