package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type DiscordConfig struct {
	BotToken string
}

// IsConfigured returns true if all required Discord configuration is present
func (c DiscordConfig) IsConfigured() bool {
	return c.BotToken != ""
}

type AlertConfig struct {
	ErrorWebhookURL   string
	TriggerWebhookURL string
}

type ProtectionConfig struct {
	QueueCapacity          int
	EnforceIntervalSeconds int
}

type AppConfig struct {
	// Core configuration (always required)
	DatabaseURL        string
	DatabaseSchema     string
	Port               string // Optional with default "8080"
	CORSAllowedOrigins string // Optional with default "*"
	Environment        string
	AdminAPIKey        string
	UseStrictConfig    bool // If true, error when any integration is not fully configured

	DiscordConfig    DiscordConfig
	AlertConfig      AlertConfig
	ProtectionConfig ProtectionConfig
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ Could not load .env file, continuing with system env vars")
	}

	// Core required configuration
	databaseURL, err := getEnvRequired("DB_URL")
	if err != nil {
		return nil, err
	}

	databaseSchema, err := getEnvRequired("DB_SCHEMA")
	if err != nil {
		return nil, err
	}

	config := &AppConfig{
		DatabaseURL:        databaseURL,
		DatabaseSchema:     databaseSchema,
		Port:               getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:        getEnvWithDefault("ENVIRONMENT", "dev"),
		AdminAPIKey:        os.Getenv("ADMIN_API_KEY"),
		UseStrictConfig:    getEnvWithDefault("USE_STRICT_CONFIG", "true") == "true",

		DiscordConfig: DiscordConfig{
			BotToken: os.Getenv("DISCORD_BOT_TOKEN"),
		},

		// Alert webhooks (optional)
		AlertConfig: AlertConfig{
			ErrorWebhookURL:   os.Getenv("ERROR_ALERT_WEBHOOK_URL"),
			TriggerWebhookURL: os.Getenv("TRIGGER_WEBHOOK_URL"),
		},

		ProtectionConfig: ProtectionConfig{
			QueueCapacity:          getEnvIntWithDefault("PUNISH_QUEUE_CAPACITY", 200),
			EnforceIntervalSeconds: getEnvIntWithDefault("ENFORCE_INTERVAL_SECONDS", 1),
		},
	}

	if config.DiscordConfig.IsConfigured() {
		log.Printf("✅ Discord integration configured")
	} else {
		log.Printf("⚠️ Discord integration not configured - bot will not start")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("discord integration is not fully configured (USE_STRICT_CONFIG=true)")
		}
	}

	if config.AdminAPIKey != "" {
		log.Printf("✅ Admin API key configured")
	} else {
		log.Printf("⚠️ Admin API key not configured - status API will be disabled")
	}

	if config.ProtectionConfig.QueueCapacity <= 0 {
		return nil, fmt.Errorf("PUNISH_QUEUE_CAPACITY must be positive")
	}
	if config.ProtectionConfig.EnforceIntervalSeconds <= 0 {
		return nil, fmt.Errorf("ENFORCE_INTERVAL_SECONDS must be positive")
	}

	return config, nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️ Invalid value for %s (%q), using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
