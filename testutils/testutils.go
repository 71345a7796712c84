package testutils

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"guardbackend/config"
	"guardbackend/models"
)

// LoadTestConfig loads configuration for tests from environment variables
func LoadTestConfig() (*config.AppConfig, error) {
	// Try to load environment variables from various possible locations
	_ = godotenv.Load("../.env.test") // From services/ directory
	_ = godotenv.Load(".env.test")    // From root directory
	_ = godotenv.Load()               // Default .env file

	databaseURL := os.Getenv("DB_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	databaseSchema := os.Getenv("DB_SCHEMA")
	if databaseSchema == "" {
		return nil, fmt.Errorf("DB_SCHEMA is not set")
	}

	return &config.AppConfig{
		DatabaseURL:    databaseURL,
		DatabaseSchema: databaseSchema,
	}, nil
}

// NewGuildID returns a unique guild ID for test isolation
func NewGuildID() models.GuildID {
	return models.GuildID("guild-" + uuid.New().String())
}

// NewUserID returns a unique user ID for test isolation
func NewUserID() models.UserID {
	return models.UserID("user-" + uuid.New().String())
}

// NewGuildUser returns a test member with a unique ID
func NewGuildUser() models.GuildUser {
	id := NewUserID()
	return models.GuildUser{
		ID:       id,
		Username: "member-" + string(id),
	}
}
