package config

import (
	"fmt"
	"log"
	"os"

	"grounded/model"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load loads the configuration from environment variables and the app config
// file. Environment variables win over file values.
func Load() (*model.Config, error) {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Info: .env file not found, relying on environment variables")
	}

	v := viper.New()
	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("data_dir", "data")
	v.SetDefault("database_path", "data/grounded.db")
	v.SetDefault("review_horizon_days", 7)
	v.SetDefault("bonus_reset_enabled", true)
	v.SetDefault("brand_title", "Grounded")

	configPath := os.Getenv("APP_CONFIG")
	if configPath == "" {
		configPath = "data/app_config.json"
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Printf("Info: %s not found, using defaults", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg model.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment overrides
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if webhook := os.Getenv("WEBHOOK_URL"); webhook != "" {
		cfg.WebhookURL = webhook
	}
	if cfg.WebhookURL == "" {
		log.Println("Warning: WEBHOOK_URL not set, webhook notifications will be disabled")
	}

	return &cfg, nil
}
