/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables, with an
 * optional .env file for local development.
 *
 * Gateway credentials are deliberately NOT part of this struct: adapters fetch
 * them per call from the config store with environment fallback, so rotation
 * takes effect without a restart.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payment-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	RedisDedupPrefix       string `mapstructure:"REDIS_DEDUP_PREFIX"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	PaymentEventExchange   string `mapstructure:"PAYMENT_EVENT_EXCHANGE"`
	FrontendURL            string `mapstructure:"FRONTEND_URL"`
	BackendURL             string `mapstructure:"BACKEND_URL"`
	JWTSecret              string `mapstructure:"JWT_SECRET"`
	WebhookDedupTTLMinutes int    `mapstructure:"WEBHOOK_DEDUP_TTL_MINUTES"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8084")
	viper.SetDefault("PAYMENT_EVENT_EXCHANGE", "payments.events")
	viper.SetDefault("REDIS_DEDUP_PREFIX", "payments:webhook_dedup")
	viper.SetDefault("WEBHOOK_DEDUP_TTL_MINUTES", 1440)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_DEDUP_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_EVENT_EXCHANGE")
	_ = viper.BindEnv("FRONTEND_URL")
	_ = viper.BindEnv("BACKEND_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("WEBHOOK_DEDUP_TTL_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.FrontendURL = strings.TrimRight(strings.TrimSpace(config.FrontendURL), "/")
	config.BackendURL = strings.TrimRight(strings.TrimSpace(config.BackendURL), "/")

	if config.WebhookDedupTTLMinutes <= 0 {
		config.WebhookDedupTTLMinutes = 1440
	}

	return
}
