package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"modelcheck/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Model  ModelConfig
	Server ServerConfig
	Batch  BatchConfig
	Log    LogConfig
}

// ModelConfig holds fitting and sampling defaults
type ModelConfig struct {
	Draws     int
	Seed      int64 // 0 leaves sampling unseeded
	MaxIter   int
	Tolerance float64

	// ZeroFudge replaces exact zeros before a log transform. Prior analyses
	// depend on the value 0.001.
	ZeroFudge float64
}

// ServerConfig holds HTTP adapter settings
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

// BatchConfig holds stimulus-calibration batch settings
type BatchConfig struct {
	Concurrency int
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Draws:     5,
			MaxIter:   100,
			Tolerance: 1e-8,
			ZeroFudge: 0.001,
		},
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			MaxBodyBytes: 32 << 20,
		},
		Batch: BatchConfig{Concurrency: 4},
		Log:   LogConfig{Level: "INFO"},
	}
}

// Load reads configuration from environment variables, after loading a .env
// file if one is present, and validates it
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the process environment only
func FromEnv() (*Config, error) {
	def := Default()
	config := &Config{
		Model:  loadModelConfig(def.Model),
		Server: loadServerConfig(def.Server),
		Batch: BatchConfig{
			Concurrency: getEnvIntOrDefault("MODELCHECK_CONCURRENCY", def.Batch.Concurrency),
		},
		Log: LogConfig{Level: getEnvOrDefault("LOG_LEVEL", def.Log.Level)},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadModelConfig(def ModelConfig) ModelConfig {
	return ModelConfig{
		Draws:     getEnvIntOrDefault("MODELCHECK_DRAWS", def.Draws),
		Seed:      getEnvInt64OrDefault("MODELCHECK_SEED", def.Seed),
		MaxIter:   getEnvIntOrDefault("MODELCHECK_MAX_ITER", def.MaxIter),
		Tolerance: getEnvFloatOrDefault("MODELCHECK_TOLERANCE", def.Tolerance),
		ZeroFudge: getEnvFloatOrDefault("MODELCHECK_ZERO_FUDGE", def.ZeroFudge),
	}
}

func loadServerConfig(def ServerConfig) ServerConfig {
	return ServerConfig{
		Port:         getEnvOrDefault("PORT", def.Port),
		ReadTimeout:  getEnvDurationOrDefault("HTTP_READ_TIMEOUT", def.ReadTimeout),
		WriteTimeout: getEnvDurationOrDefault("HTTP_WRITE_TIMEOUT", def.WriteTimeout),
		MaxBodyBytes: getEnvInt64OrDefault("HTTP_MAX_BODY_BYTES", def.MaxBodyBytes),
	}
}

func validateConfig(config *Config) error {
	m := config.Model
	if m.Draws < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("MODELCHECK_DRAWS must be at least 1, got %d", m.Draws))
	}
	if m.MaxIter < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("MODELCHECK_MAX_ITER must be at least 1, got %d", m.MaxIter))
	}
	if m.Tolerance <= 0 {
		return errors.ConfigInvalid("MODELCHECK_TOLERANCE must be positive")
	}
	if m.ZeroFudge <= 0 {
		return errors.ConfigInvalid("MODELCHECK_ZERO_FUDGE must be positive")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Batch.Concurrency < 1 {
		return errors.ConfigInvalid("MODELCHECK_CONCURRENCY must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
