package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App   AppConfig   `toml:"app"`
	LLM   LLMConfig   `toml:"llm"`
	Redis RedisConfig `toml:"redis"`
	Blob  BlobConfig  `toml:"blob"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type LLMConfig struct {
	Provider      string `toml:"provider"`
	BaseURL       string `toml:"base_url"`
	APIKey        string `toml:"api_key"`
	Model         string `toml:"model"`
	SendMode      string `toml:"send_mode"`
	MaxAttempts   int    `toml:"max_attempts"`
	BackoffSeedMS int    `toml:"backoff_seed_ms"`
}

type RedisConfig struct {
	Addr             string `toml:"addr"`
	Password         string `toml:"password"`
	DB               int    `toml:"db"`
	ResultTTLSeconds int    `toml:"result_ttl_seconds"`
}

type BlobConfig struct {
	Bucket              string `toml:"bucket"`
	SignedURLTTLMinutes int    `toml:"signed_url_ttl_minutes"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "evalboard",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		LLM: LLMConfig{
			Provider:      "gemini",
			BaseURL:       "https://generativelanguage.googleapis.com",
			APIKey:        "",
			Model:         "gemini-2.5-pro",
			SendMode:      "inline",
			MaxAttempts:   3,
			BackoffSeedMS: 2000,
		},
		Redis: RedisConfig{
			Addr:             "127.0.0.1:6379",
			Password:         "",
			DB:               0,
			ResultTTLSeconds: 172800, // 2 days
		},
		Blob: BlobConfig{
			Bucket:              "",
			SignedURLTTLMinutes: 15,
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.SendMode = getEnv("LLM_SEND_MODE", cfg.LLM.SendMode)
	cfg.LLM.MaxAttempts = getEnvAsInt("LLM_MAX_ATTEMPTS", cfg.LLM.MaxAttempts)
	cfg.LLM.BackoffSeedMS = getEnvAsInt("LLM_BACKOFF_SEED_MS", cfg.LLM.BackoffSeedMS)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.ResultTTLSeconds = getEnvAsInt("REDIS_RESULT_TTL_SECONDS", cfg.Redis.ResultTTLSeconds)

	cfg.Blob.Bucket = getEnv("BLOB_BUCKET", cfg.Blob.Bucket)
	cfg.Blob.SignedURLTTLMinutes = getEnvAsInt("BLOB_SIGNED_URL_TTL_MINUTES", cfg.Blob.SignedURLTTLMinutes)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
