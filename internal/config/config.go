package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting of the process.
type Config struct {
	Addr            string `yaml:"addr"`
	Secret          string `yaml:"secret"`
	AdminKey        string `yaml:"admin_key"`
	SecondsPerMatch int    `yaml:"seconds_per_match"`
	UploadDir       string `yaml:"upload_dir"`
	DBPath          string `yaml:"db_path"`
}

// Load reads FACEOFF_* environment variables (with defaults), optionally
// overridden by a YAML file named in FACEOFF_CONFIG. A missing identity
// secret gets a random per-process value, which invalidates client vote
// locks on restart; fine for development, warned about for production.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:            getEnv("FACEOFF_ADDR", ":8080"),
		Secret:          getEnv("FACEOFF_SECRET", ""),
		AdminKey:        getEnv("FACEOFF_ADMIN_KEY", ""),
		SecondsPerMatch: getEnvAsInt("FACEOFF_SECONDS_PER_MATCH", 30),
		UploadDir:       getEnv("FACEOFF_UPLOAD_DIR", "./uploads"),
		DBPath:          getEnv("FACEOFF_DB_PATH", ""),
	}

	if path := os.Getenv("FACEOFF_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.Secret == "" {
		cfg.Secret = uuid.NewString()
		log.Warn().Msg("FACEOFF_SECRET not set, using a random per-process secret; identity tokens will not survive a restart")
	}
	if cfg.SecondsPerMatch <= 0 {
		return nil, fmt.Errorf("seconds per match must be positive, got %d", cfg.SecondsPerMatch)
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
