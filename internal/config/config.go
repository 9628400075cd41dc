package config

import (
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"log"
)

type Config struct {
	Gemini Gemini
	Redis  Redis
}

type Gemini struct {
	APIKeys []string `env:"GENPOOL_API_KEYS"`
	APIKey  string   `env:"GENPOOL_API_KEY"`
	BaseURL string   `env:"GENPOOL_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
}

type Redis struct {
	Addr     string `env:"GENPOOL_REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"GENPOOL_REDIS_PASSWORD"`
	DB       int    `env:"GENPOOL_REDIS_DB"`
}

func Load() *Config {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}

	return &c
}

// Keys returns the credential list: GENPOOL_API_KEYS (comma-separated)
// first, falling back to the single GENPOOL_API_KEY.
func (g Gemini) Keys() []string {
	var keys []string
	for _, k := range g.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		return keys
	}
	if k := strings.TrimSpace(g.APIKey); k != "" {
		return []string{k}
	}
	return nil
}
