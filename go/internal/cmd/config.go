package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the yaml-backed application configuration. Environment
// variables override the file where a getEnv default names one.
type Config struct {
	Service struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"service"`
	Feed struct {
		URL           string `yaml:"url"`
		ConnectWaitMS int    `yaml:"connect_wait_ms"`
		ReconnectMS   int    `yaml:"reconnect_wait_ms"`
	} `yaml:"feed"`
	Poll struct {
		GameCardsMS int `yaml:"game_cards_ms"`
		MembersMS   int `yaml:"members_ms"`
	} `yaml:"poll"`
	Game struct {
		TurnSeconds     int  `yaml:"turn_seconds"`
		HintLimit       int  `yaml:"hint_limit"`
		StreakThreshold int  `yaml:"streak_threshold"`
		FetchKey        bool `yaml:"fetch_key"`
	} `yaml:"game"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Bridge struct {
		Addr string `yaml:"addr"`
	} `yaml:"bridge"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

func defaultConfig() *Config {
	c := &Config{}
	c.Service.BaseURL = getEnv("SPYLINE_API_URL", "http://localhost:8080")
	c.Feed.URL = getEnv("SPYLINE_NATS_URL", "nats://localhost:4222")
	c.Feed.ConnectWaitMS = 5000
	c.Feed.ReconnectMS = 2000
	c.Poll.GameCardsMS = getEnvAsInt("SPYLINE_POLL_MS", 3000)
	c.Poll.MembersMS = 15000
	c.Game.TurnSeconds = 90
	c.Game.HintLimit = 6
	c.Game.StreakThreshold = 3
	c.Store.Path = getEnv("SPYLINE_STORE_PATH", "spyline.db")
	c.Bridge.Addr = getEnv("SPYLINE_BRIDGE_ADDR", "127.0.0.1:7777")
	return c
}

func (c *Config) gameCardsEvery() time.Duration {
	return time.Duration(c.Poll.GameCardsMS) * time.Millisecond
}

func (c *Config) membersEvery() time.Duration {
	return time.Duration(c.Poll.MembersMS) * time.Millisecond
}
