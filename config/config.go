package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hoshinonyaruko/snakeview/snake"
	"github.com/joho/godotenv"
)

const (
	TickSeconds      = "seconds"
	TickMilliseconds = "milliseconds"
)

// AppConfig holds the structure of the configuration
type AppConfig struct {
	ServerURL      string `json:"server_url" env:"SERVER_URL"`
	Port           string `json:"port" env:"PORT"`
	GridWidth      int    `json:"grid_width" env:"GRID_WIDTH"`
	GridHeight     int    `json:"grid_height" env:"GRID_HEIGHT"`
	TickMs         int    `json:"tick_ms" env:"TICK_MS"`
	TickUnit       string `json:"tick_unit" env:"TICK_UNIT"`
	ViewportWidth  int    `json:"viewport_width" env:"VIEWPORT_WIDTH"`
	ViewportHeight int    `json:"viewport_height" env:"VIEWPORT_HEIGHT"`
	HeaderHeight   int    `json:"header_height" env:"HEADER_HEIGHT"`
	Padding        int    `json:"padding" env:"PADDING"`
	Theme          string `json:"theme" env:"THEME"`
	ThemeFile      string `json:"theme_file" env:"THEME_FILE"`
	Backdrops      string `json:"backdrops" env:"BACKDROPS"`
	Output         string `json:"output" env:"OUTPUT"`
	Database       string `json:"database" env:"DATABASE"`
	LogJSON        bool   `json:"log_json" env:"LOG_JSON"`
	LogLevel       string `json:"log_level" env:"LOG_LEVEL"`
}

var (
	instance *AppConfig
	once     sync.Once
	loadErr  error
)

// Default returns the built-in settings, matching the game server shipped next to the web client.
func Default() *AppConfig {
	return &AppConfig{
		ServerURL:      "http://localhost:8765",
		Port:           "38870",
		GridWidth:      29,
		GridHeight:     19,
		TickMs:         30,
		TickUnit:       TickSeconds,
		ViewportWidth:  1280,
		ViewportHeight: 800,
		HeaderHeight:   64,
		Padding:        8,
		Theme:          "light",
		ThemeFile:      "./theme.txt",
		Backdrops:      "./backdrops",
		Output:         "./output",
		Database:       "view.db",
		LogLevel:       "info",
	}
}

// LoadConfig initializes and returns the instance of AppConfig
func LoadConfig(filePath string) (*AppConfig, error) {
	once.Do(func() {
		instance, loadErr = Load(filePath)
	})
	return instance, loadErr
}

// Load reads filePath (creating it with defaults when missing) and then
// applies SNAKEVIEW_* environment overrides, including those from a .env file.
func Load(filePath string) (*AppConfig, error) {
	cfg := Default()
	// Load the config file if it exists, otherwise create one
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := saveConfig(filePath, cfg); err != nil {
			return nil, err
		}
	} else if err := loadConfig(filePath, cfg); err != nil {
		return nil, err
	}

	// .env 文件可选，不存在时忽略
	_ = godotenv.Load()
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "SNAKEVIEW_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the viewer cannot run with.
func (c *AppConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url must be set")
	}
	if c.GridWidth < 1 || c.GridHeight < 1 {
		return fmt.Errorf("grid size %dx%d must be positive", c.GridWidth, c.GridHeight)
	}
	if c.GridWidth > snake.MaxGridSize || c.GridHeight > snake.MaxGridSize {
		return fmt.Errorf("grid size %dx%d exceeds %d", c.GridWidth, c.GridHeight, snake.MaxGridSize)
	}
	if c.TickMs < 1 {
		return fmt.Errorf("tick_ms %d must be positive", c.TickMs)
	}
	if c.TickUnit != TickSeconds && c.TickUnit != TickMilliseconds {
		return fmt.Errorf("tick_unit %q must be %q or %q", c.TickUnit, TickSeconds, TickMilliseconds)
	}
	if c.Padding < 0 || c.HeaderHeight < 0 {
		return fmt.Errorf("padding and header_height must not be negative")
	}
	return nil
}

// Tick is the requested server tick interval.
func (c *AppConfig) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// loadConfig loads the settings from the file
func loadConfig(filePath string, cfg *AppConfig) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", filePath, err)
	}
	return nil
}

// saveConfig saves the current settings to the file
func saveConfig(filePath string, cfg *AppConfig) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// GetConfigValue returns the value of the configuration by key
func GetConfigValue(key string) interface{} {
	if instance == nil {
		return ""
	}
	switch key {
	case "server_url":
		return instance.ServerURL
	case "port":
		return instance.Port
	case "output":
		return instance.Output
	case "database":
		return instance.Database
	case "theme_file":
		return instance.ThemeFile
	case "backdrops":
		return instance.Backdrops
	default:
		return ""
	}
}
