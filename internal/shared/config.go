package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Cache   CacheConfig   `toml:"cache"`
	Media   MediaConfig   `toml:"media"`
	Backend BackendConfig `toml:"backend"`
	Player  PlayerConfig  `toml:"player"`
	Log     LogConfig     `toml:"log"`
}

// CacheConfig contains the on-disk cache layout settings.
type CacheConfig struct {
	// Dir holds fragment files (one subdirectory per media id) and the
	// metadata document meta.json.
	Dir string `toml:"dir"`
}

// MediaConfig contains fragmenting and collection settings.
type MediaConfig struct {
	FragmentSize    int `toml:"fragment_size"`    // nominal fragment length in seconds
	CollectionLimit int `toml:"collection_limit"` // max entries loaded from one collection
}

// BackendConfig contains settings for the media-fetch backend.
type BackendConfig struct {
	Binary         string  `toml:"binary"`          // yt-dlp executable
	RateLimit      float64 `toml:"rate_limit"`      // backend invocations per second
	TimeoutSeconds int     `toml:"timeout_seconds"` // per-invocation timeout
}

// PlayerConfig contains playback sink settings.
type PlayerConfig struct {
	SinkCommand string `toml:"sink_command"` // local playback binary (ffplay)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
