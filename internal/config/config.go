package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/utils"
	"github.com/tidwall/jsonc"
)

const DefaultPath = "config.json"

type Config struct {
	Remote struct {
		URI         string `json:"uri"`
		AppName     string `json:"app_name"`
		Token       string `json:"token"`
		CallTimeout string `json:"call_timeout"`
	} `json:"remote"`
	Twitch struct {
		Username string   `json:"username"`
		Token    string   `json:"token"`
		Channels []string `json:"channels"`
	} `json:"twitch"`
	WebSocket struct {
		Port      int `json:"port"`
		SendQueue int `json:"send_queue"`
	} `json:"websocket"`
	NowPlaying struct {
		File string `json:"file"`
	} `json:"now_playing"`
	SearchCache struct {
		Size int    `json:"size"`
		TTL  string `json:"ttl"`
	} `json:"search_cache"`
	Database struct {
		Enabled            bool   `json:"enabled"`
		Host               string `json:"host"`
		Port               uint64 `json:"port"`
		Username           string `json:"username"`
		Password           string `json:"password"`
		Database           string `json:"database"`
		UseTLS             bool   `json:"use_tls"`
		ConnectTimeout     string `json:"connect_timeout"`
		SocketTimeout      string `json:"socket_timeout"`
		ConnectIdleTimeout string `json:"connect_idle_timeout"`
		OperationTimeout   string `json:"operation_timeout"`
		Heartbeat          string `json:"heartbeat"`
		MinPoolSize        uint64 `json:"min_pool_size"`
		MaxPoolSize        uint64 `json:"max_pool_size"`
	} `json:"database"`
	DebugMode bool `json:"debug_mode"`
}

var (
	config      = Default()
	initialized = false

	ErrConfigCreated   = errors.New("the configuration file does not exist and has been created. Please try again after editing the configuration file")
	ErrInvalidConfig   = errors.New("the configuration file does not contain valid JSON")
	ErrInvalidDuration = errors.New("invalid duration")
)

// Default returns the configuration written out when no file exists.
func Default() Config {
	var c Config
	c.Remote.URI = "ws://localhost:5672"
	c.Remote.AppName = "song-bridge"
	c.Remote.CallTimeout = "5s"
	c.Twitch.Channels = []string{}
	c.WebSocket.Port = 8080
	c.WebSocket.SendQueue = 64
	c.NowPlaying.File = "now_playing.txt"
	c.SearchCache.Size = 128
	c.SearchCache.TTL = "10m"
	c.Database.Host = "localhost"
	c.Database.Port = 27017
	c.Database.Database = "song_bridge"
	c.Database.ConnectTimeout = "10s"
	c.Database.SocketTimeout = "10s"
	c.Database.ConnectIdleTimeout = "5m"
	c.Database.OperationTimeout = "5s"
	c.Database.Heartbeat = "10s"
	c.Database.MinPoolSize = 1
	c.Database.MaxPoolSize = 4
	return c
}

// ReadConfig loads path, creating a default file when it is missing.
// Comments and trailing commas are accepted.
func ReadConfig(path string) (Config, error) {
	bytes, err := os.ReadFile(path)

	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return config, fmt.Errorf("error occured while reading %s: %w", path, err)
		}
		data, _ := json.MarshalIndent(Default(), "", "\t")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return config, fmt.Errorf("error occured while creating %s: %w", path, err)
		}
		return config, ErrConfigCreated
	}

	parsed := Default()
	if err = json.Unmarshal(jsonc.ToJSON(bytes), &parsed); err != nil {
		return config, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err = parsed.Validate(); err != nil {
		return config, err
	}

	config = parsed
	initialized = true
	return config, nil
}

func GetConfig() (Config, error) {
	if initialized {
		return config, nil
	}
	return ReadConfig(DefaultPath)
}

// SetDebugMode overrides debug_mode after loading, used by the --debug flag.
func SetDebugMode(debug bool) {
	config.DebugMode = config.DebugMode || debug
}

func (c Config) Validate() error {
	if c.Remote.URI == "" {
		return errors.New("remote.uri must not be empty")
	}
	if c.Remote.AppName == "" {
		return errors.New("remote.app_name must not be empty")
	}
	if c.WebSocket.Port <= 0 || c.WebSocket.Port > 65535 {
		return fmt.Errorf("websocket.port %d out of range", c.WebSocket.Port)
	}
	if c.SearchCache.Size < 0 {
		return fmt.Errorf("search_cache.size must not be negative, got %d", c.SearchCache.Size)
	}
	return c.validateDurations()
}

// validateDurations rejects set duration fields that do not parse; empty
// ones fall back to their defaults.
func (c Config) validateDurations() error {
	durations := []struct {
		key   string
		value string
	}{
		{"remote.call_timeout", c.Remote.CallTimeout},
		{"search_cache.ttl", c.SearchCache.TTL},
		{"database.connect_timeout", c.Database.ConnectTimeout},
		{"database.socket_timeout", c.Database.SocketTimeout},
		{"database.connect_idle_timeout", c.Database.ConnectIdleTimeout},
		{"database.operation_timeout", c.Database.OperationTimeout},
		{"database.heartbeat", c.Database.Heartbeat},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if _, err := utils.ParseStringTime(d.value); err != nil {
			return fmt.Errorf("%s: %w: %v", d.key, ErrInvalidDuration, err)
		}
	}
	return nil
}
