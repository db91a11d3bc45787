package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	appName = "syncradio"

	// envPrefix selects environment overrides. A double underscore separates
	// sections: SYNCRADIO_RELAY__PORT=8080 sets relay.port.
	envPrefix = "SYNCRADIO_"

	DefaultRelayPort = 3000
)

// Offline play orders.
const (
	ModeShuffle    = "shuffle"
	ModeSequential = "sequential"
)

type Config struct {
	// Shared playback state store; empty means offline mode.
	Store StoreConfig `koanf:"store"`

	// Track list location and URL base for relative entries
	Manifest ManifestConfig `koanf:"manifest"`

	Client ClientConfig `koanf:"client"`
	Relay  RelayConfig  `koanf:"relay"`
	Log    LogConfig    `koanf:"log"`

	// Google Cloud Storage access for gs:// manifests and tracks
	GCS GCSConfig `koanf:"gcs"`
}

// StoreConfig holds the shared state store connection settings.
type StoreConfig struct {
	URL          string        `koanf:"url"`           // memory://, sqlite://, postgres://, https://<db>.firebaseio.com, ws://, mdns://
	Auth         string        `koanf:"auth"`          // optional Realtime Database auth token
	Timeout      time.Duration `koanf:"timeout"`       // per-request timeout (default: 5s)
	PollInterval time.Duration `koanf:"poll_interval"` // sqlite change polling (default: 500ms)
}

// ManifestConfig locates the track list.
type ManifestConfig struct {
	URL     string `koanf:"url"`      // http(s)://, file path or gs://bucket/object
	BaseURL string `koanf:"base_url"` // prefix for relative file/cover entries
}

// ClientConfig holds listener client settings.
type ClientConfig struct {
	Mode           string        `koanf:"mode"`            // offline order: "shuffle" or "sequential" (default: "shuffle")
	RequireGesture *bool         `koanf:"require_gesture"` // hold playback until a key press (default: true)
	ReadyTimeout   time.Duration `koanf:"ready_timeout"`   // max wait for a track to load before seeking (default: 1s)
	Notify         bool          `koanf:"notify"`          // desktop notification on track change
	CacheDir       string        `koanf:"cache_dir"`       // downloaded tracks (default: XDG cache dir)
	Prefetch       bool          `koanf:"prefetch"`        // download the whole playlist at startup
}

// RelayConfig holds fallback relay server settings.
type RelayConfig struct {
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`         // default: 3000, PORT env overrides
	MusicDir    string `koanf:"music_dir"`    // served under /music/ (default: "music")
	ArtDir      string `koanf:"art_dir"`      // served under /album-art/ (default: "album-art")
	Manifest    string `koanf:"manifest"`     // optional track list; music_dir is scanned when empty
	PublicURL   string `koanf:"public_url"`   // base for track URLs handed to clients
	AutoAdvance bool   `koanf:"auto_advance"` // advance when a track's known duration elapses
	MDNS        bool   `koanf:"mdns"`         // advertise on the local network
	Name        string `koanf:"name"`         // mDNS instance name (default: hostname)
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error (default: info)
	Format string `koanf:"format"` // text or json (default: text)
	File   string `koanf:"file"`   // client log file (default: XDG state dir)
}

// GCSConfig holds Google Cloud Storage credentials.
type GCSConfig struct {
	CredentialsFile string `koanf:"credentials_file"`
}

func defaults() map[string]any {
	return map[string]any{
		"relay.port":      DefaultRelayPort,
		"relay.music_dir": "music",
		"relay.art_dir":   "album-art",
		"client.mode":     ModeShuffle,
		"log.level":       "info",
		"log.format":      "text",
	}
}

func Load() (*Config, error) {
	return load(getConfigPaths())
}

func load(configPaths []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}

	// Try config files in order of priority (last wins)
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	// PORT is the conventional hosting override for the listen port.
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		if err := k.Set("relay.port", port); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.Store.URL = strings.TrimSpace(cfg.Store.URL)
	cfg.Manifest.URL = expandPath(cfg.Manifest.URL)
	cfg.Client.CacheDir = expandPath(cfg.Client.CacheDir)
	cfg.Relay.MusicDir = expandPath(cfg.Relay.MusicDir)
	cfg.Relay.ArtDir = expandPath(cfg.Relay.ArtDir)
	cfg.Relay.Manifest = expandPath(cfg.Relay.Manifest)
	cfg.Relay.PublicURL = strings.TrimSuffix(cfg.Relay.PublicURL, "/")
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.GCS.CredentialsFile = expandPath(cfg.GCS.CredentialsFile)

	return cfg, nil
}

// envKey maps SYNCRADIO_CLIENT__READY_TIMEOUT to client.ready_timeout.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/syncradio/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasStore returns true if a shared state store is configured.
func (c *Config) HasStore() bool {
	return c.Store.URL != ""
}

// GetStoreConfig returns the store configuration with defaults applied.
func (c *Config) GetStoreConfig() StoreConfig {
	cfg := c.Store
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return cfg
}

// GetClientConfig returns the client configuration with defaults applied.
func (c *Config) GetClientConfig() ClientConfig {
	cfg := c.Client
	if cfg.Mode != ModeShuffle && cfg.Mode != ModeSequential {
		cfg.Mode = ModeShuffle
	}
	if cfg.RequireGesture == nil {
		v := true
		cfg.RequireGesture = &v
	}
	if cfg.ReadyTimeout <= 0 || cfg.ReadyTimeout > 30*time.Second {
		cfg.ReadyTimeout = time.Second
	}
	return cfg
}

// GetRelayConfig returns the relay configuration with defaults applied.
func (c *Config) GetRelayConfig() RelayConfig {
	cfg := c.Relay
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultRelayPort
	}
	if cfg.MusicDir == "" {
		cfg.MusicDir = "music"
	}
	if cfg.ArtDir == "" {
		cfg.ArtDir = "album-art"
	}
	if cfg.Name == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Name = host
		} else {
			cfg.Name = appName
		}
	}
	return cfg
}

// Addr returns the relay listen address.
func (r RelayConfig) Addr() string {
	return r.Host + ":" + strconv.Itoa(r.Port)
}
