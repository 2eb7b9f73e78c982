package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the two poll loops. The message interval is tighter because
// an open conversation needs lower latency than the room directory.
const (
	DefaultRoomPollInterval    = 10 * time.Second
	DefaultMessagePollInterval = 3 * time.Second
)

type Config struct {
	Backend struct {
		BaseURL string `yaml:"base_url"`
		// Transport selects the HTTP client implementation: "std" (net/http,
		// default) or "fast" (fasthttp).
		Transport      string `yaml:"transport"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"backend"`
	Session struct {
		// Token is the bearer credential issued by the auth collaborator.
		// TokenFile, when set, wins over the inline value.
		Token     string `yaml:"token"`
		TokenFile string `yaml:"token_file"`
		// JWTSecret enables signature verification of the bearer token when
		// deriving the session actor from its claims. Empty means the claims
		// are read without verification (the backend still authenticates
		// every call).
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"session"`
	Sync struct {
		RoomPollSeconds    int     `yaml:"room_poll_seconds"`
		MessagePollSeconds int     `yaml:"message_poll_seconds"`
		RefreshRPS         float64 `yaml:"refresh_rps"`
		RefreshBurst       int     `yaml:"refresh_burst"`
		EventBuffer        int     `yaml:"event_buffer"`
	} `yaml:"sync"`
	Snapshot struct {
		Enabled   bool   `yaml:"enabled"`
		Path      string `yaml:"path"`
		Retention struct {
			Enabled    bool   `yaml:"enabled"`
			Cron       string `yaml:"cron"`
			MaxAgeDays int    `yaml:"max_age_days"`
		} `yaml:"retention"`
	} `yaml:"snapshot"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text|json
	} `yaml:"logging"`
	Debug struct {
		// Addr is the health/metrics listen address for the daemon; empty
		// disables the debug listener.
		Addr string `yaml:"addr"`
	} `yaml:"debug"`
}

// RoomPollInterval returns the configured directory poll interval or the
// default.
func (c *Config) RoomPollInterval() time.Duration {
	if c.Sync.RoomPollSeconds > 0 {
		return time.Duration(c.Sync.RoomPollSeconds) * time.Second
	}
	return DefaultRoomPollInterval
}

// MessagePollInterval returns the configured message poll interval or the
// default.
func (c *Config) MessagePollInterval() time.Duration {
	if c.Sync.MessagePollSeconds > 0 {
		return time.Duration(c.Sync.MessagePollSeconds) * time.Second
	}
	return DefaultMessagePollInterval
}

// BackendTimeout returns the request timeout for backend calls.
func (c *Config) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds > 0 {
		return time.Duration(c.Backend.TimeoutSeconds) * time.Second
	}
	return 15 * time.Second
}

// BearerToken resolves the session credential: file wins over inline value.
func (c *Config) BearerToken() (string, error) {
	if p := strings.TrimSpace(c.Session.TokenFile); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("failed to read token file %s: %w", p, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return strings.TrimSpace(c.Session.Token), nil
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (backendURL string, cfgPath string, setFlags map[string]bool) {
	urlPtr := flag.String("backend", "", "backend base URL (e.g. https://ops.example.com/api)")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *urlPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false

	if v := os.Getenv("OPSCHAT_BACKEND_URL"); v != "" {
		envUsed = true
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("OPSCHAT_BACKEND_TRANSPORT"); v != "" {
		envUsed = true
		cfg.Backend.Transport = v
	}
	if v := os.Getenv("OPSCHAT_BACKEND_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Backend.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("OPSCHAT_TOKEN"); v != "" {
		envUsed = true
		cfg.Session.Token = v
	}
	if v := os.Getenv("OPSCHAT_TOKEN_FILE"); v != "" {
		envUsed = true
		cfg.Session.TokenFile = v
	}
	if v := os.Getenv("OPSCHAT_JWT_SECRET"); v != "" {
		envUsed = true
		cfg.Session.JWTSecret = v
	}
	if v := os.Getenv("OPSCHAT_ROOM_POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Sync.RoomPollSeconds = n
		}
	}
	if v := os.Getenv("OPSCHAT_MESSAGE_POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Sync.MessagePollSeconds = n
		}
	}
	if v := os.Getenv("OPSCHAT_SNAPSHOT_PATH"); v != "" {
		envUsed = true
		cfg.Snapshot.Enabled = true
		cfg.Snapshot.Path = v
	}
	if v := os.Getenv("OPSCHAT_DEBUG_ADDR"); v != "" {
		envUsed = true
		cfg.Debug.Addr = v
	}
	if v := os.Getenv("OPSCHAT_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OPSCHAT_LOG_FORMAT"); v != "" {
		envUsed = true
		cfg.Logging.Format = v
	}
	return envUsed
}

// LoadEffective loads config from the given path (file) and applies
// environment overrides. A missing file is not fatal; env and flags can
// fully describe a client.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and the environment variable OPSCHAT_CONFIG when the flag was not
// set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("OPSCHAT_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
