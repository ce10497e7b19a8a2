// Package config handles loading and saving rv configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/rv/config.yaml
//   - State:   ~/.local/state/rv/ (persistent response cache)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding the config file.
const (
	EnvBaseURL = "RV_BASE_URL"
	EnvToken   = "RV_TOKEN"
)

// ServerConfig describes the repository server.
type ServerConfig struct {
	BaseURL string        `yaml:"base_url,omitempty"`
	Token   string        `yaml:"token,omitempty"`   // Sent as PRIVATE-TOKEN
	Timeout time.Duration `yaml:"timeout,omitempty"` // Per request
	Root    string        `yaml:"root,omitempty"`    // Tree URL opened at startup
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled *bool         `yaml:"enabled,omitempty"`
	Persist bool          `yaml:"persist,omitempty"` // Keep the cache on disk between runs
	Path    string        `yaml:"path,omitempty"`    // Defaults to the state dir when persisting
	TTL     time.Duration `yaml:"ttl,omitempty"`
}

// TabsConfig bounds the tab bar.
type TabsConfig struct {
	Max int `yaml:"max,omitempty"` // 0 = unbounded
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	TreeWidth      int    `yaml:"tree_width,omitempty"` // Columns of the tree pane
	Markdown       *bool  `yaml:"markdown,omitempty"`   // Render .md blobs with glamour
	HighlightStyle string `yaml:"highlight_style,omitempty"`
}

// LocalConfig applies when browsing a directory on disk.
type LocalConfig struct {
	Watch      *bool `yaml:"watch,omitempty"`
	ShowHidden *bool `yaml:"show_hidden,omitempty"`
}

// Source is a named place to browse: a server tree URL or a local directory.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url,omitempty"`
	Root string `yaml:"root,omitempty"`
	Path string `yaml:"path,omitempty"`
}

// IsLocal reports whether the source is a directory on disk.
func (s Source) IsLocal() bool {
	return s.Path != ""
}

// ResolvedPath returns the source path with ~ expanded.
func (s Source) ResolvedPath() string {
	return expandHome(s.Path)
}

// Config is the top-level configuration for rv.
type Config struct {
	Server  ServerConfig `yaml:"server,omitempty"`
	Cache   CacheConfig  `yaml:"cache,omitempty"`
	Tabs    TabsConfig   `yaml:"tabs,omitempty"`
	UI      UIConfig     `yaml:"ui,omitempty"`
	Local   LocalConfig  `yaml:"local,omitempty"`
	Sources []Source     `yaml:"sources,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Tabs: TabsConfig{
			Max: 12,
		},
		UI: UIConfig{
			TreeWidth:      32,
			HighlightStyle: "monokai",
		},
	}
}

// ConfigDir returns the XDG config directory for rv.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "rv")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "rv")
}

// StateDir returns the XDG state directory for rv.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "rv")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "rv")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. Returns DefaultConfig if the
// file doesn't exist. Environment overrides are applied either way.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Cache.Path = expandHome(cfg.Cache.Path)
	for i := range cfg.Sources {
		cfg.Sources[i].Path = expandHome(cfg.Sources[i].Path)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		c.Server.Token = v
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Tabs.Max < 0 {
		return fmt.Errorf("tabs.max must not be negative")
	}
	if c.UI.TreeWidth != 0 && (c.UI.TreeWidth < 12 || c.UI.TreeWidth > 120) {
		return fmt.Errorf("ui.tree_width must be between 12 and 120")
	}
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if (s.URL == "") == (s.Path == "") {
			return fmt.Errorf("source %q: exactly one of url and path is required", s.Name)
		}
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// The file may hold a token.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindSource returns the source with the given name, or nil.
func (c Config) FindSource(name string) *Source {
	for i := range c.Sources {
		if strings.EqualFold(c.Sources[i].Name, name) {
			return &c.Sources[i]
		}
	}
	return nil
}

// CacheEnabled reports whether responses are cached. Defaults to true.
func (c Config) CacheEnabled() bool {
	return boolOr(c.Cache.Enabled, true)
}

// CachePath returns the sqlite file for the cache, or "" for an in-memory
// cache.
func (c Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	if !c.Cache.Persist {
		return ""
	}
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "cache.db")
}

// MarkdownEnabled reports whether markdown blobs are rendered. Defaults to true.
func (c Config) MarkdownEnabled() bool {
	return boolOr(c.UI.Markdown, true)
}

// WatchEnabled reports whether local sources are watched. Defaults to true.
func (c Config) WatchEnabled() bool {
	return boolOr(c.Local.Watch, true)
}

// ShowHidden reports whether dot files are listed. Defaults to true.
func (c Config) ShowHidden() bool {
	return boolOr(c.Local.ShowHidden, true)
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
