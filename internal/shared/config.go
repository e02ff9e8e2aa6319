package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel    string            `toml:"log_level"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	State       StateConfig       `toml:"state"`
	Jobs        JobsConfig        `toml:"jobs"`
	Scan        ScanConfig        `toml:"scan"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
//
// The token fields are only used by the CLI, which acts on behalf of a single user.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	UserID       string    `toml:"user_id,omitempty"`
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenExpiry  time.Time `toml:"token_expiry,omitempty"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StateConfig selects where per-user scan state is persisted.
type StateConfig struct {
	Backend string `toml:"backend"` // file or sqlite
	Dir     string `toml:"dir"`     // directory for the file backend
}

// JobsConfig selects the background job registry backend.
type JobsConfig struct {
	Backend      string `toml:"backend"`       // memory or sqlite
	StaleMinutes int    `toml:"stale_minutes"` // sqlite only: idle minutes before a job row may be reclaimed
}

// ScanConfig tunes the catalog scan and the playlist it writes.
type ScanConfig struct {
	Blocklist          []string `toml:"blocklist"`
	SkipCompletedShows bool     `toml:"skip_completed_shows"`
	CheckpointInterval int      `toml:"checkpoint_interval"` // 0 disables mid-scan saves
	PageSize           int      `toml:"page_size"`
	RequestsPerSecond  float64  `toml:"requests_per_second"`
	PlaylistName       string   `toml:"playlist_name"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Map returns the credential map accepted by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token returns the stored CLI token, or nil when none has been saved.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.TokenExpiry,
	}
}

// Update copies token into the config.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidArgument)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = token.Expiry
	return nil
}

// Validate checks enum-like fields and numeric bounds.
func (c *Config) Validate() error {
	switch c.State.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("%w: state.backend must be file or sqlite, got %q", ErrInvalidConfig, c.State.Backend)
	}
	switch c.Jobs.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("%w: jobs.backend must be memory or sqlite, got %q", ErrInvalidConfig, c.Jobs.Backend)
	}
	if c.Scan.CheckpointInterval < 0 {
		return fmt.Errorf("%w: scan.checkpoint_interval must not be negative", ErrInvalidConfig)
	}
	if c.Scan.PageSize < 1 || c.Scan.PageSize > 50 {
		return fmt.Errorf("%w: scan.page_size must be between 1 and 50", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
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

// SaveConfig encodes config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
