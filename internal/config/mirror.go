package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical mirror defaults file.
// This is the single source of truth for all default mirror values.
const DefaultConfigPath = "config/mirror.defaults.json"

// MirrorConfig represents the root configuration for the mirror service.
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* methods supply fallback defaults for the rest.
type MirrorConfig struct {
	// Provider params
	UDPAddress    *string  `json:"udp_address,omitempty"`
	UDPPort       *int     `json:"udp_port,omitempty"`
	UDPRcvBuf     *int     `json:"udp_rcvbuf,omitempty"`
	StatsInterval *string  `json:"stats_interval,omitempty"` // duration string like "60s"
	ReplaySpeed   *float64 `json:"replay_speed,omitempty"`

	// Scene params
	MinFaceArea      *float64 `json:"min_face_area,omitempty"`      // square meters
	MinFootprintArea *float64 `json:"min_footprint_area,omitempty"` // square meters, world X/Z
	ThemePath        *string  `json:"theme_path,omitempty"`
	ThemeWatch       *bool    `json:"theme_watch,omitempty"`

	// Storage params
	DBPath        *string `json:"db_path,omitempty"`
	MigrationsDir *string `json:"migrations_dir,omitempty"`
	PersistEvents *bool   `json:"persist_events,omitempty"`

	// Monitor params
	HTTPAddress *string `json:"http_address,omitempty"`
}

// EmptyMirrorConfig returns a MirrorConfig with all fields set to nil.
// Use LoadMirrorConfig to load actual values from the defaults file.
func EmptyMirrorConfig() *MirrorConfig {
	return &MirrorConfig{}
}

// LoadMirrorConfig loads a MirrorConfig from a JSON file. Fields omitted
// from the JSON file retain their default values, so partial configs are
// safe.
func LoadMirrorConfig(path string) (*MirrorConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyMirrorConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical mirror defaults from
// DefaultConfigPath. It searches for the file in the current directory and
// common parent directories. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *MirrorConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadMirrorConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *MirrorConfig) Validate() error {
	if c.UDPPort != nil {
		if *c.UDPPort < 1 || *c.UDPPort > 65535 {
			return fmt.Errorf("udp_port must be between 1 and 65535, got %d", *c.UDPPort)
		}
	}

	if c.StatsInterval != nil && *c.StatsInterval != "" {
		if _, err := time.ParseDuration(*c.StatsInterval); err != nil {
			return fmt.Errorf("invalid stats_interval '%s': %w", *c.StatsInterval, err)
		}
	}

	if c.ReplaySpeed != nil && *c.ReplaySpeed <= 0 {
		return fmt.Errorf("replay_speed must be positive, got %f", *c.ReplaySpeed)
	}

	if c.MinFaceArea != nil && *c.MinFaceArea < 0 {
		return fmt.Errorf("min_face_area must not be negative, got %f", *c.MinFaceArea)
	}

	if c.MinFootprintArea != nil && *c.MinFootprintArea < 0 {
		return fmt.Errorf("min_footprint_area must not be negative, got %f", *c.MinFootprintArea)
	}

	return nil
}

// GetUDPAddress returns the interface address the UDP listener binds to.
func (c *MirrorConfig) GetUDPAddress() string {
	if c.UDPAddress == nil {
		return "0.0.0.0" // default
	}
	return *c.UDPAddress
}

// GetUDPPort returns the UDP port plane events arrive on.
func (c *MirrorConfig) GetUDPPort() int {
	if c.UDPPort == nil {
		return 4690 // default
	}
	return *c.UDPPort
}

// GetUDPRcvBuf returns the requested kernel receive buffer size in bytes.
func (c *MirrorConfig) GetUDPRcvBuf() int {
	if c.UDPRcvBuf == nil {
		return 1 << 20 // default 1MB
	}
	return *c.UDPRcvBuf
}

// GetStatsInterval returns how often ingest counters are logged.
func (c *MirrorConfig) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return time.Minute // default
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil {
		return time.Minute
	}
	return d
}

// GetReplaySpeed returns the pacing multiplier for session replay.
func (c *MirrorConfig) GetReplaySpeed() float64 {
	if c.ReplaySpeed == nil {
		return 1.0 // default: real time
	}
	return *c.ReplaySpeed
}

// GetMinFaceArea returns the mesh face area threshold in square meters.
func (c *MirrorConfig) GetMinFaceArea() float64 {
	if c.MinFaceArea == nil {
		return 0 // default: keep all non-degenerate faces
	}
	return *c.MinFaceArea
}

// GetMinFootprintArea returns the collision footprint area threshold.
func (c *MirrorConfig) GetMinFootprintArea() float64 {
	if c.MinFootprintArea == nil {
		return 1e-4 // default
	}
	return *c.MinFootprintArea
}

// GetThemePath returns the path of the YAML color theme, empty for the
// built-in palette.
func (c *MirrorConfig) GetThemePath() string {
	if c.ThemePath == nil {
		return ""
	}
	return *c.ThemePath
}

// GetThemeWatch reports whether the theme file is watched for changes.
func (c *MirrorConfig) GetThemeWatch() bool {
	if c.ThemeWatch == nil {
		return true // default
	}
	return *c.ThemeWatch
}

// GetDBPath returns the sqlite database path.
func (c *MirrorConfig) GetDBPath() string {
	if c.DBPath == nil {
		return "data/planemirror.db" // default
	}
	return *c.DBPath
}

// GetMigrationsDir returns the directory holding schema migrations.
func (c *MirrorConfig) GetMigrationsDir() string {
	if c.MigrationsDir == nil {
		return "db/migrations" // default
	}
	return *c.MigrationsDir
}

// GetPersistEvents reports whether transitions are written to the store.
func (c *MirrorConfig) GetPersistEvents() bool {
	if c.PersistEvents == nil {
		return true // default
	}
	return *c.PersistEvents
}

// GetHTTPAddress returns the monitor HTTP listen address.
func (c *MirrorConfig) GetHTTPAddress() string {
	if c.HTTPAddress == nil {
		return ":8080" // default
	}
	return *c.HTTPAddress
}
