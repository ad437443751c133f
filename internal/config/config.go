// Package config handles the persistent service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oselz/viewfinder/internal/logger"
)

// CameraConfig selects the capture backend and its stream geometry.
type CameraConfig struct {
	// Backend is one of sim, screen, gst.
	Backend  string `json:"backend" yaml:"backend"`
	Position string `json:"position" yaml:"position"`
	Class    string `json:"class" yaml:"class"`
	Width    int    `json:"width" yaml:"width"`
	Height   int    `json:"height" yaml:"height"`
	FPS      int    `json:"fps" yaml:"fps"`

	// DevicePath is the v4l2 node for the gst backend.
	DevicePath string `json:"device_path,omitempty" yaml:"device_path,omitempty"`
}

// AnalysisConfig sets the startup analysis enablement and peaking
// tuning.
type AnalysisConfig struct {
	Histogram        bool    `json:"histogram" yaml:"histogram"`
	Peaking          bool    `json:"peaking" yaml:"peaking"`
	PeakingBlur      float64 `json:"peaking_blur" yaml:"peaking_blur"`
	PeakingThreshold float64 `json:"peaking_threshold" yaml:"peaking_threshold"`
}

// Config is the service configuration.
type Config struct {
	ServerPort int            `json:"server_port" yaml:"server_port"`
	LogLevel   string         `json:"log_level" yaml:"log_level"`
	LibraryDir string         `json:"library_dir" yaml:"library_dir"`
	Camera     CameraConfig   `json:"camera" yaml:"camera"`
	Analysis   AnalysisConfig `json:"analysis" yaml:"analysis"`
}

// Manager loads and persists the configuration file.
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a configuration manager. An empty configFile uses
// ~/.config/viewfinder/config.yaml, created with defaults when missing.
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "viewfinder")
	actualConfigPath := filepath.Join(configDir, "config.yaml")
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{configPath: actualConfigPath}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("backend", m.config.Camera.Backend).
		Msg("Config loaded")
	return m, nil
}

// Defaults returns the default configuration.
func Defaults() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return &Config{
		ServerPort: 8080,
		LogLevel:   "info",
		LibraryDir: filepath.Join(homeDir, "Pictures", "viewfinder"),
		Camera: CameraConfig{
			Backend:  "sim",
			Position: "back",
			Class:    "1x",
			Width:    1280,
			Height:   720,
			FPS:      60,
		},
		Analysis: AnalysisConfig{
			Histogram:        true,
			Peaking:          false,
			PeakingBlur:      0.8,
			PeakingThreshold: 0.18,
		},
	}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save persists the current configuration.
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()
	if cfg == nil {
		cfg = Defaults()
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SetPort overrides the server port.
func (m *Manager) SetPort(port int) error {
	m.mu.Lock()
	m.config.ServerPort = port
	m.mu.Unlock()
	return m.Save()
}

// SetLogLevel overrides the log level.
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
	return m.Save()
}

// SetBackend overrides the capture backend.
func (m *Manager) SetBackend(backend string) error {
	m.mu.Lock()
	m.config.Camera.Backend = backend
	m.mu.Unlock()
	return m.Save()
}

// GetConfigPath returns the path to the config file.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
