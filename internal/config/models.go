package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// Config represents the application configuration
type Config struct {
	ServerPort int           `json:"server_port" yaml:"server_port"`
	LogLevel   string        `json:"log_level" yaml:"log_level"`
	Camera     CameraConfig  `json:"camera" yaml:"camera"`
	Encoder    EncoderConfig `json:"encoder" yaml:"encoder"`
	Stream     StreamConfig  `json:"stream" yaml:"stream"`
	Display    DisplayConfig `json:"display" yaml:"display"`
}

// CameraConfig selects the sensor driver and the capture controller
type CameraConfig struct {
	Sensor     string `json:"sensor" yaml:"sensor"`
	Controller string `json:"controller" yaml:"controller"`
	// I2CBus names the register bus; empty opens the first one found
	I2CBus string `json:"i2c_bus" yaml:"i2c_bus"`
	// I2CAddr overrides the sensor's default address when non-zero
	I2CAddr   uint16 `json:"i2c_addr" yaml:"i2c_addr"`
	Slots     int    `json:"slots" yaml:"slots"`
	FPS       int    `json:"fps" yaml:"fps"`
	Pattern   string `json:"pattern" yaml:"pattern"`
	GstSource string `json:"gst_source" yaml:"gst_source"`
	Device    string `json:"device" yaml:"device"`
	AutoStart bool   `json:"auto_start" yaml:"auto_start"`
}

// EncoderConfig represents JPEG encoder configuration
type EncoderConfig struct {
	BufferSize      int `json:"buffer_size" yaml:"buffer_size"`
	SnapshotQuality int `json:"snapshot_quality" yaml:"snapshot_quality"`
	StreamQuality   int `json:"stream_quality" yaml:"stream_quality"`
	SnapshotWaitMs  int `json:"snapshot_wait_ms" yaml:"snapshot_wait_ms"`
	StreamWaitMs    int `json:"stream_wait_ms" yaml:"stream_wait_ms"`
}

// StreamConfig represents motion JPEG stream configuration
type StreamConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	IntervalMs int  `json:"interval_ms" yaml:"interval_ms"`
}

// DisplayConfig represents local display configuration
type DisplayConfig struct {
	Enabled          bool `json:"enabled" yaml:"enabled"`
	X11              bool `json:"x11" yaml:"x11"`
	Width            int  `json:"width" yaml:"width"`
	Height           int  `json:"height" yaml:"height"`
	Minimized        bool `json:"minimized" yaml:"minimized"`
	UpdateIntervalMs int  `json:"update_interval_ms" yaml:"update_interval_ms"`
}

// DefaultPath is where the config lives unless a file is given explicitly
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "camstreamer", "config.yaml")
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		ServerPort: 8080,
		LogLevel:   "info",
		Camera: CameraConfig{
			Sensor:     "testpattern",
			Controller: "sim",
			Slots:      3,
			FPS:        30,
			Pattern:    "bars",
			AutoStart:  true,
		},
		Encoder: EncoderConfig{
			BufferSize:      512 * 1024,
			SnapshotQuality: 80,
			StreamQuality:   60,
			SnapshotWaitMs:  1000,
			StreamWaitMs:    100,
		},
		Stream: StreamConfig{
			Enabled:    true,
			IntervalMs: 100,
		},
		Display: DisplayConfig{
			Enabled:          false,
			Width:            1280,
			Height:           720,
			UpdateIntervalMs: 33,
		},
	}
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	v          *viper.Viper
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager. A missing file is created
// with defaults.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := DefaultPath()
	if configFile != "" {
		actualConfigPath = configFile
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

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
		Str("sensor", m.config.Camera.Sensor).
		Str("controller", m.config.Camera.Controller).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk. Keys missing from the file keep
// their default values.
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
	m.v = nil
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// GetViper returns a viper view of the configuration for dotted key access.
// Values set on it are written back by the next Save.
func (m *Manager) GetViper() *viper.Viper {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.v != nil {
		return m.v
	}

	v := viper.New()
	v.SetConfigType("yaml")
	data, err := yaml.Marshal(m.config)
	if err == nil {
		err = v.ReadConfig(bytes.NewReader(data))
	}
	if err != nil {
		logger.WithComponent("config").Warn().Err(err).Msg("Failed to seed viper from config")
	}
	m.v = v
	return v
}

// syncFromViperLocked folds values set through GetViper back into the
// config. Callers hold mu.
func (m *Manager) syncFromViperLocked() error {
	if m.v == nil {
		return nil
	}
	data, err := yaml.Marshal(m.v.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid setting: %w", err)
	}
	m.config = cfg
	return nil
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	if err := m.syncFromViperLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	cfg := m.config
	m.mu.Unlock()

	if cfg == nil {
		cfg = Defaults()
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// Update replaces the entire configuration and saves it
func (m *Manager) Update(cfg *Config) error {
	m.mu.Lock()
	m.config = cfg
	m.v = nil
	m.mu.Unlock()
	return m.Save()
}

// SetPort sets the server port without saving
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.ServerPort = port
}

// SetLogLevel sets the log level without saving
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.LogLevel = level
}

// GetConfigPath returns the path of the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
