package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/framescope/framescope/internal/logger"
	"github.com/framescope/framescope/internal/sched"
	"github.com/framescope/framescope/internal/store"
)

// SourceKind selects the capture backend.
type SourceKind string

const (
	SourceCamera SourceKind = "camera"
	SourceScreen SourceKind = "screen"
)

// Region is a rectangle on the screen, used by the screen source.
type Region struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// CaptureConfig holds the frame source settings.
type CaptureConfig struct {
	Source   SourceKind `json:"source" yaml:"source"`
	Device   string     `json:"device" yaml:"device"`
	Width    int        `json:"width" yaml:"width"`
	Height   int        `json:"height" yaml:"height"`
	PeriodMS int        `json:"period_ms" yaml:"period_ms"`
	Screen   Region     `json:"screen" yaml:"screen"`
}

// RecordingConfig holds the recording store settings.
type RecordingConfig struct {
	Dir             string `json:"dir" yaml:"dir"`
	InitialCapacity int    `json:"initial_capacity" yaml:"initial_capacity"`
	ChunkSize       int    `json:"chunk_size" yaml:"chunk_size"`
}

// Config is the application configuration.
type Config struct {
	ServerPort int             `json:"server_port" yaml:"server_port"`
	LogLevel   string          `json:"log_level" yaml:"log_level"`
	ROIFile    string          `json:"roi_file" yaml:"roi_file"`
	Capture    CaptureConfig   `json:"capture" yaml:"capture"`
	Recording  RecordingConfig `json:"recording" yaml:"recording"`
}

// Manager handles loading and saving the configuration file.
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager loads the config at configFile, or creates a default config at
// the standard location when configFile is empty and nothing exists yet.
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "get home directory")
	}

	configDir := filepath.Join(homeDir, ".config", "framescope")
	actualConfigPath := filepath.Join(configDir, "config.yaml")
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, errors.Wrap(err, "create config directory")
	}

	m := &Manager{configPath: actualConfigPath}

	if err := m.load(); err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, errors.Wrap(err, "create default config")
			}
		} else {
			return nil, err
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("source", string(m.config.Capture.Source)).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		ServerPort: 8080,
		LogLevel:   "info",
		ROIFile:    "rois.yaml",
		Capture: CaptureConfig{
			Source:   SourceCamera,
			Device:   "/dev/video0",
			PeriodMS: int(sched.DefaultPeriod.Milliseconds()),
			Screen:   Region{Width: 640, Height: 480},
		},
		Recording: RecordingConfig{
			Dir:             "recordings",
			InitialCapacity: store.DefaultInitialCapacity,
			ChunkSize:       store.DefaultChunkSize,
		},
	}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return errors.WithStack(err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "parse config")
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Save writes the configuration to disk.
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// Update replaces the configuration and persists it.
func (m *Manager) Update(cfg *Config) error {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// SetPort overrides the server port without persisting.
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.ServerPort = port
}

// SetLogLevel overrides the log level without persisting.
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.LogLevel = level
}

// GetConfigPath returns the path of the loaded config file.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
