package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/radiolab/gnss-simulator/internal/constellation"
	"github.com/radiolab/gnss-simulator/internal/server"
	"github.com/radiolab/gnss-simulator/internal/transmit"
)

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	GNSS     GNSSConfig    `yaml:"gnss"`
	Radio    RadioConfig   `yaml:"radio"`
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
	Skyplot  SkyplotConfig `yaml:"skyplot"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to INFO.
func (s Settings) Level() (slog.Level, error) {
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	return level, nil
}

// GNSSConfig controls ephemeris handling and visibility computation.
type GNSSConfig struct {
	DataDirectory     string  `yaml:"dataDirectory"`
	EphemerisFile     string  `yaml:"ephemerisFile"`
	AutoFetch         bool    `yaml:"autoFetch"`
	SourceURL         string  `yaml:"sourceURL"` // template with the verbs of ephemeris.DefaultSourceURL
	FetchIntervalMin  int     `yaml:"fetchIntervalMinutes"`
	ElevationMaskDeg  float64 `yaml:"elevationMaskDeg"`
	MinPDOPSatellites int     `yaml:"minPdopSatellites"`
}

// RadioConfig locates the external tools and their defaults.
type RadioConfig struct {
	GeneratorPath        string          `yaml:"generatorPath"`
	TransferPath         string          `yaml:"transferPath"`
	InfoPath             string          `yaml:"infoPath"`
	SampleDirectory      string          `yaml:"sampleDirectory"`
	GenerationTimeoutSec int             `yaml:"generationTimeoutSeconds"`
	StopGraceSec         int             `yaml:"stopGraceSeconds"`
	Defaults             transmit.Params `yaml:"defaults"`
}

// ServerConfig represents the HTTP listener settings
type ServerConfig struct {
	Listen string            `yaml:"listen"`
	Auth   server.AuthConfig `yaml:"auth"`
}

// StorageConfig represents session journal settings. An empty database
// path disables journaling.
type StorageConfig struct {
	Database string `yaml:"database"`
}

// SkyplotConfig represents sky plot rendering settings
type SkyplotConfig struct {
	FontFile string `yaml:"fontFile"`
	Size     int    `yaml:"size"`
}

// LoadConfig reads and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := Config{
		GNSS: GNSSConfig{
			DataDirectory:     "data",
			FetchIntervalMin:  60,
			ElevationMaskDeg:  constellation.DefaultElevationMaskDeg,
			MinPDOPSatellites: constellation.DefaultMinPDOPSatellites,
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if _, err := config.Settings.Level(); err != nil {
		return nil, err
	}
	if config.GNSS.ElevationMaskDeg < 0 || config.GNSS.ElevationMaskDeg >= 90 {
		return nil, fmt.Errorf("elevation mask must be in [0, 90): %v given", config.GNSS.ElevationMaskDeg)
	}
	if config.GNSS.MinPDOPSatellites < 4 {
		return nil, fmt.Errorf("at least 4 satellites are required for PDOP: %d given", config.GNSS.MinPDOPSatellites)
	}
	if config.Server.Auth.Enabled && config.Server.Auth.Token == "" {
		return nil, fmt.Errorf("auth is enabled but no token is configured")
	}

	return &config, nil
}

// ControllerConfig translates the radio section for the controller.
func (c *Config) ControllerConfig() transmit.Config {
	return transmit.Config{
		GeneratorPath:     c.Radio.GeneratorPath,
		TransferPath:      c.Radio.TransferPath,
		SampleDir:         c.Radio.SampleDirectory,
		GenerationTimeout: time.Duration(c.Radio.GenerationTimeoutSec) * time.Second,
		StopGrace:         time.Duration(c.Radio.StopGraceSec) * time.Second,
		Defaults:          c.Radio.Defaults,
	}
}
