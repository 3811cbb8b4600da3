// Package config provides XML-based configuration management. The config
// file lives next to the binary so deployments stay self-contained.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"DataPrimer"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// External compute/reshape service endpoints
	Services ServicesConfig `xml:"Services"`

	// Guided flow tuning
	Flow FlowConfig `xml:"Flow"`

	// Security configuration
	Security SecurityConfig `xml:"Security"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains local storage settings
type StorageConfig struct {
	DataDirectory      string `xml:"DataDirectory"`
	SnapshotsDirectory string `xml:"SnapshotsDirectory"`
	RulesDirectory     string `xml:"RulesDirectory"`
	MaxUploadSize      string `xml:"MaxUploadSize"`
}

// ServicesConfig locates the external backends this service orchestrates
type ServicesConfig struct {
	ComputeURL  string `xml:"ComputeURL"`
	ReshapeURL  string `xml:"ReshapeURL"`
	Environment string `xml:"Environment"`
	Project     string `xml:"Project"`
}

// FlowConfig contains guided flow tuning
type FlowConfig struct {
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes"`
	SaveDebounceMs         int `xml:"SaveDebounceMs"`
	PreviewRowLimit        int `xml:"PreviewRowLimit"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowFlowDeletion bool   `xml:"AllowFlowDeletion"`
	AllowedFileTypes  string `xml:"AllowedFileTypes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "512M",
		},
		Storage: StorageConfig{
			DataDirectory:      "./data",
			SnapshotsDirectory: "./data/snapshots",
			RulesDirectory:     "./data/rules",
			MaxUploadSize:      "512M",
		},
		Services: ServicesConfig{
			ComputeURL:  "http://localhost:8000",
			ReshapeURL:  "http://localhost:8001",
			Environment: "dev",
			Project:     "default",
		},
		Flow: FlowConfig{
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			SaveDebounceMs:         500,
			PreviewRowLimit:        100,
		},
		Security: SecurityConfig{
			AllowFlowDeletion: true,
			AllowedFileTypes:  ".csv,.tsv,.txt,.xls,.xlsx",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Data Primer Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}
	if computeURL := os.Getenv("COMPUTE_SERVICE_URL"); computeURL != "" {
		c.Services.ComputeURL = computeURL
	}
	if reshapeURL := os.Getenv("RESHAPE_SERVICE_URL"); reshapeURL != "" {
		c.Services.ReshapeURL = reshapeURL
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.SnapshotsDirectory) {
		c.Storage.SnapshotsDirectory = filepath.Join(configDir, c.Storage.SnapshotsDirectory)
	}
	if !filepath.IsAbs(c.Storage.RulesDirectory) {
		c.Storage.RulesDirectory = filepath.Join(configDir, c.Storage.RulesDirectory)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetSnapshotsDir returns the absolute snapshots directory path
func (c *AppConfig) GetSnapshotsDir() string {
	return c.Storage.SnapshotsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.SnapshotsDirectory,
		c.Storage.RulesDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
