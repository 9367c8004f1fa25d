package main

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".notion-sync"

const minContentMaxChars = 500

//go:embed config/settings.yaml
var defaultSettings string

//go:embed config/enricher-system-prompt.md
var enricherSystemPrompt string

//go:embed config/enricher-output-schema.json
var enricherSchema string

// EnrichmentSettings configures the metadata enrichment call
type EnrichmentSettings struct {
	Model           string  `yaml:"model"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
	ContentMaxChars int     `yaml:"content_max_chars"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	OutputDirectory  string             `yaml:"output_directory"`
	AssetDirectory   string             `yaml:"asset_directory"`
	DefaultCategory  string             `yaml:"default_category"`
	DefaultThumbnail string             `yaml:"default_thumbnail"`
	TimezoneOffset   string             `yaml:"timezone_offset"`
	PendingStatus    string             `yaml:"pending_status"`
	PublishedStatus  string             `yaml:"published_status"`
	RemoteAssetHosts []string           `yaml:"remote_asset_hosts"`
	Enrichment       EnrichmentSettings `yaml:"enrichment"`
}

// getConfigPath returns the path to a config file in the .notion-sync directory
func getConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// loadSettings loads settings from the given path, falling back to the
// embedded defaults when the file does not exist.
func loadSettings(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			data = []byte(defaultSettings)
		} else {
			return nil, fmt.Errorf("reading settings file %s: %w", settingsPath, err)
		}
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	applySettingsDefaults(&settings)

	return &settings, nil
}

// loadSettingsRequired loads settings from a YAML file, failing if it doesn't exist
func loadSettingsRequired(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	applySettingsDefaults(&settings)

	return &settings, nil
}

func applySettingsDefaults(s *Settings) {
	if s.OutputDirectory == "" {
		s.OutputDirectory = "_posts"
	}
	if s.AssetDirectory == "" {
		s.AssetDirectory = "assets/post-img"
	}
	if s.DefaultCategory == "" {
		s.DefaultCategory = "General"
	}
	if s.DefaultThumbnail == "" {
		s.DefaultThumbnail = "/assets/post-img/defaultImg.gif"
	}
	if s.TimezoneOffset == "" {
		s.TimezoneOffset = "+0900"
	}
	if s.PendingStatus == "" {
		s.PendingStatus = "PendingPublish"
	}
	if s.PublishedStatus == "" {
		s.PublishedStatus = "Published"
	}
	if len(s.RemoteAssetHosts) == 0 {
		s.RemoteAssetHosts = []string{"secure.notion-static.com", "prod-files-secure"}
	}
	if s.Enrichment.Model == "" {
		s.Enrichment.Model = "claude-sonnet-4-20250514"
	}
	if s.Enrichment.MaxTokens == 0 {
		s.Enrichment.MaxTokens = 1000
	}
	if s.Enrichment.ContentMaxChars < minContentMaxChars {
		if s.Enrichment.ContentMaxChars != 0 {
			log.Printf("Warning: enrichment.content_max_chars is %d, defaulting to %d (minimum)", s.Enrichment.ContentMaxChars, minContentMaxChars)
		}
		s.Enrichment.ContentMaxChars = 2000
	}
}

// ensureConfigExists creates the config directory and writes settings.yaml if needed
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsPath := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}

	return nil
}
