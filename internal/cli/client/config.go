package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	envAPIToken = "MEDRAG_API_TOKEN"
	envAPIURL   = "MEDRAG_API_URL"
	// envLegacyAPIURL is the unprefixed variable older deployments export.
	envLegacyAPIURL = "API_URL"

	defaultAPIURL = "http://localhost:8080"
)

// SavedConfig is what `medrag configure` persists between runs.
type SavedConfig struct {
	APIToken string `json:"api_token,omitempty"`
	APIURL   string `json:"api_url,omitempty"`
}

// configPath is swapped in tests.
var configPath = func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, "medrag", "config.json"), nil
}

// ConfigPath returns where the saved configuration lives.
func ConfigPath() (string, error) {
	return configPath()
}

// LoadSavedConfig returns an empty config when nothing has been saved.
func LoadSavedConfig() (*SavedConfig, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &SavedConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var saved SavedConfig
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &saved, nil
}

// Save writes the config owner-readable only, replacing any previous file in
// one rename so a crash never leaves a truncated token file.
func (c *SavedConfig) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.json")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// ClearSavedConfig removes the saved config; a missing file is not an error.
func ClearSavedConfig() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// NormalizeBaseURL trims trailing slashes and a trailing /query so that a URL
// copied from a curl example still points at the server root.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	u = strings.TrimSuffix(u, "/query")
	return strings.TrimRight(u, "/")
}

// ConfigSource represents where a setting came from
type ConfigSource string

const (
	SourceFlag    ConfigSource = "flag"
	SourceEnv     ConfigSource = "env"
	SourceSaved   ConfigSource = "saved"
	SourceDefault ConfigSource = "default"
)

// Endpoint is the resolved server location and optional bearer token.
type Endpoint struct {
	URL       string
	Token     string
	URLSource ConfigSource
}

// ResolveEndpoint applies the cascade flag -> env -> saved config -> default
// to the URL and token independently.
func ResolveEndpoint(flagURL, flagToken string) (*Endpoint, error) {
	ep := &Endpoint{}

	switch {
	case flagURL != "":
		ep.URL, ep.URLSource = flagURL, SourceFlag
	case os.Getenv(envAPIURL) != "":
		ep.URL, ep.URLSource = os.Getenv(envAPIURL), SourceEnv
	case os.Getenv(envLegacyAPIURL) != "":
		ep.URL, ep.URLSource = os.Getenv(envLegacyAPIURL), SourceEnv
	}

	ep.Token = flagToken
	if ep.Token == "" {
		ep.Token = os.Getenv(envAPIToken)
	}

	if ep.URL == "" || ep.Token == "" {
		saved, err := LoadSavedConfig()
		if err != nil {
			return nil, err
		}
		if ep.URL == "" && saved.APIURL != "" {
			ep.URL, ep.URLSource = saved.APIURL, SourceSaved
		}
		if ep.Token == "" {
			ep.Token = saved.APIToken
		}
	}

	if ep.URL == "" {
		ep.URL, ep.URLSource = defaultAPIURL, SourceDefault
	}
	ep.URL = NormalizeBaseURL(ep.URL)

	return ep, nil
}
