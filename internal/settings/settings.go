// Package settings handles per-session backend settings persistence.
// Settings live in the session directory as settings.toml and are always
// written as a whole document, so the URL/interval pair never tears.
package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultBackendURL is the placeholder Anvil app address used until the
	// operator points the client at a real backend.
	DefaultBackendURL = "https://YOUR-APP-NAME.anvil.app/"

	// DefaultRefreshIntervalSeconds is the pending-queue poll cadence.
	DefaultRefreshIntervalSeconds = 30
)

// Settings holds the per-session configuration.
type Settings struct {
	BackendURL             string `toml:"backend_url"`
	RefreshIntervalSeconds int    `toml:"refresh_interval_seconds"`
	SMSGatewayURL          string `toml:"sms_gateway_url"`
}

// Default returns settings with all defaults applied.
func Default() Settings {
	return Settings{
		BackendURL:             DefaultBackendURL,
		RefreshIntervalSeconds: DefaultRefreshIntervalSeconds,
	}
}

// Load reads settings from the given path, falling back to defaults when the
// file is missing or a field is unset.
func Load(path string) (Settings, error) {
	s := Default()
	_, err := toml.DecodeFile(path, &s)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), err
	}
	if s.BackendURL == "" {
		s.BackendURL = DefaultBackendURL
	}
	if s.RefreshIntervalSeconds < 1 {
		s.RefreshIntervalSeconds = DefaultRefreshIntervalSeconds
	}
	return s, nil
}

// Save writes settings to the given path, creating parent dirs as needed.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(s)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ParseInterval converts operator input to a refresh interval in seconds.
// Non-numeric or non-positive input falls back to the default.
func ParseInterval(input string) int {
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 {
		return DefaultRefreshIntervalSeconds
	}
	return n
}
