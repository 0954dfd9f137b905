package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var userConfigDir = os.UserConfigDir

// Config is the persisted application configuration.
type Config struct {
	// Plugin holds the cast plugin options as loosely typed JSON values.
	Plugin map[string]any `json:"plugin"`
	// InactivityTimeout of the local player, as a Go duration string.
	InactivityTimeout string `json:"inactivityTimeout"`
	// Receiver, when set, is rejoined on start and preselected.
	Receiver string `json:"receiver,omitempty"`
}

// Default returns the configuration written on first run.
func Default() *Config {
	return &Config{
		Plugin: map[string]any{
			"appId":           "CC1AD845",
			"pollInterval":    1000,
			"maxPollAttempts": 5,
			"autoJoinPolicy":  "tab_and_origin_scoped",
		},
		InactivityTimeout: "2s",
	}
}

func GetAppConfig() (*Config, error) {
	path, err := appPath()
	if err != nil {
		return nil, fmt.Errorf("GetAppConfig: failed to access config path due to error %w:", err)
	}

	cfgfile, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			err := os.MkdirAll(filepath.Dir(path), 0700)
			if err != nil {
				return nil, fmt.Errorf("GetAppConfig: failed to create default path due to error %w:", err)
			}

			conf := Default()

			b, err := json.MarshalIndent(conf, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("GetAppConfig: failed to convert and store default config %w:", err)
			}

			if err := os.WriteFile(path, b, 0644); err != nil {
				return nil, fmt.Errorf("GetAppConfig: failed to create default config due to error %w:", err)
			}

			return conf, nil
		}

		return nil, fmt.Errorf("GetAppConfig: failed to open config due to error %w:", err)
	}
	defer cfgfile.Close()

	conf := &Config{}
	if err := json.NewDecoder(cfgfile).Decode(conf); err != nil {
		return nil, fmt.Errorf("GetAppConfig: failed to decode config due to error %w:", err)
	}

	if conf.Plugin == nil {
		conf.Plugin = map[string]any{}
	}

	return conf, nil
}

func appPath() (string, error) {
	oscfg, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("appPath: failed to get config file due to error %w:", err)
	}

	return filepath.Join(oscfg, "castbutton", "settings.json"), nil
}

// Timeout parses InactivityTimeout. An empty value means def.
func (s *Config) Timeout(def time.Duration) (time.Duration, error) {
	if s.InactivityTimeout == "" {
		return def, nil
	}

	d, err := time.ParseDuration(s.InactivityTimeout)
	if err != nil {
		return 0, fmt.Errorf("Timeout: bad inactivityTimeout %q: %w", s.InactivityTimeout, err)
	}
	return d, nil
}

func (s *Config) SaveAppConfig() error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("SaveAppConfig: failed to marshal json due to error %w:", err)
	}

	path, err := appPath()
	if err != nil {
		return fmt.Errorf("SaveAppConfig: failed to access config path due to error %w:", err)
	}

	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("SaveAppConfig: failed save config due to error %w:", err)
	}

	return nil
}
