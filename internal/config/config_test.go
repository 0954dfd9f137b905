package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func useConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig := userConfigDir
	userConfigDir = func() (string, error) { return dir, nil }
	t.Cleanup(func() { userConfigDir = orig })
	return dir
}

func TestGetAppConfigCreatesDefault(t *testing.T) {
	dir := useConfigDir(t)

	conf, err := GetAppConfig()
	if err != nil {
		t.Fatalf("GetAppConfig() err = %v", err)
	}
	if conf.Plugin["appId"] != "CC1AD845" {
		t.Fatalf("Plugin[appId] = %v, want CC1AD845", conf.Plugin["appId"])
	}

	if _, err := os.Stat(filepath.Join(dir, "castbutton", "settings.json")); err != nil {
		t.Fatalf("settings.json not written: %v", err)
	}

	// JSON numbers come back as float64
	again, err := GetAppConfig()
	if err != nil {
		t.Fatalf("GetAppConfig() second err = %v", err)
	}
	if again.Plugin["pollInterval"] != 1000.0 {
		t.Fatalf("Plugin[pollInterval] = %#v, want 1000.0", again.Plugin["pollInterval"])
	}
}

func TestSaveAppConfigRoundTrip(t *testing.T) {
	useConfigDir(t)

	conf, err := GetAppConfig()
	if err != nil {
		t.Fatalf("GetAppConfig() err = %v", err)
	}
	conf.Receiver = "Living Room"
	conf.InactivityTimeout = "5s"
	if err := conf.SaveAppConfig(); err != nil {
		t.Fatalf("SaveAppConfig() err = %v", err)
	}

	got, err := GetAppConfig()
	if err != nil {
		t.Fatalf("GetAppConfig() err = %v", err)
	}
	if got.Receiver != "Living Room" {
		t.Fatalf("Receiver = %q, want Living Room", got.Receiver)
	}
	d, err := got.Timeout(time.Second)
	if err != nil || d != 5*time.Second {
		t.Fatalf("Timeout() = %v, %v, want 5s", d, err)
	}
}

func TestTimeout(t *testing.T) {
	c := &Config{}
	if d, err := c.Timeout(2 * time.Second); err != nil || d != 2*time.Second {
		t.Fatalf("Timeout() empty = %v, %v, want default", d, err)
	}

	c.InactivityTimeout = "soon"
	if _, err := c.Timeout(time.Second); err == nil {
		t.Fatalf("Timeout() err = nil for bad duration")
	}
}

func TestGetAppConfigBadJSON(t *testing.T) {
	dir := useConfigDir(t)
	if err := os.MkdirAll(filepath.Join(dir, "castbutton"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "castbutton", "settings.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := GetAppConfig(); err == nil {
		t.Fatalf("GetAppConfig() err = nil for broken json")
	}
}
