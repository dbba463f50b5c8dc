package config

import (
	"flag"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func newFlagSet() *flag.FlagSet {
	return flag.NewFlagSet("test", flag.ContinueOnError)
}

func TestParseArgsDefaults(t *testing.T) {
	t.Setenv("VAULT_KEY", "k")
	o, err := ParseArgs(newFlagSet(), []string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if o.Port != "localhost:8080" {
		t.Errorf("Port = %q; want localhost:8080", o.Port)
	}
	if o.RequestTimeout != 0 {
		t.Errorf("RequestTimeout = %v; want 0", o.RequestTimeout)
	}
	if o.HistoryRetention != 0 {
		t.Errorf("HistoryRetention = %v; want 0", o.HistoryRetention)
	}
	if o.SettledRetention != 10*time.Minute {
		t.Errorf("SettledRetention = %v; want 10m", o.SettledRetention)
	}
	if !slices.Equal(o.AllowedOrigins, DefaultAllowedOrigins()) {
		t.Errorf("AllowedOrigins = %v", o.AllowedOrigins)
	}
}

func TestParseArgsConfigFileDurations(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	body := `{"request_timeout":"2m","settled_retention":"30s","history_retention":"720h","allowed_origins":["https://dapp.example"]}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VAULT_KEY", "k")

	o, err := ParseArgs(newFlagSet(), []string{"-c", cfgPath, "-a", ":8000"})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if o.RequestTimeout != 2*time.Minute {
		t.Errorf("RequestTimeout = %v; want 2m", o.RequestTimeout)
	}
	if o.SettledRetention != 30*time.Second {
		t.Errorf("SettledRetention = %v; want 30s", o.SettledRetention)
	}
	if o.HistoryRetention != 720*time.Hour {
		t.Errorf("HistoryRetention = %v; want 720h", o.HistoryRetention)
	}
	if o.Port != ":8000" {
		t.Errorf("Port = %q; flag value should survive a file without address", o.Port)
	}
	if !slices.Equal(o.AllowedOrigins, []string{"https://dapp.example"}) {
		t.Errorf("AllowedOrigins = %v", o.AllowedOrigins)
	}
}

func TestParseArgsConfigFileBadDuration(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(cfgPath, []byte(`{"request_timeout":90}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VAULT_KEY", "k")
	_, err := ParseArgs(newFlagSet(), []string{"-c", cfgPath})
	if err == nil || !strings.Contains(err.Error(), "duration must be a string") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestParseArgsAllowedOriginsFlag(t *testing.T) {
	t.Setenv("VAULT_KEY", "k")
	o, err := ParseArgs(newFlagSet(), []string{"-c", "", "-allowed-origins", "https://a.example, http://localhost:3000,"})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if !slices.Equal(o.AllowedOrigins, []string{"https://a.example", "http://localhost:3000"}) {
		t.Errorf("AllowedOrigins = %v", o.AllowedOrigins)
	}
}

func TestParseArgsPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfgPath, []byte(`{"address":":9000","registry_url":"http://registry.local","log_level":"debug"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VAULT_KEY", "k")
	t.Setenv("SERVER_ADDRESS", ":9100")
	t.Setenv("REQUEST_TIMEOUT", "90s")

	o, err := ParseArgs(newFlagSet(), []string{"-c", cfgPath, "-a", ":8000", "-redis", "localhost:6379"})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if o.Port != ":9100" {
		t.Errorf("Port = %q; want env value :9100", o.Port)
	}
	if o.RegistryURL != "http://registry.local" {
		t.Errorf("RegistryURL = %q; want config value", o.RegistryURL)
	}
	if o.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q; want flag value", o.RedisAddr)
	}
	if o.RequestTimeout != 90*time.Second {
		t.Errorf("RequestTimeout = %v; want 90s", o.RequestTimeout)
	}
	if o.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want debug", o.LogLevel)
	}
}

func TestParseArgsRequiresVaultKey(t *testing.T) {
	t.Setenv("VAULT_KEY", "")
	_, err := ParseArgs(newFlagSet(), []string{"-c", ""})
	if err == nil || !strings.Contains(err.Error(), "vault key") {
		t.Fatalf("expected vault key error, got %v", err)
	}
}

func TestParseArgsBadConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(cfgPath, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VAULT_KEY", "k")
	_, err := ParseArgs(newFlagSet(), []string{"-c", cfgPath})
	if err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestParseArgsBadEnv(t *testing.T) {
	t.Setenv("VAULT_KEY", "k")
	t.Setenv("REQUEST_TIMEOUT", "soon")
	_, err := ParseArgs(newFlagSet(), []string{"-c", ""})
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected env error, got %v", err)
	}
}
