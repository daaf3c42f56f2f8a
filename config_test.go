package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		bind:           "127.0.0.1",
		countdown:      5,
		players:        []string{"Player 1", "Player 2"},
		port:           8080,
		sessionTimeout: time.Hour,
		singing:        10,
		tick:           time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "cert without key",
			mutate:  func(c *Config) { c.tlsCert = "cert.pem" },
			wantErr: "--tls-cert and --tls-key",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.port = 70000 },
			wantErr: "invalid port",
		},
		{
			name:    "zero countdown",
			mutate:  func(c *Config) { c.countdown = 0 },
			wantErr: "invalid countdown",
		},
		{
			name:    "negative singing",
			mutate:  func(c *Config) { c.singing = -2 },
			wantErr: "invalid singing time",
		},
		{
			name:    "zero tick",
			mutate:  func(c *Config) { c.tick = 0 },
			wantErr: "invalid tick interval",
		},
		{
			name:    "no players",
			mutate:  func(c *Config) { c.players = nil },
			wantErr: "invalid number of players",
		},
		{
			name:    "too many players",
			mutate:  func(c *Config) { c.players = strings.Split("a,b,c,d,e,f,g,h,i", ",") },
			wantErr: "invalid number of players",
		},
		{
			name:    "blank player",
			mutate:  func(c *Config) { c.players = []string{"Alice", "  "} },
			wantErr: "must not be empty",
		},
		{
			name:    "duplicate player",
			mutate:  func(c *Config) { c.players = []string{"Alice", " Alice"} },
			wantErr: "duplicate player name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewCmdDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	if cfg.countdown != 5 || cfg.singing != 10 {
		t.Fatalf("unexpected timer defaults %d/%d", cfg.countdown, cfg.singing)
	}
	if cfg.tick != time.Second {
		t.Fatalf("unexpected tick default %s", cfg.tick)
	}
	if !slices.Equal(cfg.players, []string{"Player 1", "Player 2"}) {
		t.Fatalf("unexpected default players %v", cfg.players)
	}
	if cfg.port != 8080 {
		t.Fatalf("unexpected default port %d", cfg.port)
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("GRABTHEMIC_PLAYERS", "Alice,Bob,Carol")
	t.Setenv("GRABTHEMIC_COUNTDOWN", "3")
	t.Setenv("GRABTHEMIC_TICK", "250ms")
	t.Setenv("GRABTHEMIC_SESSION_TIMEOUT", "5m")

	cfg := &Config{}
	cmd := newCmd(cfg)

	if err := cmd.ParseFlags([]string{"--singing", "7"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	if !slices.Equal(cfg.players, []string{"Alice", "Bob", "Carol"}) {
		t.Fatalf("unexpected players %v", cfg.players)
	}
	if cfg.countdown != 3 {
		t.Fatalf("expected countdown 3 from env, got %d", cfg.countdown)
	}
	if cfg.singing != 7 {
		t.Fatalf("expected singing 7 from flag, got %d", cfg.singing)
	}
	if cfg.tick != 250*time.Millisecond {
		t.Fatalf("expected 250ms tick, got %s", cfg.tick)
	}
	if cfg.sessionTimeout != 5*time.Minute {
		t.Fatalf("expected 5m session timeout, got %s", cfg.sessionTimeout)
	}
}

func TestNewCmdFlagBeatsEnvironment(t *testing.T) {
	t.Setenv("GRABTHEMIC_COUNTDOWN", "3")

	cfg := &Config{}
	cmd := newCmd(cfg)

	if err := cmd.ParseFlags([]string{"--countdown", "9"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.countdown != 9 {
		t.Fatalf("expected flag value 9, got %d", cfg.countdown)
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "GRABTHEMIC_TEST_DOTENV"

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("GRABTHEMIC_ENV_FILE", path)
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	if err := loadEnvFile(); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Fatalf("expected value from env file, got %q", got)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	t.Setenv("GRABTHEMIC_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	if err := loadEnvFile(); err != nil {
		t.Fatalf("missing env file should be ignored, got %v", err)
	}
}
