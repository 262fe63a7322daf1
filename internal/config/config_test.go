package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(LoadOptions{Home: home, DotEnv: filepath.Join(home, "missing.env")})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080/api" || cfg.HTTPTimeout != 15*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StatePath != filepath.Join(home, ".sprintdesk", "state.sqlite") {
		t.Fatalf("unexpected state path: %s", cfg.StatePath)
	}
	if got := cfg.StreamURL(); got != "http://localhost:8080/api/sse/subscribe" {
		t.Fatalf("unexpected stream url: %s", got)
	}
	if len(cfg.PrefetchProjects) != 0 {
		t.Fatalf("expected no prefetch projects; got %v", cfg.PrefetchProjects)
	}
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, ".sprintdesk")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	yaml := "api_url: http://file:9000/api\nhttp_timeout: 3s\nprefetch_projects:\n  - \"7\"\n  - \"8\"\nlog_level: debug\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	dotEnv := filepath.Join(home, ".env")
	if err := os.WriteFile(dotEnv, []byte("SPRINTDESK_LOG_FORMAT=json\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SPRINTDESK_LOG_FORMAT", "")
	os.Unsetenv("SPRINTDESK_LOG_FORMAT")
	t.Setenv("SPRINTDESK_API_URL", "https://env.example/api")

	cfg, err := Load(LoadOptions{Home: home, DotEnv: dotEnv})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "https://env.example/api" {
		t.Fatalf("expected env to override file; got %s", cfg.APIURL)
	}
	if cfg.HTTPTimeout != 3*time.Second || cfg.LogLevel != "debug" {
		t.Fatalf("expected file values; got %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.PrefetchProjects, []string{"7", "8"}) {
		t.Fatalf("unexpected prefetch list: %v", cfg.PrefetchProjects)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("expected .env value; got %q", cfg.LogFormat)
	}
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	home := t.TempDir()
	if _, err := Load(LoadOptions{Home: home, ConfigFile: filepath.Join(home, "nope.yaml")}); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := Config{APIURL: "http://h/api", LogFormat: "text", LogLevel: "info"}
	cases := []struct {
		name string
		mod  func(*Config)
		ok   bool
	}{
		{name: "valid", mod: func(*Config) {}, ok: true},
		{name: "bad url", mod: func(c *Config) { c.APIURL = "localhost:8080" }},
		{name: "bad format", mod: func(c *Config) { c.LogFormat = "xml" }},
		{name: "bad level", mod: func(c *Config) { c.LogLevel = "loud" }},
		{name: "negative timeout", mod: func(c *Config) { c.HTTPTimeout = -time.Second }},
	}
	for _, tc := range cases {
		c := base
		tc.mod(&c)
		if err := c.Validate(); (err == nil) != tc.ok {
			t.Fatalf("%s: expected ok=%v; got %v", tc.name, tc.ok, err)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	Config{LogFormat: "json", LogLevel: "warn"}.NewLogger(&buf).Info("hidden")
	Config{LogFormat: "json", LogLevel: "warn"}.NewLogger(&buf).Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}
