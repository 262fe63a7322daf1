// Package config loads client settings from defaults, a .env file, a YAML file and the
// environment, in increasing precedence. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "SPRINTDESK"

type Config struct {
	APIURL           string        `mapstructure:"api_url"`
	SSEPath          string        `mapstructure:"sse_path"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	LogFile          string        `mapstructure:"log_file"`
	StatePath        string        `mapstructure:"state_path"`
	PrefetchProjects []string      `mapstructure:"prefetch_projects"`
}

// LoadOptions locate the optional files. Empty fields use the defaults.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file; it must exist when set.
	ConfigFile string
	// DotEnv is the .env file to load if present (default ".env" in the working directory).
	DotEnv string
	// Home overrides the user home directory.
	Home string
}

// Dir returns the per-user directory holding config and state.
func Dir(home string) string {
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".sprintdesk")
}

func Load(opts LoadOptions) (Config, error) {
	dotEnv := opts.DotEnv
	if dotEnv == "" {
		dotEnv = ".env"
	}
	// .env values never override variables already set.
	if _, err := os.Stat(dotEnv); err == nil {
		if err := godotenv.Load(dotEnv); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", dotEnv, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: stat %s: %w", dotEnv, err)
	}

	dir := Dir(opts.Home)
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("api_url", "http://localhost:8080/api")
	v.SetDefault("sse_path", "/sse/subscribe")
	v.SetDefault("http_timeout", 15*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", filepath.Join(dir, "sprintdesk.log"))
	v.SetDefault("state_path", filepath.Join(dir, "state.sqlite"))
	v.SetDefault("prefetch_projects", []string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path := opts.ConfigFile
	if path == "" {
		def := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(def); err == nil {
			path = def
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.PrefetchProjects = splitList(cfg.PrefetchProjects)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api_url must be an http(s) URL, got %q", c.APIURL)
	}
	if c.HTTPTimeout < 0 {
		return errors.New("config: http_timeout must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format must be text or json, got %q", c.LogFormat)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// StreamURL is the push subscribe endpoint.
func (c Config) StreamURL() string {
	p := c.SSEPath
	if p == "" {
		p = "/sse/subscribe"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(c.APIURL, "/") + p
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
