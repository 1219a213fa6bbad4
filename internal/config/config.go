// Package config loads forged's configuration the way schererja-smidr's
// CLI layer does: spf13/viper for file+env binding, feeding a typed
// struct the rest of the program consumes. It is the one place that
// knows about config file locations and environment variable names
// (other than spec.md's own PEASANT_BUILD_DIR, which internal/workspace
// reads directly, since its precedence rule is part of the engine's
// specified behavior, not ambient configuration).
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"golang.org/x/xerrors"
)

// Config is forged's daemon configuration.
type Config struct {
	// ListenAddr is the HTTP surface's bind address.
	ListenAddr string `mapstructure:"listen_addr"`

	// RedisAddr, RedisPassword, RedisDB locate the durable record store.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// GithubToken authenticates both the source-hosting client and git
	// clone operations.
	GithubToken string `mapstructure:"github_token"`

	// SelfOwner is the account name the build-URL validator treats as
	// "same owner, always accepted" (spec.md §4.6 C11).
	SelfOwner string `mapstructure:"self_owner"`

	// MaxConcurrency bounds the operation queue (spec.md C6). Defaults
	// to 2, the reference value spec.md §4.5 names.
	MaxConcurrency int `mapstructure:"max_concurrency"`

	// LogDir is where per-build stdout/stderr logs are persisted for the
	// HTTP /logs/ surface.
	LogDir string `mapstructure:"log_dir"`
}

func defaults() Config {
	return Config{
		ListenAddr:     ":3718",
		RedisAddr:      "localhost:6379",
		RedisDB:        0,
		MaxConcurrency: 2,
		LogDir:         filepath.Join(os.TempDir(), "forge-logs"),
	}
}

// Load reads configuration from, in ascending priority: built-in
// defaults, a config file (explicit path, or $FORGE_CONFIG, or
// $HOME/.forge/config.yaml), then FORGE_-prefixed environment
// variables — the same file-then-env layering schererja-smidr's cobra
// commands set up via viper.
func Load(explicitPath string) (Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FORGE")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("redis_addr", cfg.RedisAddr)
	v.SetDefault("redis_db", cfg.RedisDB)
	v.SetDefault("redis_password", cfg.RedisPassword)
	v.SetDefault("github_token", cfg.GithubToken)
	v.SetDefault("self_owner", cfg.SelfOwner)
	v.SetDefault("max_concurrency", cfg.MaxConcurrency)
	v.SetDefault("log_dir", cfg.LogDir)

	path := explicitPath
	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return Config{}, xerrors.Errorf("reading config %s: %w", path, err)
			}
			// Config file simply doesn't exist: defaults + env only.
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, xerrors.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// defaultConfigPath mirrors internal/env's findDistriRoot precedence
// (explicit env var, else a dotfile under $HOME), generalized from "the
// distri checkout root" to "the forge config file".
func defaultConfigPath() string {
	if env := os.Getenv("FORGE_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".forge", "config.yaml")
}
