// Package config merges defaults, an optional YAML file, GTLEAP_*
// environment variables and command line flags.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/karasz/gtleap/leapsecs"
	"github.com/karasz/gtleap/leapsecs/leapfile"
	"github.com/karasz/gtleap/logger"
	"github.com/karasz/gtleap/taiclockd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var (
	// EnvPrefix defines name prefix for environment variables, for example:
	//    GTLEAP_LEAPFILE=/usr/share/zoneinfo/leap-seconds.list
	EnvPrefix = "GTLEAP_"
	// ConfigEnv names the variable holding the config file path
	ConfigEnv = "GTLEAP_CONFIG"
)

// Config is the configuration shared by the applets
type Config struct {
	// LeapFile is a leap-seconds.list to use instead of the builtin table
	LeapFile string           `env:"LEAPFILE" yaml:"leapFile"`
	Log      logger.Config    `envPrefix:"LOG_" yaml:"log"`
	Server   taiclockd.Config `envPrefix:"SERVER_" yaml:"server"`
}

// Defaults returns the builtin configuration
func Defaults() Config {
	return Config{
		Log:    logger.Defaults(),
		Server: taiclockd.Defaults(),
	}
}

// Load merges defaults, the YAML file at path and the environment. An
// empty path falls back to $GTLEAP_CONFIG; no file at all is fine.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RegisterFlags adds the flags understood by FromFlags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML config file, $"+ConfigEnv+" by default")
	fs.String("leapfile", "", "leap-seconds.list to use instead of the builtin table")
	fs.Int("log-level", 1, "0 error, 1 warn, 2 info, 3 debug, 4 trace")
}

// FromFlags loads the configuration named by the parsed flags in fs and
// applies the flags that were set on top of it.
func FromFlags(fs *pflag.FlagSet) (*Config, error) {
	path, _ := fs.GetString("config")
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if fs.Changed("leapfile") {
		cfg.LeapFile, _ = fs.GetString("leapfile")
	}
	if fs.Changed("log-level") {
		cfg.Log.Level, _ = fs.GetInt("log-level")
	}
	return cfg, nil
}

// Table returns the leap second table the configuration asks for. Any
// problem with a configured file is an error; there is no silent fallback
// to the builtin table.
func (cfg *Config) Table() (*leapsecs.Table, error) {
	if cfg.LeapFile == "" {
		return leapsecs.Builtin(), nil
	}
	tbl, f, err := leapfile.Load(cfg.LeapFile)
	if err != nil {
		return nil, err
	}
	log.Info().Str("leapFile", cfg.LeapFile).
		Time("updated", f.Updated).
		Time("expires", f.Expires).
		Msg("using leap second table from file")
	return tbl, nil
}
