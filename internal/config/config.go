// Package config loads altid client settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"

	"aqwari.net/net/altid"
)

// DefaultPath is where Load looks for a config file when none is
// given.
const DefaultPath = "~/.config/altid/client.toml"

// Service is a named 9P endpoint. User and Aname override the
// top-level values for this service only.
type Service struct {
	Name  string `toml:"name"`
	Addr  string `toml:"addr"`
	User  string `toml:"user"`
	Aname string `toml:"aname"`
}

// Config holds client settings.
type Config struct {
	User     string
	Aname    string
	Msize    uint32
	Timeout  time.Duration
	LogLevel string
	Services []Service
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		User:     "guest",
		Aname:    "/",
		Msize:    8192,
		LogLevel: "info",
	}
}

type fileConfig struct {
	User     string    `toml:"user"`
	Aname    string    `toml:"aname"`
	Msize    uint32    `toml:"msize"`
	Timeout  string    `toml:"timeout"`
	LogLevel string    `toml:"log_level"`
	Services []Service `toml:"service"`
}

// Load reads the config file at path and overlays the keys it
// defines onto Default(). A leading ~ in path is expanded. A missing
// file is not an error when path is DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	full, err := homedir.Expand(path)
	if err != nil {
		return cfg, fmt.Errorf("config path %q: %w", path, err)
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(full, &raw)
	if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("user") {
		cfg.User = raw.User
	}
	if meta.IsDefined("aname") {
		cfg.Aname = raw.Aname
	}
	if meta.IsDefined("msize") {
		cfg.Msize = raw.Msize
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return cfg, fmt.Errorf("load config: timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = raw.LogLevel
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	for i, svc := range raw.Services {
		if svc.Name == "" || svc.Addr == "" {
			return cfg, fmt.Errorf("load config: service %d needs a name and an addr", i)
		}
	}
	cfg.Services = raw.Services
	return cfg, nil
}

// Service returns the service with the given name.
func (c Config) Service(name string) (Service, bool) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return Service{}, false
}

// Client returns an altid.Client using the settings in c. The
// caller fills in the logging and metrics fields.
func (c Config) Client() *altid.Client {
	return &altid.Client{
		MaxSize: c.Msize,
		Timeout: c.Timeout,
		User:    c.User,
		Aname:   c.Aname,
	}
}

// ServiceClient is like Client, with the service's overrides
// applied.
func (c Config) ServiceClient(svc Service) *altid.Client {
	client := c.Client()
	if svc.User != "" {
		client.User = svc.User
	}
	if svc.Aname != "" {
		client.Aname = svc.Aname
	}
	return client
}
