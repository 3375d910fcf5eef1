package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// defaultTimeout is used when neither the flag nor the config file sets one.
const defaultTimeout = 5 * time.Second

// fileConfig maps the keys of a pductl config.toml file.
type fileConfig struct {
	Host           string `toml:"host"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	LogDir         string `toml:"log_dir"`
}

// settings is the effective connection configuration after resolving flags,
// config file, and environment.
type settings struct {
	Host     string
	Username string
	Password string
	Timeout  time.Duration
	LogDir   string
}

// resolveSettings merges the configuration sources. Precedence from lowest
// to highest: environment, config file, flags.
func resolveSettings() (settings, error) {
	s := settings{
		Host:     os.Getenv("PDU_HOST"),
		Username: os.Getenv("PDU_USER"),
		Password: os.Getenv("PDU_PASS"),
		Timeout:  defaultTimeout,
	}

	if flagConfig != "" {
		if err := applyFileConfig(&s, flagConfig); err != nil {
			return settings{}, err
		}
	}

	if flagHost != "" {
		s.Host = flagHost
	}
	if flagUser != "" {
		s.Username = flagUser
	}
	if flagPass != "" {
		s.Password = flagPass
	}
	if flagTimeout > 0 {
		s.Timeout = flagTimeout
	}
	if flagLogDir != "" {
		s.LogDir = flagLogDir
	}

	if s.Host == "" {
		return settings{}, fmt.Errorf("no device address: set --host, PDU_HOST, or host in the config file")
	}
	s.Host = ensurePort(strings.TrimSpace(s.Host))

	return s, nil
}

// applyFileConfig overlays the values defined in the TOML file at path onto
// s, leaving undefined keys untouched.
func applyFileConfig(s *settings, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if meta.IsDefined("host") {
		s.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("username") {
		s.Username = strings.TrimSpace(raw.Username)
	}
	if meta.IsDefined("password") {
		s.Password = raw.Password
	}
	if meta.IsDefined("timeout_seconds") {
		if raw.TimeoutSeconds <= 0 {
			return fmt.Errorf("load config %s: timeout_seconds must be positive, got %d", path, raw.TimeoutSeconds)
		}
		s.Timeout = time.Duration(raw.TimeoutSeconds) * time.Second
	}
	if meta.IsDefined("log_dir") {
		s.LogDir = strings.TrimSpace(raw.LogDir)
	}

	return nil
}
