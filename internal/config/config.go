// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config loads the YAML-backed server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sage-x-project/corehub/internal/logger"
)

// Duration wraps time.Duration so it can be written in config files as
// a Go duration string ("10s", "1m30s") instead of raw nanoseconds.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or a plain integer
// count of nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string or integer: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the top-level server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig covers the transport and worker tunables.
type ServerConfig struct {
	ListenAddr      string   `yaml:"listenAddr"`
	KeypairPath     string   `yaml:"keypairPath"`
	WorkerIdleProbe Duration `yaml:"workerIdleProbe"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
}

// LoggingConfig covers the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig covers the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			KeypairPath:     ".uuid_keypair",
			WorkerIdleProbe: Duration(10 * time.Second),
			ReadTimeout:     Duration(60 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
		},
		Logging: LoggingConfig{Level: "INFO"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
	}
}

// Load reads and parses the YAML configuration at path. Fields absent
// from the file keep Default()'s values; a field the file sets
// explicitly, even to its zero value, overrides the default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, logger.NewCoreError(logger.ErrCodeConfigurationError, "read config file", err).
			WithDetails("path", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, logger.NewCoreError(logger.ErrCodeConfigurationError, "parse config file", err).
			WithDetails("path", path)
	}
	return cfg, nil
}
