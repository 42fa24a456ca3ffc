// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the Square strategy configuration from a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"github.com/stacklok/toolhive-core/env"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/squareauth/pkg/logger"
	"github.com/stacklok/squareauth/pkg/networking"
	"github.com/stacklok/squareauth/pkg/square"
)

// EnvPrefix prefixes the environment variables that override file settings,
// e.g. SQUARE_CLIENT_SECRET or SQUARE_HTTP_TIMEOUT.
const EnvPrefix = "SQUARE_"

const redacted = "REDACTED"

// defaultPathGenerator finds the config file in the XDG config directories.
var defaultPathGenerator = func() (string, error) {
	return xdg.SearchConfigFile("squareauth/config.yaml")
}

// overridableKeys are the scalar keys that can be set from the environment.
var overridableKeys = []string{
	"client_id",
	"client_secret",
	"redirect_uri",
	"scopes",
	"site",
	"connect_site",
	"authorize_url",
	"token_url",
	"token_method",
	"profile_path",
	"auth_scheme",
	"passthrough_params",
	"http.timeout",
	"http.ca_bundle",
	"http.allow_http",
}

// Config is the on-disk representation of a Square strategy.
type Config struct {
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	// ClientSecret may be left empty in the file and supplied through
	// ClientSecretEnv or SQUARE_CLIENT_SECRET instead.
	ClientSecret    string   `mapstructure:"client_secret" yaml:"client_secret,omitempty"`
	ClientSecretEnv string   `mapstructure:"client_secret_env" yaml:"client_secret_env,omitempty"`
	RedirectURI     string   `mapstructure:"redirect_uri" yaml:"redirect_uri"`
	Scopes          []string `mapstructure:"scopes" yaml:"scopes,omitempty"`

	Site         string `mapstructure:"site" yaml:"site,omitempty"`
	ConnectSite  string `mapstructure:"connect_site" yaml:"connect_site,omitempty"`
	AuthorizeURL string `mapstructure:"authorize_url" yaml:"authorize_url,omitempty"`
	TokenURL     string `mapstructure:"token_url" yaml:"token_url,omitempty"`
	TokenMethod  string `mapstructure:"token_method" yaml:"token_method,omitempty"`
	ProfilePath  string `mapstructure:"profile_path" yaml:"profile_path,omitempty"`
	AuthScheme   string `mapstructure:"auth_scheme" yaml:"auth_scheme,omitempty"`

	AuthorizeParams   map[string]string `mapstructure:"authorize_params" yaml:"authorize_params,omitempty"`
	PassthroughParams []string          `mapstructure:"passthrough_params" yaml:"passthrough_params,omitempty"`
	TokenParams       map[string]any    `mapstructure:"token_params" yaml:"token_params,omitempty"`
	ExtraTokenParams  map[string]any    `mapstructure:"extra_token_params" yaml:"extra_token_params,omitempty"`

	HTTP HTTPConfig `mapstructure:"http" yaml:"http"`
}

// HTTPConfig configures the HTTP client shared by the token exchange and the
// profile fetch.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CABundle  string        `mapstructure:"ca_bundle" yaml:"ca_bundle,omitempty"`
	AllowHTTP bool          `mapstructure:"allow_http" yaml:"allow_http,omitempty"`
}

// Loader reads a Config from a YAML file, applying environment overrides.
type Loader struct {
	path      string
	envReader env.Reader
}

// NewLoader creates a loader for path. An empty path searches the XDG config
// directories for squareauth/config.yaml.
func NewLoader(path string) *Loader {
	return NewLoaderWithEnv(path, &env.OSReader{})
}

// NewLoaderWithEnv creates a loader that reads the environment through envReader.
func NewLoaderWithEnv(path string, envReader env.Reader) *Loader {
	return &Loader{path: path, envReader: envReader}
}

// Load reads and decodes the configuration.
func (l *Loader) Load() (*Config, error) {
	path := l.path
	if path == "" {
		found, err := defaultPathGenerator()
		if err != nil {
			return nil, fmt.Errorf("no configuration file specified and none found: %w", err)
		}
		path = found
	}

	logger.Debugw("loading configuration", "path", path)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("http.timeout", networking.HttpTimeout)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	for _, key := range overridableKeys {
		name := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if value := l.envReader.Getenv(name); value != "" {
			logger.Debugw("configuration overridden from environment", "key", key, "env", name)
			v.Set(key, value)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	if cfg.ClientSecret == "" && cfg.ClientSecretEnv != "" {
		cfg.ClientSecret = l.envReader.Getenv(cfg.ClientSecretEnv)
		if cfg.ClientSecret == "" {
			return nil, fmt.Errorf("environment variable %s referenced by client_secret_env is not set", cfg.ClientSecretEnv)
		}
	}

	return &cfg, nil
}

// SquareConfig converts c into the strategy configuration.
func (c *Config) SquareConfig() *square.Config {
	return &square.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
		Scopes:       c.Scopes,
		ClientOptions: square.ClientOptions{
			Site:         c.Site,
			ConnectSite:  c.ConnectSite,
			AuthorizeURL: c.AuthorizeURL,
			TokenURL:     c.TokenURL,
			TokenMethod:  c.TokenMethod,
			ProfilePath:  c.ProfilePath,
			AuthScheme:   square.AuthScheme(c.AuthScheme),
		},
		AuthorizeParams:   c.AuthorizeParams,
		PassthroughParams: c.PassthroughParams,
		TokenParams:       c.TokenParams,
		ExtraTokenParams:  c.ExtraTokenParams,
	}
}

// HTTPClient builds the HTTP client described by c.HTTP.
func (c *Config) HTTPClient() (*http.Client, error) {
	return networking.NewHttpClientBuilder().
		WithTimeout(c.HTTP.Timeout).
		WithCABundle(c.HTTP.CABundle).
		WithInsecureHTTP(c.HTTP.AllowHTTP).
		Build()
}

// NewStrategy builds the strategy described by c with its HTTP client.
func (c *Config) NewStrategy(opts ...square.Option) (*square.Strategy, error) {
	if c == nil {
		return nil, errors.New("config is required")
	}
	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP client: %w", err)
	}
	return square.NewStrategy(c.SquareConfig(), append([]square.Option{square.WithHTTPClient(client)}, opts...)...)
}

// RedactedYAML renders c as YAML with the client secret masked.
func (c *Config) RedactedYAML() ([]byte, error) {
	out := *c
	if out.ClientSecret != "" {
		out.ClientSecret = redacted
	}
	return yaml.Marshal(&out)
}
