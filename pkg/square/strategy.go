// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/stacklok/squareauth/pkg/logger"
	"github.com/stacklok/squareauth/pkg/networking"
	"github.com/stacklok/squareauth/pkg/payload"
)

// Name is the default strategy name.
const Name = "square"

// Strategy holds the immutable configuration and collaborators shared by all
// flows for one Square application. It is safe for concurrent use; the flows
// it creates are not.
type Strategy struct {
	name       string
	config     *Config
	httpClient networking.HTTPClient
	client     *Client
	authorize  AuthorizeURLBuilder
	request    *RequestPhase
	metrics    *Metrics
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithName registers the strategy under a name other than "square".
func WithName(name string) Option {
	return func(s *Strategy) {
		s.name = name
	}
}

// WithHTTPClient sets the HTTP client used for the token exchange and every
// request made with the resulting access token.
func WithHTTPClient(client networking.HTTPClient) Option {
	return func(s *Strategy) {
		s.httpClient = client
	}
}

// WithAuthorizeURLBuilder replaces the x/oauth2 based authorize URL builder.
func WithAuthorizeURLBuilder(builder AuthorizeURLBuilder) Option {
	return func(s *Strategy) {
		s.authorize = builder
	}
}

// WithMetrics records round-trip metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Strategy) {
		s.metrics = m
	}
}

// NewStrategy validates config, fills in Square's default endpoints and
// returns a strategy ready to create flows.
func NewStrategy(config *Config, opts ...Option) (*Strategy, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	resolved, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Strategy{name: Name, config: resolved}
	for _, opt := range opts {
		opt(s)
	}

	s.client, err = NewClient(resolved.ClientOptions.Site, s.httpClient)
	if err != nil {
		return nil, fmt.Errorf("invalid site: %w", err)
	}

	if s.authorize == nil {
		oauthConfig, err := resolved.OAuth2Config()
		if err != nil {
			return nil, fmt.Errorf("invalid endpoints: %w", err)
		}
		s.authorize = NewOAuth2AuthorizeURLBuilder(oauthConfig)
	}
	s.request = NewRequestPhase(s.authorize, resolved.AuthorizeParams, resolved.PassthroughParams)

	logger.Infow("square strategy created",
		"name", s.name,
		"site", resolved.ClientOptions.Site,
		"connect_site", resolved.ClientOptions.ConnectSite,
		"auth_scheme", resolved.ClientOptions.AuthScheme,
	)

	return s, nil
}

// Name returns the registration name.
func (s *Strategy) Name() string {
	return s.name
}

// Config returns a copy of the resolved configuration.
func (s *Strategy) Config() Config {
	return *s.config
}

// NewFlow starts a new authentication attempt.
func (s *Strategy) NewFlow() *Flow {
	return newFlow(s)
}

// AuthorizeURL returns the redirect target for an inbound request.
func (s *Strategy) AuthorizeURL(query url.Values, state string) string {
	return s.request.AuthorizeURL(query, state)
}

// Exchange trades an authorization code for an access token bound to the connect host.
func (s *Strategy) Exchange(ctx context.Context, code string) (token *AccessToken, err error) {
	start := time.Now()
	defer func() { s.metrics.observe(operationTokenExchange, start, err) }()

	req, err := BuildTokenRequest(code, s.config.RedirectURI, s.config)
	if err != nil {
		return nil, err
	}

	logger.Infow("exchanging authorization code for tokens",
		"token_endpoint", req.URL,
		"auth_scheme", s.config.ClientOptions.AuthScheme,
	)

	return ExchangeToken(ctx, s.client, s.config.ClientOptions.ConnectSite, req, s.config.ExtraTokenParams)
}

// FetchProfile retrieves the raw merchant profile from the connect host.
func (s *Strategy) FetchProfile(ctx context.Context, token *AccessToken) (raw *payload.Map, err error) {
	start := time.Now()
	defer func() { s.metrics.observe(operationProfileFetch, start, err) }()

	return FetchProfile(ctx, token, s.config.ClientOptions.ProfilePath)
}
