// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"dario.cat/mergo"
	"golang.org/x/oauth2"

	"github.com/stacklok/squareauth/pkg/logger"
	"github.com/stacklok/squareauth/pkg/networking"
)

// AuthScheme selects how client credentials are sent to the token endpoint.
type AuthScheme string

const (
	// AuthSchemeRequestBody sends client_id and client_secret as form fields.
	AuthSchemeRequestBody AuthScheme = "request_body"
	// AuthSchemeBasicAuth sends the credentials in an Authorization: Basic header.
	// Any scheme other than request_body behaves like this one.
	AuthSchemeBasicAuth AuthScheme = "basic_auth"
)

// AuthStyle maps the scheme onto the equivalent x/oauth2 style.
func (s AuthScheme) AuthStyle() oauth2.AuthStyle {
	if s == AuthSchemeRequestBody {
		return oauth2.AuthStyleInParams
	}
	return oauth2.AuthStyleInHeader
}

// PlanIDParam is the pass-through authorize parameter Square uses to preselect a plan.
const PlanIDParam = "plan_id"

// ClientOptions describes the provider endpoints. Paths are resolved against Site.
type ClientOptions struct {
	// Site is the authorization host, used for the authorize and token endpoints.
	Site string `json:"site,omitempty"`

	// ConnectSite is the API host used for every call made with the access token.
	ConnectSite string `json:"connect_site,omitempty"`

	// AuthorizeURL is the authorize endpoint path or absolute URL.
	AuthorizeURL string `json:"authorize_url,omitempty"`

	// TokenURL is the token endpoint path or absolute URL.
	TokenURL string `json:"token_url,omitempty"`

	// TokenMethod is the HTTP method used for the token request.
	TokenMethod string `json:"token_method,omitempty"`

	// ProfilePath is the path of the "me" endpoint on the connect host.
	ProfilePath string `json:"profile_path,omitempty"`

	// AuthScheme selects how client credentials are sent.
	AuthScheme AuthScheme `json:"auth_scheme,omitempty"`
}

// DefaultClientOptions returns Square's production endpoints.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Site:         "https://squareup.com/",
		ConnectSite:  "https://connect.squareup.com",
		AuthorizeURL: "/oauth2/authorize",
		TokenURL:     "/oauth2/token",
		TokenMethod:  http.MethodPost,
		ProfilePath:  "/v1/me",
		AuthScheme:   AuthSchemeBasicAuth,
	}
}

// WithDefaults returns a copy of o with unset fields taken from DefaultClientOptions.
func (o ClientOptions) WithDefaults() (ClientOptions, error) {
	if err := mergo.Merge(&o, DefaultClientOptions()); err != nil {
		return o, fmt.Errorf("failed to apply default client options: %w", err)
	}
	o.TokenMethod = strings.ToUpper(o.TokenMethod)
	return o, nil
}

// Validate checks that the sites are absolute URLs and the endpoints resolve.
func (o ClientOptions) Validate() error {
	if err := validateSite("site", o.Site); err != nil {
		return err
	}
	if err := validateSite("connect_site", o.ConnectSite); err != nil {
		return err
	}
	if o.AuthorizeURL == "" {
		return errors.New("authorize_url is required")
	}
	if o.TokenURL == "" {
		return errors.New("token_url is required")
	}
	if o.TokenMethod != http.MethodPost && o.TokenMethod != http.MethodGet {
		return fmt.Errorf("token_method must be POST or GET, got %q", o.TokenMethod)
	}
	return nil
}

// AuthorizeEndpoint returns the absolute authorize endpoint URL.
func (o ClientOptions) AuthorizeEndpoint() (string, error) {
	return resolveURL(o.Site, o.AuthorizeURL)
}

// TokenEndpoint returns the absolute token endpoint URL.
func (o ClientOptions) TokenEndpoint() (string, error) {
	return resolveURL(o.Site, o.TokenURL)
}

// Config is the fully resolved configuration of a Square strategy.
type Config struct {
	// ClientID is the application id.
	ClientID string

	// ClientSecret is the application secret.
	ClientSecret string

	// RedirectURI is the callback URL registered with Square.
	RedirectURI string

	// Scopes are the permissions requested on the authorize URL.
	Scopes []string

	// ClientOptions describes the provider endpoints. Unset fields use Square's defaults.
	ClientOptions ClientOptions

	// AuthorizeParams are static parameters added to every authorize URL.
	AuthorizeParams map[string]string

	// PassthroughParams are inbound request parameters copied onto the authorize URL.
	// Defaults to plan_id.
	PassthroughParams []string

	// TokenParams are merged into every token request. The control keys
	// raise_errors, parse and headers are consumed as request metadata.
	TokenParams map[string]any

	// ExtraTokenParams are merged into every token response before the
	// access token is built. They take precedence over the response.
	ExtraTokenParams map[string]any
}

// Validate checks that the Config is complete.
func (c *Config) Validate() error {
	logger.Debugw("validating square config", "client_id", c.ClientID, "site", c.ClientOptions.Site)

	if c.ClientID == "" {
		return errors.New("client_id is required")
	}
	if c.ClientSecret == "" {
		return errors.New("client_secret is required")
	}
	if c.RedirectURI == "" {
		return errors.New("redirect_uri is required")
	}
	if u, err := url.Parse(c.RedirectURI); err != nil || !u.IsAbs() {
		return errors.New("redirect_uri must be an absolute URL")
	}
	if err := c.ClientOptions.Validate(); err != nil {
		return fmt.Errorf("client options: %w", err)
	}
	return nil
}

// withDefaults returns a copy of c with defaulted client options and pass-through keys.
func (c *Config) withDefaults() (*Config, error) {
	out := *c
	opts, err := c.ClientOptions.WithDefaults()
	if err != nil {
		return nil, err
	}
	out.ClientOptions = opts
	if out.PassthroughParams == nil {
		out.PassthroughParams = []string{PlanIDParam}
	}
	return &out, nil
}

// OAuth2Config returns the equivalent x/oauth2 configuration.
func (c *Config) OAuth2Config() (*oauth2.Config, error) {
	authURL, err := c.ClientOptions.AuthorizeEndpoint()
	if err != nil {
		return nil, err
	}
	tokenURL, err := c.ClientOptions.TokenEndpoint()
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: c.ClientOptions.AuthScheme.AuthStyle(),
		},
	}, nil
}

func validateSite(name, site string) error {
	if site == "" {
		return fmt.Errorf("%s is required", name)
	}
	parsed, err := url.Parse(site)
	if err != nil {
		return fmt.Errorf("%s must be a valid URL", name)
	}
	if parsed.Scheme != networking.HttpScheme && parsed.Scheme != networking.HttpsScheme {
		return fmt.Errorf("%s must use http or https scheme", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL with scheme and host", name)
	}
	return nil
}

func resolveURL(site, ref string) (string, error) {
	base, err := url.Parse(site)
	if err != nil {
		return "", fmt.Errorf("invalid site %q: %w", site, err)
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", ref, err)
	}
	return base.ResolveReference(rel).String(), nil
}
