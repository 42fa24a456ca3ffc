// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"maps"
	"net/url"
	"slices"

	"golang.org/x/oauth2"

	"github.com/stacklok/squareauth/pkg/logger"
)

// AuthorizeURLBuilder builds the provider authorize URL for a state value and
// additional query parameters.
type AuthorizeURLBuilder interface {
	AuthorizeURL(state string, params map[string]string) string
}

// OAuth2AuthorizeURLBuilder builds authorize URLs with x/oauth2.
type OAuth2AuthorizeURLBuilder struct {
	config *oauth2.Config
}

// NewOAuth2AuthorizeURLBuilder wraps config.
func NewOAuth2AuthorizeURLBuilder(config *oauth2.Config) *OAuth2AuthorizeURLBuilder {
	return &OAuth2AuthorizeURLBuilder{config: config}
}

// AuthorizeURL returns the authorize URL with response_type, client_id,
// redirect_uri, scope and state, plus params.
func (b *OAuth2AuthorizeURLBuilder) AuthorizeURL(state string, params map[string]string) string {
	opts := make([]oauth2.AuthCodeOption, 0, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		opts = append(opts, oauth2.SetAuthURLParam(k, params[k]))
	}
	return b.config.AuthCodeURL(state, opts...)
}

// AugmentAuthorizeParams returns a copy of params with every pass-through key
// present in query copied over under the same name. params is not modified.
func AugmentAuthorizeParams(query url.Values, params map[string]string, passthrough []string) map[string]string {
	out := make(map[string]string, len(params)+len(passthrough))
	maps.Copy(out, params)
	for _, key := range passthrough {
		if query.Has(key) {
			out[key] = query.Get(key)
		}
	}
	return out
}

// RequestPhase runs in front of an AuthorizeURLBuilder and forwards
// pass-through parameters, such as plan_id, from the inbound request.
type RequestPhase struct {
	next        AuthorizeURLBuilder
	params      map[string]string
	passthrough []string
}

// NewRequestPhase decorates next with the static params and pass-through keys.
func NewRequestPhase(next AuthorizeURLBuilder, params map[string]string, passthrough []string) *RequestPhase {
	return &RequestPhase{
		next:        next,
		params:      maps.Clone(params),
		passthrough: slices.Clone(passthrough),
	}
}

// AuthorizeURL returns the redirect target for an inbound request with query.
func (p *RequestPhase) AuthorizeURL(query url.Values, state string) string {
	params := AugmentAuthorizeParams(query, p.params, p.passthrough)

	logger.Debugw("building authorization URL",
		"params", slices.Sorted(maps.Keys(params)),
		"has_state", state != "",
	)

	return p.next.AuthorizeURL(state, params)
}
