// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	autherrors "github.com/stacklok/squareauth/pkg/errors"
	"github.com/stacklok/squareauth/pkg/networking"
	"github.com/stacklok/squareauth/pkg/payload"
)

// Control keys consumed from the merged token parameters. They never reach the body.
const (
	paramRaiseErrors = "raise_errors"
	paramParse       = "parse"
	paramHeaders     = "headers"
)

// ParseMode is the response parsing hint carried by a token request.
type ParseMode string

const (
	// ParseAutomatic picks the parser from the response Content-Type.
	ParseAutomatic ParseMode = "automatic"
	// ParseJSON parses the body as a JSON document.
	ParseJSON ParseMode = "json"
	// ParseQuery parses the body as form-encoded key/value pairs.
	ParseQuery ParseMode = "query"
)

// TokenRequest describes a token exchange HTTP request.
type TokenRequest struct {
	// Method is the HTTP method.
	Method string

	// URL is the absolute token endpoint URL.
	URL string

	// Body is the form body. For GET requests it is sent as the query string.
	Body url.Values

	// Header holds Content-Type, credential and caller-supplied headers.
	Header http.Header

	// RaiseErrors makes responses without an access_token fail the exchange.
	RaiseErrors bool

	// Parse is the response parsing hint.
	Parse ParseMode
}

// BuildTokenRequest assembles the token request for an authorization code.
//
// The body starts as {code, redirect_uri}, then receives the client
// credentials and the configured TokenParams. The raise_errors, parse and
// headers keys are removed from the merged parameters and carried as request
// metadata instead.
func BuildTokenRequest(code, redirectURI string, cfg *Config) (*TokenRequest, error) {
	if code == "" {
		return nil, autherrors.NewInvalidArgumentError("authorization code is required", nil)
	}

	tokenURL, err := cfg.ClientOptions.TokenEndpoint()
	if err != nil {
		return nil, autherrors.NewInvalidArgumentError("invalid token endpoint", err)
	}

	params := payload.NewMap()
	params.Set("code", payload.Scalar(code))
	params.Set("redirect_uri", payload.Scalar(redirectURI))

	creds := EncodeClientCredentials(cfg.ClientID, cfg.ClientSecret, cfg.ClientOptions.AuthScheme)
	if creds.Body != nil {
		params.Set("client_id", payload.Scalar(creds.Body["client_id"]))
		params.Set("client_secret", payload.Scalar(creds.Body["client_secret"]))
	}
	if creds.Header != nil {
		headers := payload.NewMap()
		headers.Set("Authorization", payload.Scalar(creds.Header.Get("Authorization")))
		params.Set(paramHeaders, payload.Mapping(headers))
	}

	mergeTokenParams(params, cfg.TokenParams)

	req := &TokenRequest{
		Method:      cfg.ClientOptions.TokenMethod,
		URL:         tokenURL,
		Header:      make(http.Header),
		RaiseErrors: true,
		Parse:       ParseAutomatic,
	}
	if req.Method == "" {
		req.Method = http.MethodPost
	}

	if v, ok := params.Get(paramRaiseErrors); ok {
		params.Delete(paramRaiseErrors)
		if !v.IsNull() {
			raise, err := strconv.ParseBool(v.String())
			if err != nil {
				return nil, autherrors.NewInvalidArgumentError("raise_errors must be a boolean", err)
			}
			req.RaiseErrors = raise
		}
	}

	if v, ok := params.Get(paramParse); ok {
		params.Delete(paramParse)
		if mode := ParseMode(strings.ToLower(v.String())); mode != "" {
			req.Parse = mode
		}
	}

	req.Header.Set("Content-Type", networking.ContentTypeFormURLEncoded)
	if v, ok := params.Get(paramHeaders); ok {
		params.Delete(paramHeaders)
		v.Map().Range(func(name string, value payload.Value) bool {
			req.Header.Set(name, value.String())
			return true
		})
	}

	body, err := formValues(params)
	if err != nil {
		return nil, err
	}
	req.Body = body

	return req, nil
}

// mergeTokenParams merges caller parameters into params. Keys are normalized
// to plain names; a headers mapping is merged into the existing headers rather
// than replacing them, so credential headers survive.
func mergeTokenParams(params *payload.Map, extra map[string]any) {
	extraMap := payload.FromAny(extra).Map()
	extraMap.Range(func(key string, v payload.Value) bool {
		key = normalizeParamKey(key)
		if key == paramHeaders && v.Kind() == payload.KindMapping {
			headers := params.Lookup(paramHeaders).Map().Clone()
			v.Map().Range(func(name string, value payload.Value) bool {
				headers.Set(name, value)
				return true
			})
			params.Set(paramHeaders, payload.Mapping(headers))
			return true
		}
		params.Set(key, v)
		return true
	})
}

func normalizeParamKey(key string) string {
	return strings.TrimPrefix(strings.TrimSpace(key), ":")
}

// formValues flattens params into form values. Nulls are skipped, sequences
// become repeated keys, and nested mappings are rejected.
func formValues(params *payload.Map) (url.Values, error) {
	values := make(url.Values, params.Len())
	var err error
	params.Range(func(key string, v payload.Value) bool {
		switch v.Kind() {
		case payload.KindNull:
		case payload.KindScalar:
			values.Add(key, v.String())
		case payload.KindSequence:
			for _, item := range v.Items() {
				values.Add(key, item.String())
			}
		case payload.KindMapping:
			err = autherrors.NewInvalidArgumentError(
				fmt.Sprintf("token parameter %q must not be a mapping", key), nil)
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}
