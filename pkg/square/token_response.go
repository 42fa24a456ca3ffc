// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	autherrors "github.com/stacklok/squareauth/pkg/errors"
	"github.com/stacklok/squareauth/pkg/logger"
	"github.com/stacklok/squareauth/pkg/networking"
	"github.com/stacklok/squareauth/pkg/payload"
)

// expiresAtLayouts are the timestamp formats accepted for expires_at.
// Zone-less layouts are read as UTC.
var expiresAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// ExchangeToken performs req with client and returns an access token bound to
// connectSite.
//
// The response is parsed according to req.Parse. When req.RaiseErrors is set,
// an error status or a body that is not an object with a non-empty
// access_token fails with a token exchange error carrying the response.
// extraParams are merged over the response, then expires_at is converted from
// its timestamp string to epoch seconds before the token is built.
func ExchangeToken(
	ctx context.Context,
	client *Client,
	connectSite string,
	req *TokenRequest,
	extraParams map[string]any,
) (*AccessToken, error) {
	fields, err := fetchAccessToken(ctx, client, req)
	if err != nil {
		return nil, err
	}

	payload.FromAny(extraParams).Map().Range(func(key string, v payload.Value) bool {
		fields.Set(normalizeParamKey(key), v)
		return true
	})

	expiresAt, err := normalizeExpiresAt(fields)
	if err != nil {
		return nil, err
	}

	connect, err := client.WithSite(connectSite)
	if err != nil {
		return nil, autherrors.NewInvalidArgumentError("invalid connect site", err)
	}

	token := newAccessToken(connect, fields, expiresAt)

	logger.Infow("authorization code exchange successful",
		"connect_site", connect.Site(),
		"has_refresh_token", token.RefreshToken != "",
		"expires", token.Expires(),
	)

	return token, nil
}

// fetchAccessToken sends the token request and validates the parsed response.
func fetchAccessToken(ctx context.Context, client *Client, req *TokenRequest) (*payload.Map, error) {
	logger.Debugw("sending token request",
		"token_endpoint", req.URL,
		"method", req.Method,
		"raise_errors", req.RaiseErrors,
	)

	target := req.URL
	var body *strings.Reader
	if req.Method == http.MethodGet {
		u, err := url.Parse(req.URL)
		if err != nil {
			return nil, autherrors.NewInvalidArgumentError("invalid token endpoint", err)
		}
		q := u.Query()
		for k, vs := range req.Body {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
		body = strings.NewReader("")
	} else {
		body = strings.NewReader(req.Body.Encode())
	}

	resp, err := client.Do(ctx, req.Method, target, body, req.Header)
	if err != nil {
		return nil, err
	}

	parsed := parseTokenBody(resp, req.Parse)
	fields := parsed.Map()

	if req.RaiseErrors && (resp.StatusCode >= http.StatusBadRequest || !hasAccessToken(fields)) {
		var cause error
		if resp.StatusCode >= http.StatusBadRequest {
			cause = networking.NewHTTPError(resp.StatusCode, resp.URL, http.StatusText(resp.StatusCode))
		}
		return nil, autherrors.NewTokenExchangeError(tokenErrorMessage(fields), cause).
			WithResponse(resp.StatusCode, networking.Preview(resp.Body))
	}

	if fields == nil {
		return nil, autherrors.NewMalformedResponseError(
			fmt.Sprintf("token response is a %s, not an object", parsed.Kind()), nil).
			WithResponse(resp.StatusCode, networking.Preview(resp.Body))
	}

	if !hasAccessToken(fields) {
		logger.Warnw("token response has no access_token", "status", resp.StatusCode)
	}

	return fields, nil
}

// parseTokenBody parses the body per mode. Unparseable bodies yield null.
func parseTokenBody(resp *Response, mode ParseMode) payload.Value {
	switch mode {
	case ParseJSON:
		return parseJSONBody(resp.Body)
	case ParseQuery:
		return parseQueryBody(resp.Body)
	default:
		mediaType := resp.MediaType()
		switch {
		case mediaType == networking.ContentTypeFormURLEncoded, mediaType == "text/plain":
			return parseQueryBody(resp.Body)
		default:
			return parseJSONBody(resp.Body)
		}
	}
}

func parseJSONBody(body []byte) payload.Value {
	v, err := payload.Decode(body)
	if err != nil {
		return payload.Null()
	}
	return v
}

func parseQueryBody(body []byte) payload.Value {
	values, err := url.ParseQuery(string(body))
	if err != nil || len(values) == 0 {
		return payload.Null()
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := payload.NewMap()
	for _, k := range keys {
		vs := values[k]
		if len(vs) == 1 {
			m.Set(k, payload.Scalar(vs[0]))
			continue
		}
		m.Set(k, payload.FromAny(vs))
	}
	return payload.Mapping(m)
}

func hasAccessToken(fields *payload.Map) bool {
	v := fields.Lookup("access_token")
	return v.Kind() == payload.KindScalar && !v.Empty()
}

func tokenErrorMessage(fields *payload.Map) string {
	if code := fields.Lookup("error").String(); code != "" {
		if desc := fields.Lookup("error_description").String(); desc != "" {
			return fmt.Sprintf("token endpoint returned %s: %s", code, desc)
		}
		return "token endpoint returned " + code
	}
	if msg := fields.Lookup("message").String(); msg != "" {
		return "token endpoint returned: " + msg
	}
	return "token endpoint did not return an access_token"
}

// normalizeExpiresAt replaces a string expires_at with epoch seconds in place.
// A missing or null expires_at means the token does not expire.
func normalizeExpiresAt(fields *payload.Map) (int64, error) {
	v, ok := fields.Get("expires_at")
	if !ok || v.IsNull() {
		return 0, nil
	}

	expiresAt, err := parseExpiresAt(v)
	if err != nil {
		return 0, autherrors.NewMalformedResponseError(
			fmt.Sprintf("expires_at %q is not a timestamp", v.String()), err)
	}

	fields.Set("expires_at", payload.Scalar(expiresAt))
	return expiresAt, nil
}

func parseExpiresAt(v payload.Value) (int64, error) {
	switch s := v.Scalar().(type) {
	case json.Number:
		if n, err := s.Int64(); err == nil {
			return n, nil
		}
		f, err := s.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case int:
		return int64(s), nil
	case int64:
		return s, nil
	case float64:
		return int64(s), nil
	case string:
		return parseTimestamp(s)
	default:
		return 0, fmt.Errorf("unsupported %s value", v.Kind())
	}
}

func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	for _, layout := range expiresAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("no known layout matches %q", s)
}
