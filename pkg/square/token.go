// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/stacklok/squareauth/pkg/networking"
	"github.com/stacklok/squareauth/pkg/payload"
)

// tokenExpirationBuffer is the time buffer before actual expiration to consider a token expired.
// This accounts for clock skew and network latency.
const tokenExpirationBuffer = 30 * time.Second

// Token fields lifted out of the response; everything else lands in Params.
var reservedTokenKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token_type":    true,
	"expires_at":    true,
	"expires_in":    true,
}

// AccessToken is a normalized Square access token. Requests made with it go
// to the connect host it is bound to.
type AccessToken struct {
	// Token is the access token string.
	Token string

	// RefreshToken is the refresh token, if Square returned one.
	RefreshToken string

	// TokenType is the token type, "Bearer" unless the response says otherwise.
	TokenType string

	// ExpiresAt is the expiry in seconds since the epoch. Zero means the token does not expire.
	ExpiresAt int64

	// Params holds every other field of the merged token response, such as merchant_id.
	Params map[string]any

	client *Client
	oauth  *oauth2.Token
}

// newAccessToken builds a token from a merged token response.
func newAccessToken(client *Client, fields *payload.Map, expiresAt int64) *AccessToken {
	t := &AccessToken{
		Token:        fields.Lookup("access_token").String(),
		RefreshToken: fields.Lookup("refresh_token").String(),
		TokenType:    fields.Lookup("token_type").String(),
		ExpiresAt:    expiresAt,
		Params:       make(map[string]any),
		client:       client,
	}

	fields.Range(func(key string, v payload.Value) bool {
		if !reservedTokenKeys[key] {
			t.Params[key] = v.Any()
		}
		return true
	})

	t.oauth = (&oauth2.Token{
		AccessToken:  t.Token,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.expiry(),
	}).WithExtra(fields.Any())

	if t.TokenType == "" {
		t.TokenType = t.oauth.Type()
	}
	return t
}

// Client returns the client the token is bound to.
func (t *AccessToken) Client() *Client {
	return t.client
}

// Site returns the host requests made with this token are sent to.
func (t *AccessToken) Site() string {
	return t.client.Site()
}

// OAuth2Token returns the token as an x/oauth2 token. Extra carries the full
// merged token response.
func (t *AccessToken) OAuth2Token() *oauth2.Token {
	return t.oauth
}

// Expires reports whether the token carries an expiry.
func (t *AccessToken) Expires() bool {
	return t.ExpiresAt != 0
}

// Expired reports whether the token has expired or will within the buffer period.
func (t *AccessToken) Expired() bool {
	if !t.Expires() {
		return false
	}
	return time.Now().Add(tokenExpirationBuffer).After(t.expiry())
}

// Get sends an authenticated GET request to path on the bound host.
func (t *AccessToken) Get(ctx context.Context, path string) (*Response, error) {
	header := make(http.Header)
	header.Set("Accept", networking.ContentTypeJSON)
	return t.Request(ctx, http.MethodGet, path, header)
}

// Request sends an authenticated request to path on the bound host. header is
// not modified.
func (t *AccessToken) Request(ctx context.Context, method, path string, header http.Header) (*Response, error) {
	header = header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Authorization", t.oauth.Type()+" "+t.Token)
	return t.client.Do(ctx, method, path, nil, header)
}

func (t *AccessToken) expiry() time.Time {
	if t.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(t.ExpiresAt, 0)
}
