// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAugmentAuthorizeParams(t *testing.T) {
	t.Parallel()

	passthrough := []string{PlanIDParam}

	tests := []struct {
		name   string
		query  url.Values
		params map[string]string
		want   map[string]string
	}{
		{
			name:   "plan_id is forwarded",
			query:  url.Values{"plan_id": {"42"}},
			params: map[string]string{"session": "false"},
			want:   map[string]string{"session": "false", "plan_id": "42"},
		},
		{
			name:   "absent plan_id adds nothing",
			query:  url.Values{"other": {"x"}},
			params: map[string]string{"session": "false"},
			want:   map[string]string{"session": "false"},
		},
		{
			name:  "empty plan_id is forwarded as present",
			query: url.Values{"plan_id": {""}},
			want:  map[string]string{"plan_id": ""},
		},
		{
			name:   "request value wins over static value",
			query:  url.Values{"plan_id": {"7"}},
			params: map[string]string{"plan_id": "1"},
			want:   map[string]string{"plan_id": "7"},
		},
		{
			name: "nil inputs",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := AugmentAuthorizeParams(tt.query, tt.params, passthrough)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAugmentAuthorizeParams_DoesNotModifyParams(t *testing.T) {
	t.Parallel()

	params := map[string]string{"session": "false"}

	_ = AugmentAuthorizeParams(url.Values{"plan_id": {"42"}}, params, []string{PlanIDParam})

	assert.Equal(t, map[string]string{"session": "false"}, params)
}

type recordingBuilder struct {
	state  string
	params map[string]string
}

func (b *recordingBuilder) AuthorizeURL(state string, params map[string]string) string {
	b.state = state
	b.params = params
	return "https://provider.example.com/authorize"
}

func TestRequestPhase(t *testing.T) {
	t.Parallel()

	next := &recordingBuilder{}
	static := map[string]string{"locale": "en-US"}
	phase := NewRequestPhase(next, static, []string{PlanIDParam, "referrer"})

	got := phase.AuthorizeURL(url.Values{"plan_id": {"42"}, "ignored": {"1"}}, "xyz")

	assert.Equal(t, "https://provider.example.com/authorize", got)
	assert.Equal(t, "xyz", next.state)
	assert.Equal(t, map[string]string{"locale": "en-US", "plan_id": "42"}, next.params)

	phase.AuthorizeURL(url.Values{}, "second")
	assert.Equal(t, map[string]string{"locale": "en-US"}, next.params, "forwarded values do not leak into later requests")
}

func TestOAuth2AuthorizeURLBuilder(t *testing.T) {
	t.Parallel()

	cfg := resolvedConfig(t, &Config{
		ClientID:     "app-id",
		ClientSecret: "secret",
		RedirectURI:  testRedirectURI,
		Scopes:       []string{"MERCHANT_PROFILE_READ", "PAYMENTS_READ"},
	})
	oauthConfig, err := cfg.OAuth2Config()
	require.NoError(t, err)

	raw := NewOAuth2AuthorizeURLBuilder(oauthConfig).AuthorizeURL("st4te", map[string]string{"plan_id": "42"})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "squareup.com", u.Host)
	assert.Equal(t, "/oauth2/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "app-id", q.Get("client_id"))
	assert.Equal(t, testRedirectURI, q.Get("redirect_uri"))
	assert.Equal(t, "MERCHANT_PROFILE_READ PAYMENTS_READ", q.Get("scope"))
	assert.Equal(t, "st4te", q.Get("state"))
	assert.Equal(t, "42", q.Get("plan_id"))
}
