// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "sq0idp-app"
	testClientSecret = "sq0csp-secret"
	testRedirectURI  = "https://app.example.com/auth/square/callback"
	testCode         = "abc"
	testAccessToken  = "EAAAEexample"
)

// fakeSquare serves the authorization host and the connect host of Square on
// two separate test servers.
type fakeSquare struct {
	t *testing.T

	auth    *httptest.Server
	connect *httptest.Server

	tokenStatus int
	tokenBody   any
	tokenType   string

	profileStatus int
	profileBody   string

	// stallToken and stallProfile hold the endpoint until the client gives up.
	stallToken   bool
	stallProfile bool
	release      chan struct{}

	tokenCalls   atomic.Int32
	profileCalls atomic.Int32
	lastForm     atomic.Pointer[http.Request]
}

func newFakeSquare(t *testing.T) *fakeSquare {
	t.Helper()

	f := &fakeSquare{
		t:           t,
		tokenStatus: http.StatusOK,
		tokenBody: map[string]any{
			"access_token":  testAccessToken,
			"token_type":    "bearer",
			"expires_at":    "2024-01-01T00:00:00Z",
			"merchant_id":   "ML1",
			"refresh_token": "EQAAEr",
		},
		tokenType:     "application/json",
		release:       make(chan struct{}),
		profileStatus: http.StatusOK,
		profileBody: `{"id":"ML1","name":"Coffee Co","email":"owner@example.com",` +
			`"business_phone":{"area_code":"555","number":"1234"},` +
			`"business_address":{"locality":"Oakland","region":""}}`,
	}

	authRouter := chi.NewRouter()
	authRouter.HandleFunc("/oauth2/token", f.handleToken)
	f.auth = httptest.NewServer(authRouter)
	t.Cleanup(f.auth.Close)

	connectRouter := chi.NewRouter()
	connectRouter.Get("/v1/me", f.handleProfile)
	f.connect = httptest.NewServer(connectRouter)
	t.Cleanup(f.connect.Close)
	t.Cleanup(func() { close(f.release) })

	return f
}

func (f *fakeSquare) stall(r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-f.release:
	}
}

func (f *fakeSquare) handleToken(w http.ResponseWriter, r *http.Request) {
	f.tokenCalls.Add(1)
	if f.stallToken {
		f.stall(r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.lastForm.Store(r)

	w.Header().Set("Content-Type", f.tokenType)
	w.WriteHeader(f.tokenStatus)
	switch body := f.tokenBody.(type) {
	case string:
		_, _ = w.Write([]byte(body))
	default:
		_ = json.NewEncoder(w).Encode(body)
	}
}

func (f *fakeSquare) handleProfile(w http.ResponseWriter, r *http.Request) {
	f.profileCalls.Add(1)
	if f.stallProfile {
		f.stall(r)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+testAccessToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"service.not_authorized","message":"bad token"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.profileStatus)
	_, _ = w.Write([]byte(f.profileBody))
}

// tokenRequest returns the last request received by the token endpoint.
func (f *fakeSquare) tokenRequest() *http.Request {
	f.t.Helper()
	r := f.lastForm.Load()
	require.NotNil(f.t, r, "token endpoint was not called")
	return r
}

func (f *fakeSquare) config() *Config {
	return &Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURI:  testRedirectURI,
		ClientOptions: ClientOptions{
			Site:        f.auth.URL,
			ConnectSite: f.connect.URL,
		},
	}
}

func (f *fakeSquare) strategy(opts ...Option) *Strategy {
	f.t.Helper()
	s, err := NewStrategy(f.config(), append([]Option{WithHTTPClient(f.auth.Client())}, opts...)...)
	require.NoError(f.t, err)
	return s
}

// resolvedConfig returns cfg with default client options applied.
func resolvedConfig(t *testing.T, cfg *Config) *Config {
	t.Helper()
	out, err := cfg.withDefaults()
	require.NoError(t, err)
	return out
}
