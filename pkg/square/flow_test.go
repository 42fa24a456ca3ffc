// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autherrors "github.com/stacklok/squareauth/pkg/errors"
)

func TestFlow_EndToEnd(t *testing.T) {
	t.Parallel()

	f := newFakeSquare(t)
	flow := f.strategy().NewFlow()

	_, err := uuid.Parse(flow.ID())
	require.NoError(t, err)
	assert.Equal(t, StateStart, flow.State())

	target, err := flow.AuthorizeURL(url.Values{"plan_id": {"42"}}, "st4te")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingCallback, flow.State())

	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, f.auth.URL+"/oauth2/authorize", u.Scheme+"://"+u.Host+u.Path)
	assert.Equal(t, "42", u.Query().Get("plan_id"))
	assert.Equal(t, "st4te", u.Query().Get("state"))

	identity, err := flow.HandleCallback(context.Background(), url.Values{"code": {testCode}})
	require.NoError(t, err)

	assert.Equal(t, StateComplete, flow.State())
	assert.NoError(t, flow.Err())
	assert.Same(t, identity, flow.Identity())
	assert.Equal(t, "ML1", identity.UID)
	assert.Equal(t, map[string]any{
		"id":       "ML1",
		"name":     "Coffee Co",
		"email":    "owner@example.com",
		"phone":    "5551234",
		"location": "Oakland",
	}, identity.InfoMap())
	assert.Equal(t, "", identity.Raw.Lookup("business_address").Map().Lookup("region").String(),
		"raw profile is kept unpruned")

	token := flow.AccessToken()
	require.NotNil(t, token)
	assert.Equal(t, f.connect.URL, token.Site())
	assert.Equal(t, testCode, f.tokenRequest().PostForm.Get("code"))

	raw, err := flow.RawInfo(context.Background())
	require.NoError(t, err)
	assert.Same(t, identity.Raw, raw)
	assert.EqualValues(t, 1, f.tokenCalls.Load())
	assert.EqualValues(t, 1, f.profileCalls.Load(), "profile is fetched once per flow")
}

func TestFlow_CallbackWithoutAuthorize(t *testing.T) {
	t.Parallel()

	f := newFakeSquare(t)
	flow := f.strategy().NewFlow()

	identity, err := flow.HandleCallback(context.Background(), url.Values{"code": {testCode}})
	require.NoError(t, err)
	assert.Equal(t, "ML1", identity.UID)
	assert.Equal(t, StateComplete, flow.State())
}

func TestFlow_InvalidTransitions(t *testing.T) {
	t.Parallel()

	f := newFakeSquare(t)
	flow := f.strategy().NewFlow()

	_, err := flow.AuthorizeURL(nil, "s")
	require.NoError(t, err)

	_, err = flow.AuthorizeURL(nil, "s")
	require.Error(t, err)
	assert.True(t, autherrors.IsInvalidState(err))
	assert.Equal(t, StateAwaitingCallback, flow.State(), "rejected transitions leave the state unchanged")

	_, err = flow.HandleCallback(context.Background(), url.Values{"code": {testCode}})
	require.NoError(t, err)

	_, err = flow.HandleCallback(context.Background(), url.Values{"code": {testCode}})
	require.Error(t, err)
	assert.True(t, autherrors.IsInvalidState(err))
	assert.Equal(t, StateComplete, flow.State())
	assert.EqualValues(t, 1, f.tokenCalls.Load())
}

func TestFlow_RawInfoBeforeExchange(t *testing.T) {
	t.Parallel()

	f := newFakeSquare(t)
	flow := f.strategy().NewFlow()

	_, err := flow.RawInfo(context.Background())
	require.Error(t, err)
	assert.True(t, autherrors.IsInvalidState(err))
	assert.EqualValues(t, 0, f.profileCalls.Load())
}

func TestFlow_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		query          url.Values
		setup          func(f *fakeSquare)
		check          func(error) bool
		wantMsg        string
		wantToken      bool
		wantTokenCalls int32
	}{
		{
			name:    "provider denied access",
			query:   url.Values{"error": {"access_denied"}, "error_description": {"user cancelled"}},
			check:   autherrors.IsAuthorizationDenied,
			wantMsg: "access_denied: user cancelled",
		},
		{
			name:    "missing code",
			query:   url.Values{"state": {"s"}},
			check:   autherrors.IsInvalidArgument,
			wantMsg: "missing the code parameter",
		},
		{
			name:  "token exchange rejected",
			query: url.Values{"code": {testCode}},
			setup: func(f *fakeSquare) {
				f.tokenStatus = http.StatusBadRequest
				f.tokenBody = map[string]any{"error": "invalid_grant"}
			},
			check:          autherrors.IsTokenExchange,
			wantMsg:        "invalid_grant",
			wantTokenCalls: 1,
		},
		{
			name:  "profile fetch rejected",
			query: url.Values{"code": {testCode}},
			setup: func(f *fakeSquare) {
				f.profileStatus = http.StatusForbidden
			},
			check:          autherrors.IsProfileFetch,
			wantMsg:        "status 403",
			wantToken:      true,
			wantTokenCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFakeSquare(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			flow := f.strategy().NewFlow()

			identity, err := flow.HandleCallback(context.Background(), tt.query)
			require.Error(t, err)
			assert.Nil(t, identity)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			assert.Equal(t, StateFailed, flow.State())
			assert.Equal(t, err, flow.Err())
			assert.Nil(t, flow.Identity())
			assert.Equal(t, tt.wantToken, flow.AccessToken() != nil)
			assert.Equal(t, tt.wantTokenCalls, f.tokenCalls.Load())

			_, err = flow.HandleCallback(context.Background(), url.Values{"code": {testCode}})
			assert.True(t, autherrors.IsInvalidState(err), "failed is terminal")
		})
	}
}

func TestFlow_TransportFailureOnConnectHost(t *testing.T) {
	t.Parallel()

	f := newFakeSquare(t)
	s := f.strategy()
	f.connect.Close()

	flow := s.NewFlow()
	_, err := flow.HandleCallback(context.Background(), url.Values{"code": {testCode}})
	require.Error(t, err)
	assert.True(t, autherrors.IsTransport(err))
	assert.Equal(t, StateFailed, flow.State())
}

func TestFlow_CallerCancellation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		stallToken   bool
		stallProfile bool
		newContext   func() (context.Context, context.CancelFunc)
		wantErr      error
	}{
		{
			name:       "token exchange deadline",
			stallToken: true,
			newContext: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 50*time.Millisecond)
			},
			wantErr: context.DeadlineExceeded,
		},
		{
			name:         "profile fetch deadline",
			stallProfile: true,
			newContext: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 50*time.Millisecond)
			},
			wantErr: context.DeadlineExceeded,
		},
		{
			name:       "token exchange cancelled",
			stallToken: true,
			newContext: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				time.AfterFunc(50*time.Millisecond, cancel)
				return ctx, cancel
			},
			wantErr: context.Canceled,
		},
		{
			name:         "profile fetch cancelled",
			stallProfile: true,
			newContext: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				time.AfterFunc(50*time.Millisecond, cancel)
				return ctx, cancel
			},
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFakeSquare(t)
			f.stallToken = tt.stallToken
			f.stallProfile = tt.stallProfile

			ctx, cancel := tt.newContext()
			defer cancel()

			flow := f.strategy().NewFlow()
			_, err := flow.HandleCallback(ctx, url.Values{"code": {testCode}})
			require.Error(t, err)
			assert.True(t, autherrors.IsTransport(err))
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, StateFailed, flow.State())
		})
	}
}

func TestFlow_IDsAreUnique(t *testing.T) {
	t.Parallel()

	s := newFakeSquare(t).strategy()

	assert.NotEqual(t, s.NewFlow().ID(), s.NewFlow().ID())
}
