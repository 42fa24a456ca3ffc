// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	autherrors "github.com/stacklok/squareauth/pkg/errors"
	"github.com/stacklok/squareauth/pkg/logger"
	"github.com/stacklok/squareauth/pkg/payload"
)

// State is a step of an authentication attempt.
type State string

const (
	// StateStart is the initial state.
	StateStart State = "start"
	// StateAwaitingCallback follows the redirect to the authorize URL.
	StateAwaitingCallback State = "awaiting_callback"
	// StateExchangingToken is entered when a callback with a code arrives.
	StateExchangingToken State = "exchanging_token"
	// StateFetchingProfile is entered once an access token was obtained.
	StateFetchingProfile State = "fetching_profile"
	// StateComplete is terminal: the identity is available.
	StateComplete State = "complete"
	// StateFailed is terminal: Err returns the cause.
	StateFailed State = "failed"
)

// Flow is a single authentication attempt. It is not safe for concurrent use.
type Flow struct {
	id       string
	strategy *Strategy
	state    State
	err      error
	token    *AccessToken
	rawInfo  *payload.Map
	identity *Identity
}

func newFlow(s *Strategy) *Flow {
	return &Flow{
		id:       uuid.NewString(),
		strategy: s,
		state:    StateStart,
	}
}

// ID returns the correlation id used in log lines for this flow.
func (f *Flow) ID() string {
	return f.id
}

// State returns the current state.
func (f *Flow) State() State {
	return f.state
}

// Err returns the failure cause once the flow is in StateFailed.
func (f *Flow) Err() error {
	return f.err
}

// AccessToken returns the exchanged token, or nil before the exchange succeeded.
func (f *Flow) AccessToken() *AccessToken {
	return f.token
}

// Identity returns the identity once the flow is complete.
func (f *Flow) Identity() *Identity {
	return f.identity
}

// AuthorizeURL builds the redirect target for the inbound request query and
// moves the flow to StateAwaitingCallback.
func (f *Flow) AuthorizeURL(query url.Values, state string) (string, error) {
	if f.state != StateStart {
		return "", autherrors.NewInvalidStateError(
			fmt.Sprintf("cannot build authorize URL in state %s", f.state), nil)
	}

	target := f.strategy.AuthorizeURL(query, state)
	f.transition(StateAwaitingCallback)
	return target, nil
}

// HandleCallback exchanges the code in query for a token, fetches the
// profile from the connect host and returns the canonical identity.
//
// The callback is accepted in StateStart as well as StateAwaitingCallback,
// since hosts usually create a fresh flow for the callback request. Any
// failure moves the flow to StateFailed and is returned unchanged.
func (f *Flow) HandleCallback(ctx context.Context, query url.Values) (*Identity, error) {
	if f.state != StateStart && f.state != StateAwaitingCallback {
		return nil, autherrors.NewInvalidStateError(
			fmt.Sprintf("cannot handle callback in state %s", f.state), nil)
	}

	if errCode := query.Get("error"); errCode != "" {
		msg := errCode
		if desc := query.Get("error_description"); desc != "" {
			msg = fmt.Sprintf("%s: %s", errCode, desc)
		}
		return nil, f.fail(autherrors.NewAuthorizationDeniedError(msg, nil))
	}

	code := query.Get("code")
	if code == "" {
		return nil, f.fail(autherrors.NewInvalidArgumentError("callback is missing the code parameter", nil))
	}

	f.transition(StateExchangingToken)
	token, err := f.strategy.Exchange(ctx, code)
	if err != nil {
		return nil, f.fail(err)
	}
	f.token = token

	f.transition(StateFetchingProfile)
	raw, err := f.RawInfo(ctx)
	if err != nil {
		return nil, f.fail(err)
	}

	f.identity = NewIdentity(raw)
	f.transition(StateComplete)

	logger.Infow("square authentication complete", "flow_id", f.id, "uid", f.identity.UID)
	return f.identity, nil
}

// RawInfo returns the raw profile, fetching it on first use. Later calls
// return the same payload without another request.
func (f *Flow) RawInfo(ctx context.Context) (*payload.Map, error) {
	if f.rawInfo != nil {
		return f.rawInfo, nil
	}
	if f.token == nil {
		return nil, autherrors.NewInvalidStateError("no access token; the code has not been exchanged", nil)
	}

	raw, err := f.strategy.FetchProfile(ctx, f.token)
	if err != nil {
		return nil, err
	}
	f.rawInfo = raw
	return raw, nil
}

func (f *Flow) transition(next State) {
	logger.Debugw("flow transition", "flow_id", f.id, "from", f.state, "to", next)
	f.state = next
}

func (f *Flow) fail(err error) error {
	logger.Errorw("square authentication failed",
		"flow_id", f.id,
		"state", f.state,
		"error", err,
	)
	f.state = StateFailed
	f.err = err
	return err
}
