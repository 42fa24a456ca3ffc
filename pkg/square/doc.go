// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package square implements the client side of Square's OAuth2 authorization
// code flow.
//
// Square's token endpoint deviates from a stock OAuth2 provider in two ways:
// the expiry is returned as a string timestamp in "expires_at" rather than a
// relative "expires_in", and every authenticated API call after the exchange
// must go to a separate "connect" host. This package builds the token request,
// normalizes the response into an [AccessToken] bound to the connect host, and
// projects the merchant profile into a pruned canonical [Identity].
//
// # Components
//
//   - [EncodeClientCredentials]: client authentication as body fields or a Basic header
//   - [BuildTokenRequest]: token exchange request descriptor with control keys extracted
//   - [ExchangeToken]: executes the exchange and rebinds the token to the connect host
//   - [NormalizeProfile]: canonical identity fields with empty values pruned
//   - [RequestPhase]: forwards pass-through parameters such as plan_id to the authorize URL
//   - [Flow]: one authentication attempt, from authorize URL to identity
//
// # Usage
//
//	strategy, err := square.NewStrategy(&square.Config{
//	    ClientID:     "sq0idp-...",
//	    ClientSecret: "sq0csp-...",
//	    RedirectURI:  "https://app.example.com/auth/square/callback",
//	    Scopes:       []string{"MERCHANT_PROFILE_READ"},
//	})
//	if err != nil {
//	    return err
//	}
//
//	// request phase
//	redirect, err := strategy.NewFlow().AuthorizeURL(r.URL.Query(), state)
//
//	// callback phase, on a fresh flow for the callback request
//	identity, err := strategy.NewFlow().HandleCallback(ctx, r.URL.Query())
//
// A Flow is stateful and must not be shared between concurrent callbacks.
package square
