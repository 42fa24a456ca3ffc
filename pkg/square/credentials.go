// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"encoding/base64"
	"net/http"
)

// ClientCredentials is the client authentication contribution to a token
// request. Exactly one of Body or Header is set.
type ClientCredentials struct {
	// Body holds client_id and client_secret form fields.
	Body map[string]string

	// Header holds the Authorization header.
	Header http.Header
}

// EncodeClientCredentials returns the credentials as form fields for
// AuthSchemeRequestBody and as a Basic Authorization header otherwise.
func EncodeClientCredentials(clientID, clientSecret string, scheme AuthScheme) ClientCredentials {
	if scheme == AuthSchemeRequestBody {
		return ClientCredentials{
			Body: map[string]string{
				"client_id":     clientID,
				"client_secret": clientSecret,
			},
		}
	}

	header := make(http.Header)
	header.Set("Authorization", BasicAuthorization(clientID, clientSecret))
	return ClientCredentials{Header: header}
}

// BasicAuthorization returns "Basic " followed by base64(clientID:clientSecret).
// The encoding is unwrapped, so the value never contains newlines.
func BasicAuthorization(clientID, clientSecret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret))
}
