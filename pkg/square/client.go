// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	autherrors "github.com/stacklok/squareauth/pkg/errors"
	"github.com/stacklok/squareauth/pkg/networking"
)

// Client sends requests relative to a site through the injected HTTP client.
type Client struct {
	site       *url.URL
	httpClient networking.HTTPClient
}

// NewClient creates a client for site. A nil httpClient uses http.DefaultClient.
func NewClient(site string, httpClient networking.HTTPClient) (*Client, error) {
	if err := validateSite("site", site); err != nil {
		return nil, err
	}
	parsed, err := url.Parse(site)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{site: parsed, httpClient: httpClient}, nil
}

// Site returns the base URL requests are resolved against.
func (c *Client) Site() string {
	return c.site.String()
}

// WithSite returns a copy of c bound to another site. The HTTP client,
// and so its timeouts and TLS settings, is shared.
func (c *Client) WithSite(site string) (*Client, error) {
	return NewClient(site, c.httpClient)
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// MediaType returns the Content-Type without parameters.
func (r *Response) MediaType() string {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mediaType
}

// Do sends a request to ref, resolved against the site, and reads the body.
// Failures of the HTTP client are returned as transport errors.
func (c *Client) Do(ctx context.Context, method, ref string, body io.Reader, header http.Header) (*Response, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, autherrors.NewInvalidArgumentError("invalid request URL", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, autherrors.NewInvalidArgumentError("failed to create request", err)
	}
	for name, values := range header {
		req.Header[name] = values
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, autherrors.NewTransportError(fmt.Sprintf("%s %s failed", method, target), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := networking.ReadBody(resp.Body)
	if err != nil {
		return nil, autherrors.NewTransportError("failed to read response body", err)
	}

	return &Response{
		URL:        target,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) resolve(ref string) (string, error) {
	rel, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return c.site.ResolveReference(rel).String(), nil
}
