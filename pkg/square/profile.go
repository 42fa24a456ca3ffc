// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	autherrors "github.com/stacklok/squareauth/pkg/errors"
	"github.com/stacklok/squareauth/pkg/logger"
	"github.com/stacklok/squareauth/pkg/networking"
	"github.com/stacklok/squareauth/pkg/payload"
)

// Identity is the canonical record produced by a completed flow.
type Identity struct {
	// UID is the merchant id, used by the host for deduplication.
	UID string

	// Info holds id, name, email, phone and location, with empty values pruned.
	Info *payload.Map

	// Raw is the profile payload exactly as returned by Square.
	Raw *payload.Map
}

// NewIdentity builds the canonical identity from a raw profile.
func NewIdentity(raw *payload.Map) *Identity {
	return &Identity{
		UID:  raw.Lookup("id").String(),
		Info: NormalizeProfile(raw),
		Raw:  raw,
	}
}

// InfoMap returns Info as plain Go values.
func (i *Identity) InfoMap() map[string]any {
	return i.Info.Any()
}

// Extra returns the auxiliary data, the raw profile under "raw_info".
func (i *Identity) Extra() map[string]any {
	return map[string]any{"raw_info": i.Raw.Any()}
}

type identityJSON struct {
	UID   string        `json:"uid"`
	Info  *payload.Map  `json:"info"`
	Extra identityExtra `json:"extra"`
}

type identityExtra struct {
	RawInfo *payload.Map `json:"raw_info"`
}

// MarshalJSON encodes the identity as {"uid", "info", "extra": {"raw_info"}}.
func (i *Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(identityJSON{
		UID:   i.UID,
		Info:  i.Info,
		Extra: identityExtra{RawInfo: i.Raw},
	})
}

// NormalizeProfile projects a raw Square profile onto the canonical fields.
//
// phone is the concatenation of the business_phone values in document
// order and location is business_address.locality. The result is pruned, so
// absent or empty fields have no key.
func NormalizeProfile(raw *payload.Map) *payload.Map {
	info := payload.NewMap()
	info.Set("id", raw.Lookup("id"))
	info.Set("name", raw.Lookup("name"))
	info.Set("email", raw.Lookup("email"))
	info.Set("phone", payload.Scalar(joinValues(raw.Lookup("business_phone"))))
	info.Set("location", raw.Lookup("business_address").Map().Lookup("locality"))
	return payload.Prune(info)
}

// joinValues concatenates the values of a mapping. Anything else joins to "".
func joinValues(v payload.Value) string {
	var b strings.Builder
	v.Map().Range(func(_ string, value payload.Value) bool {
		b.WriteString(value.String())
		return true
	})
	return b.String()
}

// FetchProfile GETs path with token and decodes the profile object.
func FetchProfile(ctx context.Context, token *AccessToken, path string) (*payload.Map, error) {
	logger.Debugw("fetching profile", "site", token.Site(), "path", path)

	resp, err := token.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return nil, autherrors.NewProfileFetchError(
			fmt.Sprintf("profile endpoint %s returned an error", path),
			networking.NewHTTPError(resp.StatusCode, resp.URL, http.StatusText(resp.StatusCode))).
			WithResponse(resp.StatusCode, networking.Preview(resp.Body))
	}

	raw, err := payload.DecodeMap(resp.Body)
	if err != nil {
		return nil, autherrors.NewMalformedResponseError("profile response is not a JSON object", err).
			WithResponse(resp.StatusCode, networking.Preview(resp.Body))
	}
	return raw, nil
}
