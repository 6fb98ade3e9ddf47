// Stemma - Encrypted Family History Journaling Backend
// Copyright 2026 Stemma Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stemmahq/stemma

package models

import (
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// OptionalIDList distinguishes an omitted person_ids field from an explicitly
// provided one. A plain slice cannot tell "leave links unchanged" apart from
// "remove all links", and both appear in sync payloads:
//
//   - field absent (or null): Set is false, links are left untouched
//   - "person_ids": []      : Set is true with empty IDs, all links removed
//   - "person_ids": [...]   : Set is true, links replaced with IDs
type OptionalIDList struct {
	Set bool
	IDs []uuid.UUID
}

// UnmarshalJSON marks the field as set whenever a non-null value is present.
// JSON null is treated the same as an absent field.
func (o *OptionalIDList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, &o.IDs); err != nil {
		return err
	}
	o.Set = true
	return nil
}

// MarshalJSON renders unset values as null so round-tripped payloads stay
// parseable; servers only ever unmarshal this type.
func (o OptionalIDList) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	if o.IDs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.IDs)
}
