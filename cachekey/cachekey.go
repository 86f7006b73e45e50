// Package cachekey derives deterministic cache keys from optimizer inputs.
//
// Inputs are serialized to canonical JSON (object keys sorted at every level) and hashed
// with xxhash64, so two structurally equal inputs always share a key no matter how
// their maps were built.
package cachekey

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Of returns "<kind>:<16 hex digits>" for the given inputs.
func Of(kind string, inputs ...any) (string, error) {
	canon, err := Canonical(inputs...)
	if err != nil {
		return "", fmt.Errorf("cache key for %s: %w", kind, err)
	}
	return fmt.Sprintf("%s:%016x", kind, xxhash.Sum64(canon)), nil
}

/*
Canonical encodes inputs as one JSON array with sorted object keys.

encoding/json already emits struct fields in declaration order and sorts map keys, but
a value that arrives as json.RawMessage or through a custom marshaler may not. Decoding
into generic values and encoding again normalizes all of them.
*/
func Canonical(inputs ...any) ([]byte, error) {
	raw, err := json.Marshal(inputs)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
