// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode encodes with Core Deterministic Encoding: sorted map keys,
// shortest integer forms, no indefinite-length items.
var encMode cbor.EncMode

// decMode accepts standard CBOR and ignores unknown fields so that a
// newer peer can add frame fields without breaking an older one.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// any-typed targets decode maps as map[string]any rather than
		// map[interface{}]interface{}. Struct targets are unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// A datagram is at most 64 KiB; cap nesting and lengths well
		// below the library defaults so a hostile frame cannot make
		// the receive callback allocate unboundedly.
		MaxNestedLevels:  16,
		MaxArrayElements: 65536,
		MaxMapPairs:      65536,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is an encoded CBOR item whose decoding is deferred. The
// chat protocol uses it for the body of a kind-tagged frame.
type RawMessage = cbor.RawMessage

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for
// data. Used by debug logging of undecodable datagrams.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
