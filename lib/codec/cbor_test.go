// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type sampleFrame struct {
	Origin  string `cbor:"1,keyasint"`
	Kind    uint8  `cbor:"2,keyasint"`
	Payload []byte `cbor:"3,keyasint,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleFrame{Origin: "alice", Kind: 1, Payload: []byte("hello")}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleFrame
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Origin != original.Origin || decoded.Kind != original.Kind || !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	frame := map[string]any{"zeta": 1, "alpha": 2, "mid": "x"}

	first, err := Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(frame)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal produced different bytes for the same map")
		}
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"room": "lobby"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	asMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if asMap["room"] != "lobby" {
		t.Errorf("room = %v, want lobby", asMap["room"])
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	var decoded sampleFrame
	if err := Unmarshal([]byte{0xff, 0x00, 0x13}, &decoded); err == nil {
		t.Fatal("Unmarshal accepted garbage")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(sampleFrame{Origin: "bob", Kind: 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"bob"`) {
		t.Errorf("Diagnose() = %s, want it to mention \"bob\"", notation)
	}
}
