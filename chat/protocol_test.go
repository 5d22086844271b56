// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bureau-foundation/courier/lib/codec"
)

func TestExchangeRoundTrip(t *testing.T) {
	exchanges := []Exchange{
		ConnectRequest{},
		DisconnectRequest{},
		SendMessageRequest{Message: ChatMessage{From: "alice", Room: "lobby", Text: "hello"}},
		JoinRoomRequest{Room: "lobby"},
		LeaveRoomRequest{Room: "lobby"},
		GetJoinedRoomsRequest{},
		GetAllRoomsRequest{},
		GetClientsInRoomRequest{Room: "lobby"},
		OperationResponse{Success: true},
		OperationResponse{Reason: ReasonNotInRoom},
		GetJoinedRoomsResponse{Rooms: []string{"a", "b"}},
		GetAllRoomsResponse{Rooms: []string{"lobby"}},
		GetClientsInRoomResponse{Clients: []string{"alice", "bob"}},
		AnnouncementRequest{Announcement: RoomAnnouncement{Client: "bob", Room: "lobby", Kind: AnnounceLeave}},
	}

	for _, exchange := range exchanges {
		t.Run(exchange.Kind().String(), func(t *testing.T) {
			data, err := Encode(exchange)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(decoded, exchange) {
				t.Errorf("Decode = %#v, want %#v", decoded, exchange)
			}
		})
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	data, err := codec.Marshal(frame{Kind: 200, Body: codec.RawMessage{0xa0}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := Decode(data); !errors.Is(err, ErrUnknownExchange) {
		t.Errorf("Decode = %v, want ErrUnknownExchange", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Error("Decode accepted garbage")
	}
}

func TestKindNames(t *testing.T) {
	if got := KindGetClientsInRoom.String(); got == "" {
		t.Error("KindGetClientsInRoom has no name")
	}
	if got := ExchangeKind(99).String(); got != "exchange(99)" {
		t.Errorf("ExchangeKind(99) = %q", got)
	}
	if got := AnnounceDisconnect.String(); got != "disconnect" {
		t.Errorf("AnnounceDisconnect = %q, want disconnect", got)
	}
}
