// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"

	"github.com/bureau-foundation/courier/lib/codec"
)

// ExchangeKind tags an Exchange on the wire. Do not renumber.
type ExchangeKind uint8

const (
	KindConnect ExchangeKind = iota + 1
	KindDisconnect
	KindSendMessage
	KindJoinRoom
	KindLeaveRoom
	KindGetJoinedRooms
	KindGetAllRooms
	KindGetClientsInRoom
	KindOperationResponse
	KindGetJoinedRoomsResponse
	KindGetAllRoomsResponse
	KindGetClientsInRoomResponse
	KindAnnouncement
)

var exchangeKindNames = map[ExchangeKind]string{
	KindConnect:                  "connect",
	KindDisconnect:               "disconnect",
	KindSendMessage:              "send_message",
	KindJoinRoom:                 "join_room",
	KindLeaveRoom:                "leave_room",
	KindGetJoinedRooms:           "get_joined_rooms",
	KindGetAllRooms:              "get_all_rooms",
	KindGetClientsInRoom:         "get_clients_in_room",
	KindOperationResponse:        "operation_response",
	KindGetJoinedRoomsResponse:   "get_joined_rooms_response",
	KindGetAllRoomsResponse:      "get_all_rooms_response",
	KindGetClientsInRoomResponse: "get_clients_in_room_response",
	KindAnnouncement:             "announcement",
}

func (k ExchangeKind) String() string {
	if name, ok := exchangeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("exchange(%d)", uint8(k))
}

// Exchange is one chat protocol message. The set of implementations is
// closed: every concrete type is declared in this file.
type Exchange interface {
	Kind() ExchangeKind
	exchange()
}

// ChatMessage is a line of text sent to a room.
type ChatMessage struct {
	// From is the sender's address. The server overwrites it with the
	// address the request actually came from.
	From string `cbor:"1,keyasint"`
	Room string `cbor:"2,keyasint"`
	Text string `cbor:"3,keyasint"`
}

// AnnouncementKind says what happened to a client in a room.
type AnnouncementKind uint8

const (
	// AnnounceJoin is sent when a client joins a room or logs in while
	// a member of it.
	AnnounceJoin AnnouncementKind = iota + 1

	// AnnounceLeave is sent when a client leaves a room.
	AnnounceLeave

	// AnnounceDisconnect is sent when a member of the room logs out.
	AnnounceDisconnect
)

func (k AnnouncementKind) String() string {
	switch k {
	case AnnounceJoin:
		return "join"
	case AnnounceLeave:
		return "leave"
	case AnnounceDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("announcement(%d)", uint8(k))
	}
}

// RoomAnnouncement tells room members about another member.
type RoomAnnouncement struct {
	Client string           `cbor:"1,keyasint"`
	Room   string           `cbor:"2,keyasint"`
	Kind   AnnouncementKind `cbor:"3,keyasint"`
}

// FailureReason explains an unsuccessful OperationResponse.
type FailureReason string

const (
	ReasonAlreadyInRoom FailureReason = "already_in_room"
	ReasonNotInRoom     FailureReason = "not_in_room"
	ReasonNotLoggedIn   FailureReason = "not_logged_in"
	ReasonInvalidRoom   FailureReason = "invalid_room"
)

type (
	// ConnectRequest logs the sender in.
	ConnectRequest struct{}

	// DisconnectRequest logs the sender out.
	DisconnectRequest struct{}

	// SendMessageRequest asks the server to broadcast Message to its
	// room. The server forwards the same exchange to room members.
	SendMessageRequest struct {
		Message ChatMessage `cbor:"1,keyasint"`
	}

	// JoinRoomRequest adds the sender to Room, creating it if needed.
	JoinRoomRequest struct {
		Room string `cbor:"1,keyasint"`
	}

	// LeaveRoomRequest removes the sender from Room.
	LeaveRoomRequest struct {
		Room string `cbor:"1,keyasint"`
	}

	// GetJoinedRoomsRequest lists the sender's rooms.
	GetJoinedRoomsRequest struct{}

	// GetAllRoomsRequest lists rooms with at least one online member.
	GetAllRoomsRequest struct{}

	// GetClientsInRoomRequest lists the online members of Room.
	GetClientsInRoomRequest struct {
		Room string `cbor:"1,keyasint"`
	}

	// OperationResponse answers connect, disconnect, join, leave, and
	// send requests.
	OperationResponse struct {
		Success bool          `cbor:"1,keyasint"`
		Reason  FailureReason `cbor:"2,keyasint,omitempty"`
	}

	// GetJoinedRoomsResponse answers GetJoinedRoomsRequest.
	GetJoinedRoomsResponse struct {
		Rooms []string `cbor:"1,keyasint"`
	}

	// GetAllRoomsResponse answers GetAllRoomsRequest.
	GetAllRoomsResponse struct {
		Rooms []string `cbor:"1,keyasint"`
	}

	// GetClientsInRoomResponse answers GetClientsInRoomRequest.
	GetClientsInRoomResponse struct {
		Clients []string `cbor:"1,keyasint"`
	}

	// AnnouncementRequest carries a RoomAnnouncement to a client.
	AnnouncementRequest struct {
		Announcement RoomAnnouncement `cbor:"1,keyasint"`
	}
)

func (ConnectRequest) Kind() ExchangeKind           { return KindConnect }
func (DisconnectRequest) Kind() ExchangeKind        { return KindDisconnect }
func (SendMessageRequest) Kind() ExchangeKind       { return KindSendMessage }
func (JoinRoomRequest) Kind() ExchangeKind          { return KindJoinRoom }
func (LeaveRoomRequest) Kind() ExchangeKind         { return KindLeaveRoom }
func (GetJoinedRoomsRequest) Kind() ExchangeKind    { return KindGetJoinedRooms }
func (GetAllRoomsRequest) Kind() ExchangeKind       { return KindGetAllRooms }
func (GetClientsInRoomRequest) Kind() ExchangeKind  { return KindGetClientsInRoom }
func (OperationResponse) Kind() ExchangeKind        { return KindOperationResponse }
func (GetJoinedRoomsResponse) Kind() ExchangeKind   { return KindGetJoinedRoomsResponse }
func (GetAllRoomsResponse) Kind() ExchangeKind      { return KindGetAllRoomsResponse }
func (GetClientsInRoomResponse) Kind() ExchangeKind { return KindGetClientsInRoomResponse }
func (AnnouncementRequest) Kind() ExchangeKind      { return KindAnnouncement }

func (ConnectRequest) exchange()           {}
func (DisconnectRequest) exchange()        {}
func (SendMessageRequest) exchange()       {}
func (JoinRoomRequest) exchange()          {}
func (LeaveRoomRequest) exchange()         {}
func (GetJoinedRoomsRequest) exchange()    {}
func (GetAllRoomsRequest) exchange()       {}
func (GetClientsInRoomRequest) exchange()  {}
func (OperationResponse) exchange()        {}
func (GetJoinedRoomsResponse) exchange()   {}
func (GetAllRoomsResponse) exchange()      {}
func (GetClientsInRoomResponse) exchange() {}
func (AnnouncementRequest) exchange()      {}

// frame is the wire form of an Exchange: the kind tag plus the
// exchange's own CBOR encoding.
type frame struct {
	Kind ExchangeKind     `cbor:"1,keyasint"`
	Body codec.RawMessage `cbor:"2,keyasint"`
}

// Encode serializes exchange.
func Encode(exchange Exchange) ([]byte, error) {
	body, err := codec.Marshal(exchange)
	if err != nil {
		return nil, fmt.Errorf("chat: encoding %s: %w", exchange.Kind(), err)
	}
	data, err := codec.Marshal(frame{Kind: exchange.Kind(), Body: body})
	if err != nil {
		return nil, fmt.Errorf("chat: encoding %s frame: %w", exchange.Kind(), err)
	}
	return data, nil
}

// Decode parses a frame produced by Encode. The concrete type of the
// result is one of the value types declared in this file.
func Decode(data []byte) (Exchange, error) {
	var envelope frame
	if err := codec.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("chat: decoding frame: %w", err)
	}

	switch envelope.Kind {
	case KindConnect:
		return decodeBody[ConnectRequest](envelope)
	case KindDisconnect:
		return decodeBody[DisconnectRequest](envelope)
	case KindSendMessage:
		return decodeBody[SendMessageRequest](envelope)
	case KindJoinRoom:
		return decodeBody[JoinRoomRequest](envelope)
	case KindLeaveRoom:
		return decodeBody[LeaveRoomRequest](envelope)
	case KindGetJoinedRooms:
		return decodeBody[GetJoinedRoomsRequest](envelope)
	case KindGetAllRooms:
		return decodeBody[GetAllRoomsRequest](envelope)
	case KindGetClientsInRoom:
		return decodeBody[GetClientsInRoomRequest](envelope)
	case KindOperationResponse:
		return decodeBody[OperationResponse](envelope)
	case KindGetJoinedRoomsResponse:
		return decodeBody[GetJoinedRoomsResponse](envelope)
	case KindGetAllRoomsResponse:
		return decodeBody[GetAllRoomsResponse](envelope)
	case KindGetClientsInRoomResponse:
		return decodeBody[GetClientsInRoomResponse](envelope)
	case KindAnnouncement:
		return decodeBody[AnnouncementRequest](envelope)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownExchange, uint8(envelope.Kind))
	}
}

func decodeBody[T Exchange](envelope frame) (Exchange, error) {
	var exchange T
	if err := codec.Unmarshal(envelope.Body, &exchange); err != nil {
		return nil, fmt.Errorf("chat: decoding %s: %w", envelope.Kind, err)
	}
	return exchange, nil
}
