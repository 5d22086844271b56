// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"maps"
	"slices"
)

// Membership records that Client has joined Room. It is the persistent
// part of State.
type Membership struct {
	Client string
	Room   string
}

// State is the chat server's view of clients and rooms. It is not safe
// for concurrent use; the server only touches it from the request
// consumer goroutine, or while that goroutine is not running.
type State struct {
	online map[string]struct{}

	// roomsOf holds every membership, online or not.
	roomsOf map[string]map[string]struct{}

	// onlineIn holds the online members of each room. A room with no
	// online members has no entry.
	onlineIn map[string]map[string]struct{}
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		online:   make(map[string]struct{}),
		roomsOf:  make(map[string]map[string]struct{}),
		onlineIn: make(map[string]map[string]struct{}),
	}
}

// RestoreState rebuilds a state from saved memberships, with every
// client offline.
func RestoreState(memberships []Membership) *State {
	state := NewState()
	for _, membership := range memberships {
		addToSet(state.roomsOf, membership.Client, membership.Room)
	}
	return state
}

// ConnectClient marks client online in every room it has joined.
func (s *State) ConnectClient(client string) {
	s.online[client] = struct{}{}
	for room := range s.roomsOf[client] {
		addToSet(s.onlineIn, room, client)
	}
}

// DisconnectClient marks client offline. Its memberships are kept.
func (s *State) DisconnectClient(client string) {
	delete(s.online, client)
	for room := range s.roomsOf[client] {
		removeFromSet(s.onlineIn, room, client)
	}
}

// DisconnectAll marks every client offline.
func (s *State) DisconnectAll() {
	for client := range s.online {
		s.DisconnectClient(client)
	}
}

// IsConnected reports whether client is online.
func (s *State) IsConnected(client string) bool {
	_, ok := s.online[client]
	return ok
}

// JoinRoom records the membership. It reports false if client was
// already a member.
func (s *State) JoinRoom(client, room string) bool {
	if s.IsInRoom(client, room) {
		return false
	}
	addToSet(s.roomsOf, client, room)
	if s.IsConnected(client) {
		addToSet(s.onlineIn, room, client)
	}
	return true
}

// LeaveRoom removes the membership. It reports false if client was not
// a member.
func (s *State) LeaveRoom(client, room string) bool {
	if !s.IsInRoom(client, room) {
		return false
	}
	removeFromSet(s.roomsOf, client, room)
	removeFromSet(s.onlineIn, room, client)
	return true
}

// IsInRoom reports whether client has joined room.
func (s *State) IsInRoom(client, room string) bool {
	_, ok := s.roomsOf[client][room]
	return ok
}

// RoomsOf returns client's rooms, sorted.
func (s *State) RoomsOf(client string) []string {
	return sortedKeys(s.roomsOf[client])
}

// ClientsIn returns the online members of room, sorted.
func (s *State) ClientsIn(room string) []string {
	return sortedKeys(s.onlineIn[room])
}

// ActiveRooms returns the rooms with at least one online member,
// sorted.
func (s *State) ActiveRooms() []string {
	return sortedKeys(s.onlineIn)
}

// Memberships returns every membership, sorted by client then room.
func (s *State) Memberships() []Membership {
	var memberships []Membership
	for _, client := range sortedKeys(s.roomsOf) {
		for _, room := range sortedKeys(s.roomsOf[client]) {
			memberships = append(memberships, Membership{Client: client, Room: room})
		}
	}
	return memberships
}

func addToSet[V any](sets map[string]map[string]V, key, member string) {
	set, ok := sets[key]
	if !ok {
		set = make(map[string]V)
		sets[key] = set
	}
	var zero V
	set[member] = zero
}

// removeFromSet deletes member and drops the set once it is empty.
func removeFromSet[V any](sets map[string]map[string]V, key, member string) {
	set, ok := sets[key]
	if !ok {
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(sets, key)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
