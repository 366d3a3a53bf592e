// Package protocol defines the wire messages exchanged between client and
// server and the length-prefixed framing codec that carries them over TCP.
package protocol

import (
	"encoding/gob"
	"fmt"

	"github.com/fl-w/termibbl/internal/game"
)

// ToServer is the closed set of client-to-server messages.
type ToServer interface{ isToServer() }

// ToClient is the closed set of server-to-client messages.
type ToClient interface{ isToClient() }

// Ping is the client keep-alive. It carries no payload and is never
// forwarded past the session actor.
type Ping struct{}

// Login announces the client's preferred display name.
type Login struct {
	Name string
}

// Chat carries a chat line; it flows in both directions.
type Chat struct {
	Message ChatMessage
}

// Draw carries a canvas action; it flows in both directions.
type Draw struct {
	Action game.Draw
}

// RequestRoom asks the server to find, create, or join a room. Name is the
// requested display name; nil lets the server pick one.
type RequestRoom struct {
	Name *string
	Req  RoomRequest
}

// ListRoom asks the server for the list of open rooms.
type ListRoom struct{}

func (Ping) isToServer()        {}
func (Login) isToServer()       {}
func (Chat) isToServer()        {}
func (Draw) isToServer()        {}
func (RequestRoom) isToServer() {}
func (ListRoom) isToServer()    {}

// RoomRequest is the closed set of room actions inside a RequestRoom.
type RoomRequest interface{ isRoomRequest() }

// RoomFind joins any public room with a free slot.
type RoomFind struct{}

// RoomCreate creates a new room owned by the requester.
type RoomCreate struct{}

// RoomJoin joins the named room.
type RoomJoin struct {
	RoomName string
}

func (RoomFind) isRoomRequest()   {}
func (RoomCreate) isRoomRequest() {}
func (RoomJoin) isRoomRequest()   {}

// PlayerConnect announces a player joining the room.
type PlayerConnect struct {
	Player game.Player
}

// PlayerDisconnect announces a player leaving the room.
type PlayerDisconnect struct {
	Who game.Username
}

// Kicked tells the client it has been disconnected, and why.
type Kicked struct {
	Reason string
}

// TurnStart announces a new turn. The drawer receives the plaintext word
// variant; everyone else receives the hint variant.
type TurnStart struct {
	Turn game.Turn
}

// RoomStateChange broadcasts the room's new state snapshot.
type RoomStateChange struct {
	State game.RoomState
}

// JoinRoom confirms room membership to the joining client and carries the
// initial room view. Receiving it is what moves a session into the room.
type JoinRoom struct {
	Username     game.Username
	Players      []game.Player
	InitialState game.RoomState
}

// TimeChanged broadcasts the seconds remaining in the current turn.
type TimeChanged struct {
	Seconds uint32
}

func (Chat) isToClient()             {}
func (Draw) isToClient()             {}
func (PlayerConnect) isToClient()    {}
func (PlayerDisconnect) isToClient() {}
func (Kicked) isToClient()           {}
func (TurnStart) isToClient()        {}
func (RoomStateChange) isToClient()  {}
func (JoinRoom) isToClient()         {}
func (TimeChanged) isToClient()      {}

// ChatMessage is a chat line. From is nil for system messages.
type ChatMessage struct {
	From *game.Username
	Text string
}

// SystemMessage builds a server-originated chat line.
func SystemMessage(text string) ChatMessage {
	return ChatMessage{Text: text}
}

// UserMessage builds a player-originated chat line.
func UserMessage(from game.Username, text string) ChatMessage {
	return ChatMessage{From: &from, Text: text}
}

// IsSystem reports whether the message came from the server.
func (m ChatMessage) IsSystem() bool { return m.From == nil }

// Username returns the sender, or (zero, false) for system messages.
func (m ChatMessage) Username() (game.Username, bool) {
	if m.From == nil {
		return game.Username{}, false
	}
	return *m.From, true
}

// String renders the line the way clients display it.
func (m ChatMessage) String() string {
	if m.From == nil {
		return m.Text
	}
	return fmt.Sprintf("%s: %s", m.From, m.Text)
}

func init() {
	// Payload encoding is gob; every concrete variant reachable through an
	// interface field must be registered on both ends.
	gob.Register(Ping{})
	gob.Register(Login{})
	gob.Register(Chat{})
	gob.Register(Draw{})
	gob.Register(RequestRoom{})
	gob.Register(ListRoom{})

	gob.Register(RoomFind{})
	gob.Register(RoomCreate{})
	gob.Register(RoomJoin{})

	gob.Register(PlayerConnect{})
	gob.Register(PlayerDisconnect{})
	gob.Register(Kicked{})
	gob.Register(TurnStart{})
	gob.Register(RoomStateChange{})
	gob.Register(JoinRoom{})
	gob.Register(TimeChanged{})

	gob.Register(game.DrawClear{})
	gob.Register(game.DrawErase{})
	gob.Register(game.DrawPaint{})
	gob.Register(game.WordDraw{})
	gob.Register(game.WordGuess{})
}
