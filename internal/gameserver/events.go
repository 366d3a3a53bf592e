package gameserver

import (
	"net"

	"github.com/fl-w/termibbl/internal/events"
	"github.com/fl-w/termibbl/internal/game"
	"github.com/fl-w/termibbl/internal/protocol"
)

// serverEvent is the closed set of events delivered to the orchestrator
// loop. All registry and room mutation happens while handling these.
type serverEvent interface{ isServerEvent() }

// connectEvent hands a freshly accepted connection to the orchestrator.
type connectEvent struct {
	conn net.Conn
}

// roomRequestEvent is an idle session asking to be placed in a room.
type roomRequestEvent struct {
	from game.Username
	req  protocol.RoomRequest
}

// inRoomEvent is an in-game session forwarding a message to its room.
type inRoomEvent struct {
	from game.Username
	msg  protocol.ToServer
}

// listRoomsEvent asks for the open-room listing on behalf of a session.
type listRoomsEvent struct {
	id game.PlayerID
}

// disconnectEvent reports that a session's connection is gone. Delivery is
// idempotent; the orchestrator ignores unknown ids.
type disconnectEvent struct {
	id game.PlayerID
}

// roomTickEvent drives one second of game time in the named room.
type roomTickEvent struct {
	roomName string
}

// shutdownEvent asks the orchestrator to kick everyone and stop.
type shutdownEvent struct{}

func (connectEvent) isServerEvent()     {}
func (roomRequestEvent) isServerEvent() {}
func (inRoomEvent) isServerEvent()      {}
func (listRoomsEvent) isServerEvent()   {}
func (disconnectEvent) isServerEvent()  {}
func (roomTickEvent) isServerEvent()    {}
func (shutdownEvent) isServerEvent()    {}

// sessionEvent is the closed set of events delivered to one session actor's
// control loop.
type sessionEvent interface{ isSessionEvent() }

// outboundEvent carries a server-to-client message to be written to the wire.
type outboundEvent struct {
	msg protocol.ToClient
}

// inboundEvent carries a decoded client message from the reader goroutine.
type inboundEvent struct {
	msg protocol.ToServer
}

// readFailedEvent reports that the reader goroutine stopped.
type readFailedEvent struct {
	err error
}

// heartbeatTickEvent wakes the session loop to check the keep-alive deadline.
type heartbeatTickEvent struct{}

func (outboundEvent) isSessionEvent()      {}
func (inboundEvent) isSessionEvent()       {}
func (readFailedEvent) isSessionEvent()    {}
func (heartbeatTickEvent) isSessionEvent() {}

// ClientSender pushes one message toward a connected client without
// blocking. Rooms hold one per member; the session actor behind it owns the
// actual socket write.
type ClientSender interface {
	SendToClient(msg protocol.ToClient)
}

// queueClientSender adapts a session's mailbox sender to ClientSender.
type queueClientSender struct {
	sender events.Sender[sessionEvent]
}

func (q queueClientSender) SendToClient(msg protocol.ToClient) {
	q.sender.Send(outboundEvent{msg: msg})
}
