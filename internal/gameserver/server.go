package gameserver

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fl-w/termibbl/internal/config"
	"github.com/fl-w/termibbl/internal/events"
	"github.com/fl-w/termibbl/internal/game"
	"github.com/fl-w/termibbl/internal/protocol"
)

// maxConnections is the size of the connection id space.
const maxConnections = 256

// defaultRoomName is the public room every server starts with.
const defaultRoomName = "main"

// freeDrawRoomName is the public free-draw room every server starts with.
const freeDrawRoomName = "sketchpad"

// fallbackNames are handed to players who never picked a display name.
var fallbackNames = []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi"}

// connectedUser is the orchestrator's record of one live session.
type connectedUser struct {
	mailbox events.Sender[sessionEvent]
	client  ClientSender
	// room is the registry key of the joined room, empty while idle.
	room string
	name string
}

// Server is the orchestrator: the single goroutine that owns the user
// registry and every room. Sessions and the acceptor reach it only through
// its event queue.
type Server struct {
	cfg    config.Config
	words  []string
	logger *zap.Logger

	queue *events.Queue[serverEvent]
	users map[game.PlayerID]*connectedUser
	rooms map[string]*Room

	sessions sync.WaitGroup
}

// NewServer creates the orchestrator with the two standing public rooms.
//
// Precondition: words must be non-empty; logger must be non-nil.
func NewServer(cfg config.Config, words []string, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		words:  words,
		logger: logger,
		queue:  events.NewQueue[serverEvent](logger),
		users:  make(map[game.PlayerID]*connectedUser),
		rooms:  make(map[string]*Room),
	}
	s.rooms[defaultRoomName] = newRoom(defaultRoomName, s.gameOpts(), nil, false, s.tickFn(defaultRoomName), logger)
	s.rooms[freeDrawRoomName] = newRoom(freeDrawRoomName, s.gameOpts(), nil, true, s.tickFn(freeDrawRoomName), logger)
	return s
}

// HandleConn implements ConnHandler: accepted connections are handed to the
// orchestrator loop, which assigns the id and spawns the session.
func (s *Server) HandleConn(conn net.Conn) {
	s.queue.Sender().Send(connectEvent{conn: conn})
}

// Shutdown asks the orchestrator to kick everyone and stop. It may be
// called from any goroutine and returns immediately.
func (s *Server) Shutdown() {
	s.queue.Sender().SendImmediate(shutdownEvent{})
}

// Run drives the orchestrator loop until Shutdown or ctx cancellation.
// It blocks; run it on its own goroutine.
//
// Postcondition: All sessions have been kicked and have exited.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("game server started",
		zap.Strings("rooms", s.roomNames()),
		zap.Int("words", len(s.words)),
	)

	for {
		ev, err := s.queue.Recv(ctx)
		if err != nil {
			s.stopAll()
			return err
		}
		if done := s.handleEvent(ev); done {
			s.stopAll()
			return nil
		}
	}
}

func (s *Server) handleEvent(ev serverEvent) (done bool) {
	switch ev := ev.(type) {
	case connectEvent:
		s.onConnect(ev.conn)
	case roomRequestEvent:
		s.onRoomRequest(ev.from, ev.req)
	case inRoomEvent:
		s.onInRoomMessage(ev.from, ev.msg)
	case listRoomsEvent:
		s.onListRooms(ev.id)
	case disconnectEvent:
		s.onDisconnect(ev.id)
	case roomTickEvent:
		if room, ok := s.rooms[ev.roomName]; ok {
			room.Tick()
		}
	case shutdownEvent:
		return true
	}
	return false
}

// onConnect assigns a connection id and spawns the session actor. The id is
// picked by rejection sampling over the single-byte id space.
func (s *Server) onConnect(conn net.Conn) {
	if len(s.users) >= maxConnections {
		s.logger.Warn("rejecting connection, server full",
			zap.String("remote_addr", conn.RemoteAddr().String()),
		)
		w := protocol.NewMessageWriter[protocol.ToClient](conn)
		_ = w.WriteMessage(protocol.Kicked{Reason: "server is full"})
		_ = conn.Close()
		return
	}

	id := s.genUniqueID()
	sess := NewSession(id, conn, s.queue.Sender(), s.cfg, s.logger)
	s.users[id] = &connectedUser{
		mailbox: sess.mailbox(),
		client:  sess.ClientSender(),
	}

	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		sess.Run()
	}()

	s.logger.Info("session started",
		zap.Uint8("session_id", id),
		zap.Int("connected", len(s.users)),
	)
}

func (s *Server) genUniqueID() game.PlayerID {
	for {
		id := game.PlayerID(rand.Intn(maxConnections))
		if _, taken := s.users[id]; !taken {
			return id
		}
	}
}

// onRoomRequest places an idle session into a room, creating one if asked.
// A session already in a room is violating the protocol and gets kicked.
func (s *Server) onRoomRequest(from game.Username, req protocol.RoomRequest) {
	u, ok := s.users[from.ID]
	if !ok {
		return
	}
	if u.room != "" {
		s.kickUser(from.ID, "cannot join multiple rooms")
		return
	}

	name := from.Name
	if name == "" {
		name = fallbackNames[rand.Intn(len(fallbackNames))]
	}
	user := game.NewUsername(name, from.ID)

	var room *Room
	switch req := req.(type) {
	case protocol.RoomJoin:
		room, ok = s.rooms[req.RoomName]
		if !ok {
			s.kickUser(from.ID, fmt.Sprintf("room not found: %s", req.RoomName))
			return
		}
	case protocol.RoomCreate:
		room = s.createRoom(user)
	case protocol.RoomFind:
		room = s.findOpenRoom()
		if room == nil {
			s.kickUser(from.ID, "all rooms are full")
			return
		}
	default:
		s.kickUser(from.ID, "unknown room request")
		return
	}

	if room.IsFull() {
		s.kickUser(from.ID, fmt.Sprintf("room %s is full", room.Name()))
		return
	}

	u.room = room.Name()
	u.name = name
	room.Connect(user, u.client)
}

// createRoom makes a new owned room under a free registry key.
func (s *Server) createRoom(owner game.Username) *Room {
	base := fmt.Sprintf("%s's room", owner.Name)
	name := base
	for n := 2; ; n++ {
		if _, taken := s.rooms[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s %d", base, n)
	}

	room := newRoom(name, s.gameOpts(), &owner, false, s.tickFn(name), s.logger)
	s.rooms[name] = room
	s.logger.Info("room created",
		zap.String("room", name),
		zap.String("owner", owner.Tag()),
	)
	return room
}

// findOpenRoom picks a public guessing room with a free slot, falling back
// to the free-draw room. Iteration is over sorted names so placement is
// deterministic.
func (s *Server) findOpenRoom() *Room {
	var fallback *Room
	for _, name := range s.roomNames() {
		room := s.rooms[name]
		if !room.IsPublic() || room.IsFull() {
			continue
		}
		if room.Kind() != game.FreeDraw {
			return room
		}
		if fallback == nil {
			fallback = room
		}
	}
	return fallback
}

// onInRoomMessage forwards game traffic from a session to its room.
func (s *Server) onInRoomMessage(from game.Username, msg protocol.ToServer) {
	u, ok := s.users[from.ID]
	if !ok || u.room == "" {
		return
	}
	if room, exists := s.rooms[u.room]; exists {
		room.HandleMessage(from, msg)
	}
}

// onListRooms answers with a system chat line listing the open rooms.
func (s *Server) onListRooms(id game.PlayerID) {
	u, ok := s.users[id]
	if !ok {
		return
	}

	lines := make([]string, 0, len(s.rooms))
	for _, name := range s.roomNames() {
		room := s.rooms[name]
		if !room.IsPublic() {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s [%s] (%d/%d)",
			name, room.Kind(), room.Len(), s.cfg.Game.MaxRoomSize))
	}
	if len(lines) == 0 {
		lines = append(lines, "no open rooms")
	}

	u.client.SendToClient(protocol.Chat{
		Message: protocol.SystemMessage(strings.Join(lines, "\n")),
	})
}

// onDisconnect drops a departed session from the registry and its room.
// Safe to deliver more than once per session.
func (s *Server) onDisconnect(id game.PlayerID) {
	u, ok := s.users[id]
	if !ok {
		return
	}
	delete(s.users, id)

	if u.room == "" {
		return
	}
	room, exists := s.rooms[u.room]
	if !exists {
		return
	}

	room.Disconnect(id)

	// Owned rooms disappear with their last member; the standing public
	// rooms stay.
	if room.Len() == 0 && !room.IsPublic() {
		delete(s.rooms, room.Name())
		s.logger.Info("room removed", zap.String("room", room.Name()))
	}
}

// kickUser force-disconnects a session with a reason. The kick jumps ahead
// of any queued broadcasts; registry cleanup happens right away rather than
// waiting for the session's own disconnect event.
func (s *Server) kickUser(id game.PlayerID, reason string) {
	u, ok := s.users[id]
	if !ok {
		return
	}
	u.mailbox.SendImmediate(outboundEvent{msg: protocol.Kicked{Reason: reason}})
	s.onDisconnect(id)
}

// stopAll kicks every session and waits for the actors to exit.
func (s *Server) stopAll() {
	for id := range s.users {
		s.kickUser(id, "server shutting down")
	}
	s.queue.Close()
	s.sessions.Wait()
	s.logger.Info("game server stopped")
}

func (s *Server) tickFn(roomName string) func(time.Duration) {
	return func(d time.Duration) {
		s.queue.Sender().SendAfter(roomTickEvent{roomName: roomName}, d)
	}
}

func (s *Server) gameOpts() game.GameOpts {
	return game.GameOpts{
		Dimensions: game.Coord{
			X: uint16(s.cfg.Game.CanvasWidth),
			Y: uint16(s.cfg.Game.CanvasHeight),
		},
		Rounds:        s.cfg.Game.Rounds,
		RoundDuration: s.cfg.Game.RoundDuration,
		MaxRoomSize:   s.cfg.Game.MaxRoomSize,
		MinPlayers:    s.cfg.Game.MinPlayers,
		Words:         s.words,
	}
}

func (s *Server) roomNames() []string {
	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
