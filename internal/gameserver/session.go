package gameserver

import (
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fl-w/termibbl/internal/config"
	"github.com/fl-w/termibbl/internal/events"
	"github.com/fl-w/termibbl/internal/game"
	"github.com/fl-w/termibbl/internal/protocol"
)

// sessionState tracks where a connection is in its lifecycle.
type sessionState uint8

const (
	// stateIdle sessions have connected but joined no room yet.
	stateIdle sessionState = iota
	// stateInGame sessions belong to a room; game traffic is forwarded.
	stateInGame
	// stateStopped sessions are tearing down.
	stateStopped
)

// Session is the actor owning one client connection. A reader goroutine
// decodes frames into the session's mailbox; the control loop is the only
// writer to the socket and the only goroutine touching session state.
type Session struct {
	id      game.PlayerID
	traceID string
	conn    net.Conn
	queue   *events.Queue[sessionEvent]
	server  events.Sender[serverEvent]
	logger  *zap.Logger

	writer       *protocol.MessageWriter[protocol.ToClient]
	readTimeout  time.Duration
	writeTimeout time.Duration
	hbTimeout    time.Duration
	chatLimiter  *rate.Limiter

	state         sessionState
	name          string
	username      game.Username
	lastHeartbeat time.Time
}

// NewSession creates the actor for one accepted connection.
//
// Precondition: conn and logger must be non-nil; server must come from the
// orchestrator's queue.
// Postcondition: Returns a session ready to Run. Nothing is read or written
// until Run is called.
func NewSession(id game.PlayerID, conn net.Conn, server events.Sender[serverEvent], cfg config.Config, logger *zap.Logger) *Session {
	traceID := uuid.NewString()
	logger = logger.With(
		zap.String("trace_id", traceID),
		zap.Uint8("session_id", id),
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)
	return &Session{
		id:           id,
		traceID:      traceID,
		conn:         conn,
		queue:        events.NewQueue[sessionEvent](logger),
		server:       server,
		logger:       logger,
		writer:       protocol.NewMessageWriter[protocol.ToClient](conn),
		readTimeout:  cfg.Listen.ReadTimeout,
		writeTimeout: cfg.Listen.WriteTimeout,
		hbTimeout:    cfg.Listen.HeartbeatTimeout,
		chatLimiter:  rate.NewLimiter(rate.Limit(cfg.Game.ChatRatePerSecond), cfg.Game.ChatBurst),
	}
}

// ClientSender returns the handle rooms use to push messages to this client.
func (s *Session) ClientSender() ClientSender {
	return queueClientSender{sender: s.queue.Sender()}
}

// mailbox returns the raw sender for orchestrator-side urgent delivery.
func (s *Session) mailbox() events.Sender[sessionEvent] {
	return s.queue.Sender()
}

// Run drives the session until the client disconnects, times out, or is
// kicked. It blocks; the orchestrator runs it on its own goroutine.
//
// Postcondition: The connection is closed and a disconnect event has been
// delivered to the orchestrator.
func (s *Session) Run() {
	start := time.Now()
	s.lastHeartbeat = start

	defer func() {
		s.queue.Close()
		_ = s.conn.Close()
		s.server.Send(disconnectEvent{id: s.id})
		s.logger.Info("session ended", zap.Duration("duration", time.Since(start)))
	}()

	go s.readLoop()
	s.queue.Sender().SendAfter(heartbeatTickEvent{}, s.hbTimeout/2)

	for s.state != stateStopped {
		wait := time.Until(s.lastHeartbeat.Add(s.hbTimeout))
		if wait <= 0 {
			s.logger.Info("heartbeat timeout, disconnecting client")
			s.writeToClient(protocol.Kicked{Reason: "connection timed out"})
			return
		}

		ev, ok := s.queue.RecvTimeout(wait)
		if !ok {
			continue
		}
		s.handleEvent(ev)
	}
}

func (s *Session) handleEvent(ev sessionEvent) {
	switch ev := ev.(type) {
	case heartbeatTickEvent:
		s.queue.Sender().SendAfter(heartbeatTickEvent{}, s.hbTimeout/2)

	case readFailedEvent:
		if errors.Is(ev.err, io.EOF) {
			s.logger.Debug("client closed connection")
		} else {
			s.logger.Warn("read failed", zap.Error(ev.err))
		}
		s.state = stateStopped

	case outboundEvent:
		s.writeToClient(ev.msg)
		switch msg := ev.msg.(type) {
		case protocol.JoinRoom:
			// Receiving the confirmation is what moves the session in-game.
			s.state = stateInGame
			s.username = msg.Username
		case protocol.Kicked:
			s.logger.Info("session kicked", zap.String("reason", msg.Reason))
			s.state = stateStopped
		}

	case inboundEvent:
		s.handleInbound(ev.msg)
	}
}

func (s *Session) handleInbound(msg protocol.ToServer) {
	if _, isPing := msg.(protocol.Ping); isPing {
		s.lastHeartbeat = time.Now()
		return
	}

	switch s.state {
	case stateIdle:
		switch m := msg.(type) {
		case protocol.Login:
			s.name = strings.TrimSpace(m.Name)
		case protocol.RequestRoom:
			name := s.name
			if m.Name != nil && strings.TrimSpace(*m.Name) != "" {
				name = strings.TrimSpace(*m.Name)
			}
			s.server.Send(roomRequestEvent{
				from: game.NewUsername(name, s.id),
				req:  m.Req,
			})
		case protocol.ListRoom:
			s.server.Send(listRoomsEvent{id: s.id})
		default:
			s.kick("unexpected message before joining a room")
		}

	case stateInGame:
		switch m := msg.(type) {
		case protocol.RequestRoom:
			// Join attempts are judged by the orchestrator, which kicks
			// sessions that already belong to a room.
			s.server.Send(roomRequestEvent{from: s.username, req: m.Req})
		case protocol.Chat:
			if !s.chatLimiter.Allow() {
				s.logger.Warn("chat rate limit exceeded, dropping message")
				return
			}
			s.server.Send(inRoomEvent{from: s.username, msg: msg})
		default:
			s.server.Send(inRoomEvent{from: s.username, msg: msg})
		}
	}
}

// kick terminates the session for a protocol violation, telling the client why.
func (s *Session) kick(reason string) {
	s.logger.Warn("kicking client", zap.String("reason", reason))
	s.writeToClient(protocol.Kicked{Reason: reason})
	s.state = stateStopped
}

func (s *Session) writeToClient(msg protocol.ToClient) {
	if s.state == stateStopped {
		return
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.writer.WriteMessage(msg); err != nil {
		s.logger.Warn("write failed", zap.Error(err))
		s.state = stateStopped
	}
}

// readLoop decodes frames off the socket and forwards them to the control
// loop. It exits when the connection dies; the control loop owns teardown.
func (s *Session) readLoop() {
	reader := protocol.NewMessageReader[protocol.ToServer](s.conn)
	sender := s.queue.Sender()

	for {
		if s.readTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		msg, err := reader.ReadMessage()
		if err != nil {
			sender.SendImmediate(readFailedEvent{err: err})
			return
		}
		sender.Send(inboundEvent{msg: msg})
	}
}
