package gameserver

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fl-w/termibbl/internal/game"
	"github.com/fl-w/termibbl/internal/protocol"
)

// member is one player's room-side state: the mutable score record and the
// handle for pushing messages back to their session.
type member struct {
	player game.Player
	sender ClientSender
}

// Room owns the membership and game state of one room. It has no goroutine
// and no locks; every method is called from the orchestrator loop.
type Room struct {
	name   string
	opts   game.GameOpts
	owner  *game.Username
	logger *zap.Logger

	kind    game.RoomStateKind
	skribbl *game.Skribbl
	// freeDraw is the standalone canvas of free-draw rooms.
	freeDraw game.Game
	members  map[game.PlayerID]*member

	revealsThisTurn int
	// tickArmed is set while a tick event is in flight so restarting a game
	// cannot double the tick rate.
	tickArmed bool

	// scheduleTick arranges a tick event to come back to this room after d.
	scheduleTick func(d time.Duration)
}

// newRoom creates an empty room. Owned rooms start in the lobby state,
// public ones in waiting; freeDraw overrides both.
func newRoom(name string, opts game.GameOpts, owner *game.Username, freeDraw bool, scheduleTick func(time.Duration), logger *zap.Logger) *Room {
	kind := game.Waiting
	if owner != nil {
		kind = game.Lobby
	}
	if freeDraw {
		kind = game.FreeDraw
	}
	return &Room{
		name:  name,
		opts:  opts,
		owner: owner,
		kind:  kind,
		freeDraw: game.Game{
			Dimensions: opts.Dimensions,
			Canvas:     make(map[game.Coord]game.Color),
		},
		members:      make(map[game.PlayerID]*member),
		scheduleTick: scheduleTick,
		logger:       logger.With(zap.String("room", name)),
	}
}

// Name returns the room's registry key.
func (r *Room) Name() string { return r.name }

// Kind returns the current room state variant.
func (r *Room) Kind() game.RoomStateKind { return r.kind }

// Len returns the member count.
func (r *Room) Len() int { return len(r.members) }

// IsFull reports whether the room has reached its size cap.
func (r *Room) IsFull() bool { return len(r.members) >= r.opts.MaxRoomSize }

// IsPublic reports whether find-a-room requests may place players here.
func (r *Room) IsPublic() bool { return r.owner == nil }

// Has reports whether the given connection id is a member.
func (r *Room) Has(id game.PlayerID) bool {
	_, ok := r.members[id]
	return ok
}

// Connect admits a player: announces them, sends the join confirmation with
// the current room view, and starts a game if the threshold is now met.
//
// Precondition: The room must not be full and id must not already be a member.
func (r *Room) Connect(user game.Username, sender ClientSender) {
	player := game.NewPlayer(user)
	r.broadcast(protocol.PlayerConnect{Player: player})
	r.broadcastSystem(fmt.Sprintf("%s joined the room", user.Name))

	r.members[user.ID] = &member{player: player, sender: sender}

	sender.SendToClient(protocol.JoinRoom{
		Username:     user,
		Players:      r.playerList(),
		InitialState: r.roomState(),
	})

	// A free-draw joiner needs the canvas as it stands; replay it as one
	// paint action per color.
	if r.kind == game.FreeDraw && len(r.freeDraw.Canvas) > 0 {
		byColor := make(map[game.Color][]game.Coord)
		for pt, c := range r.freeDraw.Canvas {
			byColor[c] = append(byColor[c], pt)
		}
		for c, pts := range byColor {
			sender.SendToClient(protocol.Draw{Action: game.DrawPaint{Points: pts, Color: c}})
		}
	}

	r.logger.Info("player joined",
		zap.String("player", user.Tag()),
		zap.Int("members", len(r.members)),
	)

	r.maybeStartGame()
}

// Disconnect removes a departed player and repairs the game around them:
// the draw order forgets them, and if they held the brush the turn advances.
// Unknown ids are ignored.
func (r *Room) Disconnect(id game.PlayerID) {
	m, ok := r.members[id]
	if !ok {
		return
	}
	delete(r.members, id)

	r.broadcast(protocol.PlayerDisconnect{Who: m.player.Name})
	r.broadcastSystem(fmt.Sprintf("%s left the room", m.player.Name.Name))
	r.logger.Info("player left",
		zap.String("player", m.player.Name.Tag()),
		zap.Int("members", len(r.members)),
	)

	if r.kind != game.Playing || r.skribbl == nil {
		return
	}

	wasDrawer := r.skribbl.IsDrawing(id)
	r.skribbl.RemovePending(id)

	switch {
	case len(r.members) < r.opts.MinPlayers:
		r.broadcastSystem("not enough players left, ending the game")
		r.finishGame()
	case wasDrawer:
		r.advanceTurn()
	case r.allSolved():
		r.advanceTurn()
	}
}

// HandleMessage dispatches one in-room message from a member session.
func (r *Room) HandleMessage(from game.Username, msg protocol.ToServer) {
	switch m := msg.(type) {
	case protocol.Chat:
		r.onChat(from, m.Message.Text)
	case protocol.Draw:
		r.onDraw(from.ID, m.Action)
	default:
		r.logger.Debug("ignoring unexpected in-room message",
			zap.String("player", from.Tag()),
		)
	}
}

// onChat routes a chat line. During a game the line doubles as a guess for
// players still eligible to guess; a solving guess is never echoed.
func (r *Room) onChat(from game.Username, text string) {
	m, ok := r.members[from.ID]
	if !ok {
		return
	}

	if r.kind != game.Playing || r.skribbl == nil {
		r.broadcast(protocol.Chat{Message: protocol.UserMessage(from, text)})
		return
	}

	isDrawer := r.skribbl.IsDrawing(from.ID)
	if !isDrawer && !m.player.SolvedCurrentTurn {
		dist := r.skribbl.TryGuess(&m.player, text)
		switch {
		case dist == 0:
			r.broadcastSystem(fmt.Sprintf("%s guessed it!", from.Name))
			if r.allSolved() {
				r.advanceTurn()
			}
		case dist == 1:
			m.sender.SendToClient(protocol.Chat{
				Message: protocol.SystemMessage("You're very close!"),
			})
		default:
			r.broadcast(protocol.Chat{Message: protocol.UserMessage(from, text)})
		}
		return
	}

	// The drawer and players who already solved chat among themselves so
	// the word cannot leak to remaining guessers.
	line := protocol.Chat{Message: protocol.UserMessage(from, text)}
	for id, other := range r.members {
		if r.skribbl.IsDrawing(id) || other.player.SolvedCurrentTurn {
			other.sender.SendToClient(line)
		}
	}
}

// onDraw applies a canvas action. During a game only the drawer may draw;
// anything else is discarded without feedback.
func (r *Room) onDraw(from game.PlayerID, action game.Draw) {
	switch r.kind {
	case game.Playing:
		if r.skribbl == nil || !r.skribbl.IsDrawing(from) {
			r.logger.Debug("discarding draw from non-drawer", zap.Uint8("player_id", from))
			return
		}
		r.skribbl.ApplyDraw(action)
		r.broadcastExcept(from, protocol.Draw{Action: action})
	case game.FreeDraw:
		r.freeDraw.Apply(action)
		r.broadcastExcept(from, protocol.Draw{Action: action})
	default:
		// No canvas to draw on while waiting.
	}
}

// Tick advances one second of game time: turn timeout, scheduled hint
// reveals, and the countdown broadcast. It re-arms itself while a game runs.
func (r *Room) Tick() {
	r.tickArmed = false
	if r.kind != game.Playing || r.skribbl == nil {
		return
	}

	remaining := r.skribbl.Remaining()
	if remaining == 0 {
		r.advanceTurn()
	} else {
		duration := uint32(r.opts.RoundDuration / time.Second)
		switch {
		case remaining <= duration/4 && r.revealsThisTurn < 2:
			r.revealHint()
		case remaining <= duration/2 && r.revealsThisTurn < 1:
			r.revealHint()
		}
		r.broadcast(protocol.TimeChanged{Seconds: remaining})
	}

	if r.kind == game.Playing {
		r.armTick()
	}
}

func (r *Room) armTick() {
	if r.tickArmed {
		return
	}
	r.tickArmed = true
	r.scheduleTick(time.Second)
}

// revealHint uncovers one character for the guessers and pushes the updated
// hint view. The attempt is counted even when the reveal cap blocks it.
func (r *Room) revealHint() {
	r.revealsThisTurn++
	if !r.skribbl.RevealRandomChar() {
		return
	}
	turn := r.skribbl.Turn()
	drawer, _ := r.skribbl.Drawer()
	for id, m := range r.members {
		if id != drawer.ID {
			m.sender.SendToClient(protocol.TurnStart{Turn: turn})
		}
	}
}

// maybeStartGame starts a game once enough players are present.
func (r *Room) maybeStartGame() {
	if r.kind != game.Waiting && r.kind != game.Lobby {
		return
	}
	if len(r.members) < r.opts.MinPlayers {
		return
	}

	r.kind = game.Playing
	r.skribbl = game.NewSkribbl(r.opts)
	r.skribbl.StartRound(r.playerList())
	r.broadcastSystem("enough players, starting the game!")
	r.broadcast(protocol.RoomStateChange{State: r.roomState()})
	r.nextTurn()
	r.armTick()
	r.logger.Info("game started", zap.Int("players", len(r.members)))
}

// advanceTurn ends the current turn: reveals the word, settles the drawer's
// award, and moves on to the next turn, round, or game end.
func (r *Room) advanceTurn() {
	if word := r.skribbl.CurrentWord(); word != "" {
		r.broadcastSystem(fmt.Sprintf("The word was: %s", word))
	}
	if drawer, ok := r.skribbl.Drawer(); ok && r.anySolved() {
		if m, present := r.members[drawer.ID]; present {
			r.skribbl.AwardDrawer(&m.player)
		}
	}
	r.skribbl.EndTurn()
	r.nextTurn()
}

// nextTurn starts the next turn, rolling into a new round when the draw
// order is exhausted and finishing the game after the last round.
func (r *Room) nextTurn() {
	for {
		if r.skribbl.RoundDone() {
			if r.skribbl.IsLastRound() || len(r.members) < r.opts.MinPlayers {
				r.finishGame()
				return
			}
			r.skribbl.StartRound(r.playerList())
		}

		drawer, ok := r.skribbl.StartTurn()
		if !ok {
			continue
		}

		r.revealsThisTurn = 0
		for _, m := range r.members {
			m.player.SolvedCurrentTurn = false
		}

		r.broadcastSystem(fmt.Sprintf("%s is drawing now!", drawer.Name))
		r.broadcastTurn()
		r.broadcast(protocol.TimeChanged{Seconds: r.skribbl.Remaining()})
		return
	}
}

// broadcastTurn sends the turn to everyone, handing the drawer the
// plaintext variant and guessers the hint variant.
func (r *Room) broadcastTurn() {
	turn := r.skribbl.Turn()
	drawerTurn := turn.WithWord(game.WordDraw{Word: r.skribbl.CurrentWord()})
	drawer, _ := r.skribbl.Drawer()

	for id, m := range r.members {
		if id == drawer.ID {
			m.sender.SendToClient(protocol.TurnStart{Turn: drawerTurn})
		} else {
			m.sender.SendToClient(protocol.TurnStart{Turn: turn})
		}
	}
}

// finishGame announces the winner and returns the room to its resting state.
func (r *Room) finishGame() {
	if winner, ok := r.winner(); ok {
		r.broadcastSystem(fmt.Sprintf("%s won the game with %d points!",
			winner.Name.Name, winner.Score))
	}

	r.skribbl = nil
	if r.owner != nil {
		r.kind = game.Lobby
	} else {
		r.kind = game.Waiting
	}
	r.broadcast(protocol.RoomStateChange{State: r.roomState()})
	r.logger.Info("game finished")
}

// winner returns the member with the highest score, ties broken by name.
func (r *Room) winner() (game.Player, bool) {
	players := r.playerList()
	if len(players) == 0 {
		return game.Player{}, false
	}
	best := players[0]
	for _, p := range players[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return best, true
}

// anySolved reports whether at least one guesser solved the current turn.
func (r *Room) anySolved() bool {
	for _, m := range r.members {
		if m.player.SolvedCurrentTurn {
			return true
		}
	}
	return false
}

// allSolved reports whether every present non-drawer has solved the current
// turn. A turn with no guessers left is never "all solved".
func (r *Room) allSolved() bool {
	guessers := 0
	for id, m := range r.members {
		if r.skribbl.IsDrawing(id) {
			continue
		}
		guessers++
		if !m.player.SolvedCurrentTurn {
			return false
		}
	}
	return guessers > 0
}

// playerList returns the members ordered by (name, id) so draw order and
// winner ties are deterministic.
func (r *Room) playerList() []game.Player {
	out := make([]game.Player, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.player)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name.Less(out[j].Name) })
	return out
}

// roomState builds the snapshot variant broadcast to clients.
func (r *Room) roomState() game.RoomState {
	if r.kind == game.Playing && r.skribbl != nil {
		snap := r.skribbl.Snapshot()
		return game.RoomState{Kind: game.Playing, Game: &snap}
	}
	return game.RoomState{Kind: r.kind}
}

func (r *Room) broadcast(msg protocol.ToClient) {
	for _, m := range r.members {
		m.sender.SendToClient(msg)
	}
}

func (r *Room) broadcastExcept(except game.PlayerID, msg protocol.ToClient) {
	for id, m := range r.members {
		if id != except {
			m.sender.SendToClient(msg)
		}
	}
}

func (r *Room) broadcastSystem(text string) {
	r.broadcast(protocol.Chat{Message: protocol.SystemMessage(text)})
}
