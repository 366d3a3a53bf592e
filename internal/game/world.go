// Package game holds the domain model for a drawing-and-guessing game:
// player identities, canvas drawing actions, room state snapshots, and the
// turn engine that runs an active game.
package game

import (
	"fmt"
	"time"
)

// PlayerID is a per-connection ephemeral identifier. The id space is a
// single byte, bounding the server at 256 concurrent connections.
type PlayerID = uint8

// Username identifies a connected player by display name and connection id.
// Equality and ordering are by the (Name, ID) pair.
type Username struct {
	Name string
	ID   PlayerID
}

// NewUsername creates a Username from a display name and connection id.
func NewUsername(name string, id PlayerID) Username {
	return Username{Name: name, ID: id}
}

// String renders just the display name, matching what peers see in chat.
func (u Username) String() string { return u.Name }

// Tag renders "name#id" for logs, where the id disambiguates duplicates.
func (u Username) Tag() string { return fmt.Sprintf("%s#%d", u.Name, u.ID) }

// Less orders usernames by (Name, ID).
func (u Username) Less(other Username) bool {
	if u.Name != other.Name {
		return u.Name < other.Name
	}
	return u.ID < other.ID
}

// Player is the game-facing state the server keeps for each member of a room.
type Player struct {
	Name Username
	// Score accumulates over the whole game and never decreases.
	Score uint32
	// SolvedCurrentTurn is set when the player guesses the active word and
	// reset at the start of every turn.
	SolvedCurrentTurn bool
}

// NewPlayer creates a Player with a zero score.
func NewPlayer(name Username) Player {
	return Player{Name: name}
}

// Coord is a point on the shared canvas.
type Coord struct {
	X uint16
	Y uint16
}

// Color is one of the sixteen terminal palette colors.
type Color uint8

// Terminal palette colors, in the order terminal frontends index them.
const (
	White Color = iota
	Gray
	DarkGray
	Black
	Red
	LightRed
	Green
	LightGreen
	Blue
	LightBlue
	Yellow
	LightYellow
	Cyan
	LightCyan
	Magenta
	LightMagenta
)

// Draw is a canvas mutation sent by the drawing player.
type Draw interface{ isDraw() }

// DrawClear wipes the whole canvas.
type DrawClear struct{}

// DrawErase removes the color at one point.
type DrawErase struct {
	Point Coord
}

// DrawPaint sets a run of points to a color.
type DrawPaint struct {
	Points []Coord
	Color  Color
}

func (DrawClear) isDraw() {}
func (DrawErase) isDraw() {}
func (DrawPaint) isDraw() {}

// GameOpts configures a room's games.
type GameOpts struct {
	Dimensions    Coord
	Rounds        int
	RoundDuration time.Duration
	MaxRoomSize   int
	MinPlayers    int
	Words         []string
}

// RoomStateKind discriminates the room state machine variants.
type RoomStateKind uint8

const (
	// FreeDraw rooms let every member draw; no turns, no scoring.
	FreeDraw RoomStateKind = iota
	// Lobby is an owned room waiting for its owner to start a game.
	Lobby
	// Waiting is a public room waiting for enough players.
	Waiting
	// Playing rooms carry an active game.
	Playing
)

func (k RoomStateKind) String() string {
	switch k {
	case FreeDraw:
		return "free_draw"
	case Lobby:
		return "lobby"
	case Waiting:
		return "waiting"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("room_state(%d)", uint8(k))
	}
}

// RoomState is the variant snapshot broadcast to clients. Game is non-nil
// exactly when Kind is Playing.
type RoomState struct {
	Kind RoomStateKind
	Game *Game
}

// TurnState is the phase of the active turn.
type TurnState uint8

const (
	TurnStart TurnState = iota
	TurnDrawing
	TurnEnd
)

// Word is what a client knows about the current secret word. The drawer
// holds a WordDraw with the plaintext; guessers hold a WordGuess with only
// the length and revealed hints. The drawing player is derived from the
// WordGuess variant and stored nowhere else.
type Word interface{ isWord() }

// WordDraw carries the plaintext word, visible only to the drawer.
type WordDraw struct {
	Word string
}

// WordGuess is the guesser view: hint map, word length, and who is drawing.
type WordGuess struct {
	// Hints maps rune index to revealed rune.
	Hints   map[int]rune
	WordLen int
	Who     Username
}

func (WordDraw) isWord()  {}
func (WordGuess) isWord() {}

// NewGuessWord builds the guesser view of word with whitespace and hyphen
// runes pre-revealed.
func NewGuessWord(who Username, word string) WordGuess {
	runes := []rune(word)
	hints := make(map[int]rune)
	for i, r := range runes {
		if r == ' ' || r == '\t' || r == '-' {
			hints[i] = r
		}
	}
	return WordGuess{Hints: hints, WordLen: len(runes), Who: who}
}

// Turn describes the active turn of an ongoing game.
type Turn struct {
	State TurnState
	Word  Word
	// EndsAt is the turn deadline as a unix timestamp in seconds.
	EndsAt int64
	// CurrentRound counts from 1 and never exceeds LastRound.
	CurrentRound int
	LastRound    int
}

// WithWord returns a copy of the turn carrying a different word view. Used
// to hand the drawer the plaintext while everyone else gets hints.
func (t Turn) WithWord(w Word) Turn {
	t.Word = w
	return t
}

// Drawer returns the drawing player derived from the word variant.
func (t Turn) Drawer() (Username, bool) {
	if g, ok := t.Word.(WordGuess); ok {
		return g.Who, true
	}
	return Username{}, false
}

// Remaining returns the seconds left in the turn, clamped at zero.
func (t Turn) Remaining(now int64) uint32 {
	if d := t.EndsAt - now; d > 0 {
		return uint32(d)
	}
	return 0
}

// Game is the sharable snapshot of an ongoing game: the sparse canvas and
// the current turn. Broadcasts clone it so no live structure crosses a
// queue boundary.
type Game struct {
	Dimensions Coord
	Canvas     map[Coord]Color
	Turn       Turn
}

// Clone deep-copies the game, including canvas and hint map.
func (g Game) Clone() Game {
	out := g
	out.Canvas = make(map[Coord]Color, len(g.Canvas))
	for c, col := range g.Canvas {
		out.Canvas[c] = col
	}
	if guess, ok := g.Turn.Word.(WordGuess); ok {
		hints := make(map[int]rune, len(guess.Hints))
		for i, r := range guess.Hints {
			hints[i] = r
		}
		guess.Hints = hints
		out.Turn.Word = guess
	}
	return out
}

// Clone deep-copies the room state snapshot.
func (s RoomState) Clone() RoomState {
	if s.Game == nil {
		return RoomState{Kind: s.Kind}
	}
	g := s.Game.Clone()
	return RoomState{Kind: s.Kind, Game: &g}
}

// TimeNow returns the current unix timestamp in seconds. Turn deadlines
// are exchanged as unix seconds so clients can render countdowns.
func TimeNow() int64 { return time.Now().Unix() }
