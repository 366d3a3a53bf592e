package game

import (
	"math/rand"
	"time"
)

// Skribbl is the turn engine for one room's active game. It owns the shared
// game snapshot, the secret word, the cycling word source, and the list of
// players still owed a turn this round. Only the owning room mutates it.
type Skribbl struct {
	game          Game
	currentWord   string
	playersLeft   []Username
	words         *wordCycle
	roundDuration time.Duration

	now func() int64
}

// NewSkribbl creates a turn engine from the room options.
//
// Precondition: opts.Words must be non-empty; opts.Rounds >= 1.
func NewSkribbl(opts GameOpts) *Skribbl {
	return &Skribbl{
		game: Game{
			Dimensions: opts.Dimensions,
			Canvas:     make(map[Coord]Color),
			Turn: Turn{
				State:     TurnStart,
				Word:      WordDraw{},
				LastRound: opts.Rounds,
			},
		},
		words:         newWordCycle(opts.Words),
		roundDuration: opts.RoundDuration,
		now:           TimeNow,
	}
}

// Snapshot returns a deep copy of the game state safe to send to clients.
// The copy carries the guesser word view; it never leaks the plaintext.
func (s *Skribbl) Snapshot() Game { return s.game.Clone() }

// Turn returns a deep copy of the current turn.
func (s *Skribbl) Turn() Turn { return s.game.Clone().Turn }

// CurrentWord returns the secret word of the active turn.
func (s *Skribbl) CurrentWord() string { return s.currentWord }

// IsLastRound reports whether the configured round count is exhausted.
func (s *Skribbl) IsLastRound() bool {
	return s.game.Turn.CurrentRound >= s.game.Turn.LastRound
}

// RoundDone reports whether every player captured at round start has drawn.
func (s *Skribbl) RoundDone() bool { return len(s.playersLeft) == 0 }

// StartRound begins the next round, snapshotting the draw order from the
// players present right now. Later joiners wait for the following round.
//
// Precondition: players must be non-empty; IsLastRound() must be false.
func (s *Skribbl) StartRound(players []Player) {
	s.game.Turn.CurrentRound++
	s.playersLeft = make([]Username, 0, len(players))
	for _, p := range players {
		s.playersLeft = append(s.playersLeft, p.Name)
	}
}

// StartTurn hands the next queued player the brush: picks a fresh word,
// resets the canvas, and arms the turn deadline.
//
// Postcondition: Returns the drawer, or false if the round is exhausted.
func (s *Skribbl) StartTurn() (Username, bool) {
	if len(s.playersLeft) == 0 {
		return Username{}, false
	}
	drawer := s.playersLeft[0]
	s.playersLeft = s.playersLeft[1:]

	s.currentWord = s.words.next()
	s.game.Canvas = make(map[Coord]Color)
	s.game.Turn.State = TurnDrawing
	s.game.Turn.Word = NewGuessWord(drawer, s.currentWord)
	s.game.Turn.EndsAt = s.now() + int64(s.roundDuration/time.Second)

	return drawer, true
}

// RemovePending drops a departed player from the current round's draw order.
func (s *Skribbl) RemovePending(id PlayerID) {
	out := s.playersLeft[:0]
	for _, u := range s.playersLeft {
		if u.ID != id {
			out = append(out, u)
		}
	}
	s.playersLeft = out
}

// Drawer returns the player currently drawing, derived from the turn word.
func (s *Skribbl) Drawer() (Username, bool) { return s.game.Turn.Drawer() }

// IsDrawing reports whether the given connection id holds the brush.
func (s *Skribbl) IsDrawing(id PlayerID) bool {
	drawer, ok := s.Drawer()
	return ok && drawer.ID == id
}

// Remaining returns the seconds left in the active turn, clamped at zero.
func (s *Skribbl) Remaining() uint32 { return s.game.Turn.Remaining(s.now()) }

// RevealRandomChar reveals one more character of the secret word, unless
// doing so would reveal more than half of the word's runes.
//
// Postcondition: Returns true if a character was revealed.
func (s *Skribbl) RevealRandomChar() bool {
	guess, ok := s.game.Turn.Word.(WordGuess)
	if !ok {
		return false
	}
	if len(guess.Hints) >= guess.WordLen/2 {
		return false
	}

	runes := []rune(s.currentWord)
	candidates := make([]int, 0, len(runes))
	for i := range runes {
		if _, revealed := guess.Hints[i]; !revealed {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return false
	}

	idx := candidates[rand.Intn(len(candidates))]
	guess.Hints[idx] = runes[idx]
	return true
}

// RevealedHints returns how many characters are currently revealed.
func (s *Skribbl) RevealedHints() int {
	if guess, ok := s.game.Turn.Word.(WordGuess); ok {
		return len(guess.Hints)
	}
	return 0
}

// TryGuess scores a chat message from an eligible guesser against the
// secret word and returns the edit distance. Distance zero awards
// 50 + timeBonus points and marks the player solved, where
// timeBonus = 50 + floor(remaining/duration*100/2).
//
// Precondition: p must not be the drawer and must not have solved already.
func (s *Skribbl) TryGuess(p *Player, guess string) int {
	dist := Distance(guess, s.currentWord)
	if dist == 0 {
		p.Score += 50 + s.timeBonus()
		p.SolvedCurrentTurn = true
	}
	return dist
}

// AwardDrawer grants the drawer their flat turn-end award.
func (s *Skribbl) AwardDrawer(p *Player) { p.Score += 50 }

func (s *Skribbl) timeBonus() uint32 {
	secs := uint32(s.roundDuration / time.Second)
	if secs == 0 {
		secs = 1
	}
	remaining := s.Remaining()
	if remaining > secs {
		remaining = secs
	}
	return 50 + (remaining*100/secs)/2
}

// ApplyDraw mutates the shared canvas. Points outside the canvas bounds are
// discarded so a misbehaving drawer cannot grow the map unboundedly.
func (s *Skribbl) ApplyDraw(d Draw) {
	applyDraw(&s.game, d)
}

// Apply mutates the canvas in place with the same bounds rules as an
// active game. Free-draw rooms use it on their standalone canvas.
func (g *Game) Apply(d Draw) {
	applyDraw(g, d)
}

func applyDraw(g *Game, d Draw) {
	switch action := d.(type) {
	case DrawClear:
		g.Canvas = make(map[Coord]Color)
	case DrawErase:
		delete(g.Canvas, action.Point)
	case DrawPaint:
		for _, pt := range action.Points {
			if pt.X < g.Dimensions.X && pt.Y < g.Dimensions.Y {
				g.Canvas[pt] = action.Color
			}
		}
	}
}

// EndTurn marks the turn finished without starting the next one.
func (s *Skribbl) EndTurn() {
	s.game.Turn.State = TurnEnd
}

// wordCycle deals words from a shuffled copy of the word list, wrapping
// around when exhausted.
type wordCycle struct {
	words []string
	idx   int
}

func newWordCycle(words []string) *wordCycle {
	cp := make([]string, len(words))
	copy(cp, words)
	rand.Shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	return &wordCycle{words: cp}
}

func (w *wordCycle) next() string {
	if len(w.words) == 0 {
		return ""
	}
	word := w.words[w.idx]
	w.idx = (w.idx + 1) % len(w.words)
	return word
}
