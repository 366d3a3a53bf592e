package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testOpts(words ...string) GameOpts {
	if len(words) == 0 {
		words = []string{"apple", "banana", "cactus"}
	}
	return GameOpts{
		Dimensions:    Coord{X: 100, Y: 30},
		Rounds:        2,
		RoundDuration: time.Minute,
		MaxRoomSize:   8,
		MinPlayers:    2,
		Words:         words,
	}
}

func testPlayers(names ...string) []Player {
	out := make([]Player, 0, len(names))
	for i, n := range names {
		out = append(out, NewPlayer(NewUsername(n, PlayerID(i+1))))
	}
	return out
}

func TestSkribbl_StartRoundSnapshotsOrder(t *testing.T) {
	s := NewSkribbl(testOpts())
	players := testPlayers("alice", "bob")

	s.StartRound(players)
	require.Equal(t, 1, s.game.Turn.CurrentRound)

	first, ok := s.StartTurn()
	require.True(t, ok)
	assert.Equal(t, "alice", first.Name)

	second, ok := s.StartTurn()
	require.True(t, ok)
	assert.Equal(t, "bob", second.Name)

	_, ok = s.StartTurn()
	assert.False(t, ok, "round must be exhausted after every player drew")
	assert.True(t, s.RoundDone())
}

func TestSkribbl_SingleDrawerInvariant(t *testing.T) {
	s := NewSkribbl(testOpts())
	s.StartRound(testPlayers("alice", "bob", "dafny"))

	drawer, ok := s.StartTurn()
	require.True(t, ok)

	drawing := 0
	for _, id := range []PlayerID{1, 2, 3} {
		if s.IsDrawing(id) {
			drawing++
			assert.Equal(t, drawer.ID, id)
		}
	}
	assert.Equal(t, 1, drawing)
}

func TestSkribbl_TurnSetsGuessWordAndDeadline(t *testing.T) {
	s := NewSkribbl(testOpts("apple"))
	s.now = func() int64 { return 1000 }
	s.StartRound(testPlayers("alice"))

	drawer, ok := s.StartTurn()
	require.True(t, ok)

	guess, isGuess := s.game.Turn.Word.(WordGuess)
	require.True(t, isGuess, "shared turn state must hold the guesser view")
	assert.Equal(t, drawer, guess.Who)
	assert.Equal(t, len("apple"), guess.WordLen)
	assert.Equal(t, int64(1060), s.game.Turn.EndsAt)
	assert.Equal(t, "apple", s.CurrentWord())
}

func TestSkribbl_TryGuess_Correct(t *testing.T) {
	s := NewSkribbl(testOpts("apple"))
	s.now = func() int64 { return 1000 }
	s.StartRound(testPlayers("alice", "bob"))
	_, ok := s.StartTurn()
	require.True(t, ok)

	guesser := NewPlayer(NewUsername("bob", 2))
	dist := s.TryGuess(&guesser, "Apple")

	assert.Equal(t, 0, dist)
	assert.True(t, guesser.SolvedCurrentTurn)
	// Full time remaining: 50 flat + (50 + 100/2) bonus.
	assert.Equal(t, uint32(150), guesser.Score)
}

func TestSkribbl_TryGuess_ScoreAtZeroRemaining(t *testing.T) {
	s := NewSkribbl(testOpts("apple"))
	clock := int64(1000)
	s.now = func() int64 { return clock }
	s.StartRound(testPlayers("alice", "bob"))
	_, ok := s.StartTurn()
	require.True(t, ok)

	clock = 5000 // long past the deadline; remaining clamps to zero
	guesser := NewPlayer(NewUsername("bob", 2))
	s.TryGuess(&guesser, "apple")
	assert.Equal(t, uint32(100), guesser.Score)
}

func TestSkribbl_TryGuess_NearMissAndMiss(t *testing.T) {
	s := NewSkribbl(testOpts("apple"))
	s.StartRound(testPlayers("alice", "bob"))
	_, ok := s.StartTurn()
	require.True(t, ok)

	guesser := NewPlayer(NewUsername("bob", 2))
	assert.Equal(t, 1, s.TryGuess(&guesser, "aple"))
	assert.False(t, guesser.SolvedCurrentTurn)
	assert.Zero(t, guesser.Score)

	assert.Equal(t, 5, s.TryGuess(&guesser, "xyz"))
	assert.Zero(t, guesser.Score)
}

func TestSkribbl_ScoreMonotonic(t *testing.T) {
	s := NewSkribbl(testOpts("apple"))
	s.StartRound(testPlayers("alice", "bob"))
	_, ok := s.StartTurn()
	require.True(t, ok)

	guesser := NewPlayer(NewUsername("bob", 2))
	before := guesser.Score
	s.TryGuess(&guesser, "wrong")
	assert.GreaterOrEqual(t, guesser.Score, before)
	s.TryGuess(&guesser, "apple")
	assert.Greater(t, guesser.Score, before)
}

func TestSkribbl_HintCap_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[a-z]{1,16}`).Draw(t, "word")
		s := NewSkribbl(testOpts(word))
		s.StartRound(testPlayers("alice"))
		_, ok := s.StartTurn()
		require.True(t, ok)

		reveals := rapid.IntRange(0, 40).Draw(t, "reveals")
		for i := 0; i < reveals; i++ {
			s.RevealRandomChar()
		}

		wordLen := len([]rune(word))
		assert.LessOrEqual(t, s.RevealedHints(), wordLen/2,
			"hints must never exceed half the word length")
	})
}

func TestSkribbl_RevealStopsAtCap(t *testing.T) {
	s := NewSkribbl(testOpts("abcdef"))
	s.StartRound(testPlayers("alice"))
	_, ok := s.StartTurn()
	require.True(t, ok)

	assert.True(t, s.RevealRandomChar())
	assert.True(t, s.RevealRandomChar())
	assert.True(t, s.RevealRandomChar())
	assert.False(t, s.RevealRandomChar(), "fourth reveal would exceed the 6/2 cap")
	assert.Equal(t, 3, s.RevealedHints())
}

func TestSkribbl_ApplyDraw(t *testing.T) {
	s := NewSkribbl(testOpts())
	s.StartRound(testPlayers("alice"))
	_, ok := s.StartTurn()
	require.True(t, ok)

	s.ApplyDraw(DrawPaint{Points: []Coord{{X: 1, Y: 1}, {X: 2, Y: 2}}, Color: Red})
	assert.Len(t, s.game.Canvas, 2)

	// Out-of-bounds points are dropped.
	s.ApplyDraw(DrawPaint{Points: []Coord{{X: 9999, Y: 1}}, Color: Red})
	assert.Len(t, s.game.Canvas, 2)

	s.ApplyDraw(DrawErase{Point: Coord{X: 1, Y: 1}})
	assert.Len(t, s.game.Canvas, 1)

	s.ApplyDraw(DrawClear{})
	assert.Empty(t, s.game.Canvas)
}

func TestSkribbl_CanvasResetOnNewTurn(t *testing.T) {
	s := NewSkribbl(testOpts())
	s.StartRound(testPlayers("alice", "bob"))
	_, ok := s.StartTurn()
	require.True(t, ok)

	s.ApplyDraw(DrawPaint{Points: []Coord{{X: 1, Y: 1}}, Color: Green})
	require.Len(t, s.game.Canvas, 1)

	_, ok = s.StartTurn()
	require.True(t, ok)
	assert.Empty(t, s.game.Canvas)
}

func TestSkribbl_RemovePending(t *testing.T) {
	s := NewSkribbl(testOpts())
	s.StartRound(testPlayers("alice", "bob", "dafny"))
	_, ok := s.StartTurn()
	require.True(t, ok)

	s.RemovePending(2) // bob leaves before his turn
	next, ok := s.StartTurn()
	require.True(t, ok)
	assert.Equal(t, "dafny", next.Name)
	assert.True(t, s.RoundDone())
}

func TestSkribbl_IsLastRound(t *testing.T) {
	s := NewSkribbl(testOpts())
	players := testPlayers("alice")

	assert.False(t, s.IsLastRound())
	s.StartRound(players)
	assert.False(t, s.IsLastRound())
	s.StartRound(players)
	assert.True(t, s.IsLastRound())
}

func TestSkribbl_SnapshotNeverLeaksWord(t *testing.T) {
	s := NewSkribbl(testOpts("banana"))
	s.StartRound(testPlayers("alice"))
	_, ok := s.StartTurn()
	require.True(t, ok)

	snap := s.Snapshot()
	_, isGuess := snap.Turn.Word.(WordGuess)
	assert.True(t, isGuess, "snapshot must carry the guesser view only")
}

func TestWordCycle_WrapsAround(t *testing.T) {
	c := newWordCycle([]string{"a", "b"})
	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		seen[c.next()]++
	}
	assert.Equal(t, 2, seen["a"])
	assert.Equal(t, 2, seen["b"])
}
