package protocol_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fl-w/termibbl/internal/game"
	"github.com/fl-w/termibbl/internal/protocol"
)

func decodeOne[T any](t *testing.T, frame []byte) T {
	t.Helper()
	var dec protocol.Decoder[T]
	_, err := dec.Write(frame)
	require.NoError(t, err)
	msg, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	return msg
}

func TestCodec_RoundTrip_ToServer(t *testing.T) {
	name := "alice"
	messages := []protocol.ToServer{
		protocol.Ping{},
		protocol.Login{Name: "alice"},
		protocol.Chat{Message: protocol.UserMessage(game.NewUsername("alice", 1), "hello")},
		protocol.Draw{Action: game.DrawPaint{Points: []game.Coord{{X: 1, Y: 2}}, Color: game.Red}},
		protocol.Draw{Action: game.DrawClear{}},
		protocol.RequestRoom{Name: &name, Req: protocol.RoomJoin{RoomName: "main"}},
		protocol.RequestRoom{Req: protocol.RoomFind{}},
		protocol.ListRoom{},
	}

	for _, msg := range messages {
		frame, err := protocol.EncodeFrame(msg)
		require.NoError(t, err)
		got := decodeOne[protocol.ToServer](t, frame)
		assert.Equal(t, msg, got)
	}
}

func TestCodec_RoundTrip_ToClient(t *testing.T) {
	alice := game.NewUsername("alice", 1)
	messages := []protocol.ToClient{
		protocol.Chat{Message: protocol.SystemMessage("welcome")},
		protocol.PlayerConnect{Player: game.NewPlayer(alice)},
		protocol.PlayerDisconnect{Who: alice},
		protocol.Kicked{Reason: "room not found"},
		protocol.TurnStart{Turn: game.Turn{
			State:        game.TurnDrawing,
			Word:         game.NewGuessWord(alice, "ice-cream"),
			EndsAt:       1234,
			CurrentRound: 1,
			LastRound:    3,
		}},
		protocol.RoomStateChange{State: game.RoomState{Kind: game.Waiting}},
		protocol.TimeChanged{Seconds: 42},
	}

	for _, msg := range messages {
		frame, err := protocol.EncodeFrame(msg)
		require.NoError(t, err)
		got := decodeOne[protocol.ToClient](t, frame)
		assert.Equal(t, msg, got)
	}
}

func TestCodec_TruncatedPrefixNeedsMoreData(t *testing.T) {
	frame, err := protocol.EncodeFrame[protocol.ToServer](protocol.Login{Name: "alice"})
	require.NoError(t, err)

	// Every strict prefix must yield "need more data", never an error.
	for cut := 0; cut < len(frame); cut++ {
		var dec protocol.Decoder[protocol.ToServer]
		_, _ = dec.Write(frame[:cut])

		_, ok, decErr := dec.Next()
		require.NoError(t, decErr, "prefix of %d bytes", cut)
		require.False(t, ok, "prefix of %d bytes", cut)

		// Appending the rest must complete the message.
		_, _ = dec.Write(frame[cut:])
		msg, ok, decErr := dec.Next()
		require.NoError(t, decErr)
		require.True(t, ok)
		assert.Equal(t, protocol.ToServer(protocol.Login{Name: "alice"}), msg)
	}
}

func TestCodec_TwoFramesBackToBack(t *testing.T) {
	f1, err := protocol.EncodeFrame[protocol.ToServer](protocol.Ping{})
	require.NoError(t, err)
	f2, err := protocol.EncodeFrame[protocol.ToServer](protocol.Login{Name: "bob"})
	require.NoError(t, err)

	var dec protocol.Decoder[protocol.ToServer]
	_, _ = dec.Write(append(append([]byte{}, f1...), f2...))

	msg, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, protocol.ToServer(protocol.Ping{}), msg)

	msg, ok, err = dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, protocol.ToServer(protocol.Login{Name: "bob"}), msg)
	assert.Zero(t, dec.Buffered())
}

func TestCodec_MinimalLengthTag(t *testing.T) {
	small, err := protocol.EncodeFrame[protocol.ToServer](protocol.Ping{})
	require.NoError(t, err)
	assert.Equal(t, byte(2), small[0], "small payloads use the 2-byte width")

	// A payload larger than 64 KiB needs the 4-byte width.
	big, err := protocol.EncodeFrame[protocol.ToServer](protocol.Chat{
		Message: protocol.SystemMessage(strings.Repeat("x", 1<<17)),
	})
	require.NoError(t, err)
	assert.Equal(t, byte(4), big[0], "large payloads use the 4-byte width")
}

func TestCodec_InvalidLengthTag(t *testing.T) {
	for _, tag := range []byte{0, 1, 3, 5, 7, 9, 255} {
		var dec protocol.Decoder[protocol.ToServer]
		_, _ = dec.Write([]byte{tag, 0, 0, 0, 0})
		_, _, err := dec.Next()
		assert.ErrorIs(t, err, protocol.ErrInvalidLengthTag, "tag %d", tag)
	}
}

func TestCodec_OversizedPayloadRejected(t *testing.T) {
	var dec protocol.Decoder[protocol.ToServer]
	// 4-byte width declaring a payload beyond MaxPayloadLen.
	_, _ = dec.Write([]byte{4, 0xFF, 0xFF, 0xFF, 0xFF})
	_, _, err := dec.Next()
	assert.ErrorIs(t, err, protocol.ErrPayloadTooLarge)
}

func TestCodec_GarbagePayloadFailsDecode(t *testing.T) {
	var dec protocol.Decoder[protocol.ToServer]
	_, _ = dec.Write([]byte{2, 0, 3, 0xDE, 0xAD, 0xBE})
	_, _, err := dec.Next()
	assert.Error(t, err)
}

func TestMessageReaderWriter_OverStream(t *testing.T) {
	var wire bytes.Buffer
	w := protocol.NewMessageWriter[protocol.ToClient](&wire)

	require.NoError(t, w.WriteMessage(protocol.Kicked{Reason: "bye"}))
	require.NoError(t, w.WriteMessage(protocol.TimeChanged{Seconds: 9}))

	r := protocol.NewMessageReader[protocol.ToClient](&wire)

	msg, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, protocol.ToClient(protocol.Kicked{Reason: "bye"}), msg)

	msg, err = r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, protocol.ToClient(protocol.TimeChanged{Seconds: 9}), msg)

	_, err = r.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCodec_RoundTripChunked_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[ -~]{0,200}`).Draw(t, "text")
		msg := protocol.ToServer(protocol.Chat{Message: protocol.SystemMessage(text)})

		frame, err := protocol.EncodeFrame(msg)
		require.NoError(t, err)

		// Deliver the frame in arbitrary chunk sizes.
		var dec protocol.Decoder[protocol.ToServer]
		rest := frame
		for len(rest) > 0 {
			n := rapid.IntRange(1, len(rest)).Draw(t, "chunk")
			_, _ = dec.Write(rest[:n])
			rest = rest[n:]

			got, ok, decErr := dec.Next()
			require.NoError(t, decErr)
			if ok {
				require.Empty(t, rest, "message completed before all bytes fed")
				assert.Equal(t, msg, got)
				return
			}
		}
		got, ok, decErr := dec.Next()
		require.NoError(t, decErr)
		require.True(t, ok)
		assert.Equal(t, msg, got)
	})
}
