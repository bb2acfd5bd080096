package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRoundTrip(t *testing.T) {
	f := ConnectFrame{ReqPipe: "/tmp/req", NotifPipe: "/tmp/notif"}
	buf := EncodeConnect(f)
	require.Len(t, buf, ConnectFrameSize)
	assert.Equal(t, byte(OpConnect), buf[0])

	got, err := DecodeConnect(buf)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestReadConnectFromReader(t *testing.T) {
	f := ConnectFrame{ReqPipe: "/tmp/a", NotifPipe: "/tmp/b"}
	r := bytes.NewReader(EncodeConnect(f))
	got, err := ReadConnect(r)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestDecodeConnectRejectsBadOpcode(t *testing.T) {
	buf := EncodeConnect(ConnectFrame{ReqPipe: "x", NotifPipe: "y"})
	buf[0] = byte(OpPlay)
	_, err := DecodeConnect(buf)
	assert.ErrorIs(t, err, ErrBadOpcode)
}

func TestDecodeConnectRejectsShortFrame(t *testing.T) {
	_, err := DecodeConnect([]byte{byte(OpConnect), 1, 2})
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestReadClientFramePlay(t *testing.T) {
	r := bytes.NewReader(EncodePlay(PlayFrame{Cmd: 'w'}))
	got, err := ReadClientFrame(r)
	require.NoError(t, err)
	assert.Equal(t, ClientFrame{Op: OpPlay, Cmd: 'w'}, got)
}

func TestReadClientFrameDisconnect(t *testing.T) {
	r := bytes.NewReader(EncodeDisconnect())
	got, err := ReadClientFrame(r)
	require.NoError(t, err)
	assert.Equal(t, ClientFrame{Op: OpDisconnect}, got)
}

func TestBoardFrameRoundTrip(t *testing.T) {
	f := BoardFrame{
		Width: 3, Height: 2, Tempo: 50, Victory: 0, GameOver: 0, Points: 7,
		Cells: []byte("abcdef"),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteBoard(&buf, f))

	got, err := ReadBoard(&buf)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestBoardFrameEmptyCellsOnVictory(t *testing.T) {
	f := BoardFrame{Width: 1, Height: 1, Victory: 1, Points: 42, Cells: []byte{' '}}
	var buf bytes.Buffer
	require.NoError(t, WriteBoard(&buf, f))
	got, err := ReadBoard(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Victory)
	assert.EqualValues(t, 42, got.Points)
}

func TestReadClientFrameShortReadIsEOF(t *testing.T) {
	r := bytes.NewReader(nil)
	_, err := ReadClientFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}
