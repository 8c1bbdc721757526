package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shv-protocol/shv-go/pkg/log"
)

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"single byte", []byte{0x42}},
		{"small message", []byte("hello")},
		{"binary data", []byte{0x00, 0xFF, 0x7F, 0x80}},
		{"large message", bytes.Repeat([]byte("x"), 1<<20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			require.NoError(t, NewFrameWriter(buf).WriteFrame(tt.payload))
			assert.Equal(t, FrameSize(len(tt.payload)), buf.Len())

			got, err := NewFrameReader(buf).ReadFrame()
			require.NoError(t, err)
			assert.Equal(t, tt.payload, got)
		})
	}
}

func TestFrameErrors(t *testing.T) {
	t.Run("write empty", func(t *testing.T) {
		err := NewFrameWriter(new(bytes.Buffer)).WriteFrame(nil)
		assert.ErrorIs(t, err, ErrMessageEmpty)
	})

	t.Run("write too large", func(t *testing.T) {
		err := NewFrameWriterWithMaxSize(new(bytes.Buffer), 4).WriteFrame([]byte("hello"))
		assert.ErrorIs(t, err, ErrMessageTooLarge)
	})

	t.Run("read too large", func(t *testing.T) {
		var prefix [LengthPrefixSize]byte
		binary.BigEndian.PutUint32(prefix[:], 100)
		_, err := NewFrameReaderWithMaxSize(bytes.NewReader(prefix[:]), 10).ReadFrame()
		assert.ErrorIs(t, err, ErrMessageTooLarge)
	})

	t.Run("read zero length", func(t *testing.T) {
		_, err := NewFrameReader(bytes.NewReader([]byte{0, 0, 0, 0})).ReadFrame()
		assert.ErrorIs(t, err, ErrMessageEmpty)
	})

	t.Run("truncated prefix", func(t *testing.T) {
		_, err := NewFrameReader(bytes.NewReader([]byte{0, 0})).ReadFrame()
		assert.ErrorIs(t, err, ErrFrameTruncated)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := NewFrameReader(bytes.NewReader([]byte{0, 0, 0, 5, 'a', 'b'})).ReadFrame()
		assert.ErrorIs(t, err, ErrFrameTruncated)
	})

	t.Run("clean EOF", func(t *testing.T) {
		_, err := NewFrameReader(bytes.NewReader(nil)).ReadFrame()
		assert.Equal(t, io.EOF, err)
	})
}

func TestMultipleFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	framer := NewFramer(buf)

	for _, p := range []string{"one", "two", "three"} {
		require.NoError(t, framer.WriteFrame([]byte(p)))
	}
	for _, want := range []string{"one", "two", "three"} {
		got, err := framer.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

type captureLogger struct {
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.events = append(c.events, e)
}

func TestFramerLogsFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	framer := NewFramer(buf)
	capture := &captureLogger{}
	framer.SetLogger(capture, "conn-1")

	big := bytes.Repeat([]byte("z"), MaxLogFrameDataSize+10)
	require.NoError(t, framer.WriteFrame(big))
	_, err := framer.ReadFrame()
	require.NoError(t, err)

	require.Len(t, capture.events, 2)
	out, in := capture.events[0], capture.events[1]
	assert.Equal(t, log.DirectionOut, out.Direction)
	assert.Equal(t, log.DirectionIn, in.Direction)
	assert.Equal(t, "conn-1", in.ConnectionID)
	assert.Equal(t, log.LayerTransport, in.Layer)
	require.NotNil(t, in.Frame)
	assert.True(t, in.Frame.Truncated)
	assert.Len(t, in.Frame.Data, MaxLogFrameDataSize)
	assert.Equal(t, FrameSize(len(big)), in.Frame.Size)
}
