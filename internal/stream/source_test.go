package stream

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderSource(t *testing.T) {
	src := NewReaderSource(strings.NewReader("abcdefghij"), 4)
	var got []byte
	for {
		chunk, err := src.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.LessOrEqual(t, len(chunk), 4)
		got = append(got, chunk...)
	}
	assert.Equal(t, "abcdefghij", string(got))
}

func TestReaderSourceSkipsEmptyReads(t *testing.T) {
	// iotest-style reader that returns (0, nil) before delivering data.
	src := NewReaderSource(&stutterReader{data: []byte("xy")}, DefaultChunkSize)
	chunk, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("xy"), chunk)
	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

type stutterReader struct {
	data    []byte
	stalled bool
	done    bool
}

func (r *stutterReader) Read(p []byte) (int, error) {
	if !r.stalled {
		r.stalled = true
		return 0, nil
	}
	if r.done {
		return 0, io.EOF
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestReaderSourceBufferReuse(t *testing.T) {
	// Consumers must copy chunk contents before the next call.
	src := NewReaderSource(bytes.NewReader([]byte("aaaabbbb")), 4)
	first, err := src.Next()
	require.NoError(t, err)
	firstCopy := append([]byte(nil), first...)
	second, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("aaaa"), firstCopy)
	assert.Equal(t, []byte("bbbb"), second)
}
