package stream

import "io"

// DefaultChunkSize is how much is requested from the transport per
// read when no explicit size is configured.
const DefaultChunkSize = 8192

// ByteSource yields a response body as a lazy sequence of byte chunks.
// Next returns io.EOF once the source is exhausted. Chunk sizes and
// boundaries are whatever the transport delivers; consumers must not
// assume any alignment with protocol structures. The returned slice is
// only valid until the next call to Next.
type ByteSource interface {
	Next() ([]byte, error)
}

type readerSource struct {
	r   io.Reader
	buf []byte
}

// NewReaderSource adapts an io.Reader (typically an HTTP response
// body) into a ByteSource with a bounded per-call read size.
func NewReaderSource(r io.Reader, chunkSize int) ByteSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &readerSource{r: r, buf: make([]byte, chunkSize)}
}

func (s *readerSource) Next() ([]byte, error) {
	for {
		n, err := s.r.Read(s.buf)
		if n > 0 {
			return s.buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}
