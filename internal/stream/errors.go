package stream

import "errors"

// Error kinds for one download attempt. Callers classify with
// errors.Is; nothing in this package retries internally.
var (
	// ErrConfiguration covers problems detected before any payload
	// byte is parsed, such as a missing boundary token or filename hint.
	ErrConfiguration = errors.New("configuration error")

	// ErrProtocol covers malformed or truncated stream content, such
	// as an unterminated header block or a source that ends before the
	// terminal boundary.
	ErrProtocol = errors.New("protocol error")

	// ErrTransport covers chunk retrieval failures surfaced by the
	// byte source mid-stream.
	ErrTransport = errors.New("transport error")
)
