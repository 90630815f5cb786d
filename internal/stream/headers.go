package stream

import (
	"fmt"
	"mime"
	"strings"
)

// partNameHeader carries the declared output filename of each part,
// as a quoted value.
const partNameHeader = "X-Part-Name"

// BoundaryToken extracts the multipart boundary from a Content-Type
// value such as "multipart/mixed; boundary=abc123". The token is used
// in its exact byte form; no normalization is applied.
func BoundaryToken(contentType string) ([]byte, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid content type %q: %v", ErrConfiguration, contentType, err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("%w: no boundary in content type %q", ErrConfiguration, contentType)
	}
	return []byte(boundary), nil
}

// FilenameHint extracts the filename from a Content-Disposition value
// for the single-file download path.
func FilenameHint(contentDisposition string) (string, error) {
	if contentDisposition == "" {
		return "", fmt.Errorf("%w: no content disposition header", ErrConfiguration)
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return "", fmt.Errorf("%w: invalid content disposition %q: %v", ErrConfiguration, contentDisposition, err)
	}
	filename := params["filename"]
	if filename == "" {
		return "", fmt.Errorf("%w: no filename in content disposition %q", ErrConfiguration, contentDisposition)
	}
	return filename, nil
}

// parsePartName scans a part header block (the "Name: Value" lines
// between the start boundary and the blank line) for the quoted part
// name. A block without a usable name is a protocol error; a part is
// never written to a file with an empty or guessed name.
func parsePartName(block []byte) (string, error) {
	for _, line := range strings.Split(string(block), "\r\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), partNameHeader) {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			if name := value[1 : len(value)-1]; name != "" {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("%w: part header block has no usable %s header", ErrProtocol, partNameHeader)
}
