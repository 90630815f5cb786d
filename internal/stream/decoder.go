package stream

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/fold-ecosystemics/espstream/internal/progress"
)

// maxHeaderBytes caps how much data may accumulate between a start
// boundary and its header terminator before the block is declared
// malformed.
const maxHeaderBytes = 8 * 1024

var headerSep = []byte("\r\n\r\n")

// Decoder incrementally reconstructs the parts of one multipart
// download from a stream of arbitrarily fragmented byte chunks. It
// owns its accumulation buffer and at most one open output file for
// the duration of a single Decode call; a Decoder is not safe for
// reuse or concurrent use.
type Decoder struct {
	delim     []byte // "\r\n--" + boundary token
	outputDir string
	log       zerolog.Logger
	tracker   *progress.Tracker

	buf   []byte
	part  *partFile
	parts int
}

// NewDecoder prepares a decoder for one download. The boundary token
// must be non-empty and is matched in its exact byte form. Progress is
// reported through logger so callers (and tests) control the sink.
func NewDecoder(boundary []byte, outputDir string, logger zerolog.Logger) (*Decoder, error) {
	if len(boundary) == 0 {
		return nil, fmt.Errorf("%w: empty boundary token", ErrConfiguration)
	}
	return &Decoder{
		delim:     append([]byte("\r\n--"), boundary...),
		outputDir: outputDir,
		log:       logger,
	}, nil
}

// Decode consumes src until the terminal boundary arrives or the
// source is exhausted. Each part is written to its own file in the
// output directory, staged under a ".part" name and renamed on part
// close so a truncated part never masquerades as a complete one.
// Bytes after the terminal boundary are discarded.
func (d *Decoder) Decode(src ByteSource) error {
	d.tracker = progress.NewTracker()
	defer d.abortPart()
	for {
		chunk, err := src.Next()
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("%w: source exhausted before terminal boundary", ErrProtocol)
			}
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		d.buf = append(d.buf, chunk...)
		d.tracker.Add(len(chunk))
		done, err := d.drain()
		if err != nil {
			return err
		}
		if done {
			d.buf = nil
			return nil
		}
	}
}

// drain consumes whatever complete protocol structures the buffer
// currently holds, returning true once the terminal boundary has been
// handled. It returns (false, nil) when the remaining bytes are
// inconclusive and the next chunk is needed.
func (d *Decoder) drain() (bool, error) {
	for {
		switch {
		case bytes.HasPrefix(d.buf, d.delim):
			rest := d.buf[len(d.delim):]
			if len(rest) < 2 {
				// Not yet known whether this is a part start or the
				// terminal marker.
				return false, nil
			}
			if rest[0] == '-' && rest[1] == '-' {
				return true, d.finish()
			}
			// A start boundary ends the previous part.
			if err := d.closePart(); err != nil {
				return false, err
			}
			ok, err := d.openPart()
			if err != nil || !ok {
				return false, err
			}
		case d.part != nil:
			ok, err := d.writePayload()
			if err != nil || !ok {
				return false, err
			}
		default:
			// No open part and no recognized marker: wait for more
			// data. A well-formed stream only passes through here
			// while the leading boundary is still incomplete.
			return false, nil
		}
	}
}

// openPart parses the header block that follows a start boundary and
// opens the declared output file. It returns false when the header
// terminator has not arrived yet; a header block is never parsed
// partially.
func (d *Decoder) openPart() (bool, error) {
	headerEnd := bytes.Index(d.buf, headerSep)
	if headerEnd == -1 {
		if len(d.buf) > maxHeaderBytes {
			return false, fmt.Errorf("%w: no header terminator within %d bytes of part start", ErrProtocol, maxHeaderBytes)
		}
		return false, nil
	}
	name, err := parsePartName(d.buf[len(d.delim):headerEnd])
	if err != nil {
		return false, err
	}
	part, err := newPartFile(d.outputDir, name)
	if err != nil {
		return false, err
	}
	d.part = part
	d.buf = d.buf[headerEnd+len(headerSep):]
	d.log.Info().
		Str("part", name).
		Str("avgSpeed", progress.FormatSpeed(d.tracker.AvgSpeed())).
		Msg("Downloading part")
	return true, nil
}

// writePayload flushes payload bytes of the open part to its file. It
// returns false when everything flushable has been flushed and more
// data is needed. A trailing run of bytes that could still be the
// start of a delimiter split across chunks is withheld; this is what
// keeps a split boundary from being mistaken for payload, and bounds
// the buffer independent of chunk size.
func (d *Decoder) writePayload() (bool, error) {
	if idx := bytes.Index(d.buf, d.delim); idx >= 0 {
		if err := d.writeOut(d.buf[:idx]); err != nil {
			return false, err
		}
		d.buf = d.buf[idx:]
		return true, nil
	}
	keep := boundaryPrefixLen(d.buf, d.delim)
	if flush := len(d.buf) - keep; flush > 0 {
		if err := d.writeOut(d.buf[:flush]); err != nil {
			return false, err
		}
		d.buf = d.buf[flush:]
	}
	return false, nil
}

func (d *Decoder) writeOut(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if _, err := d.part.Write(b); err != nil {
		return fmt.Errorf("error writing to %s: %v", filepath.Base(d.part.path), err)
	}
	return nil
}

// finish handles the terminal boundary.
func (d *Decoder) finish() error {
	if err := d.closePart(); err != nil {
		return err
	}
	d.log.Info().
		Int("parts", d.parts).
		Int64("receivedBytes", d.tracker.TotalBytes()).
		Str("avgSpeed", progress.FormatSpeed(d.tracker.AvgSpeed())).
		Msg("All parts downloaded")
	return nil
}

// closePart finalizes the open part, if any. Safe to call when no
// part is open.
func (d *Decoder) closePart() error {
	if d.part == nil {
		return nil
	}
	part := d.part
	d.part = nil
	if err := part.finalize(); err != nil {
		return fmt.Errorf("error finalizing %s: %v", filepath.Base(part.path), err)
	}
	d.parts++
	return nil
}

// abortPart closes a part left open by an error exit without renaming
// it; the partial payload stays on disk under the staging name and
// cleanup is the caller's policy.
func (d *Decoder) abortPart() {
	if d.part == nil {
		return
	}
	if err := d.part.discard(); err != nil {
		d.log.Error().Err(err).Str("part", filepath.Base(d.part.path)).Msg("Error closing partial part file")
	}
	d.part = nil
}

// boundaryPrefixLen reports the length of the longest suffix of buf
// that is a proper prefix of delim. Those bytes cannot be flushed yet
// because the next chunk may complete the delimiter.
func boundaryPrefixLen(buf, delim []byte) int {
	n := len(delim) - 1
	if n > len(buf) {
		n = len(buf)
	}
	for ; n > 0; n-- {
		if bytes.HasPrefix(delim, buf[len(buf)-n:]) {
			return n
		}
	}
	return 0
}

// partFile is one part's output file. The server-declared name is
// used verbatim under the download directory, matching the device's
// contract; it is not sanitized here.
type partFile struct {
	f         *os.File
	path      string
	stagePath string
}

func newPartFile(dir, name string) (*partFile, error) {
	path := filepath.Join(dir, name)
	stagePath := path + ".part"
	f, err := os.OpenFile(stagePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("error creating output file: %v", err)
	}
	return &partFile{f: f, path: path, stagePath: stagePath}, nil
}

func (p *partFile) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

// finalize closes the file and moves it to its final name.
func (p *partFile) finalize() error {
	if err := p.f.Close(); err != nil {
		return err
	}
	return os.Rename(p.stagePath, p.path)
}

// discard closes the file, leaving whatever was flushed under the
// staging name.
func (p *partFile) discard() error {
	return p.f.Close()
}
