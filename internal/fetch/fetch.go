package fetch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/fold-ecosystemics/espstream/internal/client"
	"github.com/fold-ecosystemics/espstream/internal/stream"
	"github.com/fold-ecosystemics/espstream/internal/utils"
)

// Endpoint is the device's directory streaming endpoint.
const Endpoint = "dir_stream"

// Options controls one download run.
type Options struct {
	DownloadDir string
	From        string // range restriction, passed to the server untouched
	To          string
	ChunkSize   int
}

// Run fetches the streaming endpoint and writes the resulting file(s)
// into the download directory, dispatching on the response's declared
// content kind: a multipart body goes through the incremental decoder,
// anything else is treated as a single named file.
func Run(ctx context.Context, session *client.Session, opts Options) error {
	log := utils.GetLogger("download").With().Str("session", uuid.NewString()[:8]).Logger()
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return fmt.Errorf("error creating download directory: %v", err)
	}
	params := make(map[string]string)
	if opts.From != "" {
		params["from"] = opts.From
	}
	if opts.To != "" {
		params["to"] = opts.To
	}
	resp, err := session.Fetch(ctx, Endpoint, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	src := stream.NewReaderSource(resp.Body, opts.ChunkSize)
	contentType := resp.Header.Get("Content-Type")
	log.Debug().Str("contentType", contentType).Msg("Response headers received")
	if strings.Contains(contentType, "multipart") {
		boundary, err := stream.BoundaryToken(contentType)
		if err != nil {
			return err
		}
		decoder, err := stream.NewDecoder(boundary, opts.DownloadDir, log)
		if err != nil {
			return err
		}
		return decoder.Decode(src)
	}
	filename, err := stream.FilenameHint(resp.Header.Get("Content-Disposition"))
	if err != nil {
		return err
	}
	return stream.SaveSingle(src, filename, opts.DownloadDir, log)
}
