package stream

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/fold-ecosystemics/espstream/internal/progress"
)

// SaveSingle streams src into one file named by the response's
// filename hint, in arrival order with no parsing. Like multipart
// parts, the file is staged under a ".part" name and renamed once the
// source is exhausted.
func SaveSingle(src ByteSource, filename, outputDir string, logger zerolog.Logger) error {
	if filename == "" {
		return fmt.Errorf("%w: empty filename hint", ErrConfiguration)
	}
	path := filepath.Join(outputDir, filename)
	stagePath := path + ".part"
	f, err := os.OpenFile(stagePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error creating output file: %v", err)
	}
	tracker := progress.NewTracker()
	for {
		chunk, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if _, err := f.Write(chunk); err != nil {
			f.Close()
			return fmt.Errorf("error writing to %s: %v", filename, err)
		}
		tracker.Add(len(chunk))
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing %s: %v", filename, err)
	}
	if err := os.Rename(stagePath, path); err != nil {
		return fmt.Errorf("error finalizing %s: %v", filename, err)
	}
	logger.Info().
		Str("file", filename).
		Int64("size", tracker.TotalBytes()).
		Str("avgSpeed", progress.FormatSpeed(tracker.AvgSpeed())).
		Msg("Downloaded")
	return nil
}
