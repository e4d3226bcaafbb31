package playback

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink receives the now playing text; an empty string clears it.
type Sink interface {
	Write(text string) error
}

type NopSink struct{}

func (NopSink) Write(string) error { return nil }

// FileSink replaces the contents of a text file, e.g. for a stream overlay.
type FileSink struct {
	Path string
}

func (s FileSink) Write(text string) error {
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".now-playing-*")
	if err != nil {
		return fmt.Errorf("error occured while creating temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("error occured while writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// readers never see a half written file
	return os.Rename(tmp.Name(), s.Path)
}
