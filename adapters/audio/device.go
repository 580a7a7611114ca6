// Package audio exposes PCM capture and playback endpoints backed by files
// or pipes, so capture tools like arecord or sox can feed the recognizer.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain/repositories"
)

// StdioPath selects standard input for capture and standard output for playback
const StdioPath = "-"

// Microphone reads PCM from a file, a named pipe or stdin
type Microphone struct {
	path   string
	stdin  io.Reader
	logger *zap.Logger
}

var _ repositories.Microphone = (*Microphone)(nil)

// NewMicrophone creates a microphone reading from path
func NewMicrophone(path string, logger *zap.Logger) *Microphone {
	return &Microphone{path: path, stdin: os.Stdin, logger: logger}
}

// RequestPermission checks that the source exists and is readable
func (m *Microphone) RequestPermission(ctx context.Context) error {
	if m.path == "" {
		return repositories.ErrUnsupported
	}
	if m.path == StdioPath {
		return nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return mapOpenError(err)
	}
	return f.Close()
}

// Open returns the PCM stream; closing it releases the source
func (m *Microphone) Open(ctx context.Context) (io.ReadCloser, error) {
	if m.path == "" {
		return nil, repositories.ErrUnsupported
	}
	if m.path == StdioPath {
		return io.NopCloser(m.stdin), nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return nil, mapOpenError(err)
	}
	m.logger.Info("Microphone opened", zap.String("path", m.path))
	return f, nil
}

func mapOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", repositories.ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("audio input not found: %w", err)
	}
	return err
}

// Speaker writes PCM to a file or stdout. It is safe for concurrent use.
type Speaker struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	bytes  int64
}

// OpenSpeaker opens path for playback; "-" writes to stdout and "" discards audio
func OpenSpeaker(path string) (*Speaker, error) {
	switch path {
	case "":
		return &Speaker{w: io.Discard}, nil
	case StdioPath:
		return &Speaker{w: os.Stdout}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}
	return &Speaker{w: f, closer: f}, nil
}

// NewSpeaker wraps an arbitrary writer
func NewSpeaker(w io.Writer) *Speaker {
	return &Speaker{w: w}
}

func (s *Speaker) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(p)
	s.bytes += int64(n)
	return n, err
}

// Written reports the number of bytes played so far
func (s *Speaker) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

func (s *Speaker) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
