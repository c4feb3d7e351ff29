package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrContentMismatch is returned when a write-once LOG file already exists
// with different bytes.
var ErrContentMismatch = errors.New("stored log differs from payload")

// LogStore keeps converted LOG files on disk under a base directory. Files are
// written once; rewriting identical bytes is a no-op.
type LogStore struct {
	baseDir string
}

// NewLogStore ensures the base directory exists and returns a handle.
func NewLogStore(baseDir string) (*LogStore, error) {
	if baseDir == "" {
		baseDir = "./logs"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &LogStore{baseDir: baseDir}, nil
}

// LogPath is the relative location of a channel's LOG for a date.
func LogPath(channelID, date, ext string) string {
	return filepath.ToSlash(filepath.Join(sanitize(channelID), date+"."+ext))
}

// Save writes data to rel atomically. An existing file with the same bytes is
// accepted so conversions can be retried.
func (s *LogStore) Save(rel string, data []byte) (string, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if existing, err := os.ReadFile(path); err == nil {
		if bytes.Equal(existing, data) {
			return rel, nil
		}
		return "", fmt.Errorf("%s: %w", rel, ErrContentMismatch)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read log file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare log directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".log-*")
	if err != nil {
		return "", fmt.Errorf("create temp log file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write log file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close log file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish log file: %w", err)
	}
	return rel, nil
}

// Open returns a read-only handle for the stored file.
func (s *LogStore) Open(rel string) (io.ReadCloser, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// Read loads the whole file.
func (s *LogStore) Read(rel string) ([]byte, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return data, nil
}

func (s *LogStore) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid log path %q", rel)
	}
	return filepath.Join(s.baseDir, clean), nil
}

func sanitize(part string) string {
	part = strings.TrimSpace(part)
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return replacer.Replace(part)
}
