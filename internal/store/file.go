package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"gendesk/internal/domain"
)

// FileStore keeps the session set as one JSON array on disk. It is the
// default backend and mirrors the single-key durable storage the widget
// originally used.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Load(ctx context.Context) ([]*domain.ChatSession, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session store: %w", err)
	}

	var sessions []*domain.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		log.WithError(err).WithField("path", f.path).
			Warn("session store is malformed, starting with an empty set")
		return nil, nil
	}
	return sessions, nil
}

func (f *FileStore) Save(ctx context.Context, sessions []*domain.ChatSession) error {
	if sessions == nil {
		sessions = []*domain.ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("marshal session store: %w", err)
	}

	// Write to a temp file and rename so a crash mid-write never leaves a
	// truncated store behind.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace session store: %w", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
