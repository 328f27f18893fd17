package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"prdeck/internal/types"
)

type UpdateCheckpointStore interface {
	Load(ctx context.Context) (*types.UpdateCheckpoint, error)
	Save(ctx context.Context, checkpoint *types.UpdateCheckpoint) error
	Clear(ctx context.Context) error
}

type FileUpdateCheckpointStore struct {
	path string
	mu   sync.Mutex
}

func NewFileUpdateCheckpointStore(path string) *FileUpdateCheckpointStore {
	return &FileUpdateCheckpointStore{path: path}
}

// Load returns an empty checkpoint when the file is missing. A corrupt file
// is reported so the caller can discard it.
func (s *FileUpdateCheckpointStore) Load(ctx context.Context) (*types.UpdateCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkpoint, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		return &types.UpdateCheckpoint{}, nil
	}
	return checkpoint, err
}

func (s *FileUpdateCheckpointStore) Save(ctx context.Context, checkpoint *types.UpdateCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if checkpoint == nil {
		return errors.New("checkpoint is required")
	}
	return s.write(checkpoint)
}

// Clear drops any pending update while keeping the last-check timestamp so
// throttling survives an abandoned update.
func (s *FileUpdateCheckpointStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := &types.UpdateCheckpoint{}
	if previous, err := s.read(); err == nil {
		cleared.LastCheck = previous.LastCheck
	}
	return s.write(cleared)
}

func (s *FileUpdateCheckpointStore) read() (*types.UpdateCheckpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("update checkpoint %s is empty", s.path)
	}
	checkpoint := &types.UpdateCheckpoint{}
	if err := json.Unmarshal(data, checkpoint); err != nil {
		return nil, fmt.Errorf("decode update checkpoint: %w", err)
	}
	return checkpoint, nil
}

// write swaps in a synced temp file so a crash mid-save leaves the previous
// checkpoint readable.
func (s *FileUpdateCheckpointStore) write(checkpoint *types.UpdateCheckpoint) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(append(data, '\n'))
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
