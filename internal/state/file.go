package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	qio "quantmind/internal/io"
)

// FileStore keeps one JSON file per document under a base directory. Writes
// are atomic, so a crash mid-save never corrupts the previous snapshot.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// first save, not here, so constructing a store is side-effect free.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Save writes the document atomically.
func (s *FileStore) Save(_ context.Context, key string, doc any) error {
	if err := qio.WriteJSONAtomic(s.path(key), doc); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load reads the document into the target. A missing file is ErrNotFound;
// a present but undecodable file is reported as corruption.
func (s *FileStore) Load(_ context.Context, key string, into any) error {
	err := qio.ReadJSON(s.path(key), into)
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("load %s: %w", key, err)
}
