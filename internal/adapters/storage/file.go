package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alejandrodnm/resolvebot/internal/domain"
)

// FileStore guarda el snapshot como un único documento JSON.
// Save escribe a un temporal y lo renombra, así un crash nunca deja el
// archivo a medias.
type FileStore struct {
	path string
}

// NewFileStore crea un FileStore sobre path. El archivo no necesita existir.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load lee el snapshot. Sin archivo devuelve domain.ErrNoState; un archivo
// ilegible o corrupto es un error.
func (s *FileStore) Load(_ context.Context) (*domain.State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("storage.FileStore.Load: read %q: %w", s.path, err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("storage.FileStore.Load: decode %q: %w", s.path, err)
	}
	state.Normalize()
	return &state, nil
}

// Save sobreescribe el snapshot completo.
func (s *FileStore) Save(_ context.Context, state *domain.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("storage.FileStore.Save: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage.FileStore.Save: mkdir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage.FileStore.Save: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.FileStore.Save: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.FileStore.Save: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage.FileStore.Save: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("storage.FileStore.Save: rename: %w", err)
	}
	return nil
}

// Close no hace nada; existe para que FileStore y SQLiteStore sean intercambiables.
func (s *FileStore) Close() error { return nil }

// Store es un ports.StateStore que libera recursos al cerrar.
type Store interface {
	Load(ctx context.Context) (*domain.State, error)
	Save(ctx context.Context, state *domain.State) error
	Close() error
}

// Open crea el store configurado: "file" (JSON, por defecto) o "sqlite".
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "file", "json":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("storage.Open: unknown driver %q", driver)
	}
}
