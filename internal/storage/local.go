package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage implements the Storage interface on the local filesystem.
//
// New files go into an organized layout (category/owner/storedName). A
// deployment may still carry files written directly under the root by an
// earlier version, so lookups check the flat location first and then walk
// each category/owner folder.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a local filesystem backend rooted at root.
func NewLocalStorage(root string) (*LocalStorage, error) {
	for _, category := range []string{CategoryShared, CategoryWebsite} {
		if err := os.MkdirAll(filepath.Join(root, category), 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &LocalStorage{root: root}, nil
}

// Save writes a file under category/owner, creating the folder on demand.
func (l *LocalStorage) Save(category, owner, storedName string, r io.Reader) error {
	dir := filepath.Join(l.root, category, owner)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create owner directory: %w", err)
	}

	path := filepath.Join(dir, storedName)
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(path) // Clean up on error
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

// Resolve locates a stored name on disk, returning its absolute path. The
// legacy flat root wins over the organized subtrees when both exist.
func (l *LocalStorage) Resolve(storedName string) (string, error) {
	flat := filepath.Join(l.root, storedName)
	if _, err := os.Stat(flat); err == nil {
		return flat, nil
	}

	for _, category := range []string{CategoryShared, CategoryWebsite} {
		categoryDir := filepath.Join(l.root, category)
		entries, err := os.ReadDir(categoryDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(categoryDir, entry.Name(), storedName)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", ErrNotFound
}

// Open locates a file by stored name and returns a reader.
func (l *LocalStorage) Open(storedName string) (io.ReadCloser, error) {
	path, err := l.Resolve(storedName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Exists reports whether a stored name can be located in any layout.
func (l *LocalStorage) Exists(storedName string) (bool, error) {
	_, err := l.Resolve(storedName)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a file by stored name; missing files are not an error.
func (l *LocalStorage) Delete(storedName string) error {
	path, err := l.Resolve(storedName)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
