package storage

import (
	"errors"
	"io"
)

// Storage categories mirror the on-disk layout: one subtree per kind of upload.
const (
	CategoryShared  = "sharedfiles"
	CategoryWebsite = "websitefiles"
)

// ErrNotFound is returned when a stored name cannot be located in any layout.
var ErrNotFound = errors.New("stored file not found")

// Storage defines the interface for file storage backends. Files are written
// under category/owner and located later by stored name alone, because records
// migrated from the old flat layout carry no category or owner information.
type Storage interface {
	// Save writes a file under category/owner/storedName, creating the
	// directories on demand.
	Save(category, owner, storedName string, r io.Reader) error

	// Open locates a file by stored name and returns a reader. The legacy
	// flat root is checked before the organized subtrees.
	Open(storedName string) (io.ReadCloser, error)

	// Exists reports whether a stored name can be located.
	Exists(storedName string) (bool, error)

	// Delete removes a file by stored name; missing files are not an error.
	Delete(storedName string) error
}
