// Package storage defines the project-directory file abstraction.
package storage

import "github.com/starford/adcanvas/internal/models"

// Provider is the interface for project file operations. Paths are
// relative to the project directory.
type Provider interface {
	// List returns metadata for every project file under dir.
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
