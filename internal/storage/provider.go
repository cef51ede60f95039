// Package storage defines the vault document-store abstraction.
package storage

import "github.com/starford/obridge/internal/models"

// Provider is the interface for vault document operations.
type Provider interface {
	// List returns every .md document under dir (relative to vault root),
	// in lexical path order.
	List(dir string) ([]models.Entry, error)
	// Read returns the raw bytes of the document at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the document at path.
	Write(path string, content []byte) error
	// Stat reports whether path names a document or a directory.
	Stat(path string) (models.Entry, error)
}
