// Package storage defines the uploaded-image object store.
package storage

import (
	"io"
	"time"
)

// Object describes one stored blob.
type Object struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for image object operations. Names are flat
// (no directory separators); implementations decide the physical layout.
type Provider interface {
	// Put atomically stores content under name, replacing any previous object.
	Put(name string, content []byte) error
	// Open returns a reader over the object. Missing objects wrap apperr.ErrNotFound.
	Open(name string) (io.ReadSeekCloser, Object, error)
	// Exists reports whether name is stored.
	Exists(name string) (bool, error)
	// Delete removes the object. Missing objects wrap apperr.ErrNotFound.
	Delete(name string) error
}
