// Package storage defines the media artifact file-system abstraction.
package storage

// Provider is the interface for audio artifact operations. Paths are
// relative to the media root; names are generated, never caller-supplied.
type Provider interface {
	// Store atomically writes data to a new uniquely named file with the
	// given extension and returns its path relative to the media root.
	Store(ext string, data []byte) (string, error)
	// Reserve allocates a new uniquely named path without creating the file,
	// for artifacts written directly by an external tool. It returns the
	// relative path and its absolute file-system location.
	Reserve(ext string) (rel string, abs string, err error)
	// Read returns the raw bytes of the artifact at path.
	Read(path string) ([]byte, error)
	// Abs resolves a stored artifact path to an absolute file-system path.
	Abs(path string) (string, error)
	// Delete removes the artifact at path.
	Delete(path string) error
}
