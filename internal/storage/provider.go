// Package storage defines the entity record persistence abstraction: one
// JSON record file per entity under the graph directory.
package storage

import "time"

// RecordMetadata is a lightweight listing entry for one stored record.
type RecordMetadata struct {
	ID        string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for record file operations. The engine itself
// never does I/O; loading and persisting go through a Provider.
type Provider interface {
	// List returns metadata for every stored record.
	List() ([]RecordMetadata, error)
	// Read returns the raw record bytes for one entity id.
	Read(id string) ([]byte, error)
	// Write atomically persists the record bytes for one entity id.
	Write(id string, data []byte) error
	// Delete removes the record for one entity id.
	Delete(id string) error
}
