// Package gateways declares the contracts the pipeline consumes.
// Implementations of the collaborator interfaces (object storage, the
// conversion-record service) live outside this core; the adapters in
// domain-adapters provide local stand-ins for development and tests.
package gateways

import "context"

// Storage uploads and downloads archive bytes
type Storage interface {
	// Upload stores bytes under bucket/path and returns an access URL
	Upload(ctx context.Context, bucket, path string, data []byte) (string, error)

	// Download retrieves the bytes stored under bucket/path
	Download(ctx context.Context, bucket, path string) ([]byte, error)
}

// ConversionRecord is one tracked repackaging job
type ConversionRecord struct {
	ID       string
	Status   string
	Fields   map[string]string
}

// ConversionRecords tracks the lifecycle of repackaging jobs
type ConversionRecords interface {
	// Create opens a new record with the given metadata
	Create(ctx context.Context, metadata map[string]string) (*ConversionRecord, error)

	// Update patches fields on an existing record
	Update(ctx context.Context, id string, fields map[string]string) (*ConversionRecord, error)
}
