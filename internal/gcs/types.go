package gcs

import (
	"context"
)

// ArtifactStore reads and publishes model artifacts in cloud storage.
// This interface enables mocking of storage in the model loader and CLI.
type ArtifactStore interface {
	// Fetch downloads the object bytes behind a gs:// URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Upload copies a local file to a gs:// URI.
	Upload(ctx context.Context, filePath, uri string) error
}
