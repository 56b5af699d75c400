package scans

import "context"

// Runner port (interface untuk eksekusi scanner)
// Available returns ErrScannerUnavailable when the tool cannot be launched.
type Runner interface {
	Available(scanner Scanner) error
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// ImageInspector reports whether an image is present locally.
// Implementations return ErrImageNotFound when it is not.
type ImageInspector interface {
	Exists(ctx context.Context, image string) error
}

// ArtifactStore port (interface untuk penyimpanan artefak)
type ArtifactStore interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}
