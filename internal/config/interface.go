package config

import "context"

// Loader is the interface for a format-specific pipeline loader.
type Loader interface {
	// Load reads the pipeline document at path and translates it into the
	// format-agnostic model.
	Load(ctx context.Context, path string) (*Pipeline, error)
}
