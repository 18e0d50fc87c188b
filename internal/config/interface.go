package config

import "context"

// Loader reads workflow files and translates them into a Model.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Model, error)
}
