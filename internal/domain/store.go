package domain

import "context"

// DatasetStore supplies decoded, immutable gridded fields. Axis names are
// whatever the dataset uses; Normalize harmonizes them.
type DatasetStore interface {
	// LoadField reads one variable of the named source.
	LoadField(ctx context.Context, source, variable string) (*Field, error)
}
