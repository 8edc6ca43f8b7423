package storage

import (
	"context"
	"fmt"
)

var _ Store = (*Mirror)(nil)

// Mirror copies to every replica before writing the primary, so a failed
// replica leaves the primary's artifact untouched. The returned ref is the
// primary's.
type Mirror struct {
	primary  Store
	replicas []Store
}

func NewMirror(primary Store, replicas ...Store) *Mirror {
	return &Mirror{primary: primary, replicas: replicas}
}

func (m *Mirror) Store(ctx context.Context, data []byte, category, basename, ext string) (ArtifactRef, error) {
	for _, r := range m.replicas {
		if _, err := r.Store(ctx, data, category, basename, ext); err != nil {
			return ArtifactRef{}, fmt.Errorf("mirror %s/%s.%s: %w", category, basename, ext, err)
		}
	}

	return m.primary.Store(ctx, data, category, basename, ext)
}
