// Package profile implements ConfigProfile resolution: picking the
// parameter bundle frozen into a job at enqueue time.
package profile

import (
	"context"

	"github.com/korrelate/ingestcore/internal/model"
)

// Store is the subset of the persistence collaborator Resolver needs.
type Store interface {
	GetProfile(ctx context.Context, id string) (*model.ProcessingProfile, error)
	DefaultProfile(ctx context.Context) (*model.ProcessingProfile, error)
}

// Resolver implements the resolution order in §4.13: explicit override,
// then Document.profileId, then binding.profileId (sync only), then default.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve picks the effective profile for one job. Any of override,
// documentProfileID, bindingProfileID may be empty; the first non-empty one
// (in that priority order) that resolves to a real profile wins.
func (r *Resolver) Resolve(ctx context.Context, override, documentProfileID, bindingProfileID string) (model.ProcessingProfile, error) {
	for _, candidate := range []string{override, documentProfileID, bindingProfileID} {
		if candidate == "" {
			continue
		}
		if p, err := r.store.GetProfile(ctx, candidate); err == nil {
			return *p, nil
		}
	}
	p, err := r.store.DefaultProfile(ctx)
	if err != nil {
		return model.ProcessingProfile{}, err
	}
	return *p, nil
}
