package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/korrelate/ingestcore/internal/model"
)

type fakeStore struct {
	profiles map[string]*model.ProcessingProfile
	def      *model.ProcessingProfile
	defErr   error
}

func (f *fakeStore) GetProfile(ctx context.Context, id string) (*model.ProcessingProfile, error) {
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeStore) DefaultProfile(ctx context.Context) (*model.ProcessingProfile, error) {
	if f.defErr != nil {
		return nil, f.defErr
	}
	return f.def, nil
}

func TestResolve_OverrideWins(t *testing.T) {
	store := &fakeStore{
		profiles: map[string]*model.ProcessingProfile{
			"override": {ID: "override"},
			"doc":      {ID: "doc"},
		},
		def: &model.ProcessingProfile{ID: "default"},
	}
	r := NewResolver(store)
	p, err := r.Resolve(context.Background(), "override", "doc", "binding")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "override" {
		t.Errorf("ID = %q, want %q", p.ID, "override")
	}
}

func TestResolve_FallsThroughToDocumentThenBinding(t *testing.T) {
	store := &fakeStore{
		profiles: map[string]*model.ProcessingProfile{
			"binding": {ID: "binding"},
		},
		def: &model.ProcessingProfile{ID: "default"},
	}
	r := NewResolver(store)

	p, err := r.Resolve(context.Background(), "", "missing-doc-profile", "binding")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "binding" {
		t.Errorf("ID = %q, want %q", p.ID, "binding")
	}
}

func TestResolve_FallsBackToDefaultWhenNoCandidateResolves(t *testing.T) {
	store := &fakeStore{
		profiles: map[string]*model.ProcessingProfile{},
		def:      &model.ProcessingProfile{ID: "default"},
	}
	r := NewResolver(store)

	p, err := r.Resolve(context.Background(), "", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "default" {
		t.Errorf("ID = %q, want %q", p.ID, "default")
	}
}

func TestResolve_DefaultLookupErrorPropagates(t *testing.T) {
	store := &fakeStore{defErr: errors.New("mongo down")}
	r := NewResolver(store)

	_, err := r.Resolve(context.Background(), "", "", "")
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}
