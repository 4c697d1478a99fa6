package ingest

import (
	"context"
	"io"

	"github.com/korrelate/ingestcore/internal/model"
	"github.com/korrelate/ingestcore/utils"
)

// MetadataStore is the subset of the persistence collaborator DedupStore needs.
type MetadataStore interface {
	LookupByHash(ctx context.Context, md5Hash string) (*model.Document, error)
	LookupByRemoteID(ctx context.Context, remoteFileID string) (*model.Document, error)
}

// DedupStore enforces global content-identity uniqueness by MD5 hash.
type DedupStore struct {
	store MetadataStore
}

func NewDedupStore(store MetadataStore) *DedupStore {
	return &DedupStore{store: store}
}

// HashAndLookup streams r through MD5 and returns the hash plus any existing
// Document already holding that content.
func (d *DedupStore) HashAndLookup(ctx context.Context, r io.Reader) (hash string, existing *model.Document, err error) {
	hash, err = utils.HashContent(r)
	if err != nil {
		return "", nil, err
	}
	existing, err = d.store.LookupByHash(ctx, hash)
	if err != nil {
		return "", nil, err
	}
	return hash, existing, nil
}

// LookupByHash returns the existing Document with this content hash, if any.
func (d *DedupStore) LookupByHash(ctx context.Context, hash string) (*model.Document, error) {
	return d.store.LookupByHash(ctx, hash)
}

// LookupByRemoteID is used by FolderSynchronizer to find a previously-linked Document.
func (d *DedupStore) LookupByRemoteID(ctx context.Context, remoteID string) (*model.Document, error) {
	return d.store.LookupByRemoteID(ctx, remoteID)
}
