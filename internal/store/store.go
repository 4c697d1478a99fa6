// Package store implements the MetadataStore collaborator over MongoDB:
// documents, chunks, processing profiles, and remote folder bindings.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/korrelate/ingestcore/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a lookup by id finds nothing.
var ErrNotFound = errors.New("not found")

// ErrStateConflict is returned when an optimistic-lock write loses a race.
var ErrStateConflict = errors.New("state conflict")

// Store is the MetadataStore collaborator: documents, chunks, profiles, bindings.
type Store struct {
	db *mongo.Database
}

func New(client *mongo.Client, dbName string) *Store {
	return &Store{db: client.Database(dbName)}
}

func (s *Store) documents() *mongo.Collection { return s.db.Collection("documents") }
func (s *Store) chunks() *mongo.Collection    { return s.db.Collection("chunks") }
func (s *Store) profiles() *mongo.Collection  { return s.db.Collection("processing_profiles") }
func (s *Store) bindings() *mongo.Collection  { return s.db.Collection("remote_folder_bindings") }

// InsertDocument creates a new Document row.
func (s *Store) InsertDocument(ctx context.Context, d *model.Document) error {
	_, err := s.documents().InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return ErrStateConflict
	}
	return err
}

// GetDocument loads a Document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var d model.Document
	err := s.documents().FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// LookupByHash implements DedupStore's content-identity lookup.
func (s *Store) LookupByHash(ctx context.Context, md5Hash string) (*model.Document, error) {
	var d model.Document
	err := s.documents().FindOne(ctx, bson.M{"md5Hash": md5Hash}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// LookupByRemoteID implements DedupStore's sync-time lookup.
func (s *Store) LookupByRemoteID(ctx context.Context, remoteFileID string) (*model.Document, error) {
	var d model.Document
	err := s.documents().FindOne(ctx, bson.M{"remoteFileId": remoteFileID}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDocument performs an optimistic-locked replace keyed by id + updatedAt.
// prevUpdatedAt is the version the caller last observed; a mismatch means a
// concurrent writer won the race and the caller should retry once then fail
// with ErrStateConflict.
func (s *Store) UpdateDocument(ctx context.Context, d *model.Document, prevUpdatedAt time.Time) error {
	newUpdatedAt := time.Now().UTC()
	filter := bson.M{"_id": d.ID, "updatedAt": prevUpdatedAt}
	d.UpdatedAt = newUpdatedAt
	res, err := s.documents().ReplaceOne(ctx, filter, d)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStateConflict
	}
	return nil
}

// DocumentsByRemoteFolder returns every active, remote-linked document under
// folderID, used by FolderSynchronizer's full-sync removal detection.
func (s *Store) DocumentsByRemoteFolder(ctx context.Context, folderID string) ([]model.Document, error) {
	cur, err := s.documents().Find(ctx, bson.M{"remoteFolderId": folderID, "isActive": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []model.Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ListDocuments returns a filtered, paginated page of documents plus a total count.
type DocumentFilter struct {
	Status          string
	Search          string
	SourceType       string
	ConnectionState string
	SortBy          string
	SortOrder       int
	Limit           int64
	Offset          int64
}

func (s *Store) ListDocuments(ctx context.Context, f DocumentFilter) ([]model.Document, int64, error) {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.SourceType != "" {
		q["sourceType"] = f.SourceType
	}
	if f.ConnectionState != "" {
		q["connectionState"] = f.ConnectionState
	}
	if f.Search != "" {
		q["filename"] = bson.M{"$regex": f.Search, "$options": "i"}
	}

	total, err := s.documents().CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}
	order := f.SortOrder
	if order == 0 {
		order = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sortBy, Value: order}}).
		SetSkip(f.Offset).
		SetLimit(f.Limit)

	cur, err := s.documents().Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var docs []model.Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ReplaceChunks atomically deletes any existing chunks for documentId and
// inserts the new set, in index order.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []model.Chunk) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.chunks().DeleteMany(sc, bson.M{"documentId": documentID}); err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			return nil, nil
		}
		docs := make([]interface{}, len(chunks))
		for i := range chunks {
			docs[i] = chunks[i]
		}
		_, err := s.chunks().InsertMany(sc, docs, options.InsertMany().SetOrdered(true))
		return nil, err
	})
	return err
}

// DeleteChunks removes all chunks owned by documentId (Chunk ownership is exclusive).
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	_, err := s.chunks().DeleteMany(ctx, bson.M{"documentId": documentID})
	return err
}

// ChunksByDocument returns a document's chunks ordered by chunkIndex.
func (s *Store) ChunksByDocument(ctx context.Context, documentID string) ([]model.Chunk, error) {
	cur, err := s.chunks().Find(ctx, bson.M{"documentId": documentID}, options.Find().SetSort(bson.D{{Key: "chunkIndex", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var chunks []model.Chunk
	if err := cur.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// AllCompletedChunks returns every chunk belonging to an active, COMPLETED
// document, for use as the HybridSearch candidate pool.
func (s *Store) AllCompletedChunks(ctx context.Context, documentIDFilter string) ([]model.Chunk, error) {
	completedIDs, err := s.documents().Distinct(ctx, "_id", bson.M{"status": model.StatusCompleted, "isActive": true})
	if err != nil {
		return nil, err
	}
	q := bson.M{"documentId": bson.M{"$in": completedIDs}}
	if documentIDFilter != "" {
		q["documentId"] = documentIDFilter
	}
	cur, err := s.chunks().Find(ctx, q)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var chunks []model.Chunk
	if err := cur.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Profiles

func (s *Store) InsertProfile(ctx context.Context, p *model.ProcessingProfile) error {
	_, err := s.profiles().InsertOne(ctx, p)
	return err
}

func (s *Store) GetProfile(ctx context.Context, id string) (*model.ProcessingProfile, error) {
	var p model.ProcessingProfile
	err := s.profiles().FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) DefaultProfile(ctx context.Context) (*model.ProcessingProfile, error) {
	var p model.ProcessingProfile
	err := s.profiles().FindOne(ctx, bson.M{"isDefault": true}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		def := model.DefaultProfile()
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]model.ProcessingProfile, error) {
	cur, err := s.profiles().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var profiles []model.ProcessingProfile
	if err := cur.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *Store) ReplaceProfile(ctx context.Context, p *model.ProcessingProfile) error {
	_, err := s.profiles().ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	return err
}

// UnsetDefaultProfile clears isDefault on every profile except excludeID, so
// "exactly one isDefault" holds after a new default is created or promoted.
func (s *Store) UnsetDefaultProfile(ctx context.Context, excludeID string) error {
	_, err := s.profiles().UpdateMany(ctx,
		bson.M{"_id": bson.M{"$ne": excludeID}, "isDefault": true},
		bson.M{"$set": bson.M{"isDefault": false}},
	)
	return err
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	_, err := s.profiles().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) CountDocumentsByProfile(ctx context.Context, profileID string) (int64, error) {
	return s.documents().CountDocuments(ctx, bson.M{"profileId": profileID})
}

// Remote folder bindings

func (s *Store) InsertBinding(ctx context.Context, b *model.RemoteFolderBinding) error {
	_, err := s.bindings().InsertOne(ctx, b)
	return err
}

func (s *Store) GetBinding(ctx context.Context, id string) (*model.RemoteFolderBinding, error) {
	var b model.RemoteFolderBinding
	err := s.bindings().FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListBindings(ctx context.Context) ([]model.RemoteFolderBinding, error) {
	cur, err := s.bindings().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var bindings []model.RemoteFolderBinding
	if err := cur.All(ctx, &bindings); err != nil {
		return nil, err
	}
	return bindings, nil
}

func (s *Store) ReplaceBinding(ctx context.Context, b *model.RemoteFolderBinding) error {
	_, err := s.bindings().ReplaceOne(ctx, bson.M{"_id": b.ID}, b)
	return err
}

func (s *Store) DeleteBinding(ctx context.Context, id string) error {
	_, err := s.bindings().DeleteOne(ctx, bson.M{"_id": id})
	return err
}
