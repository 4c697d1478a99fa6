package collab

import (
	"context"
	"math"
	"sort"

	"github.com/korrelate/ingestcore/internal/model"

	"github.com/qdrant/go-client/qdrant"
)

// ScoredChunkID is a single dense-retrieval candidate with its cosine score.
type ScoredChunkID struct {
	ChunkID string
	Score   float64
}

// VectorIndex resolves nearest neighbors for a query vector. Both providers
// named in VECTOR_PROVIDER satisfy this same interface.
type VectorIndex interface {
	Upsert(ctx context.Context, chunk model.Chunk) error
	Delete(ctx context.Context, chunkID string) error
	Search(ctx context.Context, queryVector []float32, topK int, documentIDFilter string) ([]ScoredChunkID, error)
}

// MongoCosineIndex does in-process cosine similarity over BSON-embedded
// vectors already stored on the chunk document — no separate store round trip.
type MongoCosineIndex struct {
	candidates func(ctx context.Context, documentIDFilter string) ([]model.Chunk, error)
}

// NewMongoCosineIndex takes a candidate supplier (the Store's AllCompletedChunks)
// so the relational-with-vector-ext variant needs no client of its own.
func NewMongoCosineIndex(candidates func(ctx context.Context, documentIDFilter string) ([]model.Chunk, error)) *MongoCosineIndex {
	return &MongoCosineIndex{candidates: candidates}
}

func (m *MongoCosineIndex) Upsert(ctx context.Context, chunk model.Chunk) error { return nil }
func (m *MongoCosineIndex) Delete(ctx context.Context, chunkID string) error    { return nil }

func (m *MongoCosineIndex) Search(ctx context.Context, queryVector []float32, topK int, documentIDFilter string) ([]ScoredChunkID, error) {
	chunks, err := m.candidates(ctx, documentIDFilter)
	if err != nil {
		return nil, err
	}
	scored := make([]ScoredChunkID, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		scored = append(scored, ScoredChunkID{ChunkID: c.ID, Score: cosineSimilarity(queryVector, c.Embedding)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func cosineSimilarity(a []float32, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// QdrantIndex implements the external-hybrid VECTOR_PROVIDER variant.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

func NewQdrantIndex(addr, collection string) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: addr})
	if err != nil {
		return nil, err
	}
	return &QdrantIndex{client: client, collection: collection}, nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, chunk model.Chunk) error {
	vec := make([]float32, len(chunk.Embedding))
	copy(vec, chunk.Embedding)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(hashToUint64(chunk.ID)),
				Vectors: qdrant.NewVectors(vec...),
				Payload: qdrant.NewValueMap(map[string]any{
					"chunkId":    chunk.ID,
					"documentId": chunk.DocumentID,
				}),
			},
		},
	})
	return err
}

func (q *QdrantIndex) Delete(ctx context.Context, chunkID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorIDs([]*qdrant.PointId{qdrant.NewIDNum(hashToUint64(chunkID))}),
	})
	return err
}

func (q *QdrantIndex) Search(ctx context.Context, queryVector []float32, topK int, documentIDFilter string) ([]ScoredChunkID, error) {
	req := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if documentIDFilter != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("documentId", documentIDFilter),
			},
		}
	}
	points, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredChunkID, 0, len(points))
	for _, p := range points {
		chunkID := ""
		if v, ok := p.Payload["chunkId"]; ok {
			chunkID = v.GetStringValue()
		}
		out = append(out, ScoredChunkID{ChunkID: chunkID, Score: float64(p.Score)})
	}
	return out, nil
}

func hashToUint64(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
