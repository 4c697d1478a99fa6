package model

import "time"

// ChunkType classifies the structural content of a Chunk.
type ChunkType string

const (
	ChunkText    ChunkType = "text"
	ChunkTable   ChunkType = "table"
	ChunkCode    ChunkType = "code"
	ChunkHeading ChunkType = "heading"
)

// QualityFlag marks a defect noticed on a chunk by the QualityGate.
type QualityFlag string

const (
	FlagFragment   QualityFlag = "FRAGMENT"
	FlagNoContext  QualityFlag = "NO_CONTEXT"
	FlagTooShort   QualityFlag = "TOO_SHORT"
	FlagNoisy      QualityFlag = "NOISY"
)

// SparseTerm is one entry of a sparse embedding: a vocabulary index and weight.
type SparseTerm struct {
	Index int     `bson:"index" json:"index"`
	Value float64 `bson:"value" json:"value"`
}

// Chunk is a sub-document retrieval unit owned by exactly one Document.
type Chunk struct {
	ID              string        `bson:"_id" json:"id"`
	DocumentID      string        `bson:"documentId" json:"documentId"`
	ChunkIndex      int           `bson:"chunkIndex" json:"chunkIndex"`
	Content         string        `bson:"content" json:"content"`
	CharStart       int           `bson:"charStart" json:"charStart"`
	CharEnd         int           `bson:"charEnd" json:"charEnd"`
	Heading         string        `bson:"heading,omitempty" json:"heading,omitempty"`
	Breadcrumbs     []string      `bson:"breadcrumbs,omitempty" json:"breadcrumbs,omitempty"`
	Page            *int          `bson:"page,omitempty" json:"page,omitempty"`
	QualityScore    float64       `bson:"qualityScore" json:"qualityScore"`
	QualityFlags    []QualityFlag `bson:"qualityFlags,omitempty" json:"qualityFlags,omitempty"`
	ChunkType       ChunkType     `bson:"chunkType" json:"chunkType"`
	TokenCount      int           `bson:"tokenCount" json:"tokenCount"`
	Embedding       []float32     `bson:"embedding,omitempty" json:"embedding,omitempty"`
	SparseEmbedding []SparseTerm  `bson:"sparseEmbedding,omitempty" json:"sparseEmbedding,omitempty"`
	SearchVector    string        `bson:"searchVector,omitempty" json:"searchVector,omitempty"`
	CreatedAt       time.Time     `bson:"createdAt" json:"createdAt"`
}
