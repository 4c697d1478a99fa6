package model

// PDFConverterMode selects the quality/speed tradeoff of PDF conversion.
type PDFConverterMode string

const (
	PDFConverterFast        PDFConverterMode = "fast"
	PDFConverterHighQuality PDFConverterMode = "high-quality"
)

// PDFOcrMode selects when OCR is invoked during PDF conversion.
type PDFOcrMode string

const (
	OCRAuto  PDFOcrMode = "auto"
	OCRForce PDFOcrMode = "force"
	OCRNever PDFOcrMode = "never"
)

// ConversionConfig bounds the heavy-lane Converter's behavior.
type ConversionConfig struct {
	PDFConverter  PDFConverterMode `bson:"pdfConverter" json:"pdfConverter"`
	PDFOcrMode    PDFOcrMode       `bson:"pdfOcrMode" json:"pdfOcrMode"`
	PDFOcrLangs   []string         `bson:"pdfOcrLanguages,omitempty" json:"pdfOcrLanguages,omitempty"`
	TableRowLimit int              `bson:"tableRowLimit" json:"tableRowLimit"`
	TableColLimit int              `bson:"tableColLimit" json:"tableColLimit"`
	MaxFileSizeMb int              `bson:"maxFileSizeMb" json:"maxFileSizeMb"`
}

// ChunkingConfig parameterizes the Chunker.
type ChunkingConfig struct {
	TargetChars               int `bson:"targetChars" json:"targetChars"`
	OverlapChars              int `bson:"overlapChars" json:"overlapChars"`
	HeaderLevels              int `bson:"headerLevels" json:"headerLevels"`
	PresentationMinChunkChars int `bson:"presentationMinChunkChars" json:"presentationMinChunkChars"`
	TabularRowsPerChunk       int `bson:"tabularRowsPerChunk" json:"tabularRowsPerChunk"`
}

// QualityConfig parameterizes the QualityGate.
type QualityConfig struct {
	MinChars            int     `bson:"minChars" json:"minChars"`
	MaxChars            int     `bson:"maxChars" json:"maxChars"`
	PenaltyPerFlag      float64 `bson:"penaltyPerFlag" json:"penaltyPerFlag"`
	AutoFixEnabled      bool    `bson:"autoFixEnabled" json:"autoFixEnabled"`
	AutoFixMaxPasses    int     `bson:"autoFixMaxPasses" json:"autoFixMaxPasses"`
	NoiseWarnThreshold  float64 `bson:"noiseWarnThreshold" json:"noiseWarnThreshold"`
	NoiseRejectThreshold float64 `bson:"noiseRejectThreshold" json:"noiseRejectThreshold"`
}

// EmbeddingConfig is system-fixed per deployment; profiles only reference it read-only.
type EmbeddingConfig struct {
	ModelID   string `bson:"modelId" json:"modelId"`
	Dimension int    `bson:"dimension" json:"dimension"`
	MaxTokens int    `bson:"maxTokens" json:"maxTokens"`
}

// ProcessingProfile is a frozen parameter bundle applied to a job at enqueue time.
type ProcessingProfile struct {
	ID         string           `bson:"_id" json:"id"`
	Name       string           `bson:"name" json:"name"`
	Conversion ConversionConfig `bson:"conversion" json:"conversion"`
	Chunking   ChunkingConfig   `bson:"chunking" json:"chunking"`
	Quality    QualityConfig    `bson:"quality" json:"quality"`
	Embedding  EmbeddingConfig  `bson:"embedding" json:"embedding"`
	IsDefault  bool             `bson:"isDefault" json:"isDefault"`
	IsActive   bool             `bson:"isActive" json:"isActive"`
	IsArchived bool             `bson:"isArchived" json:"isArchived"`
}

// DefaultProfile returns the bundled-in baseline profile used when none is configured.
func DefaultProfile() ProcessingProfile {
	return ProcessingProfile{
		ID:   "default",
		Name: "default",
		Conversion: ConversionConfig{
			PDFConverter:  PDFConverterFast,
			PDFOcrMode:    OCRAuto,
			TableRowLimit: 200,
			TableColLimit: 50,
			MaxFileSizeMb: 50,
		},
		Chunking: ChunkingConfig{
			TargetChars:               1000,
			OverlapChars:              150,
			HeaderLevels:              3,
			PresentationMinChunkChars: 200,
			TabularRowsPerChunk:       50,
		},
		Quality: QualityConfig{
			MinChars:             50,
			MaxChars:             4000,
			PenaltyPerFlag:       0.2,
			AutoFixEnabled:       false,
			AutoFixMaxPasses:     0,
			NoiseWarnThreshold:   0.5,
			NoiseRejectThreshold: 0.8,
		},
		Embedding: EmbeddingConfig{
			ModelID:   "text-embedding-004",
			Dimension: 768,
			MaxTokens: 2048,
		},
		IsDefault: true,
		IsActive:  true,
	}
}
