package model

import "time"

// DocumentStatus is the lifecycle state of a Document.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusFailed     DocumentStatus = "FAILED"
)

// Format is the detected source format of an uploaded or synced file.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatTXT  Format = "txt"
	FormatMD   Format = "md"
	FormatHTML Format = "html"
	FormatEPUB Format = "epub"
)

// FormatCategory groups formats that share a conversion strategy.
type FormatCategory string

const (
	CategoryDocument     FormatCategory = "document"
	CategoryPresentation FormatCategory = "presentation"
	CategoryTabular      FormatCategory = "tabular"
	CategoryWeb          FormatCategory = "web"
	CategoryRaw          FormatCategory = "raw"
)

// Lane decides whether a document is handled in-process or by an external worker.
type Lane string

const (
	LaneFast  Lane = "fast"
	LaneHeavy Lane = "heavy"
)

// SourceType records whether a Document arrived via upload or remote sync.
type SourceType string

const (
	SourceManual SourceType = "MANUAL"
	SourceRemote SourceType = "REMOTE"
)

// ConnectionState tracks whether a Document is tied to a remote file.
type ConnectionState string

const (
	ConnectionStandalone ConnectionState = "STANDALONE"
	ConnectionLinked     ConnectionState = "LINKED"
)

// Failure codes recorded as a Document's failReason. Only PASSWORD_PROTECTED,
// CORRUPT_FILE and UNSUPPORTED_FORMAT are permanent (see IsPermanentErrorCode).
const (
	ErrPasswordProtected = "PASSWORD_PROTECTED"
	ErrCorruptFile       = "CORRUPT_FILE"
	ErrUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrRemovedFromRemote = "REMOVED_FROM_REMOTE"
	ErrTextTooShort      = "TEXT_TOO_SHORT"
	ErrExcessiveNoise    = "EXCESSIVE_NOISE"
	ErrNoContent         = "NO_CONTENT"
	ErrInvalidJSON       = "INVALID_JSON"
	ErrStateConflict     = "STATE_CONFLICT"
)

// Document is the top-level ingested artifact.
type Document struct {
	ID                 string         `bson:"_id" json:"id"`
	Filename           string         `bson:"filename" json:"filename"`
	MimeType           string         `bson:"mimeType" json:"mimeType"`
	FileSize           int64          `bson:"fileSize" json:"fileSize"`
	Format             Format         `bson:"format" json:"format"`
	FormatCategory     FormatCategory `bson:"formatCategory" json:"formatCategory"`
	Status             DocumentStatus `bson:"status" json:"status"`
	MD5Hash            string         `bson:"md5Hash" json:"md5Hash"`
	FilePath           string         `bson:"filePath" json:"filePath"`
	RetryCount         int            `bson:"retryCount" json:"retryCount"`
	FailReason         *string        `bson:"failReason,omitempty" json:"failReason,omitempty"`
	IsActive           bool           `bson:"isActive" json:"isActive"`
	SourceType         SourceType     `bson:"sourceType" json:"sourceType"`
	ConnectionState    ConnectionState `bson:"connectionState" json:"connectionState"`
	RemoteFileID       *string        `bson:"remoteFileId,omitempty" json:"remoteFileId,omitempty"`
	RemoteFolderID     *string        `bson:"remoteFolderId,omitempty" json:"remoteFolderId,omitempty"`
	RemoteModifiedTime *time.Time     `bson:"remoteModifiedTime,omitempty" json:"remoteModifiedTime,omitempty"`
	ProfileID          string         `bson:"profileId" json:"profileId"`
	ChunkCount         int            `bson:"chunkCount" json:"chunkCount"`
	CreatedAt          time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// IsPermanentErrorCode reports whether code short-circuits queue retries.
func IsPermanentErrorCode(code string) bool {
	switch code {
	case ErrPasswordProtected, ErrCorruptFile, ErrUnsupportedFormat:
		return true
	default:
		return false
	}
}
