// Package ingest implements FormatRouter and DedupStore, the two components
// that decide what an uploaded or synced file is and whether it is new.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/korrelate/ingestcore/internal/model"

	"github.com/gabriel-vasile/mimetype"
)

// RouteResult is FormatRouter's output.
type RouteResult struct {
	Format   model.Format
	Category model.FormatCategory
	Lane     model.Lane
}

var extToFormat = map[string]model.Format{
	".pdf":  model.FormatPDF,
	".docx": model.FormatDOCX,
	".pptx": model.FormatPPTX,
	".xlsx": model.FormatXLSX,
	".csv":  model.FormatCSV,
	".json": model.FormatJSON,
	".txt":  model.FormatTXT,
	".md":   model.FormatMD,
	".html": model.FormatHTML,
	".htm":  model.FormatHTML,
	".epub": model.FormatEPUB,
}

var mimeToFormat = map[string]model.Format{
	"application/pdf": model.FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": model.FormatDOCX,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": model.FormatPPTX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":        model.FormatXLSX,
	"text/csv":                  model.FormatCSV,
	"application/json":          model.FormatJSON,
	"text/plain":                model.FormatTXT,
	"text/markdown":             model.FormatMD,
	"text/html":                 model.FormatHTML,
	"application/epub+zip":      model.FormatEPUB,
}

var formatCategory = map[model.Format]model.FormatCategory{
	model.FormatPDF:  model.CategoryDocument,
	model.FormatDOCX: model.CategoryDocument,
	model.FormatEPUB: model.CategoryDocument,
	model.FormatPPTX: model.CategoryPresentation,
	model.FormatXLSX: model.CategoryTabular,
	model.FormatCSV:  model.CategoryTabular,
	model.FormatHTML: model.CategoryWeb,
	model.FormatJSON: model.CategoryRaw,
	model.FormatTXT:  model.CategoryRaw,
	model.FormatMD:   model.CategoryRaw,
}

var fastLaneFormats = map[model.Format]bool{
	model.FormatJSON: true,
	model.FormatTXT:  true,
	model.FormatMD:   true,
}

// RouterError is Route's failure type; its Code is UnsupportedFormat or FileTooLarge.
type RouterError struct {
	Code    string
	Message string
}

func (e *RouterError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Route detects format from filename+MIME and assigns a processing lane.
// sizeBytes is checked against maxFileSizeMb before any I/O is attempted.
func Route(filename, mimeType string, sizeBytes int64, maxFileSizeMb int) (RouteResult, error) {
	maxBytes := int64(maxFileSizeMb) * 1024 * 1024
	if maxFileSizeMb > 0 && sizeBytes > maxBytes {
		return RouteResult{}, &RouterError{Code: "FileTooLarge", Message: fmt.Sprintf("%d bytes exceeds limit of %d", sizeBytes, maxBytes)}
	}

	format, ok := detectFormat(filename, mimeType)
	if !ok {
		return RouteResult{}, &RouterError{Code: "UnsupportedFormat", Message: fmt.Sprintf("cannot determine format for %q (mime=%q)", filename, mimeType)}
	}

	lane := model.LaneHeavy
	if fastLaneFormats[format] {
		lane = model.LaneFast
	}

	return RouteResult{
		Format:   format,
		Category: formatCategory[format],
		Lane:     lane,
	}, nil
}

// DetectFromContent sniffs a generic/absent declared MIME type against the
// actual bytes, feeding Route a more specific mimeType when possible.
func DetectFromContent(data []byte, declaredMime string) string {
	if declaredMime != "" && declaredMime != "application/octet-stream" {
		return declaredMime
	}
	mt := mimetype.Detect(data)
	return mt.String()
}

func detectFormat(filename, mimeType string) (model.Format, bool) {
	mimeType = strings.SplitN(mimeType, ";", 2)[0]
	mimeType = strings.TrimSpace(mimeType)
	if format, ok := mimeToFormat[mimeType]; ok {
		return format, true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if format, ok := extToFormat[ext]; ok {
		return format, true
	}
	return "", false
}
