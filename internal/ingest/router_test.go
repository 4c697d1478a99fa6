package ingest

import (
	"testing"

	"github.com/korrelate/ingestcore/internal/model"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		mimeType   string
		sizeBytes  int64
		maxSizeMb  int
		wantFormat model.Format
		wantLane   model.Lane
		wantErr    string
	}{
		{name: "pdf by mime", filename: "report.pdf", mimeType: "application/pdf", sizeBytes: 1024, maxSizeMb: 10, wantFormat: model.FormatPDF, wantLane: model.LaneHeavy},
		{name: "json is fast lane", filename: "data.json", mimeType: "application/json", sizeBytes: 10, maxSizeMb: 10, wantFormat: model.FormatJSON, wantLane: model.LaneFast},
		{name: "txt is fast lane", filename: "notes.txt", mimeType: "", sizeBytes: 10, maxSizeMb: 10, wantFormat: model.FormatTXT, wantLane: model.LaneFast},
		{name: "md by extension when mime missing", filename: "readme.md", mimeType: "", sizeBytes: 10, maxSizeMb: 10, wantFormat: model.FormatMD, wantLane: model.LaneFast},
		{name: "mime with charset suffix", filename: "page.html", mimeType: "text/html; charset=utf-8", sizeBytes: 10, maxSizeMb: 10, wantFormat: model.FormatHTML, wantLane: model.LaneHeavy},
		{name: "oversized file rejected", filename: "huge.pdf", mimeType: "application/pdf", sizeBytes: 50 * 1024 * 1024, maxSizeMb: 10, wantErr: "FileTooLarge"},
		{name: "unrecognized extension and mime", filename: "mystery.xyz", mimeType: "application/octet-stream", sizeBytes: 10, maxSizeMb: 10, wantErr: "UnsupportedFormat"},
		{name: "maxSizeMb of zero disables the size check", filename: "report.pdf", mimeType: "application/pdf", sizeBytes: 1 << 30, maxSizeMb: 0, wantFormat: model.FormatPDF, wantLane: model.LaneHeavy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Route(tt.filename, tt.mimeType, tt.sizeBytes, tt.maxSizeMb)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if rerr, ok := err.(*RouterError); !ok || rerr.Code != tt.wantErr {
					t.Fatalf("expected RouterError code %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", got.Format, tt.wantFormat)
			}
			if got.Lane != tt.wantLane {
				t.Errorf("Lane = %q, want %q", got.Lane, tt.wantLane)
			}
		})
	}
}

func TestDetectFromContent(t *testing.T) {
	pdfMagic := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	tests := []struct {
		name         string
		data         []byte
		declaredMime string
		want         string
	}{
		{name: "declared mime is trusted when specific", data: pdfMagic, declaredMime: "application/pdf", want: "application/pdf"},
		{name: "declared mime is trusted even if content looks different", data: []byte("plain text"), declaredMime: "text/markdown", want: "text/markdown"},
		{name: "octet-stream falls back to sniffing", data: pdfMagic, declaredMime: "application/octet-stream", want: "application/pdf"},
		{name: "empty declared mime falls back to sniffing", data: pdfMagic, declaredMime: "", want: "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectFromContent(tt.data, tt.declaredMime)
			if got != tt.want {
				t.Errorf("DetectFromContent() = %q, want %q", got, tt.want)
			}
		})
	}
}
