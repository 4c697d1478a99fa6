// Package collab holds the out-of-core collaborators spec.md treats as
// black boxes: Converter, Embedder, and VectorIndex. Local reference
// implementations are provided so the orchestration dataplane is runnable
// without external services; each is swappable behind its interface.
package collab

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/korrelate/ingestcore/internal/model"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ConvertResult is the shape a Converter produces, mirroring the heavy-lane
// callback payload's result object.
type ConvertResult struct {
	Markdown         string
	PageCount        int
	OCRApplied       bool
	ProcessingTimeMs int
}

// Converter turns a source file into Markdown. It is invoked only from the
// heavy lane; the fast lane's json/txt/md formats never need conversion.
type Converter interface {
	Convert(ctx context.Context, filePath string, format model.Format, cfg model.ConversionConfig) (ConvertResult, error)
}

// LocalConverter is a runnable reference Converter used when no external
// conversion worker is configured. It converts PDF, HTML, CSV and XLSX;
// DOCX, PPTX and EPUB return an error that names the format.
type LocalConverter struct{}

func NewLocalConverter() *LocalConverter { return &LocalConverter{} }

func (c *LocalConverter) Convert(ctx context.Context, filePath string, format model.Format, cfg model.ConversionConfig) (ConvertResult, error) {
	switch format {
	case model.FormatPDF:
		return c.convertPDF(filePath, cfg)
	case model.FormatHTML:
		return c.convertHTML(filePath)
	case model.FormatXLSX, model.FormatCSV:
		return c.convertTabular(filePath, format, cfg)
	case model.FormatDOCX, model.FormatPPTX, model.FormatEPUB:
		return ConvertResult{}, fmt.Errorf("%s: no local converter wired, configure an external worker", format)
	default:
		return ConvertResult{}, fmt.Errorf("UNSUPPORTED_FORMAT: %s", format)
	}
}

// convertPDF uses ledongthuc/pdf to pull raw text per page. It has no OCR
// capability, so pdfOcrMode=force is rejected rather than silently ignored.
func (c *LocalConverter) convertPDF(filePath string, cfg model.ConversionConfig) (ConvertResult, error) {
	if cfg.PDFOcrMode == model.OCRForce {
		return ConvertResult{}, fmt.Errorf("PASSWORD_PROTECTED: forced OCR requires an external worker")
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		if strings.Contains(err.Error(), "password") {
			return ConvertResult{}, fmt.Errorf("PASSWORD_PROTECTED: %v", err)
		}
		return ConvertResult{}, fmt.Errorf("CORRUPT_FILE: %v", err)
	}
	defer f.Close()

	var sb strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n## Page %d\n\n", i))
		sb.WriteString(text)
	}

	return ConvertResult{
		Markdown:   strings.TrimSpace(sb.String()),
		PageCount:  pages,
		OCRApplied: false,
	}, nil
}

// convertHTML runs the document body through html-to-markdown; if the
// library chokes on malformed markup, it falls back to a goquery walk that
// keeps the text of headings, paragraphs, list items, pre blocks and tables
// and drops everything else.
func (c *LocalConverter) convertHTML(filePath string) (ConvertResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ConvertResult{}, fmt.Errorf("CORRUPT_FILE: %v", err)
	}

	if md, err := htmltomarkdown.ConvertString(string(data)); err == nil {
		return ConvertResult{Markdown: strings.TrimSpace(md)}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return ConvertResult{}, fmt.Errorf("CORRUPT_FILE: %v", err)
	}

	var sb strings.Builder
	doc.Find("h1,h2,h3,h4,h5,h6,p,li,pre,table").Each(func(_ int, sel *goquery.Selection) {
		tag := goquery.NodeName(sel)
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		switch {
		case strings.HasPrefix(tag, "h") && len(tag) == 2:
			level := int(tag[1] - '0')
			sb.WriteString(strings.Repeat("#", level) + " " + text + "\n\n")
		case tag == "li":
			sb.WriteString("- " + text + "\n")
		case tag == "pre":
			sb.WriteString("```\n" + text + "\n```\n\n")
		default:
			sb.WriteString(text + "\n\n")
		}
	})

	return ConvertResult{Markdown: strings.TrimSpace(sb.String())}, nil
}

// convertTabular renders rows as Markdown tables, repeating the header at
// tableRowLimit boundaries so each slice stays self-describing.
func (c *LocalConverter) convertTabular(filePath string, format model.Format, cfg model.ConversionConfig) (ConvertResult, error) {
	var rows [][]string

	if format == model.FormatXLSX {
		xf, err := excelize.OpenFile(filePath)
		if err != nil {
			return ConvertResult{}, fmt.Errorf("CORRUPT_FILE: %v", err)
		}
		defer xf.Close()
		sheet := xf.GetSheetName(0)
		rows, err = xf.GetRows(sheet)
		if err != nil {
			return ConvertResult{}, fmt.Errorf("CORRUPT_FILE: %v", err)
		}
	} else {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return ConvertResult{}, fmt.Errorf("CORRUPT_FILE: %v", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if line == "" {
				continue
			}
			rows = append(rows, strings.Split(line, ","))
		}
	}

	if len(rows) == 0 {
		return ConvertResult{Markdown: ""}, nil
	}

	rowLimit := cfg.TableRowLimit
	if rowLimit <= 0 {
		rowLimit = len(rows)
	}
	colLimit := cfg.TableColLimit

	header := rows[0]
	if colLimit > 0 && len(header) > colLimit {
		header = header[:colLimit]
	}

	var sb strings.Builder
	writeHeader := func() {
		sb.WriteString("| " + strings.Join(header, " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	}
	writeHeader()
	for i, row := range rows[1:] {
		if colLimit > 0 && len(row) > colLimit {
			row = row[:colLimit]
		}
		if i > 0 && rowLimit > 0 && i%rowLimit == 0 {
			sb.WriteString("\n")
			writeHeader()
		}
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}

	return ConvertResult{Markdown: sb.String()}, nil
}
