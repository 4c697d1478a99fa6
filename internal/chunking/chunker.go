// Package chunking implements the Chunker and QualityGate components:
// splitting Markdown into size-bounded chunks and admitting or flagging them.
package chunking

import (
	"regexp"
	"strings"

	"github.com/korrelate/ingestcore/internal/model"

	"github.com/pkoukk/tiktoken-go"
)

var headingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.*)$`)
var codeFenceRe = regexp.MustCompile("(?m)^```")
var tableRowRe = regexp.MustCompile(`(?m)^\s*\|.*\|\s*$`)
var sentenceEndRe = regexp.MustCompile(`[.!?]["')\]]?\s*$`)

type block struct {
	text        string
	start       int // offset in original text
	end         int
	headingText string
	headingLvl  int // 0 when not a heading line
}

// DraftChunk mirrors model.Chunk's shape before persistence-specific fields
// (id, documentId, embeddings) are attached.
type DraftChunk struct {
	ChunkIndex  int
	Content     string
	CharStart   int
	CharEnd     int
	Heading     string
	Breadcrumbs []string
	ChunkType   model.ChunkType
	TokenCount  int
}

var tokenEncoder *tiktoken.Tiktoken

func init() {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err == nil {
		tokenEncoder = enc
	}
}

func countTokens(s string) int {
	if tokenEncoder != nil {
		return len(tokenEncoder.Encode(s, nil, nil))
	}
	// fallback heuristic, kept only for the (practically unreachable) case
	// the encoder table failed to load
	return len(strings.Fields(s))
}

// Chunk splits Markdown text into size-bounded, heading-aware chunks.
// Input is normalized and trimmed first; a blank result yields no chunks.
// Offsets (CharStart/CharEnd) are always reported against the ORIGINAL,
// untrimmed text passed in.
func Chunk(text string, cfg model.ChunkingConfig) []DraftChunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	leadingTrim := strings.Index(text, trimmed[:1])
	if leadingTrim < 0 {
		leadingTrim = 0
	}

	blocks := splitIntoBlocks(text, leadingTrim, len(text))

	target := cfg.TargetChars
	if target <= 0 {
		target = 1000
	}
	overlap := cfg.OverlapChars
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= target {
		overlap = target / 5
	}

	// Paragraphs longer than target are cut at the last whitespace before the limit.
	var sized []block
	for _, b := range blocks {
		for b.headingLvl == 0 && len(strings.TrimRight(b.text, " \n")) > target {
			cut := strings.LastIndexAny(b.text[:target], " \n")
			if cut <= 0 {
				cut = target
			}
			rest := strings.TrimLeft(b.text[cut:], " \n")
			sized = append(sized, block{text: b.text[:cut], start: b.start, end: b.start + cut})
			b = block{text: rest, start: b.start + len(b.text) - len(rest), end: b.end}
		}
		sized = append(sized, b)
	}
	blocks = sized

	var chunks []DraftChunk
	var buf strings.Builder
	bufStart := -1
	bufEnd := -1
	headingStack := make([]string, 7) // index 1..6 used

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		content := buf.String()
		breadcrumbs := activeBreadcrumbs(headingStack, cfg.HeaderLevels)
		heading := ""
		for i := cfg.HeaderLevels; i >= 1 && i < len(headingStack); i-- {
			if headingStack[i] != "" {
				heading = headingStack[i]
				break
			}
		}
		chunks = append(chunks, DraftChunk{
			ChunkIndex:  len(chunks),
			Content:     content,
			CharStart:   bufStart,
			CharEnd:     bufEnd,
			Heading:     heading,
			Breadcrumbs: breadcrumbs,
			ChunkType:   inferChunkType(content),
			TokenCount:  countTokens(content),
		})
		buf.Reset()
		bufStart = -1
		bufEnd = -1
	}

	for _, b := range blocks {
		if b.headingLvl > 0 {
			if b.headingLvl <= cfg.HeaderLevels && buf.Len() > 0 {
				flush()
			}
			if b.headingLvl < len(headingStack) {
				headingStack[b.headingLvl] = b.headingText
				for lvl := b.headingLvl + 1; lvl < len(headingStack); lvl++ {
					headingStack[lvl] = ""
				}
			}
			continue
		}

		if buf.Len()+len(b.text) > target && buf.Len() > 0 {
			full := buf.String()
			flush()
			tail := tailOverlap(full, overlap)
			if tail != "" {
				buf.WriteString(tail)
				bufStart = b.start - len(tail)
				if bufStart < 0 {
					bufStart = b.start
				}
				bufEnd = b.start
			}
		}
		if bufStart == -1 {
			bufStart = b.start
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(b.text)
		bufEnd = b.end
	}
	flush()

	if len(chunks) == 0 {
		return nil
	}
	return chunks
}

func activeBreadcrumbs(stack []string, levels int) []string {
	var out []string
	for lvl := 1; lvl <= levels && lvl < len(stack); lvl++ {
		if stack[lvl] != "" {
			out = append(out, stack[lvl])
		}
	}
	return out
}

// tailOverlap returns the last n characters of s, extended to the nearest
// preceding whitespace so a word is never split mid-grapheme.
func tailOverlap(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return ""
	}
	start := len(s) - n
	for start > 0 && s[start] != ' ' && s[start] != '\n' {
		start--
	}
	return strings.TrimSpace(s[start:])
}

func inferChunkType(content string) model.ChunkType {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		return model.ChunkCode
	}
	if tableRowRe.MatchString(content) {
		return model.ChunkTable
	}
	return model.ChunkText
}

// splitIntoBlocks walks text producing heading lines and paragraph-delimited
// text blocks, each carrying its offset in the original string.
func splitIntoBlocks(text string, from, to int) []block {
	var blocks []block
	lines := strings.Split(text, "\n")
	offset := 0
	var paraBuf strings.Builder
	paraStart := -1

	flushPara := func(end int) {
		if paraBuf.Len() == 0 {
			return
		}
		content := strings.TrimRight(paraBuf.String(), "\n")
		blocks = append(blocks, block{text: content, start: paraStart, end: end})
		paraBuf.Reset()
		paraStart = -1
	}

	inFence := false
	for _, line := range lines {
		lineStart := offset
		lineLen := len(line)
		offset += lineLen + 1 // account for the stripped newline

		if codeFenceRe.MatchString(line) {
			inFence = !inFence
		}

		if !inFence {
			if m := headingRe.FindStringSubmatch(line); m != nil {
				flushPara(lineStart)
				blocks = append(blocks, block{
					text:        line,
					start:       lineStart,
					end:         lineStart + lineLen,
					headingText: strings.TrimSpace(m[2]),
					headingLvl:  len(m[1]),
				})
				continue
			}
			if strings.TrimSpace(line) == "" {
				flushPara(lineStart)
				continue
			}
		}

		if paraStart == -1 {
			paraStart = lineStart
		}
		paraBuf.WriteString(line)
		paraBuf.WriteString("\n")
	}
	flushPara(len(text))

	return blocks
}
