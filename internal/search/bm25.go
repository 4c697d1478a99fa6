package search

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/korrelate/ingestcore/internal/model"
)

var tokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

func tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}

// lexicalDoc is one chunk's tokenized {heading, breadcrumbs, content} field,
// the lexical index BM25Index builds candidates from.
type lexicalDoc struct {
	chunk  model.Chunk
	tokens []string
	length int
}

// BM25Index is the sparse/lexical retriever over a corpus of chunks.
// It is rebuilt per-search from the current COMPLETED-document candidate
// pool rather than maintained incrementally, since the corpus fits in memory
// at the scale this component targets.
type BM25Index struct {
	docs    []lexicalDoc
	df      map[string]int // document frequency per term
	avgLen  float64
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// BuildBM25Index tokenizes heading, breadcrumbs, and content for every chunk.
func BuildBM25Index(chunks []model.Chunk) *BM25Index {
	idx := &BM25Index{df: make(map[string]int)}
	var totalLen int
	for _, c := range chunks {
		text := c.Heading + " " + strings.Join(c.Breadcrumbs, " ") + " " + c.Content
		tokens := tokenize(text)
		idx.docs = append(idx.docs, lexicalDoc{chunk: c, tokens: tokens, length: len(tokens)})
		totalLen += len(tokens)
		seen := make(map[string]bool)
		for _, t := range tokens {
			if !seen[t] {
				idx.df[t]++
				seen[t] = true
			}
		}
	}
	if len(idx.docs) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(idx.docs))
	}
	return idx
}

// Search ranks the indexed corpus against queryText, returning the top limit
// chunk ids by BM25 score, best first.
func (idx *BM25Index) Search(queryText string, limit int) []RankedChunk {
	queryTerms := tokenize(queryText)
	n := float64(len(idx.docs))
	if n == 0 {
		return nil
	}

	type scored struct {
		doc   lexicalDoc
		score float64
	}
	results := make([]scored, 0, len(idx.docs))

	for _, d := range idx.docs {
		var score float64
		freq := termFreq(d.tokens)
		for _, term := range queryTerms {
			f, ok := freq[term]
			if !ok {
				continue
			}
			df := float64(idx.df[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			denom := float64(f) + bm25K1*(1-bm25B+bm25B*float64(d.length)/idx.avgLen)
			score += idf * (float64(f) * (bm25K1 + 1)) / denom
		}
		if score > 0 {
			results = append(results, scored{doc: d, score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if results[i].doc.chunk.DocumentID != results[j].doc.chunk.DocumentID {
			return results[i].doc.chunk.DocumentID < results[j].doc.chunk.DocumentID
		}
		return results[i].doc.chunk.ChunkIndex < results[j].doc.chunk.ChunkIndex
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]RankedChunk, len(results))
	for i, r := range results {
		out[i] = RankedChunk{
			ChunkID:      r.doc.chunk.ID,
			DocumentID:   r.doc.chunk.DocumentID,
			ChunkIndex:   r.doc.chunk.ChunkIndex,
			SparseRank:   i + 1,
			KeywordScore: r.score,
		}
	}
	return out
}

func termFreq(tokens []string) map[string]int {
	m := make(map[string]int, len(tokens))
	for _, t := range tokens {
		m[t]++
	}
	return m
}
