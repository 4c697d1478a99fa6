package chunking

import (
	"strings"
	"unicode"

	"github.com/korrelate/ingestcore/internal/model"
)

// TextCheckResult is QualityGate's verdict on a whole text blob before chunking.
type TextCheckResult struct {
	Passed        bool
	Reason        string
	Warnings      []string
	NoiseRatio    float64
	ContentLength int
}

// QualityConfig mirrors model.QualityConfig's fields this package consumes.
type QualityConfig = model.QualityConfig

const (
	reasonTextTooShort   = model.ErrTextTooShort
	reasonExcessiveNoise = model.ErrExcessiveNoise
	warnHighNoiseRatio   = "HIGH_NOISE_RATIO"
)

// CheckText evaluates a full text blob in the order the spec mandates:
// length, then reject-threshold noise, then warn-threshold noise.
func CheckText(text string, cfg QualityConfig) TextCheckResult {
	length := len([]rune(text))
	noise := noiseRatio(text)

	result := TextCheckResult{ContentLength: length, NoiseRatio: noise}

	if length < cfg.MinChars {
		result.Passed = false
		result.Reason = reasonTextTooShort
		return result
	}

	rejectThreshold := noiseRejectOrDefault(cfg)
	if noise > rejectThreshold {
		result.Passed = false
		result.Reason = reasonExcessiveNoise
		return result
	}

	warnThreshold := noiseWarnOrDefault(cfg)
	result.Passed = true
	if noise > warnThreshold {
		result.Warnings = append(result.Warnings, warnHighNoiseRatio)
	}
	return result
}

// noiseRejectOrDefault and noiseWarnOrDefault let callers omit the profile's
// rarely-overridden noise thresholds and fall back to spec defaults (0.8/0.5).
func noiseRejectOrDefault(c QualityConfig) float64 {
	if c.NoiseRejectThreshold > 0 {
		return c.NoiseRejectThreshold
	}
	return 0.8
}

func noiseWarnOrDefault(c QualityConfig) float64 {
	if c.NoiseWarnThreshold > 0 {
		return c.NoiseWarnThreshold
	}
	return 0.5
}

func noiseRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	var noisy, total int
	for _, r := range text {
		total++
		if unicode.IsSpace(r) {
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			noisy++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(noisy) / float64(total)
}

// ChunkVerdict is QualityGate's per-chunk score and flag set.
type ChunkVerdict struct {
	QualityScore float64
	Flags        []model.QualityFlag
}

// ScoreChunk evaluates a single chunk already produced by the Chunker.
func ScoreChunk(c DraftChunk, cfg QualityConfig) ChunkVerdict {
	var flags []model.QualityFlag

	if isFragment(c.Content) {
		flags = append(flags, model.FlagFragment)
	}
	if len(c.Breadcrumbs) == 0 && c.Heading == "" {
		flags = append(flags, model.FlagNoContext)
	}
	if len([]rune(c.Content)) < cfg.MinChars {
		flags = append(flags, model.FlagTooShort)
	}
	if noiseRatio(c.Content) > noiseWarnOrDefault(cfg) {
		flags = append(flags, model.FlagNoisy)
	}

	penalty := cfg.PenaltyPerFlag
	if penalty <= 0 {
		penalty = 0.2
	}
	score := 1.0 - penalty*float64(len(flags))
	if score < 0 {
		score = 0
	}

	return ChunkVerdict{QualityScore: score, Flags: flags}
}

// isFragment reports a chunk that ends mid-sentence with no terminal punctuation.
func isFragment(content string) bool {
	trimmed := strings.TrimRight(content, " \n\t")
	if trimmed == "" {
		return true
	}
	return !sentenceEndRe.MatchString(trimmed)
}
