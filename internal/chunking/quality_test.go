package chunking

import (
	"strings"
	"testing"

	"github.com/korrelate/ingestcore/internal/model"
)

func defaultQualityConfig() model.QualityConfig {
	return model.QualityConfig{
		MinChars:             50,
		MaxChars:             4000,
		PenaltyPerFlag:       0.2,
		NoiseWarnThreshold:   0.5,
		NoiseRejectThreshold: 0.8,
	}
}

func TestCheckText_TooShort(t *testing.T) {
	result := CheckText("short", defaultQualityConfig())
	if result.Passed {
		t.Fatal("expected short text to fail")
	}
	if result.Reason != model.ErrTextTooShort {
		t.Errorf("Reason = %q, want %q", result.Reason, model.ErrTextTooShort)
	}
}

func TestCheckText_ExcessiveNoiseRejected(t *testing.T) {
	noisy := strings.Repeat("!@#$%^&*()_+-={}[]|\\:;", 10)
	result := CheckText(noisy, defaultQualityConfig())
	if result.Passed {
		t.Fatal("expected noisy text to be rejected")
	}
	if result.Reason != model.ErrExcessiveNoise {
		t.Errorf("Reason = %q, want %q", result.Reason, model.ErrExcessiveNoise)
	}
}

func TestCheckText_WarnButPass(t *testing.T) {
	// Construct text whose noise ratio sits above warn (0.5) but below reject (0.8).
	text := strings.Repeat("a!!", 100)
	result := CheckText(text, defaultQualityConfig())
	if !result.Passed {
		t.Fatalf("expected text to pass with a warning, got reason %q", result.Reason)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a HIGH_NOISE_RATIO warning")
	}
}

func TestCheckText_CleanTextPasses(t *testing.T) {
	text := strings.Repeat("This is a perfectly clean sentence with real words. ", 3)
	result := CheckText(text, defaultQualityConfig())
	if !result.Passed {
		t.Fatalf("expected clean text to pass, got reason %q", result.Reason)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", result.Warnings)
	}
}

func TestCheckText_ZeroThresholdsFallBackToDefaults(t *testing.T) {
	cfg := model.QualityConfig{MinChars: 10}
	noisy := strings.Repeat("!@#$%^&*()", 20)
	result := CheckText(noisy, cfg)
	if result.Passed {
		t.Fatal("expected rejection using the 0.8 fallback threshold")
	}
}

func TestScoreChunk_CleanChunkHasNoFlags(t *testing.T) {
	c := DraftChunk{
		Content:     "This is a complete sentence with proper context and enough length.",
		Heading:     "Intro",
		Breadcrumbs: []string{"Intro"},
	}
	verdict := ScoreChunk(c, defaultQualityConfig())
	if len(verdict.Flags) != 0 {
		t.Errorf("expected no flags, got %v", verdict.Flags)
	}
	if verdict.QualityScore != 1.0 {
		t.Errorf("QualityScore = %v, want 1.0", verdict.QualityScore)
	}
}

func TestScoreChunk_FragmentFlag(t *testing.T) {
	c := DraftChunk{Content: "this trails off without", Heading: "X", Breadcrumbs: []string{"X"}}
	verdict := ScoreChunk(c, defaultQualityConfig())
	if !containsFlag(verdict.Flags, model.FlagFragment) {
		t.Errorf("expected FlagFragment, got %v", verdict.Flags)
	}
}

func TestScoreChunk_NoContextFlag(t *testing.T) {
	c := DraftChunk{Content: "A complete sentence on its own."}
	verdict := ScoreChunk(c, defaultQualityConfig())
	if !containsFlag(verdict.Flags, model.FlagNoContext) {
		t.Errorf("expected FlagNoContext, got %v", verdict.Flags)
	}
}

func TestScoreChunk_TooShortFlag(t *testing.T) {
	c := DraftChunk{Content: "Tiny.", Heading: "X", Breadcrumbs: []string{"X"}}
	verdict := ScoreChunk(c, defaultQualityConfig())
	if !containsFlag(verdict.Flags, model.FlagTooShort) {
		t.Errorf("expected FlagTooShort, got %v", verdict.Flags)
	}
}

func TestScoreChunk_ScoreNeverNegative(t *testing.T) {
	c := DraftChunk{Content: "!@#$"}
	verdict := ScoreChunk(c, model.QualityConfig{MinChars: 50, PenaltyPerFlag: 1.0})
	if verdict.QualityScore < 0 {
		t.Errorf("QualityScore = %v, must not be negative", verdict.QualityScore)
	}
}

func containsFlag(flags []model.QualityFlag, target model.QualityFlag) bool {
	for _, f := range flags {
		if f == target {
			return true
		}
	}
	return false
}
