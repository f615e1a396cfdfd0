package config

import (
	"strings"
	"testing"

	"github.com/tetraminz/call_analyzer/internal/analysis"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.ExpectedSpeakers != 2 || cfg.LanguageCode != "ru" {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
	if len(cfg.Models) != 3 || cfg.Models[0] != "gemini-2.0-flash" {
		t.Fatalf("models wrong: %v", cfg.Models)
	}
	if cfg.MaxRetries != 3 || cfg.RetryBaseDelaySeconds != 60 {
		t.Fatalf("retry defaults wrong: %+v", cfg)
	}
}

func TestLoadFromReaderOverlaysDefaults(t *testing.T) {
	yaml := `
output_dir: results
expected_speakers: 3
models:
  - gemini-2.0-flash
retry_base_delay_seconds: 1
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OutputDir != "results" {
		t.Fatalf("output_dir: got %q", cfg.OutputDir)
	}
	if cfg.ExpectedSpeakers != 3 {
		t.Fatalf("expected_speakers: got %d", cfg.ExpectedSpeakers)
	}
	if len(cfg.Models) != 1 {
		t.Fatalf("models must be replaced, got %v", cfg.Models)
	}
	// Незатронутые поля остаются на дефолтах.
	if cfg.LanguageCode != "ru" || len(cfg.SellerLexicon) == 0 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadFromReaderEmptyInput(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty yaml must keep defaults: %v", err)
	}
	if cfg.OutputDir != "out" {
		t.Fatalf("output_dir: got %q", cfg.OutputDir)
	}
}

func TestLoadFromReaderRejectsUnknownField(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("no_such_field: 1\n")); err == nil {
		t.Fatal("expected error for unknown yaml field")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.ExpectedSpeakers = 0
	cfg.Models = nil
	cfg.SellerLexicon = nil
	cfg.SectionTriggers = map[string][]string{"bogus": {"x"}}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, fragment := range []string{"expected_speakers", "models", "seller_lexicon", "bogus"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("joined error misses %q: %v", fragment, err)
		}
	}
}

func TestTriggersConversion(t *testing.T) {
	cfg := Default()
	cfg.SectionTriggers = map[string][]string{
		"strengths": {"pros"},
	}
	triggers := cfg.Triggers()
	if got := triggers[analysis.SectionStrengths]; len(got) != 1 || got[0] != "pros" {
		t.Fatalf("triggers: got %v", triggers)
	}

	cfg.SectionTriggers = nil
	if got := cfg.Triggers(); len(got[analysis.SectionStrengths]) == 0 {
		t.Fatal("empty config must fall back to default triggers")
	}
}
