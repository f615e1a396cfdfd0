// Package config загружает настройки анализатора из YAML: доменные
// лексиконы, список моделей и параметры повторов живут в конфигурации,
// а не в коде, чтобы их можно было локализовать без пересборки.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tetraminz/call_analyzer/internal/analysis"
)

// Config — полный набор настроек пайплайна.
type Config struct {
	OutputDir        string `yaml:"output_dir"`
	DBPath           string `yaml:"db_path"`
	ExpectedSpeakers int    `yaml:"expected_speakers"`
	LanguageCode     string `yaml:"language_code"`

	// SellerLexicon — доменные термины, повышающие SellerScore спикера.
	SellerLexicon []string `yaml:"seller_lexicon"`
	// SectionTriggers — подстроки заголовков для текстового fallback
	// нормализатора: strengths/weaknesses/recommendations → триггеры.
	SectionTriggers map[string][]string `yaml:"section_triggers"`

	Models                []string `yaml:"models"`
	MaxRetries            int      `yaml:"max_retries"`
	RetryBaseDelaySeconds int      `yaml:"retry_base_delay_seconds"`

	AssemblyAI Backend `yaml:"assemblyai"`
	Gemini     Backend `yaml:"gemini"`
}

// Backend — адрес и ключ одного внешнего API.
type Backend struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Default returns the configuration the original analyzer shipped with.
// API keys come from the environment unless set explicitly.
func Default() *Config {
	return &Config{
		OutputDir:        "out",
		DBPath:           "out/analyses.db",
		ExpectedSpeakers: 2,
		LanguageCode:     "ru",
		SellerLexicon: []string{
			"конференция", "участие", "сумма", "стоимость",
			"регистрация", "мероприятие", "продажа",
		},
		SectionTriggers: map[string][]string{
			string(analysis.SectionStrengths):       {"сильн", "преимущ"},
			string(analysis.SectionWeaknesses):      {"слаб", "недостат"},
			string(analysis.SectionRecommendations): {"рекоменд", "совет"},
		},
		Models:                []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-pro"},
		MaxRetries:            3,
		RetryBaseDelaySeconds: 60,
		AssemblyAI:            Backend{APIKey: os.Getenv("ASSEMBLYAI_API_KEY")},
		Gemini:                Backend{APIKey: os.Getenv("GEMINI_API_KEY")},
	}
}

// Load reads the YAML file at path over the defaults. An empty path keeps
// the defaults as is.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML over the defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.ExpectedSpeakers < 1 {
		errs = append(errs, fmt.Errorf("expected_speakers %d must be >= 1", cfg.ExpectedSpeakers))
	}
	if len(cfg.Models) == 0 {
		errs = append(errs, errors.New("models must list at least one model"))
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries %d must be >= 0", cfg.MaxRetries))
	}
	if cfg.RetryBaseDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("retry_base_delay_seconds %d must be >= 0", cfg.RetryBaseDelaySeconds))
	}
	if len(cfg.SellerLexicon) == 0 {
		errs = append(errs, errors.New("seller_lexicon must not be empty"))
	}
	for name := range cfg.SectionTriggers {
		switch analysis.Section(name) {
		case analysis.SectionStrengths, analysis.SectionWeaknesses, analysis.SectionRecommendations:
		default:
			errs = append(errs, fmt.Errorf("section_triggers key %q is unknown; valid keys: strengths, weaknesses, recommendations", name))
		}
	}

	return errors.Join(errs...)
}

// Triggers converts the configured trigger map into the normalizer's form.
func (c *Config) Triggers() analysis.SectionTriggers {
	if len(c.SectionTriggers) == 0 {
		return analysis.DefaultSectionTriggers()
	}
	triggers := make(analysis.SectionTriggers, len(c.SectionTriggers))
	for name, terms := range c.SectionTriggers {
		triggers[analysis.Section(name)] = terms
	}
	return triggers
}

// RetryBaseDelay returns the configured backoff base as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySeconds) * time.Second
}
