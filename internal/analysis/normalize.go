// Package analysis извлекает структурированную оценку звонка из
// неструктурированного ответа модели. Normalize никогда не падает: нет
// структуры — деградирует до эвристической разбивки текста по секциям.
package analysis

import (
	"encoding/json"
	"strings"
)

// Section — целевая секция отчета для эвристической разбивки.
type Section string

const (
	SectionStrengths       Section = "strengths"
	SectionWeaknesses      Section = "weaknesses"
	SectionRecommendations Section = "recommendations"
)

// SectionTriggers maps a target section to the header substrings that
// activate it. Supplied by configuration so the lexicon can be localized
// without code changes.
type SectionTriggers map[Section][]string

// DefaultSectionTriggers — русскоязычные заголовки, которыми модель обычно
// размечает текстовый ответ.
func DefaultSectionTriggers() SectionTriggers {
	return SectionTriggers{
		SectionStrengths:       {"сильн", "преимущ"},
		SectionWeaknesses:      {"слаб", "недостат"},
		SectionRecommendations: {"рекоменд", "совет"},
	}
}

// Normalize builds a Record from raw model output. Primary path: locate a
// greedy JSON object substring (code fences stripped) and map its fields.
// Fallback: line-oriented section classification. The full raw text is kept
// in AnalysisText on both paths.
func Normalize(raw string, triggers SectionTriggers) Record {
	if triggers == nil {
		triggers = DefaultSectionTriggers()
	}

	if object, ok := extractJSONObject(raw); ok {
		record := fromObject(object)
		record.AnalysisText = raw
		return record
	}
	return sectionFallback(raw, triggers)
}

func extractJSONObject(raw string) (map[string]any, bool) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &object); err != nil {
		return nil, false
	}
	return object, true
}

func sectionFallback(raw string, triggers SectionTriggers) Record {
	record := Record{
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{},
		AnalysisText:    raw,
	}
	sections := map[Section]*[]string{
		SectionStrengths:       &record.Strengths,
		SectionWeaknesses:      &record.Weaknesses,
		SectionRecommendations: &record.Recommendations,
	}

	var current *[]string
	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if section, ok := matchSection(line, triggers); ok {
			current = sections[section]
			continue
		}
		if marker, ok := bulletMarker(line); ok && current != nil {
			item := strings.TrimSpace(strings.TrimPrefix(line, marker))
			if item != "" {
				*current = append(*current, item)
			}
		}
	}
	return record
}

func matchSection(line string, triggers SectionTriggers) (Section, bool) {
	lower := strings.ToLower(line)
	for _, section := range []Section{SectionStrengths, SectionWeaknesses, SectionRecommendations} {
		for _, trigger := range triggers[section] {
			if trigger != "" && strings.Contains(lower, strings.ToLower(trigger)) {
				return section, true
			}
		}
	}
	return "", false
}

func bulletMarker(line string) (string, bool) {
	for _, marker := range []string{"-", "•", "*"} {
		if strings.HasPrefix(line, marker) {
			return marker, true
		}
	}
	return "", false
}
