// Package report собирает итоговые отчеты по анализу звонка: JSON для
// машин и markdown для людей. Файлы пишет вызывающая сторона и только
// после полной сборки содержимого.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tetraminz/call_analyzer/internal/analysis"
)

// SystemInfo — метаданные прогона, добавляемые в JSON отчет отдельным
// блоком system_info. Поля самого анализа никогда не перезаписываются.
type SystemInfo struct {
	AnalysisType        string `json:"analysis_type"`
	TranscriptionEngine string `json:"transcription_engine"`
	AIAnalyzer          string `json:"ai_analyzer"`
	Model               string `json:"model,omitempty"`
	ProcessingDate      string `json:"processing_date"`
	SourceAudio         string `json:"source_audio,omitempty"`
	DialogueFile        string `json:"dialogue_file,omitempty"`
	TranscriptionData   string `json:"transcription_data,omitempty"`
}

// BuildJSON serializes the record with system_info injected under its own
// nested namespace.
func BuildJSON(record analysis.Record, info SystemInfo) ([]byte, error) {
	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis record: %w", err)
	}

	var object map[string]any
	if err := json.Unmarshal(encoded, &object); err != nil {
		return nil, fmt.Errorf("reshape analysis record: %w", err)
	}
	object["system_info"] = info

	out, err := json.MarshalIndent(object, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json report: %w", err)
	}
	return out, nil
}

// BuildMarkdown renders the human-readable report.
func BuildMarkdown(record analysis.Record, info SystemInfo) string {
	var b strings.Builder

	b.WriteString("# Анализ продающего звонка\n\n")
	fmt.Fprintf(&b, "**Дата анализа:** %s\n", info.ProcessingDate)
	if info.DialogueFile != "" {
		fmt.Fprintf(&b, "**Диалог:** `%s`\n", info.DialogueFile)
	}
	fmt.Fprintf(&b, "**Транскрипция:** %s\n", info.TranscriptionEngine)
	fmt.Fprintf(&b, "**AI анализ:** %s\n\n", info.AIAnalyzer)

	b.WriteString("## Общая оценка\n\n")
	fmt.Fprintf(&b, "- Балл: `%d/100`\n", record.OverallScore)
	fmt.Fprintf(&b, "- Категория: %s\n", orDash(record.QualityRating))
	fmt.Fprintf(&b, "- Вероятность успеха: %s\n\n", orDash(record.SuccessProbability))

	writeNumberedSection(&b, fmt.Sprintf("Сильные стороны (%d)", len(record.Strengths)), record.Strengths)
	writeNumberedSection(&b, fmt.Sprintf("Области для улучшения (%d)", len(record.Weaknesses)), record.Weaknesses)
	writeNumberedSection(&b, fmt.Sprintf("Рекомендации (%d)", len(record.Recommendations)), record.Recommendations)

	if len(record.PsychologicalProfile) > 0 {
		b.WriteString("## Психологический профиль клиента\n\n")
		keys := make([]string, 0, len(record.PsychologicalProfile))
		for key := range record.PsychologicalProfile {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "**%s:** %s\n\n", key, profileValue(record.PsychologicalProfile[key]))
		}
	}

	if len(record.CriticalMoments) > 0 {
		b.WriteString("## Критические моменты разговора\n\n")
		for i, moment := range record.CriticalMoments {
			if moment.TimeMarker != "" {
				fmt.Fprintf(&b, "%d. **[%s]** %s\n", i+1, moment.TimeMarker, moment.Description)
			} else {
				fmt.Fprintf(&b, "%d. %s\n", i+1, moment.Description)
			}
		}
		b.WriteString("\n")
	}

	if info.SourceAudio != "" || info.TranscriptionData != "" {
		b.WriteString("## Файлы результатов\n\n")
		if info.SourceAudio != "" {
			fmt.Fprintf(&b, "- Исходное аудио: `%s`\n", info.SourceAudio)
		}
		if info.DialogueFile != "" {
			fmt.Fprintf(&b, "- Диалог: `%s`\n", info.DialogueFile)
		}
		if info.TranscriptionData != "" {
			fmt.Fprintf(&b, "- Данные транскрипции: `%s`\n", info.TranscriptionData)
		}
	}

	return b.String()
}

func writeNumberedSection(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(items) == 0 {
		b.WriteString("- нет\n\n")
		return
	}
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
	b.WriteString("\n")
}

func profileValue(v any) string {
	switch value := v.(type) {
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	case nil:
		return "—"
	default:
		return fmt.Sprint(value)
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}
