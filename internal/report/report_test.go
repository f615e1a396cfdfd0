package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tetraminz/call_analyzer/internal/analysis"
)

func sampleRecord() analysis.Record {
	return analysis.Record{
		OverallScore:    78,
		QualityRating:   "Хороший",
		Strengths:       []string{"уверенное открытие", "знание продукта"},
		Weaknesses:      []string{"слабое закрытие"},
		Recommendations: []string{"назначить следующий шаг"},
		PsychologicalProfile: map[string]any{
			"client_type": "аналитик",
			"keywords":    []any{"цена", "сроки"},
		},
		CriticalMoments: []analysis.CriticalMoment{
			{TimeMarker: "02:13", Description: "возражение по цене"},
		},
		SuccessProbability: "65%",
	}
}

func sampleInfo() SystemInfo {
	return SystemInfo{
		AnalysisType:        "Master Call Analysis",
		TranscriptionEngine: "AssemblyAI",
		AIAnalyzer:          "Gemini",
		Model:               "gemini-2.0-flash",
		ProcessingDate:      "2024-05-01T10:00:00Z",
		SourceAudio:         "sell_audio.mp3",
		DialogueFile:        "out/dialogue_20240501_100000.txt",
		TranscriptionData:   "out/assembly_result_20240501_100000.json",
	}
}

func TestBuildJSONValidatesAgainstSchema(t *testing.T) {
	raw, err := BuildJSON(sampleRecord(), sampleInfo())
	if err != nil {
		t.Fatalf("build json: %v", err)
	}
	if err := ValidateJSON(raw); err != nil {
		t.Fatalf("report must satisfy its own schema: %v", err)
	}

	var object map[string]any
	if err := json.Unmarshal(raw, &object); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if object["overall_score"] != float64(78) {
		t.Fatalf("overall_score: got %v", object["overall_score"])
	}
	info, ok := object["system_info"].(map[string]any)
	if !ok {
		t.Fatalf("system_info missing: %v", object)
	}
	if info["transcription_engine"] != "AssemblyAI" || info["ai_analyzer"] != "Gemini" {
		t.Fatalf("system_info wrong: %v", info)
	}
}

func TestValidateJSONRejectsOutOfRangeScore(t *testing.T) {
	record := sampleRecord()
	record.OverallScore = 150

	raw, err := BuildJSON(record, sampleInfo())
	if err != nil {
		t.Fatalf("build json: %v", err)
	}
	if err := ValidateJSON(raw); err == nil {
		t.Fatal("score above 100 must fail schema validation")
	}
}

func TestValidateJSONRejectsGarbage(t *testing.T) {
	if err := ValidateJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid json")
	}
	if err := ValidateJSON([]byte(`{"overall_score": 50}`)); err == nil {
		t.Fatal("expected error for missing required fields")
	}
}

func TestBuildMarkdown(t *testing.T) {
	md := BuildMarkdown(sampleRecord(), sampleInfo())

	for _, fragment := range []string{
		"# Анализ продающего звонка",
		"## Общая оценка",
		"`78/100`",
		"Вероятность успеха: 65%",
		"## Сильные стороны (2)",
		"1. уверенное открытие",
		"2. знание продукта",
		"## Области для улучшения (1)",
		"## Рекомендации (1)",
		"## Психологический профиль клиента",
		"**client_type:** аналитик",
		"**keywords:** цена, сроки",
		"## Критические моменты разговора",
		"**[02:13]** возражение по цене",
		"## Файлы результатов",
		"`sell_audio.mp3`",
	} {
		if !strings.Contains(md, fragment) {
			t.Fatalf("markdown misses %q:\n%s", fragment, md)
		}
	}
}

func TestBuildMarkdownEmptySections(t *testing.T) {
	record := analysis.Record{
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{},
	}
	md := BuildMarkdown(record, SystemInfo{ProcessingDate: "2024-05-01T10:00:00Z"})

	if !strings.Contains(md, "## Сильные стороны (0)") {
		t.Fatalf("empty section header missing:\n%s", md)
	}
	if !strings.Contains(md, "- нет") {
		t.Fatalf("empty section placeholder missing:\n%s", md)
	}
	if !strings.Contains(md, "Категория: —") {
		t.Fatalf("dash placeholder missing:\n%s", md)
	}
	if strings.Contains(md, "## Критические моменты") {
		t.Fatalf("empty optional section must be omitted:\n%s", md)
	}
}
