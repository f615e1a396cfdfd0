// Package pipeline — полный цикл анализа звонка:
// MP3 → транскрипция → роли → диалог → LLM анализ → отчеты.
// Последовательный и однопоточный: один звонок обрабатывается целиком,
// параллелизм между звонками — забота вызывающей стороны.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/tetraminz/call_analyzer/internal/analysis"
	"github.com/tetraminz/call_analyzer/internal/assemblyai"
	"github.com/tetraminz/call_analyzer/internal/config"
	"github.com/tetraminz/call_analyzer/internal/dialogue"
	"github.com/tetraminz/call_analyzer/internal/llm"
	"github.com/tetraminz/call_analyzer/internal/report"
	"github.com/tetraminz/call_analyzer/internal/roles"
	"github.com/tetraminz/call_analyzer/internal/store"
)

const (
	engineTranscription = "AssemblyAI"
	engineAnalyzer      = "Gemini"
)

// Transcriber abstracts the transcription backend to keep the pipeline testable.
type Transcriber interface {
	UploadAudio(ctx context.Context, audio io.Reader) (string, error)
	StartTranscription(ctx context.Context, audioURL string, opts assemblyai.TranscriptionOptions) (string, error)
	WaitTranscription(ctx context.Context, jobID string) (assemblyai.Result, error)
}

// Analyzer abstracts the LLM backend.
type Analyzer interface {
	GenerateContent(ctx context.Context, model, prompt string) (string, error)
}

// Recorder persists analysis rows and LLM call audit events.
type Recorder interface {
	InsertAnalysis(row store.AnalysisRow) error
	InsertLLMEvent(event store.LLMEvent) error
}

// Pipeline wires the external backends to the core components.
type Pipeline struct {
	Config      *config.Config
	Transcriber Transcriber
	Analyzer    Analyzer
	Recorder    Recorder             // nil отключает запись в SQLite
	Sleep       func(time.Duration)  // overridable in tests
	Now         func() time.Time     // overridable in tests
}

// Outcome — пути итоговых файлов одного прогона.
type Outcome struct {
	DialogueFile      string
	JSONFile          string
	MarkdownFile      string
	TranscriptionFile string
	Record            analysis.Record
	Model             string
}

// Run executes the full cycle for one audio file. Every output file is
// written only once its content is fully assembled.
func (p *Pipeline) Run(ctx context.Context, audioPath string) (Outcome, error) {
	cfg := p.Config
	stamp := p.timestamp()

	audio, err := os.Open(audioPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("open audio %q: %w", audioPath, err)
	}
	defer audio.Close()

	log.Printf("transcribe: file=%s speakers=%d", filepath.Base(audioPath), cfg.ExpectedSpeakers)
	uploadURL, err := p.Transcriber.UploadAudio(ctx, audio)
	if err != nil {
		return Outcome{}, fmt.Errorf("transcription upload: %w", err)
	}
	jobID, err := p.Transcriber.StartTranscription(ctx, uploadURL, assemblyai.TranscriptionOptions{
		ExpectedSpeakers: cfg.ExpectedSpeakers,
		LanguageCode:     cfg.LanguageCode,
		Punctuate:        true,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("transcription start: %w", err)
	}
	result, err := p.Transcriber.WaitTranscription(ctx, jobID)
	if err != nil {
		return Outcome{}, fmt.Errorf("transcription wait: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("create output dir: %w", err)
	}

	transcriptionFile := filepath.Join(cfg.OutputDir, fmt.Sprintf("assembly_result_%s.json", stamp))
	if len(result.Raw) > 0 {
		if err := os.WriteFile(transcriptionFile, result.Raw, 0o644); err != nil {
			return Outcome{}, fmt.Errorf("write transcription data: %w", err)
		}
	} else {
		transcriptionFile = ""
	}

	mapping, err := roles.Resolve(result.Utterances, cfg.ExpectedSpeakers, cfg.SellerLexicon)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve roles: %w", err)
	}
	lines, err := dialogue.Render(result.Utterances, mapping)
	if err != nil {
		return Outcome{}, fmt.Errorf("render dialogue: %w", err)
	}

	dialogueFile := filepath.Join(cfg.OutputDir, fmt.Sprintf("dialogue_%s.txt", stamp))
	if err := os.WriteFile(dialogueFile, []byte(dialogue.Format(lines)), 0o644); err != nil {
		return Outcome{}, fmt.Errorf("write dialogue: %w", err)
	}
	log.Printf("dialogue: file=%s lines=%d", dialogueFile, len(lines))

	outcome, err := p.analyze(ctx, dialogue.PromptText(lines), dialogueFile, audioPath, transcriptionFile, stamp)
	if err != nil {
		return Outcome{}, err
	}
	outcome.DialogueFile = dialogueFile
	outcome.TranscriptionFile = transcriptionFile
	return outcome, nil
}

// RunDialogue analyzes an existing dialogue file without re-transcribing.
func (p *Pipeline) RunDialogue(ctx context.Context, dialoguePath string) (Outcome, error) {
	raw, err := os.ReadFile(dialoguePath)
	if err != nil {
		return Outcome{}, fmt.Errorf("read dialogue %q: %w", dialoguePath, err)
	}
	lines := dialogue.Parse(string(raw))
	if len(lines) == 0 {
		return Outcome{}, fmt.Errorf("dialogue %q has no parseable lines", dialoguePath)
	}
	log.Printf("dialogue loaded: file=%s lines=%d", dialoguePath, len(lines))

	if err := os.MkdirAll(p.Config.OutputDir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("create output dir: %w", err)
	}

	outcome, err := p.analyze(ctx, dialogue.PromptText(lines), dialoguePath, "", "", p.timestamp())
	if err != nil {
		return Outcome{}, err
	}
	outcome.DialogueFile = dialoguePath
	return outcome, nil
}

func (p *Pipeline) analyze(ctx context.Context, dialogueText, dialogueFile, audioPath, transcriptionFile, stamp string) (Outcome, error) {
	cfg := p.Config

	caller := &llm.Caller{
		Models:     cfg.Models,
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay(),
		Sleep:      p.Sleep,
	}

	attempt := 0
	usedModel := ""
	invoke := func(ctx context.Context, model, prompt string) (string, error) {
		attempt++
		usedModel = model
		text, err := p.Analyzer.GenerateContent(ctx, model, prompt)
		p.recordLLMEvent(dialogueFile, attempt, model, err)
		return text, err
	}

	text, err := caller.CallWithRetry(ctx, buildPrompt(dialogueText), invoke)
	if err != nil {
		return Outcome{}, fmt.Errorf("llm analysis: %w", err)
	}

	record := analysis.Normalize(text, cfg.Triggers())
	info := report.SystemInfo{
		AnalysisType:        "Master Call Analysis",
		TranscriptionEngine: engineTranscription,
		AIAnalyzer:          engineAnalyzer,
		Model:               usedModel,
		ProcessingDate:      p.now().Format(time.RFC3339),
		SourceAudio:         audioPath,
		DialogueFile:        dialogueFile,
		TranscriptionData:   transcriptionFile,
	}

	jsonReport, err := report.BuildJSON(record, info)
	if err != nil {
		return Outcome{}, err
	}
	if err := report.ValidateJSON(jsonReport); err != nil {
		return Outcome{}, err
	}
	markdown := report.BuildMarkdown(record, info)

	jsonFile := filepath.Join(cfg.OutputDir, fmt.Sprintf("master_analysis_%s.json", stamp))
	if err := os.WriteFile(jsonFile, jsonReport, 0o644); err != nil {
		return Outcome{}, fmt.Errorf("write json report: %w", err)
	}
	mdFile := filepath.Join(cfg.OutputDir, fmt.Sprintf("master_report_%s.md", stamp))
	if err := os.WriteFile(mdFile, []byte(markdown), 0o644); err != nil {
		return Outcome{}, fmt.Errorf("write markdown report: %w", err)
	}
	log.Printf("reports: json=%s md=%s score=%d", jsonFile, mdFile, record.OverallScore)

	if p.Recorder != nil {
		row := store.AnalysisRow{
			SourceAudio:        audioPath,
			DialogueFile:       dialogueFile,
			Model:              usedModel,
			OverallScore:       record.OverallScore,
			QualityRating:      record.QualityRating,
			SuccessProbability: record.SuccessProbability,
			ReportJSON:         string(jsonReport),
			CreatedAtUTC:       p.now().UTC().Format(time.RFC3339),
		}
		if err := p.Recorder.InsertAnalysis(row); err != nil {
			return Outcome{}, err
		}
	}

	return Outcome{
		JSONFile:     jsonFile,
		MarkdownFile: mdFile,
		Record:       record,
		Model:        usedModel,
	}, nil
}

func (p *Pipeline) recordLLMEvent(dialogueFile string, attempt int, model string, callErr error) {
	if p.Recorder == nil {
		return
	}
	event := store.LLMEvent{
		CreatedAtUTC: p.now().UTC().Format(time.RFC3339),
		DialogueFile: dialogueFile,
		Attempt:      attempt,
		Model:        model,
		QuotaLimited: llm.IsQuotaLimited(callErr),
	}
	if callErr != nil {
		event.ErrorMessage = callErr.Error()
	}
	if err := p.Recorder.InsertLLMEvent(event); err != nil {
		log.Printf("record llm event: %v", err)
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) timestamp() string {
	return p.now().Format("20060102_150405")
}

func buildPrompt(dialogueText string) string {
	return fmt.Sprintf(`Ты эксперт по анализу продающих звонков. Проанализируй этот диалог:

%s

ПРОВЕДИ АНАЛИЗ ПО КРИТЕРИЯМ:
1. Построение доверия (20%%)
2. Выявление потребностей (25%%)
3. Презентация решения (20%%)
4. Работа с возражениями (20%%)
5. Закрытие и следующие шаги (15%%)

ДОПОЛНИТЕЛЬНО ОПРЕДЕЛИ:
- Психологический профиль клиента
- Упущенные возможности
- Критические ошибки
- Эмоциональную динамику

Верни результат в формате JSON с полями:
- overall_score (0-100)
- quality_rating
- strengths (список)
- weaknesses (список)
- recommendations (список)
- psychological_profile (объект с полями: description, keywords, client_type, motivation_level, decision_style)
- critical_moments (список объектов с полями: time, description)
- success_probability`, dialogueText)
}
