package main

/*
call_analyzer — полный цикл анализа продающего звонка:
MP3 → AssemblyAI → диалог → Gemini → JSON/Markdown отчеты.

Usage:
  ASSEMBLYAI_API_KEY=... GEMINI_API_KEY=... call_analyzer analyze --audio sell_audio.mp3
  call_analyzer dialogue --file out/dialogue_20240101_120000.txt
  call_analyzer report --db out/analyses.db
  call_analyzer setup --db out/analyses.db

Без аргументов запускается интерактивное меню выбора режима.
*/

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tetraminz/call_analyzer/internal/assemblyai"
	"github.com/tetraminz/call_analyzer/internal/config"
	"github.com/tetraminz/call_analyzer/internal/llm"
	"github.com/tetraminz/call_analyzer/internal/pipeline"
	"github.com/tetraminz/call_analyzer/internal/store"
)

func main() {
	log.SetFlags(0)
	if err := runCLI(context.Background()); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func runCLI(ctx context.Context) error {
	if len(os.Args) < 2 {
		return runInteractive(ctx)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "analyze":
		return runAnalyzeCmd(ctx, args)
	case "dialogue":
		return runDialogueCmd(ctx, args)
	case "report":
		return runReportCmd(args)
	case "setup":
		return runSetupCmd(args)
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runAnalyzeCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	audio := fs.String("audio", "", "Path to the recorded call audio file")
	cfgPath := fs.String("config", "", "Optional YAML config path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*audio) == "" {
		return errors.New("--audio is required")
	}

	p, st, err := buildPipeline(*cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()

	outcome, err := p.Run(ctx, *audio)
	if err != nil {
		return err
	}
	printOutcome(outcome)
	return nil
}

func runDialogueCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dialogue", flag.ContinueOnError)
	file := fs.String("file", "", "Path to an existing dialogue file")
	cfgPath := fs.String("config", "", "Optional YAML config path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*file) == "" {
		return errors.New("--file is required")
	}

	p, st, err := buildPipeline(*cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()

	outcome, err := p.RunDialogue(ctx, *file)
	if err != nil {
		return err
	}
	printOutcome(outcome)
	return nil
}

func runReportCmd(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dbPath := fs.String("db", "out/analyses.db", "Path to SQLite DB file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListAnalyses()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("no analyses recorded")
		return nil
	}
	for _, row := range rows {
		fmt.Printf("created_at=%s score=%d rating=%q model=%s dialogue=%s\n",
			row.CreatedAtUTC, row.OverallScore, row.QualityRating, row.Model, row.DialogueFile)
	}
	return nil
}

func runSetupCmd(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	dbPath := fs.String("db", "out/analyses.db", "Path to SQLite DB file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := store.Setup(*dbPath); err != nil {
		return err
	}
	fmt.Printf("db_ready=%s\n", *dbPath)
	return nil
}

func runInteractive(ctx context.Context) error {
	fmt.Println("Выберите режим работы:")
	fmt.Println("  1. Полный анализ аудиофайла")
	fmt.Println("  2. Анализ существующего файла диалога")
	fmt.Print("\nВведите номер (1 или 2): ")

	reader := bufio.NewReader(os.Stdin)
	choice, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read choice: %w", err)
	}

	switch strings.TrimSpace(choice) {
	case "2":
		fmt.Print("Файл диалога (по умолчанию dialogue.txt): ")
		file, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read dialogue path: %w", err)
		}
		file = strings.TrimSpace(file)
		if file == "" {
			file = "dialogue.txt"
		}
		return runDialogueCmd(ctx, []string{"--file", file})
	default:
		fmt.Print("Аудиофайл (по умолчанию sell_audio.mp3): ")
		audio, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read audio path: %w", err)
		}
		audio = strings.TrimSpace(audio)
		if audio == "" {
			audio = "sell_audio.mp3"
		}
		return runAnalyzeCmd(ctx, []string{"--audio", audio})
	}
}

func buildPipeline(cfgPath string) (*pipeline.Pipeline, *store.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	p := &pipeline.Pipeline{
		Config:      cfg,
		Transcriber: assemblyai.NewClient(cfg.AssemblyAI.APIKey, cfg.AssemblyAI.BaseURL, nil),
		Analyzer:    llm.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, nil),
		Recorder:    st,
	}
	return p, st, nil
}

func printOutcome(outcome pipeline.Outcome) {
	fmt.Println("analysis complete")
	fmt.Printf("  dialogue=%s\n", outcome.DialogueFile)
	fmt.Printf("  json=%s\n", outcome.JSONFile)
	fmt.Printf("  markdown=%s\n", outcome.MarkdownFile)
	if outcome.TranscriptionFile != "" {
		fmt.Printf("  transcription=%s\n", outcome.TranscriptionFile)
	}
	fmt.Printf("  score=%d/100 rating=%q model=%s\n",
		outcome.Record.OverallScore, outcome.Record.QualityRating, outcome.Model)
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  call_analyzer analyze --audio sell_audio.mp3 [--config config.yaml]")
	fmt.Println("  call_analyzer dialogue --file dialogue.txt [--config config.yaml]")
	fmt.Println("  call_analyzer report --db out/analyses.db")
	fmt.Println("  call_analyzer setup --db out/analyses.db")
}
