// Package store — минимальная SQLite обертка для записи прогонов анализа
// и аудита LLM вызовов.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const createAnalysesTableSQL = `
CREATE TABLE IF NOT EXISTS analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_audio TEXT NOT NULL,
	dialogue_file TEXT NOT NULL,
	model TEXT NOT NULL,
	overall_score INTEGER NOT NULL,
	quality_rating TEXT NOT NULL,
	success_probability TEXT NOT NULL,
	report_json TEXT NOT NULL,
	created_at_utc TEXT NOT NULL
)`

const createLLMEventsTableSQL = `
CREATE TABLE IF NOT EXISTS llm_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at_utc TEXT NOT NULL,
	dialogue_file TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	model TEXT NOT NULL,
	quota_limited INTEGER NOT NULL,
	error_message TEXT NOT NULL
)`

var createIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at_utc)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_events_lookup ON llm_events(dialogue_file, attempt)`,
}

const (
	dropAnalysesSQL  = `DROP TABLE IF EXISTS analyses`
	dropLLMEventsSQL = `DROP TABLE IF EXISTS llm_events`
)

const insertAnalysisSQL = `
INSERT INTO analyses (
	source_audio,
	dialogue_file,
	model,
	overall_score,
	quality_rating,
	success_probability,
	report_json,
	created_at_utc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const insertLLMEventSQL = `
INSERT INTO llm_events (
	created_at_utc,
	dialogue_file,
	attempt,
	model,
	quota_limited,
	error_message
) VALUES (?, ?, ?, ?, ?, ?)`

// AnalysisRow — одна строка таблицы analyses.
type AnalysisRow struct {
	SourceAudio        string
	DialogueFile       string
	Model              string
	OverallScore       int
	QualityRating      string
	SuccessProbability string
	ReportJSON         string
	CreatedAtUTC       string
}

// LLMEvent — аудит одной попытки LLM вызова.
type LLMEvent struct {
	CreatedAtUTC string
	DialogueFile string
	Attempt      int
	Model        string
	QuotaLimited bool
	ErrorMessage string
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) InsertAnalysis(row AnalysisRow) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store is not initialized")
	}
	if strings.TrimSpace(row.CreatedAtUTC) == "" {
		row.CreatedAtUTC = time.Now().UTC().Format(time.RFC3339)
	}
	if strings.TrimSpace(row.ReportJSON) == "" {
		row.ReportJSON = "{}"
	}

	if _, err := s.db.Exec(
		insertAnalysisSQL,
		strings.TrimSpace(row.SourceAudio),
		strings.TrimSpace(row.DialogueFile),
		strings.TrimSpace(row.Model),
		row.OverallScore,
		strings.TrimSpace(row.QualityRating),
		strings.TrimSpace(row.SuccessProbability),
		row.ReportJSON,
		row.CreatedAtUTC,
	); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (s *Store) InsertLLMEvent(event LLMEvent) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store is not initialized")
	}
	if strings.TrimSpace(event.CreatedAtUTC) == "" {
		event.CreatedAtUTC = time.Now().UTC().Format(time.RFC3339)
	}
	if event.Attempt < 1 {
		event.Attempt = 1
	}

	if _, err := s.db.Exec(
		insertLLMEventSQL,
		event.CreatedAtUTC,
		strings.TrimSpace(event.DialogueFile),
		event.Attempt,
		strings.TrimSpace(event.Model),
		boolToInt(event.QuotaLimited),
		strings.TrimSpace(event.ErrorMessage),
	); err != nil {
		return fmt.Errorf("insert llm event: %w", err)
	}
	return nil
}

// ListAnalyses returns stored runs, newest first.
func (s *Store) ListAnalyses() ([]AnalysisRow, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlite store is not initialized")
	}

	rows, err := s.db.Query(`
		SELECT
			source_audio,
			dialogue_file,
			model,
			overall_score,
			quality_rating,
			success_probability,
			report_json,
			created_at_utc
		FROM analyses
		ORDER BY created_at_utc DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRow
	for rows.Next() {
		var row AnalysisRow
		if err := rows.Scan(
			&row.SourceAudio,
			&row.DialogueFile,
			&row.Model,
			&row.OverallScore,
			&row.QualityRating,
			&row.SuccessProbability,
			&row.ReportJSON,
			&row.CreatedAtUTC,
		); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis rows: %w", err)
	}
	return out, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(createAnalysesTableSQL); err != nil {
		return fmt.Errorf("create analyses table: %w", err)
	}
	if _, err := db.Exec(createLLMEventsTableSQL); err != nil {
		return fmt.Errorf("create llm_events table: %w", err)
	}

	missingAnalyses, err := missingTableColumns(db, "analyses", requiredAnalysisColumns())
	if err != nil {
		return err
	}
	if len(missingAnalyses) > 0 {
		sort.Strings(missingAnalyses)
		return fmt.Errorf(
			"incompatible analyses schema, missing columns: %s; run `call_analyzer setup --db <path>`",
			strings.Join(missingAnalyses, ", "),
		)
	}

	missingEvents, err := missingTableColumns(db, "llm_events", requiredLLMEventColumns())
	if err != nil {
		return err
	}
	if len(missingEvents) > 0 {
		sort.Strings(missingEvents)
		return fmt.Errorf(
			"incompatible llm_events schema, missing columns: %s; run `call_analyzer setup --db <path>`",
			strings.Join(missingEvents, ", "),
		)
	}

	for _, stmt := range createIndexesSQL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func requiredAnalysisColumns() []string {
	return []string{
		"id",
		"source_audio",
		"dialogue_file",
		"model",
		"overall_score",
		"quality_rating",
		"success_probability",
		"report_json",
		"created_at_utc",
	}
}

func requiredLLMEventColumns() []string {
	return []string{
		"id",
		"created_at_utc",
		"dialogue_file",
		"attempt",
		"model",
		"quota_limited",
		"error_message",
	}
}

func missingTableColumns(db *sql.DB, tableName string, required []string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, tableName))
	if err != nil {
		return nil, fmt.Errorf("inspect %s schema: %w", tableName, err)
	}
	defer rows.Close()

	existing := map[string]struct{}{}
	for rows.Next() {
		var cid int
		var name string
		var colType string
		var notNull int
		var defaultValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("scan %s schema: %w", tableName, err)
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s schema: %w", tableName, err)
	}

	var missing []string
	for _, col := range required {
		if _, ok := existing[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing, nil
}

// Setup drops and recreates the schema from scratch.
func Setup(dbPath string) error {
	if strings.TrimSpace(dbPath) == "" {
		return fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	db, err := openSQLite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(dropAnalysesSQL); err != nil {
		return fmt.Errorf("drop analyses table: %w", err)
	}
	if _, err := db.Exec(dropLLMEventsSQL); err != nil {
		return fmt.Errorf("drop llm_events table: %w", err)
	}
	return ensureSchema(db)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
