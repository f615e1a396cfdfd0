package report

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// jsonReportSchema — контракт JSON отчета на границе файла. Отчет
// проверяется по схеме перед записью на диск.
const jsonReportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["overall_score", "quality_rating", "strengths", "weaknesses", "recommendations", "system_info"],
  "properties": {
    "overall_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "quality_rating": {"type": "string"},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "recommendations": {"type": "array", "items": {"type": "string"}},
    "psychological_profile": {"type": "object"},
    "critical_moments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["description"],
        "properties": {
          "time": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    },
    "success_probability": {"type": "string"},
    "analysis_text": {"type": "string"},
    "system_info": {
      "type": "object",
      "required": ["analysis_type", "transcription_engine", "ai_analyzer", "processing_date"],
      "properties": {
        "analysis_type": {"type": "string"},
        "transcription_engine": {"type": "string"},
        "ai_analyzer": {"type": "string"},
        "model": {"type": "string"},
        "processing_date": {"type": "string"},
        "source_audio": {"type": "string"},
        "dialogue_file": {"type": "string"},
        "transcription_data": {"type": "string"}
      }
    }
  }
}`

var compiledReportSchema = jsonschema.MustCompileString("analysis_report.schema.json", jsonReportSchema)

// ValidateJSON checks a serialized report against the embedded schema.
func ValidateJSON(raw []byte) error {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("json report is not valid json: %w", err)
	}
	if err := compiledReportSchema.Validate(value); err != nil {
		return fmt.Errorf("json report violates schema: %w", err)
	}
	return nil
}
