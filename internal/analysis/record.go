package analysis

import (
	"encoding/json"
	"strconv"
)

// Record — структурированный результат анализа одного звонка.
// Поля заполняются из ответа модели и больше не меняются; отчеты
// сериализуют их как есть.
type Record struct {
	OverallScore         int              `json:"overall_score"`
	QualityRating        string           `json:"quality_rating"`
	Strengths            []string         `json:"strengths"`
	Weaknesses           []string         `json:"weaknesses"`
	Recommendations      []string         `json:"recommendations"`
	PsychologicalProfile map[string]any   `json:"psychological_profile,omitempty"`
	CriticalMoments      []CriticalMoment `json:"critical_moments,omitempty"`
	SuccessProbability   string           `json:"success_probability,omitempty"`
	AnalysisText         string           `json:"analysis_text,omitempty"`
}

// CriticalMoment — один переломный момент разговора.
type CriticalMoment struct {
	TimeMarker  string `json:"time"`
	Description string `json:"description"`
}

// fromObject maps parsed JSON fields 1:1 onto the record. Absent fields stay
// at their zero values, never invented.
func fromObject(object map[string]any) Record {
	record := Record{
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{},
	}
	if v, ok := object["overall_score"]; ok {
		record.OverallScore = asInt(v)
	}
	if v, ok := object["quality_rating"]; ok {
		record.QualityRating = asString(v)
	}
	if v, ok := object["strengths"]; ok {
		record.Strengths = asStringList(v)
	}
	if v, ok := object["weaknesses"]; ok {
		record.Weaknesses = asStringList(v)
	}
	if v, ok := object["recommendations"]; ok {
		record.Recommendations = asStringList(v)
	}
	if v, ok := object["psychological_profile"].(map[string]any); ok {
		record.PsychologicalProfile = v
	}
	if v, ok := object["critical_moments"]; ok {
		record.CriticalMoments = asCriticalMoments(v)
	}
	if v, ok := object["success_probability"]; ok {
		record.SuccessProbability = asString(v)
	}
	return record
}

func asInt(v any) int {
	switch value := v.(type) {
	case float64:
		return int(value)
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return 0
}

func asString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case json.Number:
		return value.String()
	case bool:
		return strconv.FormatBool(value)
	}
	return ""
}

func asStringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asCriticalMoments(v any) []CriticalMoment {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]CriticalMoment, 0, len(items))
	for _, item := range items {
		switch value := item.(type) {
		case map[string]any:
			out = append(out, CriticalMoment{
				TimeMarker:  asString(value["time"]),
				Description: asString(value["description"]),
			})
		case string:
			out = append(out, CriticalMoment{Description: value})
		}
	}
	return out
}
