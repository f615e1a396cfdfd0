// Package dialogue превращает размеченные по ролям реплики в строковый
// формат диалога и обратно. Формат — контракт на границе файла:
//
//	[SPEAKER_A 00012.34] Добрый день, это компания...
//
// SPEAKER_A — продавец, SPEAKER_B — клиент. Рендерер и парсер обязаны
// сходиться на точной раскладке скобок и полей.
package dialogue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tetraminz/call_analyzer/internal/roles"
	"github.com/tetraminz/call_analyzer/internal/transcript"
)

const (
	tokenSeller   = "SPEAKER_A"
	tokenCustomer = "SPEAKER_B"

	promptRoleSeller   = "ПРОДАВЕЦ"
	promptRoleCustomer = "КЛИЕНТ"
)

// Line — одна строка диалога после применения ролей.
type Line struct {
	Role    roles.Role
	Seconds float64
	Text    string
}

// UnmappedSpeakerError means an utterance carries a tag absent from the role
// mapping. Resolve guarantees totality, so this indicates a bug upstream.
type UnmappedSpeakerError struct {
	Tag string
}

func (e *UnmappedSpeakerError) Error() string {
	return fmt.Sprintf("speaker tag %q has no role mapping", e.Tag)
}

// Render applies the role mapping and re-sorts by start time. Diarization
// order and chronological order can diverge after merging, hence the sort.
func Render(utterances []transcript.Utterance, mapping roles.Mapping) ([]Line, error) {
	sorted := transcript.SortByStart(utterances)
	lines := make([]Line, 0, len(sorted))
	for _, utt := range sorted {
		role, ok := mapping[utt.SpeakerTag]
		if !ok {
			return nil, &UnmappedSpeakerError{Tag: utt.SpeakerTag}
		}
		lines = append(lines, Line{
			Role:    role,
			Seconds: float64(utt.StartMS) / 1000.0,
			Text:    utt.Text,
		})
	}
	return lines, nil
}

// FormatLine serializes one line in the fixed wire layout.
func FormatLine(line Line) string {
	return fmt.Sprintf("[%s %08.2f] %s", roleToken(line.Role), line.Seconds, line.Text)
}

// Format serializes all lines, one per row.
func Format(lines []Line) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(FormatLine(line))
	}
	return b.String()
}

// Parse reads the dialogue file format back into lines. Rows that do not
// match the layout are skipped, mirroring the tolerant reader on the
// analysis side of the file boundary.
func Parse(text string) []Line {
	var out []Line
	for _, raw := range strings.Split(text, "\n") {
		row := strings.TrimSpace(raw)
		if !strings.HasPrefix(row, "[") {
			continue
		}
		header, body, found := strings.Cut(row[1:], "] ")
		if !found {
			continue
		}
		token, timeStr, found := strings.Cut(header, " ")
		if !found {
			continue
		}
		role, ok := tokenRole(token)
		if !ok {
			continue
		}
		seconds, err := strconv.ParseFloat(timeStr, 64)
		if err != nil {
			continue
		}
		out = append(out, Line{Role: role, Seconds: seconds, Text: body})
	}
	return out
}

// PromptText renders lines the way the analysis prompt expects them:
// таймкод плюс человекочитаемая роль.
func PromptText(lines []Line) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		label := promptRoleCustomer
		if line.Role == roles.RoleSeller {
			label = promptRoleSeller
		}
		fmt.Fprintf(&b, "[%08.2f] %s: %s", line.Seconds, label, line.Text)
	}
	return b.String()
}

func roleToken(role roles.Role) string {
	if role == roles.RoleCustomer {
		return tokenCustomer
	}
	return tokenSeller
}

func tokenRole(token string) (roles.Role, bool) {
	switch token {
	case tokenSeller:
		return roles.RoleSeller, true
	case tokenCustomer:
		return roles.RoleCustomer, true
	default:
		return "", false
	}
}
