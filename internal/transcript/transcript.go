// Package transcript содержит модель диаризованной расшифровки звонка:
// плоский список реплик, как их вернул транскрипционный бэкенд.
package transcript

import "sort"

// Utterance — одна реплика: сырой тег спикера, текст и таймкоды.
// Неизменяема после получения от бэкенда.
type Utterance struct {
	SpeakerTag string `json:"speaker"`
	Text       string `json:"text"`
	StartMS    int64  `json:"start"`
	EndMS      int64  `json:"end,omitempty"`
}

// GroupBySpeaker groups utterances by raw speaker tag and returns the tags
// in order of first appearance.
func GroupBySpeaker(utterances []Utterance) (map[string][]Utterance, []string) {
	groups := make(map[string][]Utterance)
	var order []string
	for _, utt := range utterances {
		if _, seen := groups[utt.SpeakerTag]; !seen {
			order = append(order, utt.SpeakerTag)
		}
		groups[utt.SpeakerTag] = append(groups[utt.SpeakerTag], utt)
	}
	return groups, order
}

// SortByStart returns a copy sorted by StartMS ascending. The sort is stable:
// ties keep input order, so repeated sorting is deterministic.
func SortByStart(utterances []Utterance) []Utterance {
	out := append([]Utterance(nil), utterances...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartMS < out[j].StartMS
	})
	return out
}
