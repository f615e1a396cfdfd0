// Package roles сводит произвольное число диаризованных спикеров к двум
// каноническим ролям (продавец, клиент) по разговорной статистике.
package roles

import (
	"errors"
	"log"
	"sort"
	"strings"

	"github.com/tetraminz/call_analyzer/internal/transcript"
)

// Role — одна из двух канонических ролей диалога.
type Role string

const (
	RoleSeller   Role = "SELLER"
	RoleCustomer Role = "CUSTOMER"
)

// ErrEmptyTranscript reports that there are no utterances to resolve roles from.
var ErrEmptyTranscript = errors.New("transcript has no utterances")

// Mapping maps every raw speaker tag to a canonical role.
type Mapping map[string]Role

// Stats are deterministic per-speaker values computed directly from utterances.
type Stats struct {
	QuestionCount       int
	LongUtteranceCount  int
	ShortUtteranceCount int
	TotalWordCount      int
	KeywordHits         int
}

const (
	longUtteranceMinWords  = 21
	shortUtteranceMaxWords = 5
)

// SellerScore оценивает вероятность того, что спикер — продавец.
// Длинные монологи и доменная лексика весят больше, чем вопросы.
func (s Stats) SellerScore() int {
	return 2*s.LongUtteranceCount + 3*s.KeywordHits + s.QuestionCount
}

// CollectStats derives per-tag stats from the utterance list. The lexicon is
// matched as lowercase substrings; each term counts at most once per utterance.
func CollectStats(utterances []transcript.Utterance, lexicon []string) map[string]Stats {
	stats := make(map[string]Stats)
	for _, utt := range utterances {
		text := strings.ToLower(utt.Text)
		s := stats[utt.SpeakerTag]

		words := len(strings.Fields(text))
		s.TotalWordCount += words
		if strings.Contains(text, "?") {
			s.QuestionCount++
		}
		switch {
		case words >= longUtteranceMinWords:
			s.LongUtteranceCount++
		case words <= shortUtteranceMaxWords:
			s.ShortUtteranceCount++
		}
		for _, term := range lexicon {
			if term != "" && strings.Contains(text, strings.ToLower(term)) {
				s.KeywordHits++
			}
		}

		stats[utt.SpeakerTag] = s
	}
	return stats
}

// Resolve maps every raw speaker tag to exactly two canonical roles.
//
// With at most targetRoleCount distinct tags no scoring happens: tags take
// role slots in order of first appearance (first → seller, second → customer).
// Otherwise tags are ranked by (SellerScore, TotalWordCount) descending with
// a stable sort, the top tag becomes the seller, the runner-up the customer,
// and every remaining tag collapses into the seller — extra tags are treated
// as background/overlap noise attributed to the dominant talker. A lone
// speaker maps to seller with no customer at all; known gap, kept as is.
func Resolve(utterances []transcript.Utterance, targetRoleCount int, lexicon []string) (Mapping, error) {
	if len(utterances) == 0 {
		return nil, ErrEmptyTranscript
	}
	if targetRoleCount <= 0 {
		targetRoleCount = 2
	}

	_, order := transcript.GroupBySpeaker(utterances)

	mapping := make(Mapping, len(order))
	if len(order) <= targetRoleCount {
		slots := []Role{RoleSeller, RoleCustomer}
		for i, tag := range order {
			mapping[tag] = slots[i%len(slots)]
		}
		return mapping, nil
	}

	stats := CollectStats(utterances, lexicon)

	ranked := append([]string(nil), order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := stats[ranked[i]], stats[ranked[j]]
		if a.SellerScore() != b.SellerScore() {
			return a.SellerScore() > b.SellerScore()
		}
		return a.TotalWordCount > b.TotalWordCount
	})

	log.Printf("role merge: speakers=%d target=%d", len(ranked), targetRoleCount)
	for _, tag := range ranked {
		s := stats[tag]
		log.Printf("  speaker=%s seller_score=%d words=%d questions=%d keywords=%d",
			tag, s.SellerScore(), s.TotalWordCount, s.QuestionCount, s.KeywordHits)
	}

	for i, tag := range ranked {
		if i == 1 {
			mapping[tag] = RoleCustomer
			continue
		}
		mapping[tag] = RoleSeller
	}
	return mapping, nil
}
