package classify

import (
	"context"
	"strings"
	"unicode"

	"github.com/stoik/replai/internal/models"
)

var positiveWords = toSet(
	"good", "great", "excellent", "happy", "thanks", "thank", "appreciate", "appreciated",
	"love", "wonderful", "awesome", "pleased", "glad", "fantastic", "perfect", "excited",
	"amazing", "nice", "congratulations", "delighted",
)

var negativeWords = toSet(
	"bad", "terrible", "awful", "angry", "disappointed", "unhappy", "problem", "issue",
	"complaint", "hate", "poor", "wrong", "frustrated", "broken", "refund", "worst",
	"unacceptable", "annoyed", "failed", "horrible",
)

// Sentiment compares positive and negative word counts. The strictly larger
// side wins; ties, including no sentiment words at all, are neutral.
func Sentiment(text string) models.Sentiment {
	pos, neg, _ := countSentimentWords(text)
	switch {
	case pos > neg:
		return models.SentimentPositive
	case neg > pos:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// SentimentScore is a confidence-scored sentiment breakdown. The three shares
// sum to 1.
type SentimentScore struct {
	Label      models.Sentiment `json:"label"`
	Positive   float64          `json:"positive"`
	Negative   float64          `json:"negative"`
	Neutral    float64          `json:"neutral"`
	Confidence float64          `json:"confidence"`
}

// Analyzer is the hook for a deeper sentiment service.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (SentimentScore, error)
}

// Lexical is the default Analyzer, built on the same word lists as Sentiment.
type Lexical struct{}

var _ Analyzer = Lexical{}

// Analyze scores text by the share of positive, negative and other words.
func (Lexical) Analyze(_ context.Context, text string) (SentimentScore, error) {
	pos, neg, total := countSentimentWords(text)
	score := SentimentScore{Label: Sentiment(text)}
	if total == 0 {
		score.Neutral = 1
		score.Confidence = 1
		return score, nil
	}

	score.Positive = float64(pos) / float64(total)
	score.Negative = float64(neg) / float64(total)
	score.Neutral = 1 - score.Positive - score.Negative

	if pos+neg > 0 {
		diff := pos - neg
		if diff < 0 {
			diff = -diff
		}
		score.Confidence = float64(diff) / float64(pos+neg)
		if score.Label == models.SentimentNeutral {
			score.Confidence = 1 - score.Confidence
		}
	} else {
		score.Confidence = 1
	}
	return score, nil
}

func countSentimentWords(text string) (pos, neg, total int) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	return pos, neg, len(words)
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
