package sentiment

import "crypto-concierge/internal/domain"

const (
	// A mood only tilts away from neutral when one side clears this share
	// of all verdicts, leads the other side by the margin, and the batch
	// as a whole is confident enough.
	moodShareFloor     = 0.45
	moodMargin         = 0.15
	moodConfidenceGate = 0.55
)

// Aggregate folds a batch of verdicts into a market mood. An empty batch is
// neutral. The thresholds are asymmetric on purpose: a mixed batch should
// read as neutral rather than flip-flopping on a slim majority.
func Aggregate(verdicts []domain.SentimentVerdict) domain.SentimentSummary {
	if len(verdicts) == 0 {
		return domain.SentimentSummary{Mood: domain.MoodNeutral}
	}

	var pos, neg, neu int
	var confSum float64
	for _, v := range verdicts {
		confSum += v.Confidence
		switch v.Label {
		case domain.SentimentPositive:
			pos++
		case domain.SentimentNegative:
			neg++
		default:
			neu++
		}
	}

	n := float64(len(verdicts))
	posShare := float64(pos) / n
	negShare := float64(neg) / n
	avgConf := confSum / n

	mood := domain.MoodNeutral
	if avgConf >= moodConfidenceGate {
		switch {
		case posShare >= moodShareFloor && posShare-negShare >= moodMargin:
			mood = domain.MoodBullish
		case negShare >= moodShareFloor && negShare-posShare >= moodMargin:
			mood = domain.MoodBearish
		}
	}

	return domain.SentimentSummary{
		PositivePct:   posShare * 100,
		NeutralPct:    float64(neu) / n * 100,
		NegativePct:   negShare * 100,
		AvgConfidence: avgConf,
		Mood:          mood,
	}
}
