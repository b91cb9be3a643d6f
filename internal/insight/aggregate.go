package insight

import (
	"errors"
	"sort"
)

// ErrNoInsights indicates every conversation's extraction failed or the
// archive held no usable conversations. Synthesis cannot run on an empty
// aggregate, so this is pipeline-fatal.
var ErrNoInsights = errors.New("insight: no insights available")

const (
	topTopicsLimit       = 15
	topPatternsLimit     = 10
	riskSampleLimit      = 3
	topConversationLimit = 5
	vocabularyLimit      = 60

	// Standout vocabulary is a small sample of the user's full lexicon;
	// the estimate scales it to an order-of-magnitude active vocabulary.
	vocabularyScale = 40
)

// Aggregate deterministically merges Stage-1 insights into the single
// handoff object for Stage 2. No model calls happen here.
func Aggregate(insights []ConversationInsight) (*AggregatedSignals, error) {
	if len(insights) == 0 {
		return nil, ErrNoInsights
	}

	sig := &AggregatedSignals{
		ConversationCount: len(insights),
		TopTopics:         rankTopics(insights),
		TopPatterns:       rankPatterns(insights),
		Pii:               summarizePii(insights),
		Vocabulary:        mergeVocabulary(insights),
		ToneDistribution:  rankTones(insights),
		TopConversations:  selectTopConversations(insights),
	}

	var complexity, engagement, words, sentences int
	for _, ci := range insights {
		complexity += ci.ComplexityLevel
		engagement += ci.EngagementLevel
		words += ci.TextStats.WordCount
		sentences += ci.TextStats.SentenceCount
		if len(ci.IntriguingObservation) > len(sig.LongestObservation) {
			sig.LongestObservation = ci.IntriguingObservation
		}
	}
	n := float64(len(insights))
	sig.MeanComplexity = float64(complexity) / n
	sig.MeanEngagement = float64(engagement) / n
	if sentences > 0 {
		sig.MeanSentenceLength = float64(words) / float64(sentences)
	}
	sig.VocabularyEstimate = len(sig.Vocabulary) * vocabularyScale

	return sig, nil
}

// rankTopics counts topic occurrences and orders by count descending,
// first-seen order breaking ties, capped at the top-N.
func rankTopics(insights []ConversationInsight) []TopicCount {
	counts := map[string]int{}
	var order []string
	for _, ci := range insights {
		for _, topic := range ci.PrimaryTopics {
			if _, seen := counts[topic]; !seen {
				order = append(order, topic)
			}
			counts[topic]++
		}
	}

	ranked := make([]TopicCount, 0, len(order))
	for _, topic := range order {
		ranked = append(ranked, TopicCount{Topic: topic, Count: counts[topic]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > topTopicsLimit {
		ranked = ranked[:topTopicsLimit]
	}
	return ranked
}

func rankPatterns(insights []ConversationInsight) []PatternCount {
	counts := map[CommunicationPattern]int{}
	var order []CommunicationPattern
	for _, ci := range insights {
		for _, p := range ci.CommunicationPatterns {
			if _, seen := counts[p]; !seen {
				order = append(order, p)
			}
			counts[p]++
		}
	}

	ranked := make([]PatternCount, 0, len(order))
	for _, p := range order {
		ranked = append(ranked, PatternCount{Pattern: p, Count: counts[p]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > topPatternsLimit {
		ranked = ranked[:topPatternsLimit]
	}
	return ranked
}

func rankTones(insights []ConversationInsight) []ToneCount {
	counts := map[string]int{}
	var order []string
	for _, ci := range insights {
		tone := ci.EmotionalTone
		if tone == "" {
			continue
		}
		if _, seen := counts[tone]; !seen {
			order = append(order, tone)
		}
		counts[tone]++
	}

	ranked := make([]ToneCount, 0, len(order))
	for _, tone := range order {
		ranked = append(ranked, ToneCount{Tone: tone, Count: counts[tone]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	return ranked
}

// summarizePii flattens findings into category counts and retains a small
// sample of context strings per high- and medium-risk category. Raw values
// never leave this function.
func summarizePii(insights []ConversationInsight) PiiSummary {
	summary := PiiSummary{
		CategoryCounts:    map[PiiCategory]int{},
		HighRiskSamples:   map[PiiCategory][]string{},
		MediumRiskSamples: map[PiiCategory][]string{},
	}
	for _, ci := range insights {
		for _, finding := range ci.ExtractedPii {
			summary.CategoryCounts[finding.Category]++
			summary.TotalFindings++
			switch finding.RiskLevel {
			case RiskHigh:
				if len(summary.HighRiskSamples[finding.Category]) < riskSampleLimit && finding.Context != "" {
					summary.HighRiskSamples[finding.Category] = append(summary.HighRiskSamples[finding.Category], finding.Context)
				}
			case RiskMedium:
				if len(summary.MediumRiskSamples[finding.Category]) < riskSampleLimit && finding.Context != "" {
					summary.MediumRiskSamples[finding.Category] = append(summary.MediumRiskSamples[finding.Category], finding.Context)
				}
			}
		}
	}
	return summary
}

func mergeVocabulary(insights []ConversationInsight) []string {
	seen := map[string]bool{}
	var merged []string
	for _, ci := range insights {
		for _, word := range ci.StandoutVocabulary {
			if seen[word] {
				continue
			}
			seen[word] = true
			merged = append(merged, word)
			if len(merged) >= vocabularyLimit {
				return merged
			}
		}
	}
	return merged
}

// selectTopConversations ranks by composite score descending with a stable
// tie-break on original order. The exact tie-break is a contract consumers
// rely on for reproducible spotlights.
func selectTopConversations(insights []ConversationInsight) []ConversationInsight {
	ranked := make([]ConversationInsight, len(insights))
	copy(ranked, insights)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore() > ranked[j].CompositeScore()
	})
	if len(ranked) > topConversationLimit {
		ranked = ranked[:topConversationLimit]
	}
	return ranked
}
