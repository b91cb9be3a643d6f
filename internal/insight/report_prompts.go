package insight

import (
	"encoding/json"
	"fmt"
	"strings"
)

const synthesisSystemPrompt = `You are an expert behavioral analyst writing premium long-form reports about a person based on aggregated signals from their chat history. You write vivid, specific, second-person prose grounded strictly in the signals you are given. You respond with a single JSON object matching the requested schema exactly: no prose outside the JSON, no markdown, no code fences.`

const codenamePrompt = `Based on these dominant interests and communication patterns, invent a single evocative two-word agent codename for this person (like "Midnight Cartographer"). Respond with a JSON object: {"codename": "..."}.

Interests: %s
Patterns: %s`

// defaultCodename is substituted when the codename sub-call fails; the
// parent dossier must never fail because of it.
const defaultCodename = "The Pattern Seeker"

// spotlightFallback fills justification slots the model left empty.
const spotlightFallback = "This conversation stood out for its unusual depth and range."

func jsonSnippet(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func topicList(sig *AggregatedSignals) string {
	parts := make([]string, 0, len(sig.TopTopics))
	for _, t := range sig.TopTopics {
		parts = append(parts, fmt.Sprintf("%s (%d)", t.Topic, t.Count))
	}
	return strings.Join(parts, ", ")
}

func patternList(sig *AggregatedSignals) string {
	parts := make([]string, 0, len(sig.TopPatterns))
	for _, p := range sig.TopPatterns {
		parts = append(parts, fmt.Sprintf("%s (%d)", p.Pattern, p.Count))
	}
	return strings.Join(parts, ", ")
}

func toneList(sig *AggregatedSignals) string {
	parts := make([]string, 0, len(sig.ToneDistribution))
	for _, t := range sig.ToneDistribution {
		parts = append(parts, fmt.Sprintf("%s (%d)", t.Tone, t.Count))
	}
	return strings.Join(parts, ", ")
}

func buildBehavioralDossierPrompt(sig *AggregatedSignals) string {
	return fmt.Sprintf(`Write a behavioral intelligence dossier about this person.

Signals from %d conversations:
- Dominant topics: %s
- Communication patterns: %s
- Mean complexity %.1f/10, mean engagement %.1f/10
- Sensitive information disclosed (category counts): %s
- High-risk disclosure contexts: %s

Return a JSON object with exactly these fields:
{
  "psychologicalProfile": "3-5 paragraph psychological profile in second person",
  "dominantInterests": [the subject's strongest interest areas as short strings],
  "behavioralPatterns": [distinct observed behavioral patterns as sentences],
  "riskAssessment": "one paragraph on how their disclosure habits could be used against them"
}`,
		sig.ConversationCount,
		topicList(sig),
		patternList(sig),
		sig.MeanComplexity,
		sig.MeanEngagement,
		jsonSnippet(sig.Pii.CategoryCounts),
		jsonSnippet(sig.Pii.HighRiskSamples),
	)
}

func buildLinguisticFingerprintPrompt(sig *AggregatedSignals) string {
	return fmt.Sprintf(`Describe this person's linguistic fingerprint.

Signals:
- Standout vocabulary sample: %s
- Mean complexity: %.1f/10
- Mean sentence length: %.1f words
- Estimated active vocabulary: ~%d words

Return a JSON object with exactly these fields:
{
  "styleDescription": "2-3 paragraphs describing their writing style in second person",
  "sophisticationTier": "a one-phrase tier label, e.g. 'Upper-intermediate technical register'",
  "rhetoricalDevices": [rhetorical habits and devices they lean on, as short strings],
  "signatureWords": [words from the sample that most define their voice]
}`,
		jsonSnippet(sig.Vocabulary),
		sig.MeanComplexity,
		sig.MeanSentenceLength,
		sig.VocabularyEstimate,
	)
}

// conversationSpotlight is the shareable view of a top conversation. It
// deliberately carries no message text and no PII findings; it is the only
// conversation shape that may leave the aggregation step.
type conversationSpotlight struct {
	Rank        int      `json:"rank"`
	Title       string   `json:"title,omitempty"`
	Topics      []string `json:"topics"`
	Uniqueness  int      `json:"uniqueness"`
	Complexity  int      `json:"complexity"`
	Observation string   `json:"observation"`
}

func spotlightEntries(sig *AggregatedSignals) []conversationSpotlight {
	entries := make([]conversationSpotlight, 0, len(sig.TopConversations))
	for i, ci := range sig.TopConversations {
		entries = append(entries, conversationSpotlight{
			Rank:        i + 1,
			Title:       ci.Title,
			Topics:      ci.PrimaryTopics,
			Uniqueness:  ci.UniquenessScore,
			Complexity:  ci.ComplexityLevel,
			Observation: ci.IntriguingObservation,
		})
	}
	return entries
}

func buildTopConversationsPrompt(sig *AggregatedSignals) string {
	entries := spotlightEntries(sig)

	return fmt.Sprintf(`These are this person's %d most remarkable conversations, ranked:

%s

For each ranked conversation, in the same order, write one vivid sentence explaining why it earned its spot.

Return a JSON object with exactly this field:
{
  "justifications": [one string per ranked conversation, position-aligned with the ranking above]
}`,
		len(entries),
		jsonSnippet(entries),
	)
}

func buildPersonaArchetypePrompt(sig *AggregatedSignals) string {
	return fmt.Sprintf(`If this person were cast in a reality show, what character would they be?

Signals:
- Dominant topics: %s
- Communication patterns: %s
- Mean engagement: %.1f/10
- Emotional tones observed: %s

Return a JSON object with exactly these fields:
{
  "archetype": "the reality-show character label",
  "traits": [defining traits as short strings],
  "narrativeArcs": [story arcs this character would drive across a season],
  "tagline": "the one-line intro the show would use for them"
}`,
		topicList(sig),
		patternList(sig),
		sig.MeanEngagement,
		toneList(sig),
	)
}

func buildUnfilteredMirrorPrompt(sig *AggregatedSignals) string {
	return fmt.Sprintf(`An analyst once noted this about the subject:

%q

Amplify it. Make it sharper, more specific, and harder to look away from, while staying truthful to the original observation.

Return a JSON object with exactly these fields:
{
  "amplifiedObservation": "one high-impact sentence, second person",
  "deeperInsight": "one further sentence revealing what the observation implies about them"
}`,
		sig.LongestObservation,
	)
}

func buildPiiSafetyPrompt(sig *AggregatedSignals) string {
	return fmt.Sprintf(`Assess this person's information-disclosure risk based on what they shared in chat conversations.

- Findings per category: %s
- High-risk disclosure contexts: %s
- Medium-risk disclosure contexts: %s
- Conversations analyzed: %d

Weigh the qualitative contexts, not just the counts, and assign an overall risk tier: "Low", "Medium", or "High".

Return a JSON object with exactly these fields:
{
  "riskTier": "Low" | "Medium" | "High",
  "summary": "one paragraph summarizing their disclosure habits",
  "categoryAdvice": {map from category name to one sentence of tailored advice},
  "recommendedActions": [concrete next steps, most urgent first]
}`,
		jsonSnippet(sig.Pii.CategoryCounts),
		jsonSnippet(sig.Pii.HighRiskSamples),
		jsonSnippet(sig.Pii.MediumRiskSamples),
		sig.ConversationCount,
	)
}

func buildSyntheticSocialPrompt(sig *AggregatedSignals) string {
	return fmt.Sprintf(`Invent the social media profile this person would have if their chat persona ran the account.

Signals:
- Dominant topics: %s
- Vocabulary sample: %s
- Emotional tones: %s

Return a JSON object with exactly these fields:
{
  "handle": "a plausible @handle, no spaces",
  "bio": "a bio under 160 characters in their voice",
  "hashtags": [hashtags they would actually use],
  "followerTypes": [descriptions of who would follow this account],
  "pinnedPost": "the post they would pin"
}`,
		topicList(sig),
		jsonSnippet(sig.Vocabulary),
		toneList(sig),
	)
}

func buildCognitiveStylePrompt(sig *AggregatedSignals) string {
	return fmt.Sprintf(`Characterize how this person thinks.

Signals:
- Communication patterns: %s
- Mean complexity %.1f/10 across %d conversations
- Topic evolution and engagement suggest how they move through problems.

Return a JSON object with exactly these fields:
{
  "thinkingStyle": "one paragraph on how they process information",
  "problemSolvingStyle": "one paragraph on how they attack problems",
  "decisionStyle": "one paragraph on how they reach decisions",
  "cognitiveStrengths": [their strongest cognitive habits as short strings]
}`,
		patternList(sig),
		sig.MeanComplexity,
		sig.ConversationCount,
	)
}

func buildPersonalityArchetypePrompt(sig *AggregatedSignals) string {
	return fmt.Sprintf(`Assign this person a personality archetype grounded in their conversational footprint.

Signals:
- Dominant topics: %s
- Communication patterns: %s
- Emotional tones: %s
- Mean engagement: %.1f/10

Return a JSON object with exactly these fields:
{
  "archetype": "the archetype name",
  "description": "2-3 paragraphs describing the archetype as it shows up in them",
  "motivationalDrivers": [what pushes them, as short strings],
  "stressResponses": [how they behave under pressure, as short strings]
}`,
		topicList(sig),
		patternList(sig),
		toneList(sig),
		sig.MeanEngagement,
	)
}
